package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite"

	"PotLuck/internal/model"
)

// SQLiteRecorder persists lottery history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance (dashboard reads while bot writes).
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS holders (
			address          TEXT PRIMARY KEY,
			balance          INTEGER NOT NULL,
			pct_of_supply    REAL,
			is_eligible      INTEGER,
			last_observed_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_holders_balance ON holders(balance)`,

		`CREATE TABLE IF NOT EXISTS rounds (
			id                TEXT PRIMARY KEY,
			start_time        INTEGER NOT NULL,
			end_time          INTEGER,
			pot_at_start      INTEGER,
			eligible_at_start INTEGER,
			winner_address    TEXT,
			winner_payout     INTEGER,
			creator_payout    INTEGER,
			entropy           TEXT,
			settlement_ref    TEXT,
			status            TEXT,
			error             TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_start ON rounds(start_time)`,

		`CREATE TABLE IF NOT EXISTS payouts (
			id             TEXT PRIMARY KEY,
			winner_address TEXT,
			winner_amount  INTEGER,
			creator_amount INTEGER,
			total_amount   INTEGER,
			status         TEXT,
			attempts       INTEGER,
			settlement_ref TEXT,
			error          TEXT,
			created_at     INTEGER NOT NULL,
			completed_at   INTEGER,
			failed_at      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payouts_created ON payouts(created_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordHolders upserts the full holder snapshot.
func (r *SQLiteRecorder) RecordHolders(holders []*model.Holder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO holders
		(address, balance, pct_of_supply, is_eligible, last_observed_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT(address) DO UPDATE SET
			balance=excluded.balance,
			pct_of_supply=excluded.pct_of_supply,
			is_eligible=excluded.is_eligible,
			last_observed_at=excluded.last_observed_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, h := range holders {
		eligible := 0
		if h.IsEligible {
			eligible = 1
		}
		if _, err := stmt.Exec(h.Address, h.Balance, h.PercentageOfSupply, eligible, h.LastObservedAt.Unix()); err != nil {
			return fmt.Errorf("upsert holder %s: %w", h.Address, err)
		}
	}
	return tx.Commit()
}

// RecordRound upserts a round; called both when a round starts and when it
// reaches a terminal status.
func (r *SQLiteRecorder) RecordRound(round *model.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	winner := ""
	if round.Winner != nil {
		winner = round.Winner.Address
	}
	var endTime int64
	if !round.EndTime.IsZero() {
		endTime = round.EndTime.Unix()
	}
	_, err := r.db.Exec(`INSERT INTO rounds
		(id, start_time, end_time, pot_at_start, eligible_at_start,
		 winner_address, winner_payout, creator_payout, entropy,
		 settlement_ref, status, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			end_time=excluded.end_time,
			winner_address=excluded.winner_address,
			winner_payout=excluded.winner_payout,
			creator_payout=excluded.creator_payout,
			entropy=excluded.entropy,
			settlement_ref=excluded.settlement_ref,
			status=excluded.status,
			error=excluded.error`,
		round.ID, round.StartTime.Unix(), endTime,
		round.PotAtStart, round.EligibleAtStart,
		winner, round.WinnerPayout, round.CreatorPayout,
		fmt.Sprintf("%d", round.Entropy),
		round.SettlementReference, string(round.Status), round.Error,
	)
	return err
}

// RecordPayout upserts a payout attempt and its outcome.
func (r *SQLiteRecorder) RecordPayout(p *model.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var completedAt, failedAt int64
	if !p.CompletedAt.IsZero() {
		completedAt = p.CompletedAt.Unix()
	}
	if !p.FailedAt.IsZero() {
		failedAt = p.FailedAt.Unix()
	}
	_, err := r.db.Exec(`INSERT INTO payouts
		(id, winner_address, winner_amount, creator_amount, total_amount,
		 status, attempts, settlement_ref, error, created_at, completed_at, failed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			attempts=excluded.attempts,
			settlement_ref=excluded.settlement_ref,
			error=excluded.error,
			completed_at=excluded.completed_at,
			failed_at=excluded.failed_at`,
		p.ID, p.WinnerAddress, p.WinnerAmount, p.CreatorAmount, p.TotalAmount,
		string(p.Status), p.Attempts, p.SettlementReference, p.Error,
		p.CreatedAt.Unix(), completedAt, failedAt,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
