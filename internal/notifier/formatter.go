package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"PotLuck/internal/event"
	"PotLuck/internal/model"
)

func amount(v uint64) string {
	return humanize.Comma(int64(v))
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

// FormatEvent turns a bus event into an announcement, or "" for events that
// are not worth a message.
func FormatEvent(e event.Event) string {
	switch e.Type {
	case event.WinnerSelected:
		return fmt.Sprintf("🎰 <b>We have a winner!</b>\n\nRound: %s\nWinner: <code>%s</code>\nPrize: %s\nCreator cut: %s\nEligible holders: %d",
			e.RoundID, shortAddr(e.Winner), amount(e.WinnerPayout), amount(e.CreatorPayout), e.EligibleHolders)
	case event.PayoutSettled:
		return fmt.Sprintf("💸 <b>Payout settled</b>\n\nWinner: <code>%s</code>\nSettlement: <code>%s</code>\nPot now: %s",
			shortAddr(e.Winner), e.Settlement, amount(e.Pot))
	case event.PayoutFailed:
		return fmt.Sprintf("❌ <b>Payout failed</b>\n\nRound: %s\nWinner: <code>%s</code>\nError: %s\nUse /retry &lt;id&gt; after fixing the cause.",
			e.RoundID, shortAddr(e.Winner), e.Message)
	case event.RoundSkipped:
		return fmt.Sprintf("⏭ Round %s skipped: no eligible holders yet. Pot keeps growing: %s",
			e.RoundID, amount(e.Pot))
	default:
		return ""
	}
}

// FormatStatus renders the engine status for the /status command.
func FormatStatus(state model.RoundStatus, pool model.PoolState, nextSpin time.Time, eligible, total int, endpoint string) string {
	var b strings.Builder
	b.WriteString("🎡 <b>PotLuck status</b>\n\n")
	b.WriteString(fmt.Sprintf("State: %s\n", state))
	b.WriteString(fmt.Sprintf("Pot: %s\n", amount(pool.CurrentAmount)))
	b.WriteString(fmt.Sprintf("Next spin: %s\n", nextSpin.Format("2006-01-02 15:04:05 MST")))
	b.WriteString(fmt.Sprintf("Holders: %d (%d eligible)\n", total, eligible))
	b.WriteString(fmt.Sprintf("Endpoint: %s\n", endpoint))
	return b.String()
}

// FormatPot renders the pool state for the /pot command.
func FormatPot(pool model.PoolState) string {
	var b strings.Builder
	b.WriteString("💰 <b>Prize pool</b>\n\n")
	b.WriteString(fmt.Sprintf("Current: %s\n", amount(pool.CurrentAmount)))
	b.WriteString(fmt.Sprintf("Base: %s\n", amount(pool.BaseAmount)))
	b.WriteString(fmt.Sprintf("Growth: %.1f%% per cycle (cap %s)\n", pool.GrowthRate*100, amount(pool.MaxGrowthPerCycle)))
	return b.String()
}

// FormatHolderBoard renders the top holders for the /holders command.
func FormatHolderBoard(holders []*model.Holder, minimumHold uint64) string {
	var b strings.Builder
	b.WriteString("👥 <b>Top holders</b>\n\n")
	for i, h := range holders {
		mark := " "
		if h.IsEligible {
			mark = "✅"
		}
		b.WriteString(fmt.Sprintf("%2d. %s <code>%s</code> %s (%.2f%%)\n",
			i+1, mark, shortAddr(h.Address), amount(h.Balance), h.PercentageOfSupply))
	}
	if len(holders) == 0 {
		b.WriteString("No holders scanned yet.\n")
	}
	b.WriteString(fmt.Sprintf("\nMinimum to enter: %s", amount(minimumHold)))
	return b.String()
}

// FormatRoundHistory renders recent rounds for the /history command.
func FormatRoundHistory(rounds []*model.Round, limit int) string {
	if len(rounds) == 0 {
		return "No rounds played yet."
	}
	if limit > 0 && len(rounds) > limit {
		rounds = rounds[:limit]
	}
	var b strings.Builder
	b.WriteString("📜 <b>Recent rounds</b>\n\n")
	for _, r := range rounds {
		line := fmt.Sprintf("%s | %s | pot %s", r.StartTime.Format("01-02 15:04"), r.Status, amount(r.PotAtStart))
		if r.Winner != nil {
			line += " | 🏆 " + shortAddr(r.Winner.Address)
		}
		if r.Error != "" {
			line += " | ⚠️ " + r.Error
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
