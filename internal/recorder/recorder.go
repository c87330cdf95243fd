package recorder

import "PotLuck/internal/model"

// Recorder persists holders, rounds and payouts for durability and
// analytics. Absence of a connected store degrades to in-memory-only
// operation with no behavioral change.
type Recorder interface {
	RecordHolders(holders []*model.Holder) error
	RecordRound(round *model.Round) error
	RecordPayout(payout *model.Payout) error
	Close() error
}
