package recorder

import "PotLuck/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordHolders(_ []*model.Holder) error { return nil }
func (n *NoopRecorder) RecordRound(_ *model.Round) error      { return nil }
func (n *NoopRecorder) RecordPayout(_ *model.Payout) error    { return nil }
func (n *NoopRecorder) Close() error                          { return nil }
