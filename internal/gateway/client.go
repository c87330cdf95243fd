package gateway

import (
	"context"
	"errors"
)

// HolderBalance is one token account's balance as reported by a node.
type HolderBalance struct {
	Address string
	Balance uint64 // smallest unit
}

// Transfer is one leg of a disbursement.
type Transfer struct {
	To            string
	Amount        uint64
	CreateAccount bool // create the receiving account if it does not exist
}

// TransferRequest is a full disbursement to submit. Signing and wire
// encoding happen in the wallet service fronting the node; the engine only
// names the payer and the legs.
type TransferRequest struct {
	Payer           string
	SigningKey      string
	RecentBlockhash string
	Transfers       []Transfer
	Memo            string
}

// ErrNotConfirmed indicates a submitted transaction that the node did not
// confirm; callers retry with a fresh blockhash.
var ErrNotConfirmed = errors.New("transaction not confirmed")

// ErrUnhealthy indicates an endpoint that failed its liveness check.
var ErrUnhealthy = errors.New("endpoint unhealthy")

// Client defines the read/write capability a single ledger endpoint must
// provide. Any chain client satisfying it is substitutable.
type Client interface {
	Name() string
	Health(ctx context.Context) error
	TokenSupply(ctx context.Context, mint string) (uint64, error)
	TokenHolders(ctx context.Context, mint string) ([]HolderBalance, error)
	AccountBalance(ctx context.Context, address string) (uint64, error)
	LatestBlockhash(ctx context.Context) (string, error)
	SubmitTransfer(ctx context.Context, req *TransferRequest) (string, error)
	ConfirmTransaction(ctx context.Context, signature string) error
}
