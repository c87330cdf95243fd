package gateway

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Gateway is a uniform call surface over a primary endpoint and N backups.
// Every operation goes through executeWithRetry: on failure it rotates to
// the next endpoint, backs off exponentially and retries.
type Gateway struct {
	mu         sync.Mutex
	clients    []Client
	active     int
	maxRetries int
	baseDelay  time.Duration
}

// New creates a Gateway. The first client is the primary.
func New(clients []Client, maxRetries int, baseDelay time.Duration) *Gateway {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Gateway{clients: clients, maxRetries: maxRetries, baseDelay: baseDelay}
}

// FromEndpoints builds a Gateway of RPC clients from endpoint URLs.
func FromEndpoints(primary string, backups []string, maxRetries int, baseDelay time.Duration) *Gateway {
	clients := make([]Client, 0, len(backups)+1)
	clients = append(clients, NewRPCClient(primary))
	for _, u := range backups {
		clients = append(clients, NewRPCClient(u))
	}
	return New(clients, maxRetries, baseDelay)
}

// ActiveEndpoint returns the name of the endpoint currently in use.
func (g *Gateway) ActiveEndpoint() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clients[g.active].Name()
}

func (g *Gateway) activeClient() Client {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clients[g.active]
}

// switchToBackup rotates to the next endpoint (round-robin). The candidate
// must pass a health check before it becomes active; on a failed check the
// active pointer stays where it was.
func (g *Gateway) switchToBackup(ctx context.Context) bool {
	g.mu.Lock()
	if len(g.clients) < 2 {
		g.mu.Unlock()
		return false
	}
	cand := (g.active + 1) % len(g.clients)
	next := g.clients[cand]
	g.mu.Unlock()

	if err := next.Health(ctx); err != nil {
		log.Printf("[WARN] backup endpoint %s failed health check: %v", next.Name(), err)
		return false
	}

	g.mu.Lock()
	g.active = cand
	g.mu.Unlock()
	log.Printf("[INFO] switched to endpoint: %s", next.Name())
	return true
}

// executeWithRetry invokes op against the active endpoint, rotating to a
// backup and backing off on every failure, up to maxRetries attempts.
func (g *Gateway) executeWithRetry(ctx context.Context, op func(c Client) error) error {
	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		client := g.activeClient()
		if err := op(client); err == nil {
			return nil
		} else {
			lastErr = err
			log.Printf("[WARN] ledger call failed on %s (attempt %d/%d): %v", client.Name(), attempt, g.maxRetries, err)
		}

		if attempt == g.maxRetries {
			break
		}
		g.switchToBackup(ctx)

		backoff := g.baseDelay * time.Duration(1<<uint(attempt-1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts exhausted: %w", g.maxRetries, lastErr)
}

// TokenSupply returns the token's total supply in the smallest unit.
func (g *Gateway) TokenSupply(ctx context.Context, mint string) (uint64, error) {
	var supply uint64
	err := g.executeWithRetry(ctx, func(c Client) error {
		var err error
		supply, err = c.TokenSupply(ctx, mint)
		return err
	})
	return supply, err
}

// TokenHolders enumerates holder balances for the token.
func (g *Gateway) TokenHolders(ctx context.Context, mint string) ([]HolderBalance, error) {
	var holders []HolderBalance
	err := g.executeWithRetry(ctx, func(c Client) error {
		var err error
		holders, err = c.TokenHolders(ctx, mint)
		return err
	})
	return holders, err
}

// AccountBalance returns an account's balance in the smallest unit.
func (g *Gateway) AccountBalance(ctx context.Context, address string) (uint64, error) {
	var balance uint64
	err := g.executeWithRetry(ctx, func(c Client) error {
		var err error
		balance, err = c.AccountBalance(ctx, address)
		return err
	})
	return balance, err
}

// LatestBlockhash returns a recent blockhash, used both as a transaction
// lifetime reference and as the entropy source for winner selection.
func (g *Gateway) LatestBlockhash(ctx context.Context) (string, error) {
	var blockhash string
	err := g.executeWithRetry(ctx, func(c Client) error {
		var err error
		blockhash, err = c.LatestBlockhash(ctx)
		return err
	})
	return blockhash, err
}

// SubmitTransfer submits a disbursement and returns its signature.
func (g *Gateway) SubmitTransfer(ctx context.Context, req *TransferRequest) (string, error) {
	var signature string
	err := g.executeWithRetry(ctx, func(c Client) error {
		var err error
		signature, err = c.SubmitTransfer(ctx, req)
		return err
	})
	return signature, err
}

// ConfirmTransaction waits for the node to confirm a submitted signature.
func (g *Gateway) ConfirmTransaction(ctx context.Context, signature string) error {
	return g.executeWithRetry(ctx, func(c Client) error {
		return c.ConfirmTransaction(ctx, signature)
	})
}
