package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MockClient returns controllable fixed data for development and testing.
type MockClient struct {
	mu sync.Mutex

	Label     string
	Supply    uint64
	Holders   []HolderBalance
	Balances  map[string]uint64
	Blockhash string

	// FailCalls makes the next N calls of any kind fail.
	FailCalls int
	// FailSubmits makes the next N SubmitTransfer calls fail.
	FailSubmits int

	Submitted   []*TransferRequest
	HealthCalls int
}

func (m *MockClient) Name() string {
	if m.Label != "" {
		return m.Label
	}
	return "mock"
}

func (m *MockClient) failNext() error {
	if m.FailCalls > 0 {
		m.FailCalls--
		return errors.New("mock: injected failure")
	}
	return nil
}

func (m *MockClient) Health(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HealthCalls++
	return m.failNext()
}

func (m *MockClient) TokenSupply(_ context.Context, _ string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(); err != nil {
		return 0, err
	}
	return m.Supply, nil
}

func (m *MockClient) TokenHolders(_ context.Context, _ string) ([]HolderBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(); err != nil {
		return nil, err
	}
	out := make([]HolderBalance, len(m.Holders))
	copy(out, m.Holders)
	return out, nil
}

func (m *MockClient) AccountBalance(_ context.Context, address string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(); err != nil {
		return 0, err
	}
	return m.Balances[address], nil
}

func (m *MockClient) LatestBlockhash(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(); err != nil {
		return "", err
	}
	if m.Blockhash == "" {
		return "MockBlockhash1111111111111111111111111111111", nil
	}
	return m.Blockhash, nil
}

func (m *MockClient) SubmitTransfer(_ context.Context, req *TransferRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(); err != nil {
		return "", err
	}
	if m.FailSubmits > 0 {
		m.FailSubmits--
		return "", errors.New("mock: submit rejected")
	}
	m.Submitted = append(m.Submitted, req)
	return fmt.Sprintf("mock-sig-%d", len(m.Submitted)), nil
}

func (m *MockClient) ConfirmTransaction(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failNext()
}

// SetHolders swaps the holder set between calls.
func (m *MockClient) SetHolders(holders []HolderBalance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Holders = holders
}

// SubmitCount reports how many transfers reached the mock ledger.
func (m *MockClient) SubmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Submitted)
}
