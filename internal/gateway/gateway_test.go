package gateway

import (
	"context"
	"testing"
	"time"
)

func TestGateway_FailsOverToBackup(t *testing.T) {
	primary := &MockClient{Label: "primary", FailCalls: 1}
	backup := &MockClient{Label: "backup", Supply: 42}
	gw := New([]Client{primary, backup}, 3, time.Millisecond)

	supply, err := gw.TokenSupply(context.Background(), "MINT")
	if err != nil {
		t.Fatalf("expected failover to succeed: %v", err)
	}
	if supply != 42 {
		t.Errorf("expected backup's supply 42, got %d", supply)
	}
	if gw.ActiveEndpoint() != "backup" {
		t.Errorf("expected active endpoint backup, got %s", gw.ActiveEndpoint())
	}
}

func TestGateway_ExhaustsRetries(t *testing.T) {
	primary := &MockClient{Label: "primary", FailCalls: 100}
	backup := &MockClient{Label: "backup", FailCalls: 100}
	gw := New([]Client{primary, backup}, 3, time.Millisecond)

	if _, err := gw.TokenSupply(context.Background(), "MINT"); err == nil {
		t.Fatal("expected error after exhausting all attempts")
	}
}

func TestGateway_SingleEndpointRetries(t *testing.T) {
	only := &MockClient{FailCalls: 2, Supply: 7}
	gw := New([]Client{only}, 3, time.Millisecond)

	supply, err := gw.TokenSupply(context.Background(), "MINT")
	if err != nil {
		t.Fatalf("expected third attempt to succeed: %v", err)
	}
	if supply != 7 {
		t.Errorf("expected supply 7, got %d", supply)
	}
}

func TestGateway_UnhealthyBackupRotation(t *testing.T) {
	// The backup fails its health check on the first rotation, so the next
	// attempt stays on the primary; the second rotation lands once the
	// endpoint recovers.
	primary := &MockClient{Label: "primary", FailCalls: 2}
	backup := &MockClient{Label: "backup", FailCalls: 1, Supply: 9} // health check fails once
	gw := New([]Client{primary, backup}, 4, time.Millisecond)

	supply, err := gw.TokenSupply(context.Background(), "MINT")
	if err != nil {
		t.Fatalf("expected eventual success: %v", err)
	}
	if supply != 9 {
		t.Errorf("expected supply 9, got %d", supply)
	}
}

func TestGateway_FailedHealthCheckKeepsActiveEndpoint(t *testing.T) {
	primary := &MockClient{Label: "primary"}
	backup := &MockClient{Label: "backup", FailCalls: 1}
	gw := New([]Client{primary, backup}, 3, time.Millisecond)

	if gw.switchToBackup(context.Background()) {
		t.Fatal("switch must report failure while the backup is down")
	}
	if gw.ActiveEndpoint() != "primary" {
		t.Errorf("active endpoint must stay primary, got %s", gw.ActiveEndpoint())
	}

	if !gw.switchToBackup(context.Background()) {
		t.Fatal("switch must succeed once the backup recovers")
	}
	if gw.ActiveEndpoint() != "backup" {
		t.Errorf("expected active endpoint backup, got %s", gw.ActiveEndpoint())
	}
}

func TestGateway_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &MockClient{FailCalls: 100}
	gw := New([]Client{primary}, 5, 10*time.Second)

	if _, err := gw.TokenSupply(ctx, "MINT"); err == nil {
		t.Fatal("expected cancellation to abort the retry loop")
	}
}
