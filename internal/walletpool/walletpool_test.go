package walletpool

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireGeneratesFreshWalletWhenPoolEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")
	p, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	priv, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if priv == nil {
		t.Fatal("expected a non-nil private key")
	}
	if p.Count() != 1 {
		t.Fatalf("expected pool to grow to 1 wallet, got %d", p.Count())
	}
}

func TestAcquireReusesPreloadedWalletBeforeGenerating(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")
	p, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := p.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	p2, err := Open(path, 0)
	if err != nil {
		t.Fatalf("reopen after flush: %v", err)
	}
	if p2.Count() != 1 {
		t.Fatalf("expected reopened pool to see the persisted wallet, got %d", p2.Count())
	}
	if _, err := p2.Acquire(); err != nil {
		t.Fatalf("Acquire on reopened pool: %v", err)
	}
	if p2.Count() != 1 {
		t.Fatalf("expected Acquire to reuse the preloaded wallet, got %d wallets", p2.Count())
	}
}

func TestReleasePersistsRegistrationMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")
	p, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	priv, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	_ = priv

	addr := p.wallets[0].Address
	p.Release(addr, "agent-123", time.Now())

	reopened, err := Open(path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.wallets[0].AgentID != "agent-123" {
		t.Fatalf("expected agentId to persist, got %q", reopened.wallets[0].AgentID)
	}
}
