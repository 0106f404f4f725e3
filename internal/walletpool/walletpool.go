// Package walletpool persists and hands out secp256k1 keypairs for the
// orchestrator's simulated agents (spec.md §3.2/§6.6), generalizing the
// teacher's core/wallet.go import-hygiene discipline (depends only on
// common + crypto + log, never on ledger/consensus/network) from
// ed25519/BIP-39 HD wallets to this spec's flat keypair model.
package walletpool

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"fibermesh/internal/codec"
)

func SetLogger(l *log.Logger) { globalLogger = l }

var globalLogger = log.New()

// Wallet is one persisted keypair, the JSON shape named in spec.md §6.6.
type Wallet struct {
	Address      string     `json:"address"`
	PublicKey    string     `json:"publicKey"`
	PrivateKey   string     `json:"privateKey"` // hex-encoded 32-byte scalar
	Platform     string     `json:"platform"`
	Handle       string     `json:"handle"`
	RegisteredAt *time.Time `json:"registeredAt,omitempty"`
	AgentID      string     `json:"agentId,omitempty"`
}

type fileFormat struct {
	Count   int      `json:"count"`
	Wallets []Wallet `json:"wallets"`
}

// Pool is a JSON-file-backed wallet pool: agents may be drawn from a
// preloaded list or generated fresh, and released wallets (with agentID
// now known) are persisted back with a debounced flush.
type Pool struct {
	mu       sync.Mutex
	path     string
	wallets  []Wallet
	used     map[string]bool // address -> currently acquired
	dirty    bool
	flushDur time.Duration
	stopCh   chan struct{}
}

// Open loads path if it exists, or starts an empty pool that will create
// the file on first flush. flushInterval of 0 disables the background
// debounced flusher; callers must call Flush explicitly.
func Open(path string, flushInterval time.Duration) (*Pool, error) {
	p := &Pool{path: path, used: make(map[string]bool), flushDur: flushInterval, stopCh: make(chan struct{})}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// start empty; Flush will create the file
	case err != nil:
		return nil, fmt.Errorf("walletpool: reading %s: %w", path, err)
	default:
		var ff fileFormat
		if err := json.Unmarshal(data, &ff); err != nil {
			return nil, fmt.Errorf("walletpool: parsing %s: %w", path, err)
		}
		p.wallets = ff.Wallets
		globalLogger.Infof("walletpool: loaded %d wallets from %s", len(p.wallets), path)
	}

	if flushInterval > 0 {
		go p.flushLoop()
	}
	return p, nil
}

func (p *Pool) flushLoop() {
	ticker := time.NewTicker(p.flushDur)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			dirty := p.dirty
			p.mu.Unlock()
			if dirty {
				if err := p.Flush(); err != nil {
					globalLogger.WithError(err).Warn("walletpool: debounced flush failed")
				}
			}
		case <-p.stopCh:
			return
		}
	}
}

// Close stops the background flusher (if any) and performs a final flush.
func (p *Pool) Close() error {
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	return p.Flush()
}

// Acquire returns an unused wallet from the preloaded list, generating one
// fresh if none remain, and marks it used. Implements
// population.WalletSource.
func (p *Pool) Acquire() (*secp256k1.PrivateKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.wallets {
		w := &p.wallets[i]
		if !p.used[w.Address] {
			p.used[w.Address] = true
			return decodePrivateKey(w.PrivateKey)
		}
	}

	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("walletpool: generating key: %w", err)
	}
	w := newWalletRecord(priv)
	p.wallets = append(p.wallets, w)
	p.used[w.Address] = true
	p.dirty = true
	return priv, nil
}

// Release marks address no longer in use and records its registration
// metadata, flushing immediately if this pool has no background flusher.
func (p *Pool) Release(address, agentID string, registeredAt time.Time) {
	p.mu.Lock()
	delete(p.used, address)
	for i := range p.wallets {
		if p.wallets[i].Address == address {
			p.wallets[i].AgentID = agentID
			p.wallets[i].RegisteredAt = &registeredAt
			break
		}
	}
	p.dirty = true
	immediate := p.flushDur == 0
	p.mu.Unlock()

	if immediate {
		if err := p.Flush(); err != nil {
			globalLogger.WithError(err).Warn("walletpool: immediate flush failed")
		}
	}
}

// Flush writes the current pool state to disk if dirty.
func (p *Pool) Flush() error {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return nil
	}
	ff := fileFormat{Count: len(p.wallets), Wallets: append([]Wallet(nil), p.wallets...)}
	p.dirty = false
	p.mu.Unlock()

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("walletpool: marshaling: %w", err)
	}
	tmp := p.path + ".tmp" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("walletpool: writing temp file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("walletpool: renaming into place: %w", err)
	}
	return nil
}

// Count returns the number of wallets currently known to the pool.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.wallets)
}

func newWalletRecord(priv *secp256k1.PrivateKey) Wallet {
	pub := priv.PubKey().SerializeUncompressed()
	return Wallet{
		Address:    codec.AddressFromPrivateKey(priv),
		PublicKey:  hex.EncodeToString(pub[1:]),
		PrivateKey: hex.EncodeToString(priv.Serialize()),
	}
}

func decodePrivateKey(hexKey string) (*secp256k1.PrivateKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("walletpool: decoding private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("walletpool: private key must be 32 bytes, got %d", len(raw))
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	return priv, nil
}
