package reconciler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"fibermesh/internal/dataclient"
	"fibermesh/internal/model"
)

// fakeDataLayer is an in-memory stand-in for the metagraph's data/snapshot
// layer, rejecting stale targetSequenceNumber like the real data layer
// would (spec.md §8 "Sequence reconcile" property).
type fakeDataLayer struct {
	mu       sync.Mutex
	fibers   map[string]*model.Fiber
	conflictOnce map[string]int // forces N SequenceConflicts before accepting, per fiber
}

func newFakeDataLayer() *fakeDataLayer {
	return &fakeDataLayer{
		fibers:       make(map[string]*model.Fiber),
		conflictOnce: make(map[string]int),
	}
}

func (f *fakeDataLayer) GetStateMachine(ctx context.Context, fiberID string) (*model.Fiber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fib, ok := f.fibers[fiberID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return fib.Clone(), nil
}

func (f *fakeDataLayer) Submit(ctx context.Context, envelope model.Signed[any]) (dataclient.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := envelope.Value.(model.TransitionStateMachineMsg)
	if !ok {
		return dataclient.SubmitResult{}, fmt.Errorf("unsupported message")
	}
	fib, ok := f.fibers[msg.FiberID]
	if !ok {
		return dataclient.SubmitResult{}, model.ErrNotFound
	}
	if f.conflictOnce[msg.FiberID] > 0 {
		f.conflictOnce[msg.FiberID]--
		return dataclient.SubmitResult{}, fmt.Errorf("%w: stale sequence", model.ErrSequenceConflict)
	}
	if msg.TargetSequenceNumber != fib.SequenceNumber {
		return dataclient.SubmitResult{}, fmt.Errorf("%w: want %d got %d", model.ErrSequenceConflict, fib.SequenceNumber, msg.TargetSequenceNumber)
	}
	fib.SequenceNumber++
	fib.CurrentState = msg.EventName
	return dataclient.SubmitResult{Hash: fmt.Sprintf("hash-%d", fib.SequenceNumber)}, nil
}

func TestSubmitRetriesOnSequenceConflict(t *testing.T) {
	data := newFakeDataLayer()
	data.fibers["f1"] = &model.Fiber{FiberID: "f1", SequenceNumber: 0, CurrentState: "start"}
	data.conflictOnce["f1"] = 2 // two injected collisions before success

	r := New(data, DefaultConfig())
	priv, _ := secp256k1.GeneratePrivateKey()

	res, err := r.Submit(context.Background(), priv, "f1", "advance", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Hash == "" {
		t.Fatalf("expected a hash")
	}
	if data.fibers["f1"].SequenceNumber != 1 {
		t.Fatalf("expected sequence 1, got %d", data.fibers["f1"].SequenceNumber)
	}
}

func TestSubmitExhaustsRetries(t *testing.T) {
	data := newFakeDataLayer()
	data.fibers["f1"] = &model.Fiber{FiberID: "f1", SequenceNumber: 0}
	data.conflictOnce["f1"] = 100 // always conflicts

	cfg := DefaultConfig()
	cfg.MaxSequenceRetries = 2
	r := New(data, cfg)
	priv, _ := secp256k1.GeneratePrivateKey()

	_, err := r.Submit(context.Background(), priv, "f1", "advance", nil)
	if err == nil {
		t.Fatalf("expected exhausted-retries error")
	}
}

func TestWaitForFiberVisibleTimesOutAsNotReady(t *testing.T) {
	data := newFakeDataLayer()
	cfg := DefaultConfig()
	cfg.VisibilityTimeout = 50 * time.Millisecond
	r := New(data, cfg)

	_, err := r.WaitForFiberVisible(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected NotReady error")
	}
}

func TestWaitForFiberVisibleSucceedsOnceCreated(t *testing.T) {
	data := newFakeDataLayer()
	cfg := DefaultConfig()
	cfg.VisibilityTimeout = 2 * time.Second
	r := New(data, cfg)

	go func() {
		time.Sleep(30 * time.Millisecond)
		data.mu.Lock()
		data.fibers["late"] = &model.Fiber{FiberID: "late", SequenceNumber: 0}
		data.mu.Unlock()
	}()

	fib, err := r.WaitForFiberVisible(context.Background(), "late")
	if err != nil {
		t.Fatalf("WaitForFiberVisible: %v", err)
	}
	if fib.FiberID != "late" {
		t.Fatalf("unexpected fiber: %+v", fib)
	}
}

// Concurrent submit tasks on the same fiber eventually all succeed in some
// serialization order with no duplicate application of any given sequence
// increment (spec.md §8 "Sequence reconcile" property).
func TestConcurrentSubmitsSerializeWithoutDuplication(t *testing.T) {
	data := newFakeDataLayer()
	data.fibers["f1"] = &model.Fiber{FiberID: "f1", SequenceNumber: 0}
	cfg := DefaultConfig()
	cfg.MaxSequenceRetries = 20
	r := New(data, cfg)
	priv, _ := secp256k1.GeneratePrivateKey()

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Submit(context.Background(), priv, "f1", "advance", map[string]any{"i": i})
			errs[i] = err
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	if succeeded != n {
		t.Fatalf("expected all %d submits to eventually succeed, got %d", n, succeeded)
	}
	if data.fibers["f1"].SequenceNumber != uint64(n) {
		t.Fatalf("expected sequence number %d, got %d", n, data.fibers["f1"].SequenceNumber)
	}
}
