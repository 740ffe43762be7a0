package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"account-health-alerts/internal/aggregator"
	"account-health-alerts/internal/storage"
)

type fakeAccounts struct {
	accounts []storage.Account
	err      error
}

func (f fakeAccounts) ListEligibleAccounts(context.Context) ([]storage.Account, error) {
	return f.accounts, f.err
}

type fakeProcessor struct {
	mu        sync.Mutex
	processed []string
	failIDs   map[string]bool
	panicIDs  map[string]bool
}

func (f *fakeProcessor) ProcessAccount(_ context.Context, acct storage.Account) (aggregator.Summary, error) {
	f.mu.Lock()
	f.processed = append(f.processed, acct.ID)
	f.mu.Unlock()
	if f.panicIDs[acct.ID] {
		panic("processor blew up")
	}
	if f.failIDs[acct.ID] {
		return aggregator.Summary{}, errors.New("account processing broke")
	}
	return aggregator.Summary{AccountID: acct.ID}, nil
}

type fakeLocker struct {
	held    bool
	err     error
	granted int
}

func (f *fakeLocker) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held {
		return nil, false, nil
	}
	f.granted++
	return func() {}, true, nil
}

func accountsNamed(ids ...string) []storage.Account {
	out := make([]storage.Account, len(ids))
	for i, id := range ids {
		out[i] = storage.Account{ID: id, Regions: []storage.Marketplace{{Region: "NA", Country: "US"}}}
	}
	return out
}

func TestRunIsolatesAccountFailures(t *testing.T) {
	proc := &fakeProcessor{failIDs: map[string]bool{"acc-2": true}}
	runner := New(fakeAccounts{accounts: accountsNamed("acc-1", "acc-2", "acc-3")}, proc, nil, Options{BatchSize: 10}, zerolog.Nop())

	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Enumerated != 3 || stats.Processed != 3 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(proc.processed) != 3 {
		t.Fatalf("all accounts must be attempted, got %v", proc.processed)
	}
}

func TestRunConvertsPanicsToFailures(t *testing.T) {
	proc := &fakeProcessor{panicIDs: map[string]bool{"acc-1": true}}
	runner := New(fakeAccounts{accounts: accountsNamed("acc-1", "acc-2")}, proc, nil, Options{BatchSize: 10}, zerolog.Nop())

	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Failed != 1 || stats.Processed != 2 {
		t.Fatalf("panic must count as one failed account: %+v", stats)
	}
}

func TestRunEnumerationFailureIsFatal(t *testing.T) {
	runner := New(fakeAccounts{err: errors.New("db gone")}, &fakeProcessor{}, nil, Options{}, zerolog.Nop())
	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("enumeration failure must abort the run")
	}
}

func TestRunSkipsWhenLockHeld(t *testing.T) {
	locker := &fakeLocker{held: true}
	runner := New(fakeAccounts{accounts: accountsNamed("acc-1")}, &fakeProcessor{}, locker, Options{LockKey: 42}, zerolog.Nop())

	_, err := runner.Run(context.Background())
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestRunAcquiresAndReleasesLock(t *testing.T) {
	locker := &fakeLocker{}
	runner := New(fakeAccounts{accounts: accountsNamed("acc-1")}, &fakeProcessor{}, locker, Options{LockKey: 42}, zerolog.Nop())

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if locker.granted != 1 {
		t.Fatalf("expected one lock grant, got %d", locker.granted)
	}
}

func TestRunHonorsCancellationBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := &fakeProcessor{}
	runner := New(fakeAccounts{accounts: accountsNamed("a", "b", "c")}, proc, nil,
		Options{BatchSize: 1, BatchPause: time.Hour}, zerolog.Nop())

	stats, err := runner.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stats.Processed != 1 {
		t.Fatalf("expected to stop after the first batch, got %+v", stats)
	}
}

func TestChunkAccounts(t *testing.T) {
	batches := chunkAccounts(accountsNamed("a", "b", "c", "d", "e"), 2)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[1]) != 2 || len(batches[2]) != 1 {
		t.Fatalf("unexpected batch sizes: %v", batches)
	}
	if chunkAccounts(nil, 2) != nil {
		t.Fatal("no accounts means no batches")
	}
}
