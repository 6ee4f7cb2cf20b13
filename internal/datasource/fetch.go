package datasource

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/canopy/pkg/debug"
	"github.com/vanderheijden86/canopy/pkg/model"
)

// defaultFetchWorkers bounds concurrent child loads so a deep expand-all
// cannot exhaust database connections.
const defaultFetchWorkers = 8

// Fetcher loads folder children in the background. Requests for a
// folder already in flight are coalesced, and results arrive on Changes
// as change sets the UI applies between frames. A fetch failure is
// logged and the folder left fetchable; nothing here is fatal.
type Fetcher struct {
	store  Store
	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group
	c      chan model.ChangeSet

	mu       sync.Mutex
	inflight map[string]bool
	closed   bool
}

// NewFetcher starts a pool over the store with at most workers
// concurrent loads; workers <= 0 selects the default.
func NewFetcher(ctx context.Context, store Store, workers int) *Fetcher {
	if workers <= 0 {
		workers = defaultFetchWorkers
	}
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	return &Fetcher{
		store:    store,
		ctx:      ctx,
		cancel:   cancel,
		g:        g,
		c:        make(chan model.ChangeSet, 16),
		inflight: make(map[string]bool),
	}
}

// Changes is the delivery channel for fetched children.
func (f *Fetcher) Changes() <-chan model.ChangeSet { return f.c }

// Request queues a child load for folderID. A duplicate request while
// one is in flight is dropped.
func (f *Fetcher) Request(folderID string) {
	f.mu.Lock()
	if f.closed || f.inflight[folderID] {
		f.mu.Unlock()
		return
	}
	f.inflight[folderID] = true
	f.mu.Unlock()

	f.g.Go(func() error {
		defer func() {
			f.mu.Lock()
			delete(f.inflight, folderID)
			f.mu.Unlock()
		}()

		select {
		case <-f.ctx.Done():
			return nil
		default:
		}

		children, err := f.store.FetchChildren(folderID)
		if err != nil {
			debug.Log("fetch %s: %v", folderID, err)
			return nil
		}
		if len(children) == 0 {
			// The loaded mark alone flips the folder's state; there is
			// nothing to deliver.
			return nil
		}
		select {
		case f.c <- model.ChangeSet{Added: children}:
		case <-f.ctx.Done():
		}
		return nil
	})
}

// Close stops accepting requests and waits for in-flight loads.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.cancel()
	return f.g.Wait()
}
