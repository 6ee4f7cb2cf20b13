package datasource

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// slowStore is a Store stub whose FetchChildren can be held open, for
// driving the fetch pool without a real file.
type slowStore struct {
	mu       sync.Mutex
	children map[string][]model.Entry
	calls    map[string]int
	fetchErr error
	release  chan struct{}
}

func newSlowStore() *slowStore {
	return &slowStore{
		children: map[string][]model.Entry{
			"folder-000": {
				{ID: "item-0001", ParentID: "folder-000", Kind: model.KindItem,
					Name: "report-001.pdf", Type: model.TypeDocument, Caps: model.DefaultCaps,
					CreatedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
				{ID: "item-0002", ParentID: "folder-000", Kind: model.KindItem,
					Name: "photo-002.png", Type: model.TypeImage, Caps: model.DefaultCaps,
					CreatedAt: time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)},
			},
			"folder-001": {},
		},
		calls: make(map[string]int),
	}
}

func (s *slowStore) FetchChildren(folderID string) ([]model.Entry, error) {
	s.mu.Lock()
	s.calls[folderID]++
	err := s.fetchErr
	release := s.release
	s.mu.Unlock()
	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return s.children[folderID], nil
}

func (s *slowStore) callCount(folderID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[folderID]
}

func (s *slowStore) Source() DataSource                   { return DataSource{} }
func (s *slowStore) ReadOnly() bool                       { return true }
func (s *slowStore) LoadRoots() ([]model.Entry, error)    { return nil, nil }
func (s *slowStore) ChildrenLoaded(string) bool           { return false }
func (s *slowStore) Snapshot() ([]model.Entry, error)     { return nil, nil }
func (s *slowStore) CountEntries() (int, error)           { return 0, nil }
func (s *slowStore) LastModified() (time.Time, error)     { return time.Time{}, nil }
func (s *slowStore) RenameEntry(string, string) error     { return ErrReadOnlySource }
func (s *slowStore) RemoveEntry(string) error             { return ErrReadOnlySource }
func (s *slowStore) MoveEntry(string, string) error       { return ErrReadOnlySource }
func (s *slowStore) Close() error                         { return nil }

func waitForChanges(t *testing.T, f *Fetcher) model.ChangeSet {
	t.Helper()
	select {
	case cs := <-f.Changes():
		return cs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a change set")
		return model.ChangeSet{}
	}
}

func waitForCalls(t *testing.T, s *slowStore, folderID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.callCount(folderID) < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d fetches of %s, got %d", n, folderID, s.callCount(folderID))
		}
		time.Sleep(time.Millisecond)
	}
}

// TestFetcherDelivers verifies a request surfaces the folder's children
// as an additive change set.
func TestFetcherDelivers(t *testing.T) {
	store := newSlowStore()
	f := NewFetcher(context.Background(), store, 2)
	defer f.Close()

	f.Request("folder-000")
	cs := waitForChanges(t, f)
	if len(cs.Added) != 2 {
		t.Fatalf("expected 2 added entries, got %d", len(cs.Added))
	}
	if cs.Added[0].ID != "item-0001" || cs.Added[1].ID != "item-0002" {
		t.Errorf("expected the folder's children, got %v", cs.Added)
	}
	if len(cs.Updated) != 0 || len(cs.Removed) != 0 {
		t.Errorf("expected a purely additive set, got %s", cs)
	}
}

// TestFetcherCoalesces verifies repeat requests for an in-flight folder
// do not hit the store again.
func TestFetcherCoalesces(t *testing.T) {
	store := newSlowStore()
	store.release = make(chan struct{})
	f := NewFetcher(context.Background(), store, 2)
	defer f.Close()

	f.Request("folder-000")
	for i := 0; i < 5; i++ {
		f.Request("folder-000")
	}
	close(store.release)

	waitForChanges(t, f)
	if n := store.callCount("folder-000"); n != 1 {
		t.Errorf("expected 1 fetch, got %d", n)
	}
}

// TestFetcherEmptyFolder verifies an empty result delivers nothing; the
// store's loaded mark is all the caller needs.
func TestFetcherEmptyFolder(t *testing.T) {
	store := newSlowStore()
	f := NewFetcher(context.Background(), store, 2)

	f.Request("folder-001")
	waitForCalls(t, store, "folder-001", 1)
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case cs := <-f.Changes():
		t.Errorf("expected no delivery for an empty folder, got %s", cs)
	default:
	}
}

// TestFetcherErrorKeepsFolderFetchable verifies a failed fetch delivers
// nothing and leaves the folder eligible for another request.
func TestFetcherErrorKeepsFolderFetchable(t *testing.T) {
	store := newSlowStore()
	store.fetchErr = errors.New("disk gone")
	f := NewFetcher(context.Background(), store, 2)

	f.Request("folder-000")
	waitForCalls(t, store, "folder-000", 1)

	store.mu.Lock()
	store.fetchErr = nil
	store.mu.Unlock()

	// The first attempt may still be winding down; retry until the
	// fetcher accepts the folder again.
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.Request("folder-000")
		select {
		case cs := <-f.Changes():
			if len(cs.Added) != 2 {
				t.Fatalf("expected 2 added entries on retry, got %d", len(cs.Added))
			}
			f.Close()
			return
		case <-time.After(10 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("folder never became fetchable again")
		}
	}
}

// TestFetcherCloseStopsWork verifies Close waits for workers and later
// requests are ignored.
func TestFetcherCloseStopsWork(t *testing.T) {
	store := newSlowStore()
	f := NewFetcher(context.Background(), store, 2)

	f.Request("folder-000")
	waitForChanges(t, f)
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f.Request("folder-001")
	time.Sleep(20 * time.Millisecond)
	if n := store.callCount("folder-001"); n != 0 {
		t.Errorf("expected no fetches after close, got %d", n)
	}
}
