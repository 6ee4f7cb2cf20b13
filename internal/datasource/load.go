package datasource

import (
	"errors"
	"fmt"
	"time"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// ErrReadOnlySource is returned by mutations on sources that cannot be
// written, such as JSONL exports.
var ErrReadOnlySource = errors.New("source is read-only")

// Store is the reading and mutation surface every source format
// provides. The SQLite store serves children lazily and accepts writes;
// the JSONL store loads everything up front and refuses mutations.
type Store interface {
	// Source describes the file behind the store.
	Source() DataSource

	// ReadOnly reports whether mutations are refused outright.
	ReadOnly() bool

	// LoadRoots returns the top-level entries (parent_id = '').
	LoadRoots() ([]model.Entry, error)

	// FetchChildren returns the direct children of a folder and marks
	// it loaded. Safe for concurrent use by the fetch pool.
	FetchChildren(folderID string) ([]model.Entry, error)

	// ChildrenLoaded reports whether a folder's children have been
	// fetched into memory yet.
	ChildrenLoaded(folderID string) bool

	// Snapshot returns every entry, for diffing and full dumps.
	Snapshot() ([]model.Entry, error)

	CountEntries() (int, error)

	// LastModified reports when the backing file last changed on disk,
	// for the watcher's polling fallback.
	LastModified() (time.Time, error)

	RenameEntry(id, name string) error
	RemoveEntry(id string) error
	MoveEntry(id, newParentID string) error

	Close() error
}

// Open opens a discovered source with the store for its format.
func Open(src DataSource) (Store, error) {
	switch src.Type {
	case SourceTypeSQLite:
		return NewSQLiteStore(src)
	case SourceTypeJSONL:
		return NewJSONLStore(src)
	default:
		return nil, fmt.Errorf("unknown source type %q", src.Type)
	}
}

// OpenBest discovers, validates, and opens the best source in dir. The
// error wraps ErrNoSources when the directory holds nothing usable, so
// callers can print setup guidance.
func OpenBest(dir string) (Store, DataSource, error) {
	sources, err := DiscoverSources(DiscoveryOptions{Dir: dir, Validate: true})
	if err != nil {
		return nil, DataSource{}, err
	}
	best, err := SelectSource(sources)
	if err != nil {
		return nil, DataSource{}, fmt.Errorf("%w in %s", err, dir)
	}
	st, err := Open(best)
	if err != nil {
		return nil, DataSource{}, fmt.Errorf("open %s: %w", best.Path, err)
	}
	return st, best, nil
}

// LoadEntries opens the best source under dir and loads the full
// snapshot in one shot, for robot dumps and the plain tree listing.
func LoadEntries(dir string) ([]model.Entry, DataSource, error) {
	st, src, err := OpenBest(dir)
	if err != nil {
		return nil, DataSource{}, err
	}
	defer st.Close()

	entries, err := st.Snapshot()
	if err != nil {
		return nil, src, fmt.Errorf("load %s: %w", src.Path, err)
	}
	return entries, src, nil
}
