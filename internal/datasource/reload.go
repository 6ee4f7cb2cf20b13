package datasource

import (
	"fmt"

	"github.com/vanderheijden86/canopy/pkg/debug"
	"github.com/vanderheijden86/canopy/pkg/model"
)

// Reloader re-snapshots a store after the watcher reports a change and
// turns the difference into a ChangeSet for the tree.
type Reloader struct {
	store Store
	prev  []model.Entry
}

// NewReloader snapshots the store's current contents as the baseline.
func NewReloader(store Store) (*Reloader, error) {
	snap, err := store.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("baseline snapshot: %w", err)
	}
	return &Reloader{store: store, prev: snap}, nil
}

// Entries returns the baseline snapshot, for the initial populate.
func (r *Reloader) Entries() []model.Entry { return r.prev }

// Reload re-reads the source and reports what changed since the last
// snapshot. SQLite queries see external writes directly; a JSONL store
// re-reads its file first.
func (r *Reloader) Reload() (model.ChangeSet, error) {
	if js, ok := r.store.(*JSONLStore); ok {
		if err := js.ReloadFromDisk(); err != nil {
			return model.ChangeSet{}, err
		}
	}
	next, err := r.store.Snapshot()
	if err != nil {
		return model.ChangeSet{}, fmt.Errorf("reload snapshot: %w", err)
	}
	cs := Diff(r.prev, next)
	r.prev = next
	if !cs.Empty() {
		debug.Log("reload: %s", cs)
	}
	return cs, nil
}
