package datasource

import (
	"fmt"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// Diff compares two snapshots and returns the change set that turns the
// first into the second. Output order follows the next snapshot, so
// applying the result is deterministic.
func Diff(prev, next []model.Entry) model.ChangeSet {
	prevBy := make(map[string]model.Entry, len(prev))
	for _, e := range prev {
		prevBy[e.ID] = e
	}
	nextSeen := make(map[string]bool, len(next))

	var cs model.ChangeSet
	for _, e := range next {
		if nextSeen[e.ID] {
			continue
		}
		nextSeen[e.ID] = true
		old, ok := prevBy[e.ID]
		if !ok {
			cs.Added = append(cs.Added, e)
			continue
		}
		if !entriesEqual(old, e) {
			cs.Updated = append(cs.Updated, e)
		}
	}
	for _, e := range prev {
		if !nextSeen[e.ID] {
			cs.Removed = append(cs.Removed, e.ID)
			nextSeen[e.ID] = true
		}
	}
	return cs
}

func entriesEqual(a, b model.Entry) bool {
	return a.ParentID == b.ParentID &&
		a.Kind == b.Kind &&
		a.Name == b.Name &&
		a.Type == b.Type &&
		a.Role == b.Role &&
		a.Caps == b.Caps &&
		a.CreatedAt.Equal(b.CreatedAt)
}

// CompareSources loads both sources and reports how the second differs
// from the first, for consistency checks between the database and a
// stale export.
func CompareSources(a, b DataSource) (model.ChangeSet, error) {
	entriesA, err := loadFrom(a)
	if err != nil {
		return model.ChangeSet{}, fmt.Errorf("load %s: %w", a.Path, err)
	}
	entriesB, err := loadFrom(b)
	if err != nil {
		return model.ChangeSet{}, fmt.Errorf("load %s: %w", b.Path, err)
	}
	return Diff(entriesA, entriesB), nil
}

func loadFrom(src DataSource) ([]model.Entry, error) {
	st, err := Open(src)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Snapshot()
}
