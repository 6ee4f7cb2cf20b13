package testutil

import (
	"testing"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// AssertEntryCount verifies the expected number of entries.
func AssertEntryCount(t *testing.T, entries []model.Entry, expected int) {
	t.Helper()
	if len(entries) != expected {
		t.Errorf("expected %d entries, got %d", expected, len(entries))
	}
}

// AssertNoDuplicateIDs verifies all entry ids are unique.
func AssertNoDuplicateIDs(t *testing.T, entries []model.Entry) {
	t.Helper()
	seen := make(map[string]bool)
	for _, e := range entries {
		if seen[e.ID] {
			t.Errorf("duplicate entry id: %s", e.ID)
		}
		seen[e.ID] = true
	}
}

// AssertAllValid verifies all entries pass validation.
func AssertAllValid(t *testing.T, entries []model.Entry) {
	t.Helper()
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			t.Errorf("entry %d (%s) invalid: %v", i, e.ID, err)
		}
	}
}

// AssertParentClosed verifies every non-empty parent id refers to a folder
// present in the set. Snapshots with this property reconcile exactly
// against a rebuild; ones without it get their orphans re-homed to the root.
func AssertParentClosed(t *testing.T, entries []model.Entry) {
	t.Helper()
	folders := make(map[string]bool)
	for _, e := range entries {
		if e.IsFolder() {
			folders[e.ID] = true
		}
	}
	for _, e := range entries {
		if e.ParentID != "" && !folders[e.ParentID] {
			t.Errorf("entry %s names missing or non-folder parent %s", e.ID, e.ParentID)
		}
	}
}

// AssertNoParentCycles verifies no entry is its own ancestor.
func AssertNoParentCycles(t *testing.T, entries []model.Entry) {
	t.Helper()
	parent := make(map[string]string, len(entries))
	for _, e := range entries {
		parent[e.ID] = e.ParentID
	}
	for _, e := range entries {
		seen := make(map[string]bool)
		for id := e.ID; id != ""; id = parent[id] {
			if seen[id] {
				t.Errorf("parent cycle involving entry %s", e.ID)
				return
			}
			seen[id] = true
		}
	}
}

// AssertChildCount verifies how many entries name parentID as their parent.
func AssertChildCount(t *testing.T, entries []model.Entry, parentID string, expected int) {
	t.Helper()
	count := 0
	for _, e := range entries {
		if e.ParentID == parentID {
			count++
		}
	}
	if count != expected {
		t.Errorf("expected %d children under %q, got %d", expected, parentID, count)
	}
}

// AssertKindCounts verifies the folder and item totals.
func AssertKindCounts(t *testing.T, entries []model.Entry, folders, items int) {
	t.Helper()
	gotFolders, gotItems := 0, 0
	for _, e := range entries {
		if e.IsFolder() {
			gotFolders++
		} else {
			gotItems++
		}
	}
	if gotFolders != folders {
		t.Errorf("expected %d folders, got %d", folders, gotFolders)
	}
	if gotItems != items {
		t.Errorf("expected %d items, got %d", items, gotItems)
	}
}

// Lookup helpers

// BuildEntryMap creates a map from id to Entry for quick lookups.
func BuildEntryMap(entries []model.Entry) map[string]*model.Entry {
	m := make(map[string]*model.Entry, len(entries))
	for i := range entries {
		m[entries[i].ID] = &entries[i]
	}
	return m
}

// FindEntry returns the entry with the given id, or nil if not found.
func FindEntry(entries []model.Entry, id string) *model.Entry {
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i]
		}
	}
	return nil
}

// ChildrenOf returns the entries naming parentID as their parent, in
// input order.
func ChildrenOf(entries []model.Entry, parentID string) []model.Entry {
	var out []model.Entry
	for _, e := range entries {
		if e.ParentID == parentID {
			out = append(out, e)
		}
	}
	return out
}

// CountByType returns a map of type code -> item count.
func CountByType(entries []model.Entry) map[model.TypeCode]int {
	counts := make(map[model.TypeCode]int)
	for _, e := range entries {
		if !e.IsFolder() {
			counts[e.Type]++
		}
	}
	return counts
}

// GetIDs returns a slice of all entry ids.
func GetIDs(entries []model.Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
