package model

import "fmt"

// ChangeSet describes how one inventory snapshot differs from the next.
// Added and Updated carry full entry records; Removed carries ids only,
// since the receiver already knows everything else about them.
type ChangeSet struct {
	Added   []Entry
	Updated []Entry
	Removed []string
}

// Empty reports whether the change set carries no work.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// Merge appends the other change set's work onto this one. Later batches
// win on conflicts because receivers apply entries in order.
func (c ChangeSet) Merge(other ChangeSet) ChangeSet {
	return ChangeSet{
		Added:   append(c.Added, other.Added...),
		Updated: append(c.Updated, other.Updated...),
		Removed: append(c.Removed, other.Removed...),
	}
}

func (c ChangeSet) String() string {
	if c.Empty() {
		return "no changes"
	}
	return fmt.Sprintf("%d added, %d updated, %d removed",
		len(c.Added), len(c.Updated), len(c.Removed))
}
