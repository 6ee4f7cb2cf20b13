package folderview

import (
	"sort"
	"strings"
	"time"
)

// SortOrder is a bitmask of sibling ordering options.
type SortOrder uint32

const (
	// SortByDate orders newest first instead of by name.
	SortByDate SortOrder = 1 << iota
	// SortFoldersByName keeps folders name-ordered even under SortByDate.
	SortFoldersByName
	// SortSystemToTop pins system folders above normal ones.
	SortSystemToTop
)

// DefaultSortOrder matches the initial view: folders by name, system first.
const DefaultSortOrder = SortFoldersByName | SortSystemToTop

// sortGroup partitions siblings before fine ordering. Lower groups sort
// first when system-to-top is set.
type sortGroup int

const (
	sgSystemFolder sortGroup = iota
	sgTrashFolder
	sgNormalFolder
	sgItem
)

// comparator captures a SortOrder decomposed into its option flags.
// Folders and items live in separate sibling lists, so cross-group
// comparisons only ever happen between folder groups.
type comparator struct {
	order         SortOrder
	byDate        bool
	systemToTop   bool
	foldersByName bool
}

func newComparator(order SortOrder) comparator {
	c := comparator{}
	c.update(order)
	return c
}

// update installs a new order, reporting whether anything changed. The
// zero comparator already matches order 0, so a fresh comparator only
// reports a change for non-zero orders.
func (c *comparator) update(order SortOrder) bool {
	if c.order == order {
		return false
	}
	c.order = order
	c.byDate = order&SortByDate != 0
	c.systemToTop = order&SortSystemToTop != 0
	c.foldersByName = order&SortFoldersByName != 0
	return true
}

// less orders a before b under the current options.
func (c *comparator) less(a, b Node) bool {
	byName := !c.byDate || (c.foldersByName && a.sortGroup() != sgItem)

	if ag, bg := a.sortGroup(), b.sortGroup(); ag != bg {
		if c.systemToTop {
			return ag < bg
		}
		if c.byDate && (ag == sgTrashFolder || bg == sgTrashFolder) {
			// trash sinks to the bottom under date sort
			return bg == sgTrashFolder
		}
	}

	if byName {
		cmp := compareNames(a.Name(), b.Name())
		if cmp == 0 {
			return a.creationForSort().After(b.creationForSort())
		}
		return cmp < 0
	}

	at, bt := a.creationForSort(), b.creationForSort()
	if at.Equal(bt) {
		return compareNames(a.Name(), b.Name()) < 0
	}
	return at.After(bt)
}

// compareNames is a case-insensitive dictionary comparison.
func compareNames(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// insertFolder places f into list keeping comparator order, before any
// equal elements' successors (stable with respect to insertion order).
func insertFolder(list []*Folder, f *Folder, c *comparator) []*Folder {
	i := sort.Search(len(list), func(i int) bool {
		return !c.less(list[i], f)
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = f
	return list
}

// insertItem places it into list keeping comparator order.
func insertItem(list []*Item, it *Item, c *comparator) []*Item {
	i := sort.Search(len(list), func(i int) bool {
		return !c.less(list[i], it)
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = it
	return list
}

func sortFolders(list []*Folder, c *comparator) {
	sort.SliceStable(list, func(i, j int) bool {
		return c.less(list[i], list[j])
	})
}

func sortItems(list []*Item, c *comparator) {
	sort.SliceStable(list, func(i, j int) bool {
		return c.less(list[i], list[j])
	})
}

// subtreeNewest returns the newest creation time among the first-sorted
// children, mirroring how date order keeps the newest element first. Call
// only after both lists are date-sorted.
func subtreeNewest(folders []*Folder, items []*Item) time.Time {
	var latest time.Time
	if len(items) > 0 {
		latest = items[0].creationForSort()
	}
	if len(folders) > 0 {
		if t := folders[0].creationForSort(); t.After(latest) {
			latest = t
		}
	}
	return latest
}
