package folderview

import (
	"math"
	"time"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// recurseType selects how open/close operations spread through the tree.
type recurseType int

const (
	recurseNo recurseType = iota
	recurseUp
	recurseDown
	recurseUpDown
)

// Folder is an interior node. Child folders and items are kept in separate
// lists, both in comparator order, with folders always laid out above
// items.
type Folder struct {
	nodeBase

	folders []*Folder
	items   []*Item

	open bool

	numSelectedDescendants int

	// completedFilterGen is set only after a full uninterrupted filter
	// pass over the subtree. mostFilteredDescendantGen tracks the newest
	// generation at which any descendant passed.
	completedFilterGen      int
	mostFilteredDescendantGen int

	currentHeight float64 // animated
	targetHeight  float64

	lastCalculatedWidth int
	hasVisibleChildren  bool

	subtreeCreated time.Time // newest creation time in subtree, for date sort

	sorter comparator
}

// newFolder builds a detached folder for the given source.
func newFolder(root *Root, src NodeSource) *Folder {
	f := &Folder{}
	f.self = f
	f.root = root
	f.src = src
	f.id = src.ID()
	f.sorter = newComparator(root.sortOrder)
	f.refresh()
	return f
}

// IsOpen reports whether the folder's children participate in layout.
func (f *Folder) IsOpen() bool { return f.open }

// HasVisibleChildren reports whether any descendant passed the filter as
// of the last arrangement.
func (f *Folder) HasVisibleChildren() bool { return f.hasVisibleChildren }

// FolderCount returns the number of child folders.
func (f *Folder) FolderCount() int { return len(f.folders) }

// ItemCount returns the number of child items.
func (f *Folder) ItemCount() int { return len(f.items) }

// ChildFolders returns the ordered child folder list. Callers must not
// mutate it.
func (f *Folder) ChildFolders() []*Folder { return f.folders }

// ChildItems returns the ordered child item list. Callers must not
// mutate it.
func (f *Folder) ChildItems() []*Item { return f.items }

// NumSelectedDescendants returns the incrementally maintained count of
// selected nodes strictly below this folder.
func (f *Folder) NumSelectedDescendants() int { return f.numSelectedDescendants }

func (f *Folder) refresh() {
	if f.refreshBase() {
		f.dirtyFilter()
		if f.parent != nil {
			f.parent.requestArrange(false)
		}
	}
}

// ---- filtering ----

// hasFilteredDescendants reports whether a descendant passed at or after
// the given generation.
func (f *Folder) hasFilteredDescendants(gen int) bool {
	return f.mostFilteredDescendantGen >= gen
}

// PotentiallyVisible widens the item rule: a folder also counts when a
// descendant passed, or when its subtree has not been fully checked yet.
func (f *Folder) PotentiallyVisible() bool {
	gen := f.root.filter.MinRequiredGeneration()
	return f.nodeBase.PotentiallyVisible() ||
		f.hasFilteredDescendants(gen) ||
		f.completedFilterGen < gen
}

// setCompletedFilterGeneration records a finished (or invalidated) subtree
// pass. Invalidation pulls the descendant marker down with it and, when
// recurseUp is set, propagates to ancestors holding a newer completion.
func (f *Folder) setCompletedFilterGeneration(gen int, recurseUp bool) {
	if gen < f.mostFilteredDescendantGen {
		f.mostFilteredDescendantGen = gen
	}
	f.completedFilterGen = gen
	if recurseUp && f.parent != nil && gen < f.parent.completedFilterGen {
		f.parent.setCompletedFilterGeneration(gen, true)
	}
}

// setFiltered stamps a test result, snapping the animated height closed
// when the folder newly passes so its contents animate open from zero.
func (f *Folder) setFiltered(passed bool, gen int) {
	if passed && !f.filtered {
		f.currentHeight = 0
	}
	f.nodeBase.setFiltered(passed, gen)
}

func (f *Folder) dirtyFilter() {
	f.setCompletedFilterGeneration(-1, false)
	f.nodeBase.dirtyFilter()
}

// filterSelf tests the folder itself, consuming budget only when the
// monotonic-failure shortcut does not apply.
func (f *Folder) filterSelf(flt *Filter) {
	passed := flt.checkFolder(f)
	if f.visible != passed && f.parent != nil {
		f.parent.requestArrange(false)
	}
	f.setFiltered(passed, flt.CurrentGeneration())
	flt.consume()
}

// applyFilter runs the budgeted, resumable filter pass over the subtree.
//
// The pass is skipped outright when the subtree completed the current
// generation, or when every descendant already failed a filter at least as
// permissive as this one. Otherwise children are tested in order until the
// budget runs out; the completion marker is only advanced when the whole
// subtree was covered with budget to spare, so an interrupted pass resumes
// here next cycle.
func (f *Folder) applyFilter(flt *Filter) {
	gen := flt.CurrentGeneration()
	mustPass := flt.MustPassGeneration()

	if f.completedFilterGen >= gen {
		return
	}

	// test the folder itself
	if f.lastFilterGen < gen {
		if f.lastFilterGen >= mustPass && !f.filtered {
			// failed a subset of the current criteria; still failing
			f.lastFilterGen = gen
		} else {
			f.filterSelf(flt)
		}
	}

	// descendants all tested since mustPass and none passed; narrowing
	// cannot flip any of them, so the subtree is already done
	if f.completedFilterGen >= mustPass && !f.hasFilteredDescendants(mustPass) {
		f.setCompletedFilterGeneration(gen, false)
		return
	}

	if flt.budgetRemaining() < 0 {
		return
	}

	// a passing folder whose contents are not loaded yet fetches them so
	// matching descendants can appear
	if flt.IsNotDefault() && f.filteredAt(flt.MinRequiredGeneration()) && !f.src.DescendantsLoaded() {
		f.src.StartFetch()
	}

	for _, sub := range f.folders {
		if flt.budgetRemaining() < 0 {
			break
		}
		if sub.completedFilterGen >= gen {
			// already done; still contributes to the descendant marker,
			// which might have been reset since
			if sub.Filtered() || sub.hasFilteredDescendants(flt.MinRequiredGeneration()) {
				f.mostFilteredDescendantGen = gen
				if f.root.needsAutoSelect {
					sub.setOpenArrange(true, recurseNo)
				}
			}
			continue
		}

		sub.applyFilter(flt)

		if sub.Filtered() || sub.hasFilteredDescendants(gen) {
			f.mostFilteredDescendantGen = gen
			if f.root.needsAutoSelect {
				sub.setOpenArrange(true, recurseNo)
			}
		}
	}

	for _, it := range f.items {
		if flt.budgetRemaining() < 0 {
			break
		}
		if it.lastFilterGen >= gen {
			if it.Filtered() {
				f.mostFilteredDescendantGen = gen
			}
			continue
		}
		if it.lastFilterGen >= mustPass && !it.filteredAt(mustPass) {
			// failed a subset of the current criteria; re-stamp without
			// re-testing
			it.setFiltered(false, gen)
			continue
		}

		it.applyFilter(flt)

		if it.filteredAt(flt.MinRequiredGeneration()) {
			f.mostFilteredDescendantGen = gen
		}
	}

	// budget left over means every descendant was covered
	if flt.budgetRemaining() > 0 {
		f.setCompletedFilterGeneration(gen, false)
	}
}

// ---- arrangement ----

// needsArrange reports whether cached geometry is stale.
func (f *Folder) needsArrange() bool {
	return f.lastArrangeGen < f.root.arrangeGeneration
}

// requestArrange invalidates cached geometry here and up the ancestor
// chain, optionally through all descendants as well.
func (f *Folder) requestArrange(includeDescendants bool) {
	f.lastArrangeGen = -1
	if f.parent != nil {
		f.parent.requestArrange(false)
	}
	if includeDescendants {
		for _, sub := range f.folders {
			sub.requestArrange(true)
		}
	}
}

// arrange lays out visible children top-down, folders above items, and
// advances the open/close height animation. It returns the required
// width, the current animated height, and the settled target height.
func (f *Folder) arrange() (width, height, target int) {
	flt := f.root.filter
	gen := flt.MinRequiredGeneration()
	f.hasVisibleChildren = f.hasFilteredDescendants(gen)

	showAll := flt.ShowFolders() == ShowAllFolders

	if f.parent != nil {
		f.indentation = f.parent.indentation + f.root.pres.IndentStep
	}
	width = f.labelWidth + f.indentation

	rowH := f.root.pres.ItemHeight
	f.currentHeight = math.Max(f.currentHeight, float64(rowH))
	running := float64(rowH)
	targetAcc := rowH

	if f.needsArrange() {
		// stamp first: an animating child re-requests during this pass
		f.lastArrangeGen = f.root.arrangeGeneration
		if f.open {
			for _, sub := range f.folders {
				if f.root.debugFilters {
					sub.visible = true
				} else {
					sub.visible = showAll || sub.filteredAt(gen) || sub.hasFilteredDescendants(gen)
				}
				if !sub.visible {
					continue
				}
				sub.rect.X = 0
				sub.rect.Y = int(math.Round(running))
				sub.rect.W = f.rect.W
				w, h, t := sub.arrange()
				targetAcc += t
				running += float64(h)
				if w > width {
					width = w
				}
			}
			for _, it := range f.items {
				if f.root.debugFilters {
					it.visible = true
				} else {
					it.visible = it.filteredAt(gen)
				}
				if !it.visible {
					continue
				}
				it.rect.X = 0
				it.rect.Y = int(math.Round(running))
				it.rect.W = f.rect.W
				w, h, _ := it.arrange()
				targetAcc += h
				running += float64(h)
				if w > width {
					width = w
				}
			}
		}
		f.targetHeight = float64(targetAcc)
		f.lastCalculatedWidth = width
	} else {
		width = f.lastCalculatedWidth
	}

	if math.Abs(f.currentHeight-f.targetHeight) > 1 {
		f.currentHeight = lerp(f.currentHeight, f.targetHeight, f.root.interpolant(f.open))
		f.requestArrange(false)

		// hide children beyond the current animated height
		limit := int(math.Round(f.currentHeight)) + maxFolderItemOverlap
		for _, sub := range f.folders {
			if sub.rect.Y+rowH > limit {
				sub.visible = false
			}
		}
		for _, it := range f.items {
			if it.rect.Bottom() > limit {
				it.visible = false
			}
		}
	} else {
		f.currentHeight = f.targetHeight
	}

	f.rect.H = int(math.Round(f.currentHeight))
	return width, f.rect.H, int(math.Round(f.targetHeight))
}

func lerp(cur, target, t float64) float64 {
	return cur + (target-cur)*t
}

// ---- open and close ----

// SetOpen opens or closes the folder.
func (f *Folder) SetOpen(open bool) {
	f.setOpenArrange(open, recurseNo)
}

// ToggleOpen flips the folder's open state.
func (f *Folder) ToggleOpen() {
	f.SetOpen(!f.open)
}

// setOpenArrange changes the open state, optionally recursing to
// descendants or ancestors, and schedules a rearrange on any change.
// Opening a folder whose contents are unknown starts a background fetch.
func (f *Folder) setOpenArrange(open bool, recurse recurseType) {
	wasOpen := f.open
	f.open = open
	if !wasOpen && open && !f.src.DescendantsLoaded() {
		f.src.StartFetch()
	}

	if recurse == recurseDown || recurse == recurseUpDown {
		for _, sub := range f.folders {
			sub.setOpenArrange(open, recurseDown)
		}
	}
	if f.parent != nil && (recurse == recurseUp || recurse == recurseUpDown) {
		f.parent.setOpenArrange(open, recurseUp)
	}

	if wasOpen != f.open {
		f.requestArrange(false)
	}
}

// ---- child bookkeeping ----

// adjustSelectedDescendants adds delta to this folder's selected count and
// every ancestor's.
func (f *Folder) adjustSelectedDescendants(delta int) {
	for p := f; p != nil; p = p.parent {
		p.numSelectedDescendants += delta
	}
}

// addFolder inserts a child folder in comparator order. The subtree's
// filter state is invalidated and geometry through it rearranged, since
// its indentation depends on the new location.
func (f *Folder) addFolder(sub *Folder) {
	f.folders = insertFolder(f.folders, sub, &f.sorter)
	sub.parent = f
	if n := sub.selectedCount(); n > 0 {
		f.adjustSelectedDescendants(n)
	}
	sub.visible = false
	sub.rect = Rect{W: f.rect.W}
	sub.dirtyFilter()
	sub.requestArrange(true)
}

// addItem inserts a child item in comparator order.
func (f *Folder) addItem(it *Item) {
	f.items = insertItem(f.items, it, &f.sorter)
	it.parent = f
	if it.selected {
		f.adjustSelectedDescendants(1)
	}
	it.visible = false
	it.rect = Rect{W: f.rect.W}
	it.dirtyFilter()
	f.requestArrange(false)
}

// extractChild detaches n from this folder without destroying it. Filter
// state is invalidated and a rearrange forced, because the child leaves
// regardless of its filter status.
func (f *Folder) extractChild(n Node) {
	switch c := n.(type) {
	case *Folder:
		for i, sub := range f.folders {
			if sub == c {
				if cnt := sub.selectedCount(); cnt > 0 {
					f.adjustSelectedDescendants(-cnt)
				}
				f.folders = append(f.folders[:i], f.folders[i+1:]...)
				break
			}
		}
	case *Item:
		for i, it := range f.items {
			if it == c {
				if it.selected {
					f.adjustSelectedDescendants(-1)
				}
				f.items = append(f.items[:i], f.items[i+1:]...)
				break
			}
		}
	}
	n.base().parent = nil
	f.dirtyFilter()
	f.requestArrange(false)
}

// resort re-sorts both child lists, for label changes that moved a child.
func (f *Folder) resort() {
	sortFolders(f.folders, &f.sorter)
	sortItems(f.items, &f.sorter)
}

// sortBy installs a new sibling order through the subtree, bottom-up so
// date sort sees settled subtree times.
func (f *Folder) sortBy(order SortOrder) {
	if !f.sorter.update(order) {
		return
	}
	for _, sub := range f.folders {
		sub.sortBy(order)
	}
	sortFolders(f.folders, &f.sorter)
	sortItems(f.items, &f.sorter)
	if f.sorter.byDate {
		f.subtreeCreated = subtreeNewest(f.folders, f.items)
	}
}

// ---- selection recursion ----

func (f *Folder) selectTarget(target Node, openAncestors bool) bool {
	rv := false
	if target == Node(f) {
		if !f.selected {
			f.selectNode()
		}
		rv = true
	} else if f.selected {
		f.deselectNode()
	}

	childSelected := false
	for _, sub := range f.folders {
		if sub.selectTarget(target, openAncestors) {
			rv = true
			childSelected = true
		}
	}
	for _, it := range f.items {
		if it.selectTarget(target, openAncestors) {
			rv = true
			childSelected = true
		}
	}
	if openAncestors && childSelected {
		f.setOpenArrange(true, recurseNo)
	}
	return rv
}

func (f *Folder) changeSelectionTarget(target Node, selected bool) bool {
	rv := false
	if target == Node(f) && f.selected != selected {
		rv = true
		if selected {
			f.selectNode()
		} else {
			f.deselectNode()
		}
	}
	for _, sub := range f.folders {
		if sub.changeSelectionTarget(target, selected) {
			rv = true
		}
	}
	for _, it := range f.items {
		if it.changeSelectionTarget(target, selected) {
			rv = true
		}
	}
	return rv
}

// extendSelectionRange selects the span of immediate siblings between the
// focal selection and target, deepest folders first so the range lands in
// the folder that contains both. Newly selected nodes are appended to out
// in selection order; the target ends up selected last.
func (f *Folder) extendSelectionRange(target, focal Node, out *[]Node) {
	for _, sub := range f.folders {
		sub.extendSelectionRange(target, focal, out)
	}

	reverse := false
	foundFocal := false
	foundTarget := false
	var span []Node

	scan := func(n Node) bool {
		if n == target {
			foundTarget = true
		} else if n == focal {
			foundFocal = true
			if foundTarget {
				reverse = true
			}
		}
		if foundTarget || foundFocal {
			if n.Selected() {
				// deselect so re-selection below restores list order
				n.changeSelectionTarget(n, false)
			}
			span = append(span, n)
		}
		return foundTarget && foundFocal
	}

	done := false
	for _, sub := range f.folders {
		if done = scan(sub); done {
			break
		}
	}
	if !done {
		for _, it := range f.items {
			if done = scan(it); done {
				break
			}
		}
	}

	switch {
	case foundTarget && foundFocal:
		if reverse {
			for i := len(span) - 1; i >= 0; i-- {
				if span[i].changeSelectionTarget(span[i], true) {
					*out = append(*out, span[i])
				}
			}
		} else {
			for _, n := range span {
				if n.changeSelectionTarget(n, true) {
					*out = append(*out, n)
				}
			}
		}
	case foundTarget:
		// focal selection lives elsewhere; select just the target
		if target.changeSelectionTarget(target, true) {
			*out = append(*out, target)
		}
	}
}

// recursiveDeselect clears selection through the subtree, skipping
// branches with no selected descendants.
func (f *Folder) recursiveDeselect(deselectSelf bool) {
	if f.selected && deselectSelf {
		f.deselectNode()
	}
	if f.numSelectedDescendants == 0 {
		return
	}
	for _, it := range f.items {
		if it.selected {
			it.deselectNode()
		}
	}
	for _, sub := range f.folders {
		sub.recursiveDeselect(true)
	}
}

func (f *Folder) selectedCount() int {
	n := f.numSelectedDescendants
	if f.selected {
		n++
	}
	return n
}

// ---- traversal ----

// nextFromChild returns the node after child in flattened order: folders
// first, then items, descending into child when it is an open folder and
// includeChildren is set, climbing to the parent at the end of both lists.
func (f *Folder) nextFromChild(child Node, includeChildren bool) Node {
	fi := 0
	ii := 0
	if child != nil {
		found := false
		for i, sub := range f.folders {
			if Node(sub) == child {
				found = true
				if includeChildren && sub.open {
					return sub.nextFromChild(nil, true)
				}
				fi = i + 1
				ii = 0
				break
			}
		}
		if !found {
			for i, it := range f.items {
				if Node(it) == child {
					found = true
					fi = len(f.folders)
					ii = i + 1
					break
				}
			}
		}
		if !found {
			return nil
		}
	}

	for ; fi < len(f.folders); fi++ {
		if f.folders[fi].visible {
			return f.folders[fi]
		}
	}
	for ; ii < len(f.items); ii++ {
		if f.items[ii].visible {
			return f.items[ii]
		}
	}
	if f.parent != nil {
		return f.parent.nextFromChild(f, false)
	}
	return nil
}

// previousFromChild walks the flattened order backwards: items before
// folders, descending to the last descendant of any open folder it lands
// on, returning the folder itself before its first child.
func (f *Folder) previousFromChild(child Node, includeChildren bool) Node {
	// indexes run backwards from these positions
	ii := len(f.items) - 1
	fi := len(f.folders) - 1
	if child != nil {
		found := false
		for i := len(f.items) - 1; i >= 0; i-- {
			if Node(f.items[i]) == child {
				found = true
				ii = i - 1
				break
			}
		}
		if !found {
			for i := len(f.folders) - 1; i >= 0; i-- {
				if Node(f.folders[i]) == child {
					found = true
					ii = -1
					fi = i - 1
					break
				}
			}
		}
		if !found {
			return nil
		}
	}

	for ; ii >= 0; ii-- {
		if f.items[ii].visible {
			return f.items[ii]
		}
	}
	for ; fi >= 0; fi-- {
		sub := f.folders[fi]
		if !sub.visible {
			continue
		}
		if sub.open {
			return sub.previousFromChild(nil, includeChildren)
		}
		return sub
	}
	// nothing above the child inside this folder; the folder itself is
	// the previous row
	return f
}

// ---- misc ----

func (f *Folder) sortGroup() sortGroup {
	switch f.src.Role() {
	case model.RoleSystem:
		return sgSystemFolder
	case model.RoleTrash:
		return sgTrashFolder
	}
	return sgNormalFolder
}

func (f *Folder) creationForSort() time.Time {
	if f.subtreeCreated.After(f.created) {
		return f.subtreeCreated
	}
	return f.created
}

func (f *Folder) isMovable() bool {
	if !f.src.CanMove() {
		return false
	}
	for _, it := range f.items {
		if !it.isMovable() {
			return false
		}
	}
	for _, sub := range f.folders {
		if !sub.isMovable() {
			return false
		}
	}
	return true
}

func (f *Folder) isRemovable() bool {
	if !f.src.CanRemove() {
		return false
	}
	for _, it := range f.items {
		if !it.isRemovable() {
			return false
		}
	}
	for _, sub := range f.folders {
		if !sub.isRemovable() {
			return false
		}
	}
	return true
}
