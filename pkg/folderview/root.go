package folderview

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/vanderheijden86/canopy/pkg/metrics"
)

// FilterStatus summarizes where an incremental filter pass stands.
type FilterStatus int

const (
	// FilterDone means every node has been tested against the current
	// criteria and at least one passed, or no filter is active.
	FilterDone FilterStatus = iota
	// FilterInProgress means the budgeted pass has not covered the whole
	// tree yet.
	FilterInProgress
	// FilterNoMatches means the pass completed and nothing passed.
	FilterNoMatches
)

// SelectFunc observes selection changes, batched to at most one call per
// Update. userInitiated distinguishes keyboard-driven changes from
// automatic ones (auto-select, sanitization).
type SelectFunc func(selection []Node, userInitiated bool)

type selectSignal int

const (
	signalNone selectSignal = iota
	signalPassive
	signalKeyboard
)

// Root is the tree's root folder plus all whole-tree state: the filter,
// the ordered multi-selection, the id index, scroll position, type-ahead
// buffer, and the auto-open stack. The root row itself is never rendered
// or selected; its children are the top level.
//
// All methods must be called from one goroutine. Update drives the
// per-frame work and is the only method that advances animations.
type Root struct {
	Folder

	pres   Presentation
	filter *Filter

	sortOrder SortOrder

	arrangeGeneration int

	allowMultiSelect bool
	selectionList    []Node
	idIndex          map[string]Node

	debugFilters bool

	// auto-select machinery: while an active filter pass is incomplete
	// and the user is not steering, the first match is selected each
	// cycle.
	needsAutoSelect    bool
	autoSelectOverride bool
	userFocus          bool
	keyboardSelection  bool

	needsScroll          bool
	scrollTop            int
	viewportW, viewportH int

	signalSelect selectSignal
	selectFn     SelectFunc

	renameTarget Node

	autoOpenStack     []*Folder
	autoOpenCandidate *Folder
	autoOpenStart     time.Time
	autoOpenDelay     time.Duration
	draggedThisFrame  bool

	searchBuf        []rune
	lastSearchTime   time.Time
	typeAheadTimeout time.Duration

	budget int

	animate    bool
	lastUpdate time.Time
	openLerp   float64
	closeLerp  float64
}

// NewRoot builds an empty tree for the given root source. The root folder
// is always open and starts one indent step left of origin so its
// children sit flush at zero.
func NewRoot(src NodeSource, pres Presentation) *Root {
	if pres.MeasureText == nil {
		pres.MeasureText = func(string) int { return 0 }
	}
	r := &Root{
		pres:             pres,
		filter:           NewFilter(),
		sortOrder:        DefaultSortOrder,
		allowMultiSelect: true,
		idIndex:          make(map[string]Node),
		autoOpenDelay:    DefaultAutoOpenDelay,
		typeAheadTimeout: DefaultTypeAheadTimeout,
		budget:           DefaultFilterBudget,
		animate:          true,
	}
	r.Folder.self = &r.Folder
	r.Folder.root = r
	r.Folder.src = src
	r.Folder.id = src.ID()
	r.Folder.sorter = newComparator(r.sortOrder)
	r.Folder.open = true
	r.Folder.visible = true
	r.Folder.indentation = -pres.IndentStep
	r.Folder.refreshBase()
	r.Folder.lastFilterGen = -1
	r.Folder.completedFilterGen = -1
	r.Folder.mostFilteredDescendantGen = -1
	// the root row is never drawn or matched; blank its label so neither
	// filtering nor type-ahead can land on it
	r.Folder.name = ""
	r.Folder.searchLabel = ""
	r.Folder.labelWidth = 0
	r.idIndex[r.Folder.id] = &r.Folder
	return r
}

// Filter returns the tree's filter. Mutating it through the setters marks
// generations so the next Update re-tests only what it must.
func (r *Root) Filter() *Filter { return r.filter }

// Presentation returns the injected layout metrics.
func (r *Root) Presentation() Presentation { return r.pres }

// SortOrder returns the current sibling ordering.
func (r *Root) SortOrder() SortOrder { return r.sortOrder }

// SetSortOrder re-sorts the whole tree when the order actually changes.
func (r *Root) SetSortOrder(order SortOrder) {
	if order == r.sortOrder {
		return
	}
	r.sortOrder = order
	r.Folder.sortBy(order)
	r.arrangeAll()
}

// resortForModelChange forces a full date re-sort after nodes were added
// or removed while sorting everything by date, since subtree times may
// have shifted anywhere in the tree.
func (r *Root) resortForModelChange() {
	if r.sortOrder&SortByDate != 0 && r.sortOrder&SortFoldersByName == 0 {
		order := r.sortOrder
		r.SetSortOrder(order &^ SortByDate)
		r.SetSortOrder(order)
	}
}

// SetFilterBudget bounds how many filter checks one Update may spend.
func (r *Root) SetFilterBudget(n int) {
	if n < minFilterBudget {
		n = minFilterBudget
	}
	if n > maxFilterBudget {
		n = maxFilterBudget
	}
	r.budget = n
}

// SetAutoOpenDelay sets the hover dwell before a folder auto-opens.
func (r *Root) SetAutoOpenDelay(d time.Duration) { r.autoOpenDelay = d }

// SetTypeAheadTimeout sets the idle time after which the type-ahead
// buffer resets.
func (r *Root) SetTypeAheadTimeout(d time.Duration) { r.typeAheadTimeout = d }

// SetAnimate toggles the folder height animation. When off, opens and
// closes settle in a single frame.
func (r *Root) SetAnimate(on bool) { r.animate = on }

// SetMultiSelect toggles multi-selection. Turning it off keeps only the
// current selection.
func (r *Root) SetMultiSelect(allow bool) {
	r.allowMultiSelect = allow
	if !allow && len(r.selectionList) > 1 {
		cur := r.CurrentSelection()
		r.SetSelection(cur, false, false)
	}
}

// SetSelectCallback installs the batched selection observer.
func (r *Root) SetSelectCallback(fn SelectFunc) { r.selectFn = fn }

// SetDebugFilters toggles rendering of all nodes regardless of filter
// state, with their generation stamps.
func (r *Root) SetDebugFilters(on bool) {
	if r.debugFilters != on {
		r.debugFilters = on
		r.arrangeAll()
	}
}

// DebugFilters reports whether filter debugging is active.
func (r *Root) DebugFilters() bool { return r.debugFilters }

// SetAutoSelectOverride suppresses automatic first-match selection while
// keeping matching folders auto-opening, for when the user is editing the
// filter text and watching results settle.
func (r *Root) SetAutoSelectOverride(on bool) { r.autoSelectOverride = on }

// SetUserFocus records whether the user is actively steering the tree.
// Auto-select stands down while they are.
func (r *Root) SetUserFocus(on bool) { r.userFocus = on }

// SetViewport tells the root how much space the render surface has, in
// engine units. Width feeds the minimum-width fixed point; height decides
// when the scroll gutter is reserved.
func (r *Root) SetViewport(w, h int) {
	if w == r.viewportW && h == r.viewportH {
		return
	}
	r.viewportW = w
	r.viewportH = h
	r.arrangeAll()
}

// ScrollTop returns the viewport offset into the arranged tree.
func (r *Root) ScrollTop() int { return r.scrollTop }

// arrangeAll invalidates every folder's cached geometry at once.
func (r *Root) arrangeAll() {
	r.arrangeGeneration++
}

// NodeByID resolves a node from the id index. The empty id resolves to
// the root folder.
func (r *Root) NodeByID(id string) Node {
	if id == "" {
		return &r.Folder
	}
	return r.idIndex[id]
}

// ---- selection ----

// CurrentSelection returns the most recent selection, or nil.
func (r *Root) CurrentSelection() Node {
	if n := len(r.selectionList); n > 0 {
		return r.selectionList[n-1]
	}
	return nil
}

// Selection returns the ordered selection, oldest first.
func (r *Root) Selection() []Node {
	out := make([]Node, len(r.selectionList))
	copy(out, r.selectionList)
	return out
}

// SelectionIDs returns the selected source ids, oldest first.
func (r *Root) SelectionIDs() []string {
	out := make([]string, 0, len(r.selectionList))
	for _, n := range r.selectionList {
		out = append(out, n.ID())
	}
	return out
}

// addToSelectionList appends n as the new current selection, demoting the
// previous one.
func (r *Root) addToSelectionList(n Node) {
	if n.Selected() {
		r.removeFromSelectionList(n)
	}
	if len(r.selectionList) > 0 {
		r.selectionList[len(r.selectionList)-1].base().curSelection = false
	}
	n.base().curSelection = true
	r.selectionList = append(r.selectionList, n)
}

// removeFromSelectionList drops n from the list; whatever remains last
// becomes current.
func (r *Root) removeFromSelectionList(n Node) {
	if len(r.selectionList) > 0 {
		r.selectionList[len(r.selectionList)-1].base().curSelection = false
	}
	kept := r.selectionList[:0]
	for _, s := range r.selectionList {
		if s != n {
			kept = append(kept, s)
		}
	}
	r.selectionList = kept
	if len(r.selectionList) > 0 {
		r.selectionList[len(r.selectionList)-1].base().curSelection = true
	}
}

// SetSelection makes n the sole selection. openFolder opens every
// ancestor so the node can be shown; takeFocus marks the change as
// user-initiated. Selecting the root is refused; a nil n clears.
func (r *Root) SetSelection(n Node, openFolder, takeFocus bool) bool {
	if n == Node(&r.Folder) {
		return false
	}
	if n != nil && takeFocus {
		r.userFocus = true
	}
	if !takeFocus {
		r.keyboardSelection = false
	}
	r.clearSelectionInternal()
	if n != nil {
		r.addToSelectionList(n)
	}
	rv := r.Folder.selectTarget(n, openFolder)
	if openFolder && n != nil && n.Parent() != nil {
		n.Parent().requestArrange(false)
	}
	if takeFocus {
		r.signalSelect = signalKeyboard
	} else {
		r.signalSelect = signalPassive
	}
	return rv
}

// ChangeSelection toggles n in or out of the selection without touching
// the rest.
func (r *Root) ChangeSelection(n Node, selected bool) bool {
	if n == nil || n == Node(&r.Folder) {
		return false
	}
	if !r.allowMultiSelect {
		r.clearSelectionInternal()
	}
	onList := false
	for _, s := range r.selectionList {
		if s == n {
			onList = true
			break
		}
	}
	if selected && !onList {
		r.addToSelectionList(n)
	}
	if !selected && onList {
		r.removeFromSelectionList(n)
	}
	rv := r.Folder.changeSelectionTarget(n, selected)
	r.signalSelect = signalKeyboard
	return rv
}

// ExtendSelection selects the contiguous span between the current
// selection and n, leaving n current. Without multi-select it collapses
// to a plain selection change.
func (r *Root) ExtendSelection(n Node) {
	if !r.allowMultiSelect {
		r.SetSelection(n, false, false)
		return
	}
	var picked []Node
	r.Folder.extendSelectionRange(n, r.CurrentSelection(), &picked)
	for _, p := range picked {
		r.addToSelectionList(p)
	}
	r.signalSelect = signalKeyboard
}

// ClearSelection deselects everything.
func (r *Root) ClearSelection() {
	r.clearSelectionInternal()
	r.signalSelect = signalKeyboard
}

func (r *Root) clearSelectionInternal() {
	if len(r.selectionList) > 0 {
		r.Folder.recursiveDeselect(false)
		r.selectionList = r.selectionList[:0]
	}
}

// sanitizeSelection drops selections the user can no longer see: nodes
// whose ancestors are closed or filtered out, descendants of selected
// folders, and the root. If that empties the selection, the nearest
// potentially visible ancestor of the old current selection is selected
// instead, preferring the highest closed one so the user sees where their
// context went.
func (r *Root) sanitizeSelection() {
	original := r.CurrentSelection()
	prior := r.signalSelect

	showAll := r.filter.ShowFolders() == ShowAllFolders

	var remove []Node
	for _, n := range r.selectionList {
		visible := n.PotentiallyVisible()
		if p := n.Parent(); p != nil {
			if showAll {
				visible = true
			} else {
				for ; p != nil; p = p.Parent() {
					visible = visible && p.IsOpen() && p.PotentiallyVisible()
				}
			}
		}
		if !visible {
			remove = append(remove, n)
		}

		for _, other := range r.selectionList {
			for p := other.Parent(); p != nil; p = p.Parent() {
				if Node(p) == n {
					remove = append(remove, other)
					break
				}
			}
		}

		if n == Node(&r.Folder) {
			remove = append(remove, n)
		}
	}

	for _, n := range remove {
		r.ChangeSelection(n, false)
	}

	if len(r.selectionList) == 0 {
		var next Node
		if original != nil {
			for p := original.Parent(); p != nil; p = p.Parent() {
				if Node(p) == Node(&r.Folder) {
					break
				}
				if p.PotentiallyVisible() {
					if next == nil {
						next = p
					}
					if !p.IsOpen() {
						next = p
					}
				}
			}
		} else if len(r.folders) > 0 {
			next = r.folders[0]
		}
		if next != nil {
			r.SetSelection(next, false, false)
		}
	}

	// changes made here are corrections, not user input
	if prior == signalNone && r.signalSelect == signalKeyboard {
		r.signalSelect = signalPassive
	}
}

// ---- navigation ----

// FirstNode returns the first visible row, or nil on an empty tree.
func (r *Root) FirstNode() Node {
	return r.Folder.nextFromChild(nil, true)
}

// LastNode returns the last visible row, descending into open folders.
func (r *Root) LastNode() Node {
	n := r.Folder.previousFromChild(nil, true)
	if n == Node(&r.Folder) {
		return nil
	}
	return n
}

// primeKeyboardSelection re-selects the current node with focus on the
// first keyboard navigation after a non-keyboard selection change, so
// observers hear about the user taking over.
func (r *Root) primeKeyboardSelection(cur Node) {
	if !r.keyboardSelection {
		r.SetSelection(cur, false, true)
		r.keyboardSelection = true
	}
}

// NavigateDown moves the selection to the next open row. With extend,
// the selection grows to a same-parent neighbor or shrinks when backing
// over an already selected row.
func (r *Root) NavigateDown(extend bool) bool {
	cur := r.CurrentSelection()
	if cur == nil {
		if first := r.FirstNode(); first != nil {
			r.SetSelection(first, false, true)
			r.postNavigate()
			return true
		}
		return false
	}
	r.primeKeyboardSelection(cur)
	if extend {
		next := cur.base().nextOpenNode(false)
		if next != nil {
			if next.Selected() {
				r.ChangeSelection(cur, false)
			} else if cur.Parent() == next.Parent() {
				r.ChangeSelection(next, true)
			}
		}
		r.postNavigate()
		return true
	}
	next := cur.base().nextOpenNode(true)
	if next == nil || next == cur {
		return false
	}
	r.SetSelection(next, false, true)
	r.postNavigate()
	return true
}

// NavigateUp moves the selection to the previous open row, with the same
// extend semantics as NavigateDown.
func (r *Root) NavigateUp(extend bool) bool {
	cur := r.CurrentSelection()
	if cur == nil {
		if first := r.FirstNode(); first != nil {
			r.SetSelection(first, false, true)
			r.postNavigate()
			return true
		}
		return false
	}
	r.primeKeyboardSelection(cur)
	if extend {
		prev := cur.base().previousOpenNode(false)
		if prev != nil && prev != Node(&r.Folder) {
			if prev.Selected() {
				r.ChangeSelection(cur, false)
			} else if cur.Parent() == prev.Parent() {
				r.ChangeSelection(prev, true)
			}
		}
		r.postNavigate()
		return true
	}
	prev := cur.base().previousOpenNode(true)
	if prev == nil || prev == cur || prev == Node(&r.Folder) {
		return false
	}
	r.SetSelection(prev, false, true)
	r.postNavigate()
	return true
}

// NavigateRight opens the selected folder; on an item it does nothing.
func (r *Root) NavigateRight() bool {
	cur := r.CurrentSelection()
	if cur == nil {
		return false
	}
	if f := cur.AsFolder(); f != nil {
		f.SetOpen(true)
	}
	r.searchBuf = r.searchBuf[:0]
	return true
}

// NavigateLeft closes the selected folder. On an item, or an already
// closed folder, it moves the selection to the parent unless the parent
// is the root.
func (r *Root) NavigateLeft() bool {
	cur := r.CurrentSelection()
	if cur == nil {
		return false
	}
	f := cur.AsFolder()
	open := f != nil && f.IsOpen()
	parent := cur.Parent()
	if !open && parent != nil && parent.Parent() != nil {
		r.SetSelection(parent, false, true)
	} else if f != nil {
		f.SetOpen(false)
	}
	r.postNavigate()
	return true
}

func (r *Root) postNavigate() {
	r.ScrollToShowSelection()
	r.searchBuf = r.searchBuf[:0]
}

// CloseAllFolders closes every folder in the tree.
func (r *Root) CloseAllFolders() {
	r.setOpenArrange(false, recurseDown)
	r.Folder.open = true
}

// setOpenArrange keeps the root itself open no matter what recursion
// passes through it.
func (r *Root) setOpenArrange(open bool, recurse recurseType) {
	r.Folder.setOpenArrange(open, recurse)
	r.Folder.open = true
}

// ---- type-ahead ----

// TypeAhead appends a typed rune to the search buffer and moves the
// selection to the first visible row whose name starts with the buffer,
// wrapping at the ends. A pause longer than the timeout starts a fresh
// buffer.
func (r *Root) TypeAhead(ch rune, now time.Time) bool {
	if !r.lastSearchTime.IsZero() && now.Sub(r.lastSearchTime) > r.typeAheadTimeout {
		r.searchBuf = r.searchBuf[:0]
	}
	r.lastSearchTime = now
	if len(r.searchBuf) < maxSearchLength {
		r.searchBuf = append(r.searchBuf, ch)
	}
	return r.Search(r.CurrentSelection(), string(r.searchBuf), false)
}

// TypeAheadString returns the pending type-ahead buffer.
func (r *Root) TypeAheadString() string { return string(r.searchBuf) }

// Search finds the first open row at or after from whose label starts
// with s, case-insensitively, wrapping past the end. On a match the row
// becomes the selection.
func (r *Root) Search(from Node, s string, backward bool) bool {
	upper := strings.ToUpper(s)

	node := from
	if node == nil {
		node = r.Folder.nextFromChild(nil, true)
	}

	found := false
	start := node
	wrapped := false
	for node != nil || start != nil {
		if node == nil {
			// one wrap pass; a second means start was not on the ring
			if wrapped {
				break
			}
			wrapped = true
			if backward {
				node = r.Folder.previousFromChild(nil, true)
			} else {
				node = r.Folder.nextFromChild(nil, true)
			}
			if node == nil || node == start {
				break
			}
		}
		if strings.HasPrefix(node.base().searchLabel, upper) {
			found = true
			break
		}
		if backward {
			node = node.base().previousOpenNode(true)
		} else {
			node = node.base().nextOpenNode(true)
		}
		if node == start {
			break
		}
	}

	if found {
		r.SetSelection(node, false, true)
		r.ScrollToShowSelection()
	}
	return found
}

// ---- rename ----

// StartRename begins renaming the single selected node. It fails when
// nothing or more than one node is selected, or the source refuses.
func (r *Root) StartRename() error {
	r.ScrollToShowSelection()
	if len(r.selectionList) != 1 {
		return fmt.Errorf("rename needs exactly one selected node, have %d", len(r.selectionList))
	}
	n := r.selectionList[0]
	if !n.Source().CanRename() {
		return fmt.Errorf("%s cannot be renamed", n.Name())
	}
	r.renameTarget = n
	return nil
}

// RenameTarget returns the node being renamed, or nil.
func (r *Root) RenameTarget() Node { return r.renameTarget }

// CommitRename applies the new name through the source, then re-sorts the
// parent since the node may have moved.
func (r *Root) CommitRename(name string) error {
	n := r.renameTarget
	r.renameTarget = nil
	if n == nil {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" || name == n.Name() {
		return nil
	}
	if err := n.Source().Rename(name); err != nil {
		return fmt.Errorf("rename %s: %w", n.Name(), err)
	}
	n.refresh()
	if p := n.Parent(); p != nil {
		p.resort()
	}
	r.ScrollToShowSelection()
	return nil
}

// CancelRename abandons an in-progress rename.
func (r *Root) CancelRename() { r.renameTarget = nil }

// ---- removal ----

// CanRemoveSelection reports whether every selected node may be removed.
func (r *Root) CanRemoveSelection() bool {
	if len(r.selectionList) == 0 {
		return false
	}
	for _, n := range r.selectionList {
		if !n.isRemovable() {
			return false
		}
	}
	return true
}

// RemoveSelected removes every selected node through its source and
// detaches the views, then selects the nearest surviving neighbor. If any
// selected node refuses removal, nothing is removed.
func (r *Root) RemoveSelected() error {
	if len(r.selectionList) == 0 {
		return nil
	}
	r.renameTarget = nil

	doomed := make([]Node, 0, len(r.selectionList))
	for _, n := range r.selectionList {
		if !n.isRemovable() {
			return fmt.Errorf("cannot remove %s", n.Name())
		}
		doomed = append(doomed, n)
	}

	// pick the next selection before the tree changes under it
	last := doomed[len(doomed)-1]
	next := last.base().nextOpenNode(false)
	for next != nil && next.Selected() {
		next = next.base().nextOpenNode(false)
	}
	if next == nil {
		next = last.base().previousOpenNode(false)
		for next != nil && next.Selected() {
			next = next.base().previousOpenNode(false)
		}
	}
	if next == Node(&r.Folder) {
		next = nil
	}

	for _, n := range doomed {
		if err := n.Source().Remove(); err != nil {
			return fmt.Errorf("remove %s: %w", n.Name(), err)
		}
		r.destroyNode(n)
	}

	if next != nil {
		openIt := false
		if f := next.AsFolder(); f != nil {
			openIt = f.IsOpen()
		}
		r.SetSelection(next, openIt, r.userFocus)
	} else {
		r.SetSelection(nil, false, r.userFocus)
	}
	r.arrangeAll()
	r.ScrollToShowSelection()
	return nil
}

// destroyNode detaches n and its whole subtree from the tree and from all
// root-side registries.
func (r *Root) destroyNode(n Node) {
	if f := n.AsFolder(); f != nil {
		for len(f.folders) > 0 {
			r.destroyNode(f.folders[len(f.folders)-1])
		}
		for len(f.items) > 0 {
			r.destroyNode(f.items[len(f.items)-1])
		}
		r.scrubAutoOpen(f)
	}
	if n.Selected() {
		r.removeFromSelectionList(n)
		n.base().selected = false
		n.base().curSelection = false
		if p := n.Parent(); p != nil {
			p.adjustSelectedDescendants(-1)
		}
	}
	if r.renameTarget == n {
		r.renameTarget = nil
	}
	delete(r.idIndex, n.ID())
	if p := n.Parent(); p != nil {
		p.extractChild(n)
	}
}

// registerNode indexes a newly attached node by id.
func (r *Root) registerNode(n Node) {
	r.idIndex[n.ID()] = n
}

// ---- auto-open ----

// AutoOpenTest is called each frame a hover-with-payload rests on a
// folder (nil while hovering empty space). Dwelling past the delay opens
// the folder onto the auto-open stack; moving to a new candidate restarts
// the timer. Returns true the frame the folder opens.
func (r *Root) AutoOpenTest(f *Folder, now time.Time) bool {
	r.draggedThisFrame = true
	if f != nil && r.autoOpenCandidate == f {
		if now.Sub(r.autoOpenStart) > r.autoOpenDelay {
			r.autoOpenFolder(f)
			r.autoOpenStart = now
			return true
		}
		return false
	}
	r.autoOpenCandidate = f
	r.autoOpenStart = now
	return false
}

// AutoOpenProgress reports how far the hovered candidate is toward
// opening, in [0, 1].
func (r *Root) AutoOpenProgress(now time.Time) float64 {
	if r.autoOpenCandidate == nil || r.autoOpenCandidate.IsOpen() {
		return 0
	}
	frac := float64(now.Sub(r.autoOpenStart)) / float64(r.autoOpenDelay)
	return math.Min(math.Max(frac, 0), 1)
}

// autoOpenFolder opens f on the auto-open stack, first closing stacked
// folders that are not f's ancestors.
func (r *Root) autoOpenFolder(f *Folder) {
	if n := len(r.autoOpenStack); (n > 0 && r.autoOpenStack[n-1] == f) || n >= autoOpenStackDepth {
		return
	}
	for len(r.autoOpenStack) > 0 {
		top := r.autoOpenStack[len(r.autoOpenStack)-1]
		if top == f.parent {
			break
		}
		r.autoOpenStack = r.autoOpenStack[:len(r.autoOpenStack)-1]
		top.setOpenArrange(false, recurseNo)
	}
	f.requestArrange(false)
	r.autoOpenStack = append(r.autoOpenStack, f)
	f.SetOpen(true)
	r.scrollToShowNode(f)
}

// CloseAutoOpenedFolders unwinds the auto-open stack, closing everything
// it opened.
func (r *Root) CloseAutoOpenedFolders() {
	for len(r.autoOpenStack) > 0 {
		top := r.autoOpenStack[len(r.autoOpenStack)-1]
		r.autoOpenStack = r.autoOpenStack[:len(r.autoOpenStack)-1]
		top.SetOpen(false)
	}
	r.autoOpenCandidate = nil
	r.autoOpenStart = time.Time{}
}

// scrubAutoOpen forgets a folder that is being destroyed.
func (r *Root) scrubAutoOpen(f *Folder) {
	kept := r.autoOpenStack[:0]
	for _, s := range r.autoOpenStack {
		if s != f {
			kept = append(kept, s)
		}
	}
	r.autoOpenStack = kept
	if r.autoOpenCandidate == f {
		r.autoOpenCandidate = nil
	}
}

// ---- scrolling ----

// ScrollToShowSelection asks the next Updates to keep the current
// selection in view until layout settles.
func (r *Root) ScrollToShowSelection() {
	if len(r.selectionList) > 0 {
		r.needsScroll = true
	}
}

// scrollToShowNode clamps the scroll offset so the node's label row is
// inside the viewport.
func (r *Root) scrollToShowNode(n Node) {
	if r.viewportH <= 0 {
		return
	}
	y := n.AbsoluteY()
	if y < r.scrollTop {
		r.scrollTop = y
	} else if bottom := y + r.pres.ItemHeight; bottom > r.scrollTop+r.viewportH {
		r.scrollTop = bottom - r.viewportH
	}
}

// clampScroll keeps the offset within the arranged height.
func (r *Root) clampScroll() {
	limit := max(r.rect.H-r.viewportH, 0)
	if r.scrollTop > limit {
		r.scrollTop = limit
	}
	if r.scrollTop < 0 {
		r.scrollTop = 0
	}
}

// ---- filtering and arrangement from the root ----

// FilterStatus reports whether the budgeted pass still has work, and
// whether it found anything.
func (r *Root) FilterStatus() FilterStatus {
	if r.completedFilterGen < r.filter.CurrentGeneration() {
		return FilterInProgress
	}
	if r.filter.IsNotDefault() && !r.hasFilteredDescendants(r.filter.MinRequiredGeneration()) {
		return FilterNoMatches
	}
	return FilterDone
}

// filterFromRoot runs one budget's worth of filtering, or just marks the
// root passed when the tree is already covered.
func (r *Root) filterFromRoot() {
	defer metrics.Timer(metrics.FilterPass)()
	r.filter.setBudget(r.budget)
	if r.completedFilterGen < r.filter.CurrentGeneration() {
		r.Folder.filtered = false
		r.Folder.applyFilter(r.filter)
	} else {
		r.Folder.filtered = true
	}
}

// arrangeFromRoot lays out the whole tree against the viewport. Unlike
// interior folders the root always walks its children, has no label row
// of its own, and pins its width to the viewport minus the scroll gutter
// when content overflows.
func (r *Root) arrangeFromRoot() {
	defer metrics.Timer(metrics.ArrangePass)()
	gen := r.filter.MinRequiredGeneration()
	r.hasVisibleChildren = r.hasFilteredDescendants(gen)
	r.lastArrangeGen = r.arrangeGeneration

	showAll := r.filter.ShowFolders() == ShowAllFolders

	running := 0.0
	target := 0
	totalWidth := 0

	for _, sub := range r.folders {
		if r.debugFilters {
			sub.visible = true
		} else {
			sub.visible = showAll || sub.filteredAt(gen) || sub.hasFilteredDescendants(gen)
		}
		if !sub.visible {
			continue
		}
		sub.rect.X = r.pres.IconPad
		sub.rect.Y = int(math.Round(running))
		sub.rect.W = r.rect.W
		w, h, t := sub.arrange()
		target += t
		running += float64(h)
		if w > totalWidth {
			totalWidth = w
		}
	}
	for _, it := range r.items {
		if r.debugFilters {
			it.visible = true
		} else {
			it.visible = it.filteredAt(gen)
		}
		if !it.visible {
			continue
		}
		it.rect.X = r.pres.IconPad
		it.rect.Y = int(math.Round(running))
		it.rect.W = r.rect.W
		w, h, _ := it.arrange()
		target += h
		running += float64(h)
		if w > totalWidth {
			totalWidth = w
		}
	}

	r.rect.H = int(math.Round(running))
	r.targetHeight = float64(target)
	r.currentHeight = running

	// the gutter allowance sees the just-computed height, so one width
	// pass settles
	r.rect.W = max(r.availableWidth(), totalWidth)
	r.lastCalculatedWidth = r.rect.W
}

func (r *Root) availableWidth() int {
	w := r.viewportW
	if r.rect.H > r.viewportH {
		w -= r.pres.ScrollGutter
	}
	return w
}

// interpolant returns this frame's animation factor for folder heights.
func (r *Root) interpolant(opening bool) float64 {
	if opening {
		return r.openLerp
	}
	return r.closeLerp
}

// ---- the frame ----

// Update runs one engine cycle: a slice of filtering, auto-selection,
// selection sanitization, arrangement with animation, deferred scrolling,
// auto-open cleanup, and at most one selection callback. now drives all
// timers and animation speeds.
func (r *Root) Update(now time.Time) {
	dt := 50 * time.Millisecond
	if !r.lastUpdate.IsZero() {
		if d := now.Sub(r.lastUpdate); d > 0 {
			dt = d
		}
	}
	r.lastUpdate = now
	sec := dt.Seconds()
	r.openLerp = clamp01(1 - math.Exp(-sec/folderOpenTimeConstant))
	r.closeLerp = clamp01(1 - math.Exp(-sec/folderCloseTimeConstant))
	if !r.animate {
		r.openLerp, r.closeLerp = 1, 1
	}

	r.filter.ClearModified()
	filterActive := r.completedFilterGen < r.filter.CurrentGeneration() && r.filter.IsNotDefault()
	r.needsAutoSelect = filterActive && !r.userFocus

	r.filterFromRoot()

	if r.needsAutoSelect {
		cur := r.CurrentSelection()
		if cur != nil && r.idIndex[cur.ID()] != cur {
			// selection survived its node's destruction; start over
			r.dirtyFilter()
			r.clearSelectionInternal()
			r.requestArrange(false)
		} else if !r.autoSelectOverride && (cur == nil || !cur.Filtered()) {
			if first := r.firstFiltered(); first != nil {
				r.SetSelection(first, false, false)
				if p := first.Parent(); p != nil {
					p.setOpenArrange(true, recurseNo)
				}
			}
		}
		r.ScrollToShowSelection()
	}

	r.sanitizeSelection()
	if r.needsArrange() {
		r.arrangeFromRoot()
	}

	if len(r.selectionList) > 0 && r.needsScroll {
		r.scrollToShowNode(r.CurrentSelection())
		// keep scrolling until the animated layout settles
		if r.completedFilterGen >= r.filter.MinRequiredGeneration() && !r.needsArrange() {
			r.needsScroll = false
		}
	}
	r.clampScroll()

	if !r.draggedThisFrame {
		r.CloseAutoOpenedFolders()
	}
	r.draggedThisFrame = false

	if r.signalSelect != signalNone && r.selectFn != nil {
		r.selectFn(r.Selection(), r.signalSelect == signalKeyboard)
	}
	r.signalSelect = signalNone
}

func clamp01(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return v
}

// firstFiltered returns the first matching node in layout order, folders
// before their own items, or nil.
func (r *Root) firstFiltered() Node {
	return r.Folder.firstFilteredDescendant()
}

func (f *Folder) firstFilteredDescendant() Node {
	for _, sub := range f.folders {
		if sub.Filtered() {
			return sub
		}
		if n := sub.firstFilteredDescendant(); n != nil {
			return n
		}
	}
	for _, it := range f.items {
		if it.Filtered() {
			return it
		}
	}
	return nil
}

// ---- render iteration ----

// EachVisible walks the arranged tree in paint order, calling fn with
// each visible node, its absolute Y offset, and its depth. Children
// beyond a closing folder's animated height are skipped. fn returns
// false to stop the walk.
func (r *Root) EachVisible(fn func(n Node, absY, depth int) bool) {
	r.eachVisible(&r.Folder, 0, 0, fn)
}

func (r *Root) eachVisible(f *Folder, baseY, depth int, fn func(Node, int, int) bool) bool {
	for _, sub := range f.folders {
		if !sub.visible || sub.rect.Y >= f.rect.H {
			continue
		}
		if !fn(sub, baseY+sub.rect.Y, depth) {
			return false
		}
		if !r.eachVisible(sub, baseY+sub.rect.Y, depth+1, fn) {
			return false
		}
	}
	for _, it := range f.items {
		if !it.visible || it.rect.Y >= f.rect.H {
			continue
		}
		if !fn(it, baseY+it.rect.Y, depth) {
			return false
		}
	}
	return true
}
