package folderview

import (
	"strings"
	"time"
)

// nodeBase is the record shared by Item and Folder. The self field holds
// the concrete wrapper so shared methods can dispatch back through the
// Node interface where variants differ.
type nodeBase struct {
	self   Node
	parent *Folder
	root   *Root
	src    NodeSource

	id          string
	name        string
	searchLabel string // upper-cased name, for type-ahead and text filtering
	created     time.Time
	labelWidth  int

	filtered      bool
	lastFilterGen int

	selected     bool
	curSelection bool

	visible        bool
	rect           Rect
	indentation    int
	lastArrangeGen int
}

func (b *nodeBase) base() *nodeBase { return b }

// ID returns the node's stable external identifier.
func (b *nodeBase) ID() string { return b.id }

// Name returns the display label.
func (b *nodeBase) Name() string { return b.name }

// CreatedAt returns the entry creation time.
func (b *nodeBase) CreatedAt() time.Time { return b.created }

// Parent returns the containing folder, nil for the root.
func (b *nodeBase) Parent() *Folder { return b.parent }

// Rect returns the layout rectangle relative to the parent folder.
func (b *nodeBase) Rect() Rect { return b.rect }

// Visible reports whether the last arrangement placed this node on screen.
func (b *nodeBase) Visible() bool { return b.visible }

// Selected reports whether the node is in the selection set.
func (b *nodeBase) Selected() bool { return b.selected }

// IsCurSelection reports whether the node is the focal selection.
func (b *nodeBase) IsCurSelection() bool { return b.curSelection }

// Depth returns the number of ancestors below the root. Direct children
// of the root are at depth zero.
func (b *nodeBase) Depth() int {
	d := -1
	for p := b.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Indentation returns the horizontal layout offset in engine units.
func (b *nodeBase) Indentation() int { return b.indentation }

// Source returns the node's data collaborator.
func (b *nodeBase) Source() NodeSource { return b.src }

// IsFolder reports whether the node is a folder.
func (b *nodeBase) IsFolder() bool {
	_, ok := b.self.(*Folder)
	return ok
}

// AsFolder returns the node as a folder, or nil for items.
func (b *nodeBase) AsFolder() *Folder {
	f, _ := b.self.(*Folder)
	return f
}

// AbsoluteY returns the node's Y offset from the top of the tree.
func (b *nodeBase) AbsoluteY() int {
	y := b.rect.Y
	for p := b.parent; p != nil; p = p.parent {
		y += p.rect.Y
	}
	return y
}

// Filtered reports whether the node passed the filter at a still-valid
// generation.
func (b *nodeBase) Filtered() bool {
	return b.filtered && b.lastFilterGen >= b.root.filter.MinRequiredGeneration()
}

// filteredAt reports whether the node passed at or after the given
// generation.
func (b *nodeBase) filteredAt(gen int) bool {
	return b.filtered && b.lastFilterGen >= gen
}

// PotentiallyVisible reports whether the node should be treated as
// showable: it either passed the current filter or has not been tested
// against it yet.
func (b *nodeBase) PotentiallyVisible() bool {
	return b.lastFilterGen < b.root.filter.MinRequiredGeneration() || b.Filtered()
}

// setFiltered stamps a test result. Folder shadows this to snap its
// animated height when newly passing.
func (b *nodeBase) setFiltered(passed bool, gen int) {
	b.filtered = passed
	b.lastFilterGen = gen
}

// dirtyFilter invalidates this node's result and every ancestor's
// completed-pass marker so the next cycle revisits this branch.
func (b *nodeBase) dirtyFilter() {
	b.lastFilterGen = -1
	if b.parent != nil {
		b.parent.setCompletedFilterGeneration(-1, true)
	}
}

// refreshBase re-reads identity fields from the source. Reports whether
// the label or creation time changed.
func (b *nodeBase) refreshBase() bool {
	name := b.src.Name()
	created := b.src.CreationTime()
	changed := name != b.name || !created.Equal(b.created)
	b.name = name
	b.searchLabel = strings.ToUpper(name)
	b.created = created
	b.labelWidth = b.root.pres.labelAllowance() + b.root.pres.MeasureText(name)
	return changed
}

// selectNode flags the node selected and propagates descendant counts up
// the ancestor chain.
func (b *nodeBase) selectNode() {
	if b.selected {
		return
	}
	b.selected = true
	if b.parent != nil {
		b.parent.adjustSelectedDescendants(1)
	}
}

// deselectNode clears the selected flag and ancestor counts.
func (b *nodeBase) deselectNode() {
	if !b.selected {
		return
	}
	b.selected = false
	b.curSelection = false
	if b.parent != nil {
		b.parent.adjustSelectedDescendants(-1)
	}
}

// nextOpenNode returns the next node in flattened order, skipping
// invisible nodes. Returns the receiver when there is nowhere further to
// go, and nil only for the detached root.
func (b *nodeBase) nextOpenNode(includeChildren bool) Node {
	if b.parent == nil {
		return nil
	}
	n := b.parent.nextFromChild(b.self, includeChildren)
	for n != nil && !n.Visible() {
		next := n.Parent().nextFromChild(n, includeChildren)
		if next == n {
			// hit the last node
			if n.Visible() {
				return n
			}
			return b.self
		}
		n = next
	}
	return n
}

// previousOpenNode is the reverse counterpart of nextOpenNode.
func (b *nodeBase) previousOpenNode(includeChildren bool) Node {
	if b.parent == nil {
		return nil
	}
	n := b.parent.previousFromChild(b.self, includeChildren)
	for n != nil && !n.Visible() {
		next := n.Parent().previousFromChild(n, includeChildren)
		if next == n {
			// hit the first node
			if n.Visible() {
				return n
			}
			return b.self
		}
		n = next
	}
	return n
}
