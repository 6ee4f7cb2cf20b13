package folderview

import (
	"time"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// Item is a leaf node.
type Item struct {
	nodeBase
	typeCode model.TypeCode
}

// newItem builds a detached item for the given source. The caller attaches
// it to a folder and registers it with the root.
func newItem(root *Root, src NodeSource) *Item {
	it := &Item{}
	it.self = it
	it.root = root
	it.src = src
	it.id = src.ID()
	it.refresh()
	return it
}

// TypeCode returns the item's payload type.
func (it *Item) TypeCode() model.TypeCode { return it.typeCode }

func (it *Item) refresh() {
	it.typeCode = it.src.TypeCode()
	if it.refreshBase() {
		it.dirtyFilter()
		if it.parent != nil {
			it.parent.requestArrange(false)
		}
	}
}

// applyFilter tests the item against f, stamping the result with the
// current generation. A visibility flip schedules a parent rearrange.
func (it *Item) applyFilter(f *Filter) {
	passed := f.checkItem(it)
	if it.visible != passed && it.parent != nil {
		it.parent.requestArrange(false)
	}
	it.setFiltered(passed, f.CurrentGeneration())
	f.consume()
}

// arrange positions the item as a single row. Width is the label extent
// at the item's indentation; height and target are the fixed row height.
func (it *Item) arrange() (width, height, target int) {
	if it.parent != nil {
		it.indentation = it.parent.indentation + it.root.pres.IndentStep
	} else {
		it.indentation = 0
	}
	h := it.root.pres.ItemHeight
	it.rect.H = h
	return it.labelWidth + it.indentation, h, h
}

func (it *Item) selectTarget(target Node, openAncestors bool) bool {
	hit := target == Node(it)
	if hit && !it.selected {
		it.selectNode()
	} else if !hit && it.selected {
		// a new single selection deselects everything else
		it.deselectNode()
	}
	return hit
}

func (it *Item) changeSelectionTarget(target Node, selected bool) bool {
	if target != Node(it) || it.selected == selected {
		return false
	}
	if selected {
		it.selectNode()
	} else {
		it.deselectNode()
	}
	return true
}

func (it *Item) selectedCount() int {
	if it.selected {
		return 1
	}
	return 0
}

func (it *Item) sortGroup() sortGroup { return sgItem }

func (it *Item) creationForSort() time.Time { return it.created }

func (it *Item) isMovable() bool { return it.src.CanMove() }

func (it *Item) isRemovable() bool { return it.src.CanRemove() }
