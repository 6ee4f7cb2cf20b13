// Package folderview implements the headless engine behind the inventory
// tree: incremental generation-stamped filtering, animated arrangement,
// multi-selection with sanitization, flattened keyboard navigation, and
// hover-driven auto-open. The engine owns no terminal state; render layers
// consume per-node rectangles and visibility flags and feed back primitive
// events (selection, open/close, dwell) through Root.
//
// All engine state is mutated on a single goroutine, driven by Root.Update
// once per frame. Long-running work (filtering a large tree) is spread
// across frames by a per-cycle check budget instead of goroutines, so the
// tree is always consistent between cycles.
package folderview

import (
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// Layout and animation constants. Heights and widths are in engine units,
// not terminal cells; render layers divide by Presentation.ItemHeight.
const (
	folderOpenTimeConstant  = 0.03 // seconds, height animation while opening
	folderCloseTimeConstant = 0.02 // seconds, height animation while closing
	maxFolderItemOverlap    = 2    // units a child may overhang an animating folder

	autoOpenStackDepth = 16

	maxSearchLength = 128 // type-ahead buffer cap, in runes

	minFilterBudget = 1
	maxFilterBudget = 5000

	// DefaultFilterBudget is the per-cycle filter check allowance.
	DefaultFilterBudget = 500

	// DefaultAutoOpenDelay is the dwell time before a hovered folder opens.
	DefaultAutoOpenDelay = time.Second

	// DefaultTypeAheadTimeout clears the search buffer after inactivity.
	DefaultTypeAheadTimeout = 1500 * time.Millisecond

	// DefaultItemHeight and DefaultIndentStep are the standard row height
	// and per-level indent in engine units.
	DefaultItemHeight = 20
	DefaultIndentStep = 16
)

// Rect is a node's layout rectangle. X and Y are relative to the parent
// folder's top-left corner; Y grows downward.
type Rect struct {
	X, Y, W, H int
}

// Bottom returns the Y coordinate one past the rectangle's last row.
func (r Rect) Bottom() int {
	return r.Y + r.H
}

// Presentation carries the measurement constants the engine needs to lay
// nodes out. It is injected at Root construction and never mutated, so the
// engine stays free of global font or theme state.
type Presentation struct {
	ItemHeight int // height of one row
	IndentStep int // horizontal indent per tree level
	ArrowWidth int // leading disclosure arrow allowance
	IconWidth  int
	IconPad    int
	TextPad    int

	// ScrollGutter is reserved along the right edge whenever the arranged
	// height exceeds the viewport, mirroring a scrollbar appearing.
	ScrollGutter int

	// MeasureText returns the rendered width of a label in engine units.
	MeasureText func(s string) int
}

// DefaultPresentation returns the standard metrics. Text is measured at
// seven units per display cell, the width of the bitmap face used by the
// snapshot exporter.
func DefaultPresentation() Presentation {
	return Presentation{
		ItemHeight:   DefaultItemHeight,
		IndentStep:   DefaultIndentStep,
		ArrowWidth:   12,
		IconWidth:    16,
		IconPad:      2,
		TextPad:      1,
		ScrollGutter: 14,
		MeasureText: func(s string) int {
			return 7 * runewidth.StringWidth(s)
		},
	}
}

// labelAllowance is the fixed leading width before label text.
func (p Presentation) labelAllowance() int {
	return p.ArrowWidth + p.TextPad + p.IconWidth + p.IconPad
}

// NodeSource is the engine's per-node data collaborator. Sources answer
// identity and capability queries and perform the actual mutations; the
// engine only reflects their results.
type NodeSource interface {
	ID() string
	Name() string
	CreationTime() time.Time
	TypeCode() model.TypeCode
	Role() model.Role

	CanRename() bool
	CanRemove() bool
	CanMove() bool
	CanCopy() bool

	Rename(name string) error
	Remove() error
	Move(parentID string) error

	// DescendantsLoaded reports whether a folder's children are fully
	// known. Items always return true.
	DescendantsLoaded() bool

	// StartFetch asks the source to begin loading a folder's descendants
	// in the background. Repeat calls while a fetch is pending are cheap.
	StartFetch()
}

// Node is a view node, either *Item or *Folder. Only this package
// implements it; render layers treat it as a read surface and use the
// Root operations for mutation.
type Node interface {
	ID() string
	Name() string
	CreatedAt() time.Time
	Parent() *Folder
	Rect() Rect
	AbsoluteY() int
	Visible() bool
	Selected() bool
	IsCurSelection() bool
	Depth() int
	Indentation() int
	Filtered() bool
	PotentiallyVisible() bool
	Source() NodeSource
	IsFolder() bool
	AsFolder() *Folder

	base() *nodeBase
	applyFilter(f *Filter)
	arrange() (width, height, target int)
	dirtyFilter()
	refresh()
	selectTarget(target Node, openAncestors bool) bool
	changeSelectionTarget(target Node, selected bool) bool
	selectedCount() int
	sortGroup() sortGroup
	creationForSort() time.Time
	isMovable() bool
	isRemovable() bool
}
