package folderview

import (
	"strings"
	"time"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// ShowFolderState controls how folders that fail the filter themselves are
// displayed.
type ShowFolderState int

const (
	// ShowNonEmptyFolders displays a folder only when it passes the filter
	// or shelters a passing descendant.
	ShowNonEmptyFolders ShowFolderState = iota
	// ShowAllFolders displays every folder regardless of filter state.
	ShowAllFolders
)

// Filter is the generation-stamped predicate nodes are tested against.
//
// Three generation counters drive incremental refiltering:
//
//   - current: bumped on every criteria change; new test results are
//     stamped with it.
//   - minRequired: results stamped at or after this generation are still
//     valid. Raised when criteria tighten, so stale passes must retest.
//   - mustPass: failures stamped at or after this generation cannot pass
//     the current criteria either, so they are re-flagged as failed
//     without running the predicate. Raised when criteria loosen, which
//     disarms that shortcut for results the loosening could rescue.
//
// A node is "currently filtered" iff it passed and its stamp is at least
// minRequired.
type Filter struct {
	text      string
	textUpper string
	typeMask  model.TypeMask
	since     time.Time // zero means unbounded
	before    time.Time // zero means unbounded

	showFolders ShowFolderState

	current     int
	minRequired int
	mustPass    int

	modified bool

	budget int // remaining checks this cycle; may go one below zero
	checks int // lifetime predicate evaluations, for tests and metrics
}

// NewFilter returns a default (match-everything) filter at generation 1.
func NewFilter() *Filter {
	return &Filter{
		typeMask:    model.AllTypes,
		current:     1,
		minRequired: 1,
	}
}

// CurrentGeneration returns the stamp applied to fresh test results.
func (f *Filter) CurrentGeneration() int { return f.current }

// MinRequiredGeneration returns the oldest stamp still considered valid.
func (f *Filter) MinRequiredGeneration() int { return f.minRequired }

// MustPassGeneration returns the oldest stamp whose failures are final.
func (f *Filter) MustPassGeneration() int { return f.mustPass }

// Text returns the current substring criterion.
func (f *Filter) Text() string { return f.text }

// TypeMask returns the current item type criterion.
func (f *Filter) TypeMask() model.TypeMask { return f.typeMask }

// DateRange returns the current creation window. Zero times are unbounded.
func (f *Filter) DateRange() (since, before time.Time) { return f.since, f.before }

// ShowFolders returns the folder display policy.
func (f *Filter) ShowFolders() ShowFolderState { return f.showFolders }

// IsNotDefault reports whether any criterion is active.
func (f *Filter) IsNotDefault() bool {
	return f.text != "" || f.typeMask != model.AllTypes || !f.since.IsZero() || !f.before.IsZero()
}

// Modified reports whether criteria changed since the last ClearModified.
func (f *Filter) Modified() bool { return f.modified }

// ClearModified acknowledges a criteria change at the top of a cycle.
func (f *Filter) ClearModified() { f.modified = false }

// SetText replaces the substring criterion, classifying the change by
// comparing the old and new strings.
func (f *Filter) SetText(text string) {
	upper := strings.ToUpper(text)
	if upper == f.textUpper {
		f.text = text
		return
	}
	old := f.textUpper
	f.text = text
	f.textUpper = upper
	switch {
	case old == "" || strings.Contains(upper, old):
		f.makeMoreRestrictive()
	case upper == "" || strings.Contains(old, upper):
		f.makeLessRestrictive()
	default:
		f.restart()
	}
}

// SetTypeMask replaces the item type criterion.
func (f *Filter) SetTypeMask(mask model.TypeMask) {
	if mask == f.typeMask {
		return
	}
	old := f.typeMask
	f.typeMask = mask
	switch {
	case mask&old == mask:
		// narrowed: everything matching now matched before
		f.makeMoreRestrictive()
	case mask&old == old:
		f.makeLessRestrictive()
	default:
		f.restart()
	}
}

// SetDateRange replaces the creation window. Zero times are unbounded.
func (f *Filter) SetDateRange(since, before time.Time) {
	if since.Equal(f.since) && before.Equal(f.before) {
		return
	}
	narrowedSince := !since.IsZero() && (f.since.IsZero() || since.After(f.since))
	widenedSince := since.IsZero() && !f.since.IsZero() || !since.IsZero() && !f.since.IsZero() && since.Before(f.since)
	narrowedBefore := !before.IsZero() && (f.before.IsZero() || before.Before(f.before))
	widenedBefore := before.IsZero() && !f.before.IsZero() || !before.IsZero() && !f.before.IsZero() && before.After(f.before)

	f.since = since
	f.before = before
	switch {
	case !widenedSince && !widenedBefore:
		f.makeMoreRestrictive()
	case !narrowedSince && !narrowedBefore:
		f.makeLessRestrictive()
	default:
		f.restart()
	}
}

// SetShowFolders replaces the folder display policy. Showing more folders
// relaxes visibility, showing fewer tightens it.
func (f *Filter) SetShowFolders(state ShowFolderState) {
	if state == f.showFolders {
		return
	}
	old := f.showFolders
	f.showFolders = state
	if state > old {
		f.makeLessRestrictive()
	} else {
		f.makeMoreRestrictive()
	}
}

// Reset returns the filter to its default criteria in one step.
func (f *Filter) Reset() {
	if !f.IsNotDefault() && f.showFolders == ShowNonEmptyFolders {
		return
	}
	f.text = ""
	f.textUpper = ""
	f.typeMask = model.AllTypes
	f.since = time.Time{}
	f.before = time.Time{}
	f.showFolders = ShowNonEmptyFolders
	f.makeLessRestrictive()
}

func (f *Filter) makeMoreRestrictive() {
	f.current++
	f.minRequired = f.current
	f.modified = true
}

func (f *Filter) makeLessRestrictive() {
	f.current++
	f.mustPass = f.current
	f.modified = true
}

func (f *Filter) restart() {
	f.current++
	f.minRequired = f.current
	f.mustPass = f.current
	f.modified = true
}

// setBudget installs the per-cycle check allowance.
func (f *Filter) setBudget(n int) {
	if n < minFilterBudget {
		n = minFilterBudget
	} else if n > maxFilterBudget {
		n = maxFilterBudget
	}
	f.budget = n
}

// budgetRemaining reports how many checks are left this cycle. The loops
// in Folder.applyFilter stop once this goes negative, so a cycle can
// overshoot its allowance by at most one check.
func (f *Filter) budgetRemaining() int { return f.budget }

func (f *Filter) consume() {
	f.budget--
	f.checks++
}

// CheckCount returns the lifetime number of predicate evaluations.
func (f *Filter) CheckCount() int { return f.checks }

// checkItem evaluates the full predicate against an item.
func (f *Filter) checkItem(it *Item) bool {
	if f.textUpper != "" && !strings.Contains(it.searchLabel, f.textUpper) {
		return false
	}
	if !f.typeMask.Has(it.typeCode) {
		return false
	}
	return f.checkDate(it.created)
}

// checkFolder evaluates the folder form of the predicate. Folders carry no
// type code, so an active type mask or date window can only be satisfied
// by their descendants; the folder itself fails and relies on
// hasFilteredDescendants for visibility.
func (f *Filter) checkFolder(fo *Folder) bool {
	if f.typeMask != model.AllTypes {
		return false
	}
	if !f.since.IsZero() || !f.before.IsZero() {
		return false
	}
	if f.textUpper != "" && !strings.Contains(fo.searchLabel, f.textUpper) {
		return false
	}
	return true
}

func (f *Filter) checkDate(t time.Time) bool {
	if !f.since.IsZero() && t.Before(f.since) {
		return false
	}
	if !f.before.IsZero() && !t.Before(f.before) {
		return false
	}
	return true
}
