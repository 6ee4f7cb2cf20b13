// Package ui is the canopy terminal front end: a Bubble Tea program
// that drives the folderview engine at a fixed frame rate and renders
// its arranged rows as styled terminal lines.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/canopy/internal/datasource"
	"github.com/vanderheijden86/canopy/pkg/analysis"
	"github.com/vanderheijden86/canopy/pkg/config"
	"github.com/vanderheijden86/canopy/pkg/debug"
	"github.com/vanderheijden86/canopy/pkg/folderview"
	"github.com/vanderheijden86/canopy/pkg/metrics"
	"github.com/vanderheijden86/canopy/pkg/model"
	"github.com/vanderheijden86/canopy/pkg/watcher"
)

// frameInterval is the engine tick period. Twenty frames a second keeps
// folder animation smooth without noticeable idle CPU.
const frameInterval = 50 * time.Millisecond

// statusDuration is how long a transient footer message stays up.
const statusDuration = 4 * time.Second

// frameTickMsg drives one engine cycle.
type frameTickMsg time.Time

// FileChangedMsg is sent when the inventory file changes on disk.
type FileChangedMsg struct{}

// fetchedMsg carries children delivered by the background fetcher.
type fetchedMsg model.ChangeSet

func frameTickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameTickMsg(t)
	})
}

// WatchFileCmd returns a command that waits for the next file change
// and sends FileChangedMsg.
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

// waitForFetchCmd waits for the next change set from the fetch pool.
func waitForFetchCmd(ch <-chan model.ChangeSet) tea.Cmd {
	return func() tea.Msg {
		cs, ok := <-ch
		if !ok {
			return nil
		}
		return fetchedMsg(cs)
	}
}

type inputMode int

const (
	modeBrowse inputMode = iota
	modeFilter
	modeRename
)

// ModelOptions wires a populated engine and its data plumbing into the
// UI. Fetcher, Reloader, and Watcher are each optional; a nil field
// simply disables that path.
type ModelOptions struct {
	Root    *folderview.Root
	Factory folderview.SourceFactory

	Fetcher  *datasource.Fetcher
	Reloader *datasource.Reloader
	Watcher  *watcher.Watcher

	Config      config.Config
	SourceLabel string
	StatePath   string
	ReadOnly    bool
}

// Model is the main Bubble Tea model for canopy.
type Model struct {
	root    *folderview.Root
	factory folderview.SourceFactory

	fetcher  *datasource.Fetcher
	reloader *datasource.Reloader
	watcher  *watcher.Watcher

	theme       Theme
	sourceLabel string
	statePath   string
	readOnly    bool

	width  int
	height int
	ready  bool

	// now is the last frame time; every engine timer (type-ahead,
	// auto-open, animation) runs off it rather than time.Now so tests
	// can drive the clock.
	now time.Time

	mode        inputMode
	filterInput textinput.Model
	prevFilter  string
	renameInput textinput.Model

	showHelp     bool
	showInsights bool
	overlay      viewport.Model

	// movePending is set between x (mark) and p (paste). While it is
	// set, every frame reports the hovered folder to the engine's
	// auto-open dwell.
	movePending bool
	markedIDs   []string

	statusMsg     string
	statusIsError bool
	statusUntil   time.Time
}

// NewModel builds the UI around an already populated tree.
func NewModel(opts ModelOptions) Model {
	fi := textinput.New()
	fi.Prompt = "/"
	fi.Placeholder = "name filter"
	fi.CharLimit = 128

	ri := textinput.New()
	ri.Prompt = "rename: "
	ri.CharLimit = 128

	return Model{
		root:        opts.Root,
		factory:     opts.Factory,
		fetcher:     opts.Fetcher,
		reloader:    opts.Reloader,
		watcher:     opts.Watcher,
		theme:       DefaultTheme(lipgloss.DefaultRenderer()).WithOverrides(opts.Config.Theme),
		sourceLabel: opts.SourceLabel,
		statePath:   opts.StatePath,
		readOnly:    opts.ReadOnly,
		now:         time.Now(),
		filterInput: fi,
		renameInput: ri,
		overlay:     viewport.New(0, 0),
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{frameTickCmd()}
	if m.watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.watcher))
	}
	if m.fetcher != nil {
		cmds = append(cmds, waitForFetchCmd(m.fetcher.Changes()))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.applyViewport()
		return m, nil

	case frameTickMsg:
		return m.handleFrame(time.Time(msg))

	case FileChangedMsg:
		return m.handleFileChanged()

	case fetchedMsg:
		return m.handleFetched(model.ChangeSet(msg))

	case tea.KeyMsg:
		switch m.mode {
		case modeFilter:
			return m.handleFilterKeys(msg)
		case modeRename:
			return m.handleRenameKeys(msg)
		}
		if m.showHelp || m.showInsights {
			return m.handleOverlayKeys(msg)
		}
		return m.handleBrowseKeys(msg)
	}
	return m, nil
}

// applyViewport pushes the terminal size into the engine and the
// overlay components. The engine measures in its own units: rows are
// ItemHeight tall and one display cell is the width MeasureText gives a
// single "M".
func (m *Model) applyViewport() {
	pres := m.root.Presentation()
	cell := pres.MeasureText("M")
	if cell <= 0 {
		cell = 1
	}
	m.root.SetViewport(m.width*cell, m.bodyHeight()*pres.ItemHeight)

	m.overlay.Width = m.width
	m.overlay.Height = m.bodyHeight()

	inputWidth := m.width - 12
	if inputWidth < 16 {
		inputWidth = 16
	}
	m.filterInput.Width = inputWidth
	m.renameInput.Width = inputWidth
}

// bodyHeight is the tree area: everything between the header line and
// the footer line.
func (m Model) bodyHeight() int {
	h := m.height - 2
	if h < 1 {
		h = 1
	}
	return h
}

// ---- message handlers ----

func (m Model) handleFrame(now time.Time) (tea.Model, tea.Cmd) {
	m.now = now
	if m.movePending {
		// keep the auto-open stack alive and run the dwell timer
		m.root.AutoOpenTest(m.hoverFolder(), now)
	}
	done := metrics.Timer(metrics.UpdateCycle)
	m.root.Update(now)
	done()
	if m.statusMsg != "" && now.After(m.statusUntil) {
		m.statusMsg = ""
		m.statusIsError = false
	}
	return m, frameTickCmd()
}

// hoverFolder returns the closed folder the pending move rests on, nil
// when the selection is elsewhere.
func (m Model) hoverFolder() *folderview.Folder {
	cur := m.root.CurrentSelection()
	if cur == nil {
		return nil
	}
	f := cur.AsFolder()
	if f == nil || f.IsOpen() {
		return nil
	}
	return f
}

func (m Model) handleFileChanged() (tea.Model, tea.Cmd) {
	if m.reloader == nil || m.watcher == nil {
		return m, nil
	}
	cs, err := m.reloader.Reload()
	if err != nil {
		m.setError(fmt.Sprintf("reload: %v", err))
		return m, WatchFileCmd(m.watcher)
	}
	if !cs.Empty() {
		if err := m.root.ApplyChanges(cs, m.factory); err != nil {
			m.setError(fmt.Sprintf("apply reload: %v", err))
		} else {
			m.setStatus("reloaded: " + cs.String())
		}
	}
	return m, WatchFileCmd(m.watcher)
}

func (m Model) handleFetched(cs model.ChangeSet) (tea.Model, tea.Cmd) {
	if err := m.root.ApplyChanges(cs, m.factory); err != nil {
		debug.Log("apply fetch: %v", err)
	}
	return m, waitForFetchCmd(m.fetcher.Changes())
}

// ---- key handling ----

func (m Model) handleBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.saveState()
		return m, tea.Quit

	case "esc":
		if m.movePending {
			m.movePending = false
			m.markedIDs = nil
			m.setStatus("move cancelled")
		} else if m.root.Filter().IsNotDefault() {
			m.root.Filter().Reset()
			m.root.SetAutoSelectOverride(false)
			m.setStatus("filter cleared")
		}
		return m, nil

	case "down", "j":
		m.root.SetUserFocus(true)
		m.root.NavigateDown(false)
	case "up", "k":
		m.root.SetUserFocus(true)
		m.root.NavigateUp(false)
	case "shift+down", "J":
		m.root.NavigateDown(true)
	case "shift+up", "K":
		m.root.NavigateUp(true)
	case "right", "l":
		m.root.NavigateRight()
	case "left", "h":
		m.root.NavigateLeft()

	case "home", "g":
		if first := m.root.FirstNode(); first != nil {
			m.root.SetSelection(first, false, true)
			m.root.ScrollToShowSelection()
		}
	case "end", "G":
		if last := m.root.LastNode(); last != nil {
			m.root.SetSelection(last, false, true)
			m.root.ScrollToShowSelection()
		}

	case "tab":
		m.root.CloseAllFolders()
		m.setStatus("folders closed")

	case "enter":
		cur := m.root.CurrentSelection()
		if cur == nil {
			break
		}
		if f := cur.AsFolder(); f != nil {
			f.ToggleOpen()
		} else {
			m.setStatus(fmt.Sprintf("%s — %s, %s",
				cur.Name(), cur.Source().TypeCode(), FormatTimeRel(cur.CreatedAt())))
		}

	case " ":
		if cur := m.root.CurrentSelection(); cur != nil {
			m.root.ChangeSelection(cur, !cur.Selected())
		}

	case "/":
		m.mode = modeFilter
		m.prevFilter = m.root.Filter().Text()
		m.filterInput.SetValue(m.prevFilter)
		m.filterInput.CursorEnd()
		m.root.SetAutoSelectOverride(false)
		m.root.SetUserFocus(false)
		return m, m.filterInput.Focus()

	case "r", "f2":
		if err := m.root.StartRename(); err != nil {
			m.setError(err.Error())
			return m, nil
		}
		m.mode = modeRename
		m.renameInput.SetValue(m.root.RenameTarget().Name())
		m.renameInput.CursorEnd()
		return m, m.renameInput.Focus()

	case "delete":
		return m.removeSelection()

	case "y":
		return m.yankSelection()

	case "x":
		ids := m.root.SelectionIDs()
		if len(ids) == 0 {
			m.setStatus("nothing selected")
			break
		}
		m.markedIDs = ids
		m.movePending = true
		m.setStatus(fmt.Sprintf("%d marked — select a folder, then p to move", len(ids)))

	case "p":
		return m.pasteMarked()

	case "s":
		m.cycleSort()

	case "F":
		m.toggleShowAllFolders()

	case "?":
		m.showHelp = true
		m.overlay.SetContent(renderMarkdown(helpMarkdown, m.width))
		m.overlay.GotoTop()

	case "i":
		md := buildInsightsMarkdown(analysis.Compute(m.root), m.sourceLabel)
		m.showInsights = true
		m.overlay.SetContent(renderMarkdown(md, m.width))
		m.overlay.GotoTop()

	default:
		if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 && !msg.Alt {
			m.root.SetUserFocus(true)
			m.root.TypeAhead(msg.Runes[0], m.now)
		}
	}
	return m, nil
}

func (m Model) handleFilterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeBrowse
		m.filterInput.Blur()
		m.root.SetUserFocus(true)
		return m, nil
	case "esc":
		m.mode = modeBrowse
		m.filterInput.Blur()
		m.root.Filter().SetText(m.prevFilter)
		return m, nil
	case "ctrl+c":
		m.saveState()
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	if text := m.filterInput.Value(); text != m.root.Filter().Text() {
		m.root.Filter().SetText(text)
		// let auto-select chase the first match while typing
		m.root.SetUserFocus(false)
	}
	return m, cmd
}

func (m Model) handleRenameKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.root.RenameTarget() == nil {
		// the row was removed underneath the edit, e.g. by a reload
		m.mode = modeBrowse
		m.renameInput.Blur()
		m.setError("rename target is gone")
		return m, nil
	}

	switch msg.String() {
	case "enter":
		name := strings.TrimSpace(m.renameInput.Value())
		m.mode = modeBrowse
		m.renameInput.Blur()
		if name == "" || name == m.root.RenameTarget().Name() {
			m.root.CancelRename()
			return m, nil
		}
		if err := m.root.CommitRename(name); err != nil {
			m.setError(fmt.Sprintf("rename: %v", err))
		} else {
			m.setStatus("renamed to " + name)
		}
		return m, nil
	case "esc":
		m.mode = modeBrowse
		m.renameInput.Blur()
		m.root.CancelRename()
		return m, nil
	case "ctrl+c":
		m.root.CancelRename()
		m.saveState()
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.renameInput, cmd = m.renameInput.Update(msg)
	return m, cmd
}

func (m Model) handleOverlayKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "?", "i":
		m.showHelp = false
		m.showInsights = false
		return m, nil
	case "ctrl+c":
		m.saveState()
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.overlay, cmd = m.overlay.Update(msg)
	return m, cmd
}

// ---- operations behind the keys ----

func (m Model) yankSelection() (tea.Model, tea.Cmd) {
	ids := m.root.SelectionIDs()
	if len(ids) == 0 {
		m.setStatus("nothing selected")
		return m, nil
	}
	if err := clipboard.WriteAll(strings.Join(ids, "\n")); err != nil {
		m.setError(fmt.Sprintf("clipboard: %v", err))
		return m, nil
	}
	if len(ids) == 1 {
		m.setStatus("copied id " + ids[0])
	} else {
		m.setStatus(fmt.Sprintf("copied %d ids", len(ids)))
	}
	return m, nil
}

func (m Model) removeSelection() (tea.Model, tea.Cmd) {
	if m.readOnly {
		m.setError("source is read-only")
		return m, nil
	}
	n := len(m.root.Selection())
	if n == 0 {
		m.setStatus("nothing selected")
		return m, nil
	}
	if !m.root.CanRemoveSelection() {
		m.setError("selection cannot be removed")
		return m, nil
	}
	if err := m.root.RemoveSelected(); err != nil {
		m.setError(fmt.Sprintf("remove: %v", err))
		return m, nil
	}
	noun := "entries"
	if n == 1 {
		noun = "entry"
	}
	m.setStatus(fmt.Sprintf("removed %d %s", n, noun))
	return m, nil
}

func (m Model) pasteMarked() (tea.Model, tea.Cmd) {
	if !m.movePending {
		m.setStatus("nothing marked; x marks the selection first")
		return m, nil
	}
	if m.readOnly {
		m.setError("source is read-only")
		return m, nil
	}
	dest := m.dropTarget()
	if dest == nil {
		m.setError("select a destination folder first")
		return m, nil
	}

	// Re-establish the marked selection; ids that vanished since x are
	// skipped.
	count := 0
	for _, id := range m.markedIDs {
		n := m.root.NodeByID(id)
		if n == nil {
			continue
		}
		if count == 0 {
			m.root.SetSelection(n, false, false)
		} else {
			m.root.ChangeSelection(n, true)
		}
		count++
	}
	if count == 0 {
		m.movePending = false
		m.markedIDs = nil
		m.setError("marked rows are gone")
		return m, nil
	}

	if !m.root.CanMoveSelectionTo(dest) {
		// keep the mark so the user can pick another target
		m.setError("cannot move there — pick another folder or esc")
		return m, nil
	}
	if err := m.root.MoveSelectionTo(dest); err != nil {
		m.movePending = false
		m.markedIDs = nil
		m.setError(err.Error())
		return m, nil
	}
	m.movePending = false
	m.markedIDs = nil
	m.setStatus(fmt.Sprintf("moved %d into %s", count, dest.Name()))
	return m, nil
}

// dropTarget resolves the folder a paste lands in: the current row when
// it is a folder, otherwise the folder containing it.
func (m Model) dropTarget() *folderview.Folder {
	cur := m.root.CurrentSelection()
	if cur == nil {
		return nil
	}
	if f := cur.AsFolder(); f != nil {
		return f
	}
	return cur.Parent()
}

func (m *Model) cycleSort() {
	var next folderview.SortOrder
	var label string
	switch m.root.SortOrder() {
	case folderview.DefaultSortOrder:
		next = folderview.DefaultSortOrder | folderview.SortByDate
		label = "by date, folders by name"
	case folderview.DefaultSortOrder | folderview.SortByDate:
		next = folderview.SortByDate | folderview.SortSystemToTop
		label = "by date"
	default:
		next = folderview.DefaultSortOrder
		label = "by name"
	}
	m.root.SetSortOrder(next)
	m.setStatus("sort: " + label)
}

func (m *Model) toggleShowAllFolders() {
	f := m.root.Filter()
	if f.ShowFolders() == folderview.ShowAllFolders {
		f.SetShowFolders(folderview.ShowNonEmptyFolders)
		m.setStatus("hiding folders with no matches")
	} else {
		f.SetShowFolders(folderview.ShowAllFolders)
		m.setStatus("showing all folders")
	}
}

// ---- status line ----

func (m *Model) setStatus(s string) {
	m.statusMsg = s
	m.statusIsError = false
	m.statusUntil = m.now.Add(statusDuration)
}

func (m *Model) setError(s string) {
	m.statusMsg = s
	m.statusIsError = true
	m.statusUntil = m.now.Add(statusDuration)
}

// saveState persists the open/selection/scroll state next to the
// source. Best effort; a failure only costs the restore.
func (m Model) saveState() {
	if m.statePath == "" {
		return
	}
	if err := CaptureViewState(m.root).Save(m.statePath); err != nil {
		debug.Log("save view state: %v", err)
	}
}
