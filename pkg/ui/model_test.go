package ui

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/canopy/pkg/folderview"
	"github.com/vanderheijden86/canopy/pkg/model"
	"github.com/vanderheijden86/canopy/pkg/testutil"
)

// stubSource implements folderview.NodeSource over a model.Entry,
// recording mutations so tests can assert the UI reached the source.
type stubSource struct {
	entry   model.Entry
	removed bool
}

func (s *stubSource) ID() string               { return s.entry.ID }
func (s *stubSource) Name() string             { return s.entry.Name }
func (s *stubSource) CreationTime() time.Time  { return s.entry.CreatedAt }
func (s *stubSource) TypeCode() model.TypeCode { return s.entry.Type }
func (s *stubSource) Role() model.Role         { return s.entry.Role }
func (s *stubSource) CanRename() bool          { return s.entry.Caps.Has(model.CanRename) }
func (s *stubSource) CanRemove() bool          { return s.entry.Caps.Has(model.CanRemove) }
func (s *stubSource) CanMove() bool            { return s.entry.Caps.Has(model.CanMove) }
func (s *stubSource) CanCopy() bool            { return s.entry.Caps.Has(model.CanCopy) }
func (s *stubSource) DescendantsLoaded() bool  { return true }
func (s *stubSource) StartFetch()              {}

func (s *stubSource) Rename(name string) error {
	s.entry.Name = name
	return nil
}

func (s *stubSource) Remove() error {
	s.removed = true
	return nil
}

func (s *stubSource) Move(parentID string) error {
	s.entry.ParentID = parentID
	return nil
}

// uiFixture drives a Model with a hand-cranked clock so every engine
// timer (animation, auto-open dwell, status expiry) is deterministic.
type uiFixture struct {
	t   *testing.T
	m   Model
	src map[string]*stubSource
	now time.Time
}

func newUIFixture(t *testing.T, entries []model.Entry, mutate func(*ModelOptions)) *uiFixture {
	t.Helper()
	fx := &uiFixture{
		t:   t,
		src: make(map[string]*stubSource),
		now: time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC),
	}
	rootSrc := &stubSource{entry: model.Entry{Kind: model.KindFolder, Role: model.RoleNormal}}
	root := folderview.NewRoot(rootSrc, folderview.DefaultPresentation())
	// single-frame opens keep row positions exact
	root.SetAnimate(false)
	if err := root.Populate(entries, fx.factory); err != nil {
		t.Fatalf("populate: %v", err)
	}

	opts := ModelOptions{Root: root, Factory: fx.factory, SourceLabel: "fixture"}
	if mutate != nil {
		mutate(&opts)
	}
	fx.m = NewModel(opts)
	fx.m.theme = TestTheme()

	updated, _ := fx.m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	fx.m = updated.(Model)
	fx.settle(3)
	return fx
}

func officeFixture(t *testing.T) *uiFixture {
	return newUIFixture(t, testutil.OfficeTree(), nil)
}

func (fx *uiFixture) factory(e model.Entry) folderview.NodeSource {
	s := &stubSource{entry: e}
	fx.src[e.ID] = s
	return s
}

// settle pumps frame ticks 50ms apart through Update.
func (fx *uiFixture) settle(frames int) {
	for i := 0; i < frames; i++ {
		fx.now = fx.now.Add(frameInterval)
		updated, _ := fx.m.Update(frameTickMsg(fx.now))
		fx.m = updated.(Model)
	}
}

// press sends key messages; names map to the tea key types the real
// terminal would produce.
func (fx *uiFixture) press(keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "delete":
			msg = tea.KeyMsg{Type: tea.KeyDelete}
		case "ctrl+c":
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		case "shift+down":
			msg = tea.KeyMsg{Type: tea.KeyShiftDown}
		case "shift+up":
			msg = tea.KeyMsg{Type: tea.KeyShiftUp}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		var updated tea.Model
		updated, cmd = fx.m.Update(msg)
		fx.m = updated.(Model)
	}
	return cmd
}

func (fx *uiFixture) currentID() string {
	if cur := fx.m.root.CurrentSelection(); cur != nil {
		return cur.ID()
	}
	return ""
}

func (fx *uiFixture) folder(id string) *folderview.Folder {
	fx.t.Helper()
	n := fx.m.root.NodeByID(id)
	if n == nil {
		fx.t.Fatalf("node %q not in tree", id)
	}
	f := n.AsFolder()
	if f == nil {
		fx.t.Fatalf("node %q is not a folder", id)
	}
	return f
}

func (fx *uiFixture) visibleIDs() []string {
	var ids []string
	fx.m.root.EachVisible(func(n folderview.Node, absY, depth int) bool {
		ids = append(ids, n.ID())
		return true
	})
	return ids
}

// openDocuments navigates to the Documents folder and opens it:
// System, Trash, Documents in visible order, so three downs land on it.
func (fx *uiFixture) openDocuments() {
	fx.press("j", "j", "j")
	if got := fx.currentID(); got != "docs" {
		fx.t.Fatalf("expected to land on docs, got %q", got)
	}
	fx.press("l")
	fx.settle(2)
}

func TestNavigationSelectsRowsInVisibleOrder(t *testing.T) {
	fx := officeFixture(t)

	if got := fx.currentID(); got != "" {
		t.Fatalf("expected no initial selection, got %q", got)
	}

	// system folders sort first, then trash, then normal folders by name
	wantDown := []string{"system", "trash", "docs", "media"}
	for _, want := range wantDown {
		fx.press("j")
		if got := fx.currentID(); got != want {
			t.Fatalf("expected %s after j, got %q", want, got)
		}
	}

	// bottom edge: j on the last row stays put
	fx.press("j")
	if got := fx.currentID(); got != "media" {
		t.Fatalf("expected media to hold at the bottom, got %q", got)
	}

	fx.press("k")
	if got := fx.currentID(); got != "docs" {
		t.Fatalf("expected docs after k, got %q", got)
	}

	fx.press("G")
	if got := fx.currentID(); got != "media" {
		t.Fatalf("expected G to jump to media, got %q", got)
	}
	fx.press("g")
	if got := fx.currentID(); got != "system" {
		t.Fatalf("expected g to jump to system, got %q", got)
	}
}

func TestSpaceTogglesAndShiftExtends(t *testing.T) {
	fx := officeFixture(t)
	fx.openDocuments()

	fx.press("j") // drafts
	fx.press("j") // meeting-notes.md
	if got := fx.currentID(); got != "memo" {
		t.Fatalf("expected memo, got %q", got)
	}

	fx.press("shift+down")
	ids := fx.m.root.SelectionIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 selected after shift+down, got %v", ids)
	}

	// space deselects the focal row
	cur := fx.m.root.CurrentSelection()
	fx.press(" ")
	if cur.Selected() {
		t.Fatalf("expected space to deselect the focal row")
	}
}

func TestEnterTogglesFolderAndDescribesItem(t *testing.T) {
	fx := officeFixture(t)

	fx.press("j", "j", "j") // docs
	fx.press("enter")
	fx.settle(2)
	if !fx.folder("docs").IsOpen() {
		t.Fatalf("expected enter to open docs")
	}

	fx.press("j", "j") // drafts, memo
	fx.press("enter")
	if !strings.Contains(fx.m.statusMsg, "meeting-notes.md") ||
		!strings.Contains(fx.m.statusMsg, "note") {
		t.Fatalf("expected item summary in status, got %q", fx.m.statusMsg)
	}

	fx.press("k", "k") // back to docs
	fx.press("enter")
	fx.settle(2)
	if fx.folder("docs").IsOpen() {
		t.Fatalf("expected enter to close docs again")
	}
}

func TestCloseAllFoldersKey(t *testing.T) {
	fx := officeFixture(t)
	fx.openDocuments()

	fx.press("tab")
	fx.settle(2)
	if fx.folder("docs").IsOpen() {
		t.Fatalf("expected tab to close docs")
	}
	if fx.m.statusMsg != "folders closed" {
		t.Fatalf("expected close-all status, got %q", fx.m.statusMsg)
	}
}

func TestFilterModeCommitAndClear(t *testing.T) {
	fx := officeFixture(t)

	fx.press("/")
	if fx.m.mode != modeFilter {
		t.Fatalf("expected filter mode after /")
	}
	fx.press("m", "e", "d")
	if got := fx.m.root.Filter().Text(); got != "med" {
		t.Fatalf("expected live filter text med, got %q", got)
	}
	fx.press("enter")
	if fx.m.mode != modeBrowse {
		t.Fatalf("expected browse mode after enter")
	}
	if got := fx.m.root.Filter().Text(); got != "med" {
		t.Fatalf("expected committed filter med, got %q", got)
	}

	// esc in browse mode clears a committed filter
	fx.press("esc")
	if fx.m.root.Filter().IsNotDefault() {
		t.Fatalf("expected esc to reset the filter")
	}
	if fx.m.statusMsg != "filter cleared" {
		t.Fatalf("expected filter cleared status, got %q", fx.m.statusMsg)
	}
}

func TestFilterEscRestoresPreviousText(t *testing.T) {
	fx := officeFixture(t)

	fx.press("/")
	fx.press("o", "l", "d")
	fx.press("enter")

	fx.press("/")
	fx.press("x")
	if got := fx.m.root.Filter().Text(); got != "oldx" {
		t.Fatalf("expected appended text oldx, got %q", got)
	}
	fx.press("esc")
	if got := fx.m.root.Filter().Text(); got != "old" {
		t.Fatalf("expected esc to restore old, got %q", got)
	}
	if fx.m.mode != modeBrowse {
		t.Fatalf("expected browse mode after esc")
	}
}

func TestFilterAutoSelectsFirstMatch(t *testing.T) {
	fx := officeFixture(t)

	fx.press("/")
	for _, r := range "sunset" {
		fx.press(string(r))
	}
	fx.settle(4)

	if got := fx.currentID(); got != "photo" {
		t.Fatalf("expected auto-select to land on photo, got %q", got)
	}
	if !fx.folder("media").IsOpen() {
		t.Fatalf("expected media to open around the match")
	}
	if got := fx.m.root.FilterStatus(); got != folderview.FilterDone {
		t.Fatalf("expected filter done, got %v", got)
	}
}

func TestRenameCommitResortsSiblings(t *testing.T) {
	fx := officeFixture(t)

	fx.press("j", "j", "j") // docs
	fx.press("r")
	if fx.m.mode != modeRename {
		t.Fatalf("expected rename mode, got %v", fx.m.mode)
	}
	if got := fx.m.renameInput.Value(); got != "Documents" {
		t.Fatalf("expected prefilled name Documents, got %q", got)
	}

	fx.m.renameInput.SetValue("Paperwork")
	fx.press("enter")
	fx.settle(2)

	if got := fx.m.root.NodeByID("docs").Name(); got != "Paperwork" {
		t.Fatalf("expected rename to apply, got %q", got)
	}
	if got := fx.src["docs"].entry.Name; got != "Paperwork" {
		t.Fatalf("expected rename to reach the source, got %q", got)
	}
	// Media now sorts before Paperwork
	want := []string{"system", "trash", "media", "docs"}
	if got := fx.visibleIDs(); !equalIDs(got, want) {
		t.Fatalf("expected resorted order %v, got %v", want, got)
	}
	if fx.m.statusMsg != "renamed to Paperwork" {
		t.Fatalf("expected rename status, got %q", fx.m.statusMsg)
	}
}

func TestRenameEscCancels(t *testing.T) {
	fx := officeFixture(t)

	fx.press("j", "j", "j")
	fx.press("r")
	fx.m.renameInput.SetValue("Scratch")
	fx.press("esc")

	if fx.m.mode != modeBrowse {
		t.Fatalf("expected browse mode after esc")
	}
	if got := fx.m.root.NodeByID("docs").Name(); got != "Documents" {
		t.Fatalf("expected name unchanged, got %q", got)
	}
	if fx.m.root.RenameTarget() != nil {
		t.Fatalf("expected no rename target after cancel")
	}
}

func TestRenameRefusedBySource(t *testing.T) {
	fx := officeFixture(t)

	fx.press("j") // system folder, CanCopy only
	fx.press("r")
	if fx.m.mode != modeBrowse {
		t.Fatalf("expected to stay in browse mode")
	}
	if !fx.m.statusIsError || !strings.Contains(fx.m.statusMsg, "cannot be renamed") {
		t.Fatalf("expected rename refusal, got %q", fx.m.statusMsg)
	}
}

func TestRenameTargetRemovedUnderneath(t *testing.T) {
	fx := officeFixture(t)
	fx.openDocuments()

	fx.press("j", "j") // drafts, memo
	fx.press("r")
	if fx.m.mode != modeRename {
		t.Fatalf("expected rename mode")
	}

	// a reload tears the row out mid-edit
	fx.m.root.DetachEntry("memo")
	fx.press("x")

	if fx.m.mode != modeBrowse {
		t.Fatalf("expected browse mode after target vanished")
	}
	if !fx.m.statusIsError || !strings.Contains(fx.m.statusMsg, "gone") {
		t.Fatalf("expected gone status, got %q", fx.m.statusMsg)
	}
}

func TestRemoveSelection(t *testing.T) {
	fx := officeFixture(t)
	fx.openDocuments()

	fx.press("j", "j", "j") // drafts, memo, report
	if got := fx.currentID(); got != "report" {
		t.Fatalf("expected report, got %q", got)
	}
	fx.press("delete")
	fx.settle(2)

	if fx.m.root.NodeByID("report") != nil {
		t.Fatalf("expected report gone from the tree")
	}
	if !fx.src["report"].removed {
		t.Fatalf("expected removal to reach the source")
	}
	if fx.m.statusMsg != "removed 1 entry" {
		t.Fatalf("expected removal status, got %q", fx.m.statusMsg)
	}
	// selection moved to the next surviving row
	if got := fx.currentID(); got != "media" {
		t.Fatalf("expected selection on media after removal, got %q", got)
	}
}

func TestRemoveRefusedForProtectedRows(t *testing.T) {
	fx := officeFixture(t)

	fx.press("j") // system
	fx.press("delete")
	if !fx.m.statusIsError || fx.m.statusMsg != "selection cannot be removed" {
		t.Fatalf("expected removal refusal, got %q", fx.m.statusMsg)
	}
	if fx.m.root.NodeByID("system") == nil {
		t.Fatalf("expected system to survive")
	}
}

func TestReadOnlyBlocksMutations(t *testing.T) {
	fx := newUIFixture(t, testutil.OfficeTree(), func(o *ModelOptions) {
		o.ReadOnly = true
	})
	fx.openDocuments()
	fx.press("j", "j") // drafts, memo

	fx.press("delete")
	if !fx.m.statusIsError || fx.m.statusMsg != "source is read-only" {
		t.Fatalf("expected read-only refusal for delete, got %q", fx.m.statusMsg)
	}

	fx.press("x")
	fx.press("k", "k") // hover drafts
	fx.press("p")
	if !fx.m.statusIsError || fx.m.statusMsg != "source is read-only" {
		t.Fatalf("expected read-only refusal for paste, got %q", fx.m.statusMsg)
	}
	if fx.m.root.NodeByID("memo").Parent().ID() != "docs" {
		t.Fatalf("expected memo to stay under docs")
	}
}

func TestMarkHoverDwellAndPaste(t *testing.T) {
	fx := officeFixture(t)
	fx.m.root.SetAutoOpenDelay(120 * time.Millisecond)
	fx.openDocuments()

	fx.press("j", "j", "j") // drafts, memo, report
	fx.press("x")
	if !fx.m.movePending || len(fx.m.markedIDs) != 1 || fx.m.markedIDs[0] != "report" {
		t.Fatalf("expected report marked, got %v", fx.m.markedIDs)
	}
	if !strings.Contains(fx.m.statusMsg, "1 marked") {
		t.Fatalf("expected mark status, got %q", fx.m.statusMsg)
	}

	fx.press("j") // media, closed
	if got := fx.currentID(); got != "media" {
		t.Fatalf("expected media, got %q", got)
	}

	// dwell on the closed folder until the auto-open fires
	fx.settle(5)
	if !fx.folder("media").IsOpen() {
		t.Fatalf("expected media auto-opened by the hover dwell")
	}

	fx.press("p")
	fx.settle(3)

	if fx.m.movePending {
		t.Fatalf("expected pending move cleared")
	}
	if got := fx.m.root.NodeByID("report").Parent().ID(); got != "media" {
		t.Fatalf("expected report under media, got %q", got)
	}
	if got := fx.src["report"].entry.ParentID; got != "media" {
		t.Fatalf("expected move to reach the source, got %q", got)
	}
	// the auto-open stack unwound and the selection followed the move
	// to the now closed destination
	if fx.folder("media").IsOpen() {
		t.Fatalf("expected media closed again after the move")
	}
	if got := fx.currentID(); got != "media" {
		t.Fatalf("expected selection on media, got %q", got)
	}
}

func TestPasteIntoOwnParentRefused(t *testing.T) {
	fx := officeFixture(t)
	fx.openDocuments()

	fx.press("j", "j") // drafts, memo
	fx.press("x")
	fx.press("p") // current row is memo, so the target is its own parent
	if !fx.m.statusIsError || !strings.Contains(fx.m.statusMsg, "cannot move there") {
		t.Fatalf("expected refusal, got %q", fx.m.statusMsg)
	}
	if !fx.m.movePending {
		t.Fatalf("expected the mark to survive a refused target")
	}

	fx.press("esc")
	if fx.m.movePending || fx.m.markedIDs != nil {
		t.Fatalf("expected esc to cancel the pending move")
	}
	if fx.m.statusMsg != "move cancelled" {
		t.Fatalf("expected cancel status, got %q", fx.m.statusMsg)
	}
}

func TestPasteWithNothingMarked(t *testing.T) {
	fx := officeFixture(t)
	fx.press("j")
	fx.press("p")
	if fx.m.statusIsError || !strings.Contains(fx.m.statusMsg, "x marks the selection") {
		t.Fatalf("expected hint status, got %q", fx.m.statusMsg)
	}
}

func TestCycleSortOrders(t *testing.T) {
	fx := officeFixture(t)

	fx.press("s")
	if got := fx.m.root.SortOrder(); got != folderview.DefaultSortOrder|folderview.SortByDate {
		t.Fatalf("expected date+name order, got %v", got)
	}
	fx.press("s")
	if got := fx.m.root.SortOrder(); got != folderview.SortByDate|folderview.SortSystemToTop {
		t.Fatalf("expected date order, got %v", got)
	}
	fx.press("s")
	if got := fx.m.root.SortOrder(); got != folderview.DefaultSortOrder {
		t.Fatalf("expected default order, got %v", got)
	}
}

func TestToggleShowAllFolders(t *testing.T) {
	fx := officeFixture(t)

	fx.press("F")
	if got := fx.m.root.Filter().ShowFolders(); got != folderview.ShowAllFolders {
		t.Fatalf("expected show-all folders, got %v", got)
	}
	fx.press("F")
	if got := fx.m.root.Filter().ShowFolders(); got != folderview.ShowNonEmptyFolders {
		t.Fatalf("expected non-empty folders, got %v", got)
	}
}

func TestTypeAheadJumpsByPrefix(t *testing.T) {
	fx := officeFixture(t)

	fx.press("m")
	if got := fx.currentID(); got != "media" {
		t.Fatalf("expected type-ahead to land on media, got %q", got)
	}
	if got := fx.m.root.TypeAheadString(); got != "m" {
		t.Fatalf("expected buffer m, got %q", got)
	}

	// a pause past the timeout starts a fresh buffer
	fx.settle(31)
	fx.press("t")
	if got := fx.currentID(); got != "trash" {
		t.Fatalf("expected fresh type-ahead to land on trash, got %q", got)
	}
}

func TestHelpAndInsightsOverlays(t *testing.T) {
	fx := officeFixture(t)

	fx.press("?")
	if !fx.m.showHelp {
		t.Fatalf("expected help overlay")
	}
	// navigation keys scroll the overlay instead of the tree
	fx.press("j")
	if got := fx.currentID(); got != "" {
		t.Fatalf("expected tree selection untouched under overlay, got %q", got)
	}
	fx.press("q")
	if fx.m.showHelp {
		t.Fatalf("expected help overlay dismissed")
	}

	fx.press("i")
	if !fx.m.showInsights {
		t.Fatalf("expected insights overlay")
	}
	fx.press("esc")
	if fx.m.showInsights {
		t.Fatalf("expected insights overlay dismissed")
	}
}

func TestStatusMessageExpires(t *testing.T) {
	fx := officeFixture(t)

	fx.press("tab")
	if fx.m.statusMsg == "" {
		t.Fatalf("expected a status message")
	}
	fx.settle(int(statusDuration/frameInterval) + 2)
	if fx.m.statusMsg != "" {
		t.Fatalf("expected status to expire, got %q", fx.m.statusMsg)
	}
}

func TestQuitSavesViewState(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), ViewStateFileName)
	fx := newUIFixture(t, testutil.OfficeTree(), func(o *ModelOptions) {
		o.StatePath = statePath
	})
	fx.openDocuments()
	fx.press("j", "j") // drafts, memo

	cmd := fx.press("q")
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}

	vs := LoadViewState(statePath)
	if !containsID(vs.OpenFolders, "docs") {
		t.Fatalf("expected docs recorded open, got %v", vs.OpenFolders)
	}
	if len(vs.Selection) != 1 || vs.Selection[0] != "memo" {
		t.Fatalf("expected memo selected in state, got %v", vs.Selection)
	}
}

func TestFrameLoopKeepsTicking(t *testing.T) {
	fx := officeFixture(t)
	fx.now = fx.now.Add(frameInterval)
	_, cmd := fx.m.Update(frameTickMsg(fx.now))
	if cmd == nil {
		t.Fatalf("expected the frame handler to schedule the next tick")
	}
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsID(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
