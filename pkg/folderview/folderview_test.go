package folderview

import (
	"testing"
	"time"

	"github.com/vanderheijden86/canopy/pkg/model"
)

var t0 = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

// fakeSource implements NodeSource over a model.Entry, recording the
// mutations the engine asks for.
type fakeSource struct {
	entry      model.Entry
	descLoaded bool

	fetchCalls  int
	renameCalls int
	removeCalls int
	moveCalls   int
	removed     bool
	renameErr   error
	removeErr   error
	moveErr     error
}

func (s *fakeSource) ID() string               { return s.entry.ID }
func (s *fakeSource) Name() string             { return s.entry.Name }
func (s *fakeSource) CreationTime() time.Time  { return s.entry.CreatedAt }
func (s *fakeSource) TypeCode() model.TypeCode { return s.entry.Type }
func (s *fakeSource) Role() model.Role         { return s.entry.Role }
func (s *fakeSource) CanRename() bool          { return s.entry.Caps.Has(model.CanRename) }
func (s *fakeSource) CanRemove() bool          { return s.entry.Caps.Has(model.CanRemove) }
func (s *fakeSource) CanMove() bool            { return s.entry.Caps.Has(model.CanMove) }
func (s *fakeSource) CanCopy() bool            { return s.entry.Caps.Has(model.CanCopy) }
func (s *fakeSource) DescendantsLoaded() bool  { return s.descLoaded }
func (s *fakeSource) StartFetch()              { s.fetchCalls++ }

func (s *fakeSource) Rename(name string) error {
	s.renameCalls++
	if s.renameErr != nil {
		return s.renameErr
	}
	s.entry.Name = name
	return nil
}

func (s *fakeSource) Remove() error {
	s.removeCalls++
	if s.removeErr != nil {
		return s.removeErr
	}
	s.removed = true
	return nil
}

func (s *fakeSource) Move(parentID string) error {
	s.moveCalls++
	if s.moveErr != nil {
		return s.moveErr
	}
	s.entry.ParentID = parentID
	return nil
}

func folderEntry(id, parent, name string, created time.Time) model.Entry {
	return model.Entry{
		ID:        id,
		ParentID:  parent,
		Kind:      model.KindFolder,
		Name:      name,
		Role:      model.RoleNormal,
		Caps:      model.DefaultCaps,
		CreatedAt: created,
	}
}

func itemEntry(id, parent, name string, tc model.TypeCode, created time.Time) model.Entry {
	return model.Entry{
		ID:        id,
		ParentID:  parent,
		Kind:      model.KindItem,
		Name:      name,
		Type:      tc,
		Caps:      model.DefaultCaps,
		CreatedAt: created,
	}
}

// testPresentation uses small round metrics so expected geometry stays
// easy to compute by hand.
func testPresentation() Presentation {
	return Presentation{
		ItemHeight:   10,
		IndentStep:   4,
		ArrowWidth:   2,
		IconWidth:    2,
		IconPad:      1,
		TextPad:      1,
		ScrollGutter: 3,
		MeasureText:  func(s string) int { return len(s) },
	}
}

// fixtureEntries is the standard tree, deliberately listing some children
// before their parents:
//
//	System/           (system role)
//	  setup.sh
//	Trash/            (trash role, empty)
//	Documents/
//	  Drafts/
//	    notes.txt
//	  report.pdf
//	  summary.txt
//	Media/
//	  photo.png
//	  song.mp3
//	readme.md
func fixtureEntries() []model.Entry {
	system := folderEntry("system", "", "System", t0.Add(-10*time.Hour))
	system.Role = model.RoleSystem
	trash := folderEntry("trash", "", "Trash", t0.Add(-time.Hour))
	trash.Role = model.RoleTrash

	return []model.Entry{
		itemEntry("notes", "drafts", "notes.txt", model.TypeNote, t0.Add(-90*time.Minute)),
		folderEntry("docs", "", "Documents", t0.Add(-3*time.Hour)),
		itemEntry("report", "docs", "report.pdf", model.TypeDocument, t0.Add(-time.Hour)),
		itemEntry("summary", "docs", "summary.txt", model.TypeNote, t0.Add(-45*time.Minute)),
		folderEntry("drafts", "docs", "Drafts", t0.Add(-2*time.Hour)),
		folderEntry("media", "", "Media", t0.Add(-5*time.Hour)),
		itemEntry("photo", "media", "photo.png", model.TypeImage, t0.Add(-30*time.Minute)),
		itemEntry("song", "media", "song.mp3", model.TypeAudio, t0.Add(-4*time.Hour)),
		system,
		itemEntry("setup", "system", "setup.sh", model.TypeScript, t0.Add(-9*time.Hour)),
		trash,
		itemEntry("readme", "", "readme.md", model.TypeNote, t0.Add(-10*time.Minute)),
	}
}

type fixture struct {
	t   *testing.T
	r   *Root
	src map[string]*fakeSource
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		t:   t,
		src: make(map[string]*fakeSource),
		now: t0,
	}
	rootSrc := &fakeSource{
		entry:      folderEntry("root", "", "", t0.Add(-24*time.Hour)),
		descLoaded: true,
	}
	fx.src["root"] = rootSrc
	fx.r = NewRoot(rootSrc, testPresentation())
	fx.r.SetViewport(120, 200)
	if err := fx.r.Populate(fixtureEntries(), fx.factory); err != nil {
		t.Fatalf("populate: %v", err)
	}
	fx.settle(3)
	return fx
}

func (fx *fixture) factory(e model.Entry) NodeSource {
	s := &fakeSource{entry: e, descLoaded: true}
	fx.src[e.ID] = s
	return s
}

// settle runs Update frames 50ms apart, enough to finish filtering and
// let height animations reach their targets.
func (fx *fixture) settle(frames int) {
	for i := 0; i < frames; i++ {
		fx.now = fx.now.Add(50 * time.Millisecond)
		fx.r.Update(fx.now)
	}
}

func (fx *fixture) node(id string) Node {
	fx.t.Helper()
	n := fx.r.NodeByID(id)
	if n == nil {
		fx.t.Fatalf("node %q not in tree", id)
	}
	return n
}

func (fx *fixture) folder(id string) *Folder {
	fx.t.Helper()
	f := fx.node(id).AsFolder()
	if f == nil {
		fx.t.Fatalf("node %q is not a folder", id)
	}
	return f
}

// entry returns a copy of the record behind id, for building edits.
func (fx *fixture) entry(id string) model.Entry {
	fx.t.Helper()
	s, ok := fx.src[id]
	if !ok {
		fx.t.Fatalf("no source registered for %q", id)
	}
	return s.entry
}

func (fx *fixture) openAll() {
	fx.r.setOpenArrange(true, recurseDown)
	fx.settle(12)
}

func (fx *fixture) visibleIDs() []string {
	var ids []string
	fx.r.EachVisible(func(n Node, absY, depth int) bool {
		ids = append(ids, n.ID())
		return true
	})
	return ids
}

func (fx *fixture) currentID() string {
	if cur := fx.r.CurrentSelection(); cur != nil {
		return cur.ID()
	}
	return ""
}

func folderIDs(f *Folder) []string {
	var ids []string
	for _, sub := range f.ChildFolders() {
		ids = append(ids, sub.ID())
	}
	return ids
}

func itemIDs(f *Folder) []string {
	var ids []string
	for _, it := range f.ChildItems() {
		ids = append(ids, it.ID())
	}
	return ids
}

func equalStrings(a, b []string) bool {
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

// TestTreeBuild verifies the fixture mounts with children in comparator
// order even when entries arrive before their parents.
func TestTreeBuild(t *testing.T) {
	fx := newFixture(t)

	if got := fx.r.FolderCount(); got != 4 {
		t.Errorf("expected 4 top-level folders, got %d", got)
	}
	if got := fx.r.ItemCount(); got != 1 {
		t.Errorf("expected 1 top-level item, got %d", got)
	}
	want := []string{"system", "trash", "docs", "media"}
	if got := folderIDs(&fx.r.Folder); !equalStrings(got, want) {
		t.Errorf("expected folder order %v, got %v", want, got)
	}
	docs := fx.folder("docs")
	if docs.FolderCount() != 1 || docs.ItemCount() != 2 {
		t.Errorf("expected Documents to hold 1 folder and 2 items, got %d and %d",
			docs.FolderCount(), docs.ItemCount())
	}
	if got := itemIDs(docs); !equalStrings(got, []string{"report", "summary"}) {
		t.Errorf("expected docs items [report summary], got %v", got)
	}
}

// TestTreeVisibleOrder verifies paint order, absolute offsets, and depths
// once every folder is open and layout has settled.
func TestTreeVisibleOrder(t *testing.T) {
	fx := newFixture(t)
	fx.openAll()

	wantIDs := []string{
		"system", "setup", "trash", "docs", "drafts", "notes",
		"report", "summary", "media", "photo", "song", "readme",
	}
	wantDepths := []int{0, 1, 0, 0, 1, 2, 1, 1, 0, 1, 1, 0}

	i := 0
	fx.r.EachVisible(func(n Node, absY, depth int) bool {
		if i >= len(wantIDs) {
			t.Fatalf("more visible rows than the expected %d", len(wantIDs))
		}
		if n.ID() != wantIDs[i] {
			t.Errorf("row %d: expected %s, got %s", i, wantIDs[i], n.ID())
		}
		if absY != i*10 {
			t.Errorf("row %s: expected absY %d, got %d", n.ID(), i*10, absY)
		}
		if depth != wantDepths[i] {
			t.Errorf("row %s: expected depth %d, got %d", n.ID(), wantDepths[i], depth)
		}
		i++
		return true
	})
	if i != len(wantIDs) {
		t.Errorf("expected %d visible rows, got %d", len(wantIDs), i)
	}
	if got := fx.r.Rect().H; got != 120 {
		t.Errorf("expected arranged height 120, got %d", got)
	}
}

// TestTreeIndentation verifies per-level indentation in engine units.
func TestTreeIndentation(t *testing.T) {
	fx := newFixture(t)
	fx.openAll()

	cases := map[string]int{"system": 0, "setup": 4, "drafts": 4, "notes": 8}
	for id, want := range cases {
		if got := fx.node(id).Indentation(); got != want {
			t.Errorf("%s: expected indentation %d, got %d", id, want, got)
		}
	}
	if got := fx.node("setup").Depth(); got != 1 {
		t.Errorf("expected setup depth 1, got %d", got)
	}
	if got := fx.node("notes").Depth(); got != 2 {
		t.Errorf("expected notes depth 2, got %d", got)
	}
}

// TestNodeByID verifies index lookups, including the empty id resolving to
// the root folder.
func TestNodeByID(t *testing.T) {
	fx := newFixture(t)

	if got := fx.r.NodeByID(""); got != Node(&fx.r.Folder) {
		t.Errorf("expected empty id to resolve to the root folder, got %v", got)
	}
	if got := fx.node("docs").Name(); got != "Documents" {
		t.Errorf("expected Documents, got %s", got)
	}
	if got := fx.r.NodeByID("missing"); got != nil {
		t.Errorf("expected nil for unknown id, got %v", got)
	}
}

// TestDefaultPresentation verifies the standard metrics measure text at
// seven units per cell.
func TestDefaultPresentation(t *testing.T) {
	p := DefaultPresentation()
	if got := p.MeasureText("ab"); got != 14 {
		t.Errorf("expected 14 units for two cells, got %d", got)
	}
	if got := p.labelAllowance(); got != 31 {
		t.Errorf("expected label allowance 31, got %d", got)
	}
}
