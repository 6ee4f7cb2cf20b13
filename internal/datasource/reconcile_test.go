package datasource

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/canopy/pkg/folderview"
	"github.com/vanderheijden86/canopy/pkg/model"
	"pgregory.net/rapid"
)

// memSource backs a tree node straight from an entry, with nothing to
// fetch and every mutation allowed.
type memSource struct{ entry model.Entry }

func (s *memSource) ID() string               { return s.entry.ID }
func (s *memSource) Name() string             { return s.entry.Name }
func (s *memSource) CreationTime() time.Time  { return s.entry.CreatedAt }
func (s *memSource) TypeCode() model.TypeCode { return s.entry.Type }
func (s *memSource) Role() model.Role         { return s.entry.Role }
func (s *memSource) CanRename() bool          { return true }
func (s *memSource) CanRemove() bool          { return true }
func (s *memSource) CanMove() bool            { return true }
func (s *memSource) CanCopy() bool            { return true }
func (s *memSource) Rename(name string) error {
	s.entry.Name = name
	return nil
}
func (s *memSource) Remove() error { return nil }
func (s *memSource) Move(parentID string) error {
	s.entry.ParentID = parentID
	return nil
}
func (s *memSource) DescendantsLoaded() bool { return true }
func (s *memSource) StartFetch()             {}

func newMemRoot() *folderview.Root {
	rootEntry := model.Entry{
		ID: "root", Kind: model.KindFolder, Name: "root",
		Role: model.RoleNormal, Caps: model.DefaultCaps,
		CreatedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	r := folderview.NewRoot(&memSource{entry: rootEntry}, folderview.Presentation{
		ItemHeight:  10,
		IndentStep:  4,
		ArrowWidth:  2,
		IconWidth:   2,
		IconPad:     1,
		TextPad:     1,
		MeasureText: func(s string) int { return len(s) },
	})
	r.SetViewport(120, 400)
	return r
}

// genSnapshot draws a random parent-closed snapshot: every referenced
// parent is itself present, the invariant real store snapshots carry.
func genSnapshot(rt *rapid.T, label string) []model.Entry {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	folderNames := []string{"Projects", "Media", "Archive", "Notes"}
	itemNames := []string{"report.pdf", "photo.png", "song.mp3", "memo.md", "setup.sh"}

	var entries []model.Entry
	parents := []string{""}
	for i := 0; i < 5; i++ {
		fid := fmt.Sprintf("f%d", i)
		if !rapid.Bool().Draw(rt, label+"-has-"+fid) {
			continue
		}
		entries = append(entries, model.Entry{
			ID:        fid,
			ParentID:  rapid.SampledFrom(parents).Draw(rt, label+"-parent-"+fid),
			Kind:      model.KindFolder,
			Name:      rapid.SampledFrom(folderNames).Draw(rt, label+"-name-"+fid),
			Role:      model.RoleNormal,
			Caps:      model.DefaultCaps,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		parents = append(parents, fid)
	}
	for i := 0; i < 10; i++ {
		iid := fmt.Sprintf("i%d", i)
		if !rapid.Bool().Draw(rt, label+"-has-"+iid) {
			continue
		}
		entries = append(entries, model.Entry{
			ID:        iid,
			ParentID:  rapid.SampledFrom(parents).Draw(rt, label+"-parent-"+iid),
			Kind:      model.KindItem,
			Name:      rapid.SampledFrom(itemNames).Draw(rt, label+"-name-"+iid),
			Type:      model.TypeNote,
			Caps:      model.DefaultCaps,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return entries
}

func describeTree(f *folderview.Folder, indent string, b *strings.Builder) {
	for _, sub := range f.ChildFolders() {
		fmt.Fprintf(b, "%s+ %s %s\n", indent, sub.ID(), sub.Name())
		describeTree(sub, indent+"  ", b)
	}
	for _, it := range f.ChildItems() {
		fmt.Fprintf(b, "%s- %s %s\n", indent, it.ID(), it.Name())
	}
}

func treeString(r *folderview.Root) string {
	var b strings.Builder
	describeTree(&r.Folder, "", &b)
	return b.String()
}

// TestReconcileMatchesRebuild checks that applying a diff between two
// random snapshots to a tree built from the first yields exactly the
// tree built from the second, renames, moves, and teardowns included.
func TestReconcileMatchesRebuild(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prev := genSnapshot(rt, "prev")
		next := genSnapshot(rt, "next")
		mk := func(e model.Entry) folderview.NodeSource { return &memSource{entry: e} }

		incremental := newMemRoot()
		if err := incremental.Populate(prev, mk); err != nil {
			rt.Fatalf("populate prev: %v", err)
		}
		cs := Diff(prev, next)
		if err := incremental.ApplyChanges(cs, mk); err != nil {
			rt.Fatalf("apply %s: %v", cs, err)
		}

		rebuilt := newMemRoot()
		if err := rebuilt.Populate(next, mk); err != nil {
			rt.Fatalf("populate next: %v", err)
		}
		rebuilt.FinishModelChanges()

		if got, want := treeString(incremental), treeString(rebuilt); got != want {
			rt.Errorf("applying %s diverged from a rebuild\nreconciled:\n%swant:\n%s", cs, got, want)
		}
	})
}
