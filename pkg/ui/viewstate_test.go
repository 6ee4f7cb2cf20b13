package ui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/canopy/pkg/folderview"
	"github.com/vanderheijden86/canopy/pkg/model"
	"github.com/vanderheijden86/canopy/pkg/testutil"
)

func newStateRoot(t *testing.T) *folderview.Root {
	t.Helper()
	mk := func(e model.Entry) folderview.NodeSource { return &stubSource{entry: e} }
	root := folderview.NewRoot(
		&stubSource{entry: model.Entry{Kind: model.KindFolder, Role: model.RoleNormal}},
		folderview.DefaultPresentation())
	root.SetAnimate(false)
	if err := root.Populate(testutil.OfficeTree(), mk); err != nil {
		t.Fatalf("populate: %v", err)
	}
	return root
}

func TestViewStateCaptureSaveLoadApply(t *testing.T) {
	root := newStateRoot(t)
	root.NodeByID("docs").AsFolder().SetOpen(true)
	root.NodeByID("drafts").AsFolder().SetOpen(true)
	root.SetSelection(root.NodeByID("report"), false, true)

	vs := CaptureViewState(root)
	if !equalIDs(vs.OpenFolders, []string{"docs", "drafts"}) {
		t.Fatalf("expected open folders [docs drafts], got %v", vs.OpenFolders)
	}
	if !equalIDs(vs.Selection, []string{"report"}) {
		t.Fatalf("expected selection [report], got %v", vs.Selection)
	}

	path := ViewStatePath(t.TempDir())
	if err := vs.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded := LoadViewState(path)
	if loaded.Version != ViewStateVersion {
		t.Fatalf("expected version %d, got %d", ViewStateVersion, loaded.Version)
	}
	if !equalIDs(loaded.OpenFolders, vs.OpenFolders) || !equalIDs(loaded.Selection, vs.Selection) {
		t.Fatalf("round trip mismatch: %+v vs %+v", loaded, vs)
	}

	fresh := newStateRoot(t)
	loaded.ApplyTo(fresh)
	if !fresh.NodeByID("docs").AsFolder().IsOpen() {
		t.Errorf("expected docs reopened")
	}
	if !fresh.NodeByID("drafts").AsFolder().IsOpen() {
		t.Errorf("expected drafts reopened")
	}
	if cur := fresh.CurrentSelection(); cur == nil || cur.ID() != "report" {
		t.Errorf("expected report reselected, got %v", cur)
	}
}

func TestViewStateSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := ViewStatePath(dir)
	if err := (ViewState{OpenFolders: []string{"a"}}).Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("expected temp file cleaned up")
	}
	// overwrite keeps the file readable
	if err := (ViewState{OpenFolders: []string{"b"}}).Save(path); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if got := LoadViewState(path).OpenFolders; !equalIDs(got, []string{"b"}) {
		t.Fatalf("expected [b], got %v", got)
	}
}

func TestLoadViewStateMissingFile(t *testing.T) {
	vs := LoadViewState(filepath.Join(t.TempDir(), "absent.json"))
	if vs.Version != 0 || vs.OpenFolders != nil || vs.Selection != nil {
		t.Fatalf("expected zero state, got %+v", vs)
	}
}

func TestLoadViewStateCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ViewStateFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if vs := LoadViewState(path); vs.Version != 0 || vs.OpenFolders != nil {
		t.Fatalf("expected zero state for corrupt file, got %+v", vs)
	}
}

func TestLoadViewStateVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), ViewStateFileName)
	if err := os.WriteFile(path, []byte(`{"version": 99, "open_folders": ["docs"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if vs := LoadViewState(path); vs.OpenFolders != nil {
		t.Fatalf("expected future version discarded, got %+v", vs)
	}
}

func TestApplyToSkipsVanishedIDs(t *testing.T) {
	root := newStateRoot(t)
	vs := ViewState{
		Version:     ViewStateVersion,
		OpenFolders: []string{"ghost", "docs", "report"}, // report is an item, not a folder
		Selection:   []string{"phantom", "memo"},
	}
	vs.ApplyTo(root)

	if !root.NodeByID("docs").AsFolder().IsOpen() {
		t.Errorf("expected docs opened")
	}
	if cur := root.CurrentSelection(); cur == nil || cur.ID() != "memo" {
		t.Errorf("expected memo selected despite unknown ids, got %v", cur)
	}
}

func TestViewStatePathJoinsDir(t *testing.T) {
	if got := ViewStatePath("/data/inv"); got != filepath.Join("/data/inv", ViewStateFileName) {
		t.Fatalf("unexpected path %q", got)
	}
}
