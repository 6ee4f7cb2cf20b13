package ui

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/canopy/pkg/debug"
	"github.com/vanderheijden86/canopy/pkg/folderview"
)

// ViewStateVersion is bumped when the on-disk shape changes; older or
// unknown versions are discarded rather than migrated.
const ViewStateVersion = 1

// ViewStateFileName is the state file kept inside the inventory
// directory, next to the database it describes.
const ViewStateFileName = "view-state.json"

// ViewState is the persisted per-inventory browse state: which folders
// were open, what was selected, and the scroll offset. IDs that no
// longer resolve when the state is applied are ignored, so a state file
// can always be applied to a tree that has drifted since it was saved.
type ViewState struct {
	Version     int      `json:"version"`
	OpenFolders []string `json:"open_folders,omitempty"`
	Selection   []string `json:"selection,omitempty"`
	ScrollTop   int      `json:"scroll_top,omitempty"`
}

// ViewStatePath returns the state file path for an inventory directory.
func ViewStatePath(inventoryDir string) string {
	return filepath.Join(inventoryDir, ViewStateFileName)
}

// LoadViewState reads a state file. A missing, unreadable, corrupt, or
// version-mismatched file yields the zero state; browsing must never
// fail because of stale UI state.
func LoadViewState(path string) ViewState {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			debug.Log("view state %s: %v", path, err)
		}
		return ViewState{}
	}
	var vs ViewState
	if err := json.Unmarshal(data, &vs); err != nil {
		debug.Log("view state %s: %v, starting fresh", path, err)
		return ViewState{}
	}
	if vs.Version != ViewStateVersion {
		debug.Log("view state %s: version %d, want %d, starting fresh", path, vs.Version, ViewStateVersion)
		return ViewState{}
	}
	return vs
}

// Save writes the state atomically via a temp file rename.
func (vs ViewState) Save(path string) error {
	vs.Version = ViewStateVersion
	data, err := json.MarshalIndent(vs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode view state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write view state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace view state: %w", err)
	}
	return nil
}

// CaptureViewState records the tree's open folders, selection, and
// scroll offset. Open flags inside closed ancestors are kept too, so
// reopening a parent later finds its children as they were left.
func CaptureViewState(root *folderview.Root) ViewState {
	vs := ViewState{Version: ViewStateVersion, ScrollTop: root.ScrollTop()}
	collectOpenIDs(&root.Folder, &vs.OpenFolders)
	vs.Selection = root.SelectionIDs()
	return vs
}

func collectOpenIDs(f *folderview.Folder, out *[]string) {
	for _, sub := range f.ChildFolders() {
		if sub.IsOpen() {
			*out = append(*out, sub.ID())
		}
		collectOpenIDs(sub, out)
	}
}

// ApplyTo restores the captured state onto a freshly populated tree.
// Unknown ids are skipped; opening a lazily loaded folder starts its
// fetch exactly as a user opening it would.
func (vs ViewState) ApplyTo(root *folderview.Root) {
	for _, id := range vs.OpenFolders {
		if f := folderAt(root, id); f != nil {
			f.SetOpen(true)
		}
	}
	first := true
	for _, id := range vs.Selection {
		n := root.NodeByID(id)
		if n == nil {
			continue
		}
		if first {
			root.SetSelection(n, false, false)
			first = false
		} else {
			root.ChangeSelection(n, true)
		}
	}
	if !first {
		root.ScrollToShowSelection()
	}
}

func folderAt(root *folderview.Root, id string) *folderview.Folder {
	n := root.NodeByID(id)
	if n == nil {
		return nil
	}
	return n.AsFolder()
}
