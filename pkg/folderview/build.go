package folderview

import (
	"fmt"

	"github.com/vanderheijden86/canopy/pkg/debug"
	"github.com/vanderheijden86/canopy/pkg/model"
)

// SourceFactory builds the engine-facing source for one entry. The
// datasource layer supplies one backed by its store; tests supply fakes.
type SourceFactory func(model.Entry) NodeSource

// Populate mounts a batch of entries into the tree. Entries may arrive in
// any order; children are buffered until their parent mounts. Entries
// already in the tree are updated in place, so Populate doubles as a bulk
// reconcile after a full reload; a duplicate id within one batch means the
// last occurrence wins. Entries whose parent never appears are re-homed to
// the root rather than dropped.
func (r *Root) Populate(entries []model.Entry, mk SourceFactory) error {
	pending := make([]model.Entry, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("populate: %w", err)
		}
		if seen[e.ID] {
			debug.Log("populate: duplicate entry %s, last one wins", e.ID)
		}
		seen[e.ID] = true
		pending = append(pending, e)
	}
	return r.mountAll(pending, mk)
}

// ApplyChanges reconciles one source change set into the tree. Updated
// and added entries mount together with the same out-of-order buffering
// Populate uses, since an update may point at a folder that is itself
// freshly added. Ordering around removals matters twice over: an id
// both removed and re-added detaches up front so the new entry can
// mount, while every other removal runs after the mounts so a child
// that moved out of a dying folder in the same set is reparented away
// before the folder's subtree is torn down.
func (r *Root) ApplyChanges(cs model.ChangeSet, mk SourceFactory) error {
	if cs.Empty() {
		return nil
	}
	batch := make([]model.Entry, 0, len(cs.Updated)+len(cs.Added))
	batch = append(batch, cs.Updated...)
	batch = append(batch, cs.Added...)
	for _, e := range batch {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("apply changes: %w", err)
		}
	}
	returning := make(map[string]bool, len(batch))
	for _, e := range batch {
		returning[e.ID] = true
	}
	for _, id := range cs.Removed {
		if returning[id] {
			r.DetachEntry(id)
		}
	}
	if err := r.mountAll(batch, mk); err != nil {
		return err
	}
	for _, id := range cs.Removed {
		if !returning[id] {
			r.DetachEntry(id)
		}
	}
	r.FinishModelChanges()
	return nil
}

// mountAll mounts or updates entries in dependency order, buffering an
// entry until its parent folder exists. Entries whose parent never
// mounts are re-homed to the root; only a true parent cycle fails.
func (r *Root) mountAll(entries []model.Entry, mk SourceFactory) error {
	pending := append([]model.Entry(nil), entries...)
	for len(pending) > 0 {
		progressed := false
		rest := pending[:0]
		for _, e := range pending {
			switch {
			case r.parentFolderFor(e) == nil:
				rest = append(rest, e)
			case r.idIndex[e.ID] != nil:
				if err := r.UpdateEntry(e, mk); err != nil {
					return err
				}
				progressed = true
			default:
				if err := r.AttachEntry(e, mk); err != nil {
					return err
				}
				progressed = true
			}
		}
		if !progressed {
			// the waiting parents are neither mounted nor arriving later;
			// re-home those orphans to the root
			waiting := make(map[string]bool, len(rest))
			for _, e := range rest {
				waiting[e.ID] = true
			}
			rehomed := false
			for i, e := range rest {
				if !waiting[e.ParentID] {
					debug.Log("mount: %s has unknown parent %s, re-homing to root", e.ID, e.ParentID)
					rest[i].ParentID = ""
					rehomed = true
				}
			}
			if !rehomed {
				return fmt.Errorf("mount: parent cycle among %d entries (first: %s under %s)",
					len(rest), rest[0].ID, rest[0].ParentID)
			}
		}
		pending = rest
	}
	return nil
}

// parentFolderFor resolves the folder an entry mounts under. An empty or
// root ParentID means the root itself.
func (r *Root) parentFolderFor(e model.Entry) *Folder {
	if e.ParentID == "" || e.ParentID == r.Folder.id {
		return &r.Folder
	}
	n := r.idIndex[e.ParentID]
	if n == nil {
		return nil
	}
	return n.AsFolder()
}

// AttachEntry mounts a single new entry under its parent.
func (r *Root) AttachEntry(e model.Entry, mk SourceFactory) error {
	if r.idIndex[e.ID] != nil {
		return r.UpdateEntry(e, mk)
	}
	parent := r.parentFolderFor(e)
	if parent == nil {
		return fmt.Errorf("attach %s: parent %s is not mounted or not a folder", e.ID, e.ParentID)
	}
	src := mk(e)
	if e.Kind == model.KindFolder {
		f := newFolder(r, src)
		parent.addFolder(f)
		r.registerNode(f)
	} else {
		it := newItem(r, src)
		parent.addItem(it)
		r.registerNode(it)
	}
	return nil
}

// DetachEntry removes the node for id, and its whole subtree, from the
// view. Reports whether anything was removed.
func (r *Root) DetachEntry(id string) bool {
	n := r.idIndex[id]
	if n == nil || n == Node(&r.Folder) {
		return false
	}
	r.destroyNode(n)
	r.arrangeAll()
	return true
}

// UpdateEntry reconciles a changed entry: label and date edits refresh
// and re-sort in place, a changed parent remounts the subtree under the
// new folder.
func (r *Root) UpdateEntry(e model.Entry, mk SourceFactory) error {
	n := r.idIndex[e.ID]
	if n == nil {
		return r.AttachEntry(e, mk)
	}
	if n == Node(&r.Folder) {
		return nil
	}
	if (e.Kind == model.KindFolder) != n.IsFolder() {
		// the id changed kind between snapshots; remount from scratch
		r.DetachEntry(e.ID)
		return r.AttachEntry(e, mk)
	}

	b := n.base()
	b.src = mk(e)

	oldParent := n.Parent()
	newParent := r.parentFolderFor(e)
	if newParent == nil {
		return fmt.Errorf("update %s: parent %s is not mounted or not a folder", e.ID, e.ParentID)
	}

	if oldParent != newParent {
		oldParent.extractChild(n)
		switch c := n.(type) {
		case *Folder:
			newParent.addFolder(c)
		case *Item:
			newParent.addItem(c)
		}
	}

	n.refresh()
	if p := n.Parent(); p != nil {
		p.resort()
	}
	return nil
}

// FinishModelChanges runs once after a batch of attach, detach, or
// update calls: it forces the date re-sort whole-tree ordering needs and
// schedules a fresh arrangement.
func (r *Root) FinishModelChanges() {
	r.resortForModelChange()
	r.arrangeAll()
}

// CanMoveSelectionTo gates moving the current selection into dest: every
// selected subtree must be movable, dest must accept children, and a
// folder can never move into itself or its own descendants.
func (r *Root) CanMoveSelectionTo(dest *Folder) bool {
	if dest == nil || len(r.selectionList) == 0 {
		return false
	}
	for _, n := range r.selectionList {
		if !n.isMovable() {
			return false
		}
		if f := n.AsFolder(); f != nil {
			for p := dest; p != nil; p = p.parent {
				if p == f {
					return false
				}
			}
		}
		if n.Parent() == dest {
			return false
		}
	}
	return true
}

// MoveSelectionTo moves every selected subtree into dest. The gate runs
// up front so a refused batch leaves the tree untouched; after that each
// node's source is told first and the view re-parents only on success.
func (r *Root) MoveSelectionTo(dest *Folder) error {
	if len(r.selectionList) == 0 {
		return nil
	}
	if !r.CanMoveSelectionTo(dest) {
		return fmt.Errorf("cannot move the selection into %s", dest.Name())
	}
	moved := append([]Node(nil), r.selectionList...)
	for _, n := range moved {
		if err := n.Source().Move(dest.id); err != nil {
			return fmt.Errorf("move %s: %w", n.Name(), err)
		}
		n.Parent().extractChild(n)
		switch c := n.(type) {
		case *Folder:
			dest.addFolder(c)
		case *Item:
			dest.addItem(c)
		}
		n.refresh()
	}
	r.FinishModelChanges()
	r.ScrollToShowSelection()
	return nil
}
