package datasource

import (
	"time"

	"github.com/vanderheijden86/canopy/pkg/folderview"
	"github.com/vanderheijden86/canopy/pkg/model"
)

// SourceFactory returns a folderview factory whose node sources answer
// from the store and schedule child loads on the fetcher. The fetcher
// may be nil for fully loaded stores.
func SourceFactory(store Store, fetcher *Fetcher) folderview.SourceFactory {
	return func(e model.Entry) folderview.NodeSource {
		return &entrySource{store: store, fetcher: fetcher, entry: e}
	}
}

// entrySource adapts one inventory record to the engine's NodeSource.
// Capability answers fold in the store's writability, so a read-only
// export refuses mutations at the gate instead of failing on commit.
type entrySource struct {
	store   Store
	fetcher *Fetcher
	entry   model.Entry
}

func (s *entrySource) ID() string               { return s.entry.ID }
func (s *entrySource) Name() string             { return s.entry.Name }
func (s *entrySource) CreationTime() time.Time  { return s.entry.CreatedAt }
func (s *entrySource) TypeCode() model.TypeCode { return s.entry.Type }
func (s *entrySource) Role() model.Role         { return s.entry.Role }

func (s *entrySource) CanRename() bool { return s.writable() && s.entry.Caps.Has(model.CanRename) }
func (s *entrySource) CanRemove() bool { return s.writable() && s.entry.Caps.Has(model.CanRemove) }
func (s *entrySource) CanMove() bool   { return s.writable() && s.entry.Caps.Has(model.CanMove) }
func (s *entrySource) CanCopy() bool   { return s.entry.Caps.Has(model.CanCopy) }

func (s *entrySource) writable() bool { return !s.store.ReadOnly() }

func (s *entrySource) Rename(name string) error {
	if err := s.store.RenameEntry(s.entry.ID, name); err != nil {
		return err
	}
	s.entry.Name = name
	return nil
}

func (s *entrySource) Remove() error {
	return s.store.RemoveEntry(s.entry.ID)
}

func (s *entrySource) Move(parentID string) error {
	if err := s.store.MoveEntry(s.entry.ID, parentID); err != nil {
		return err
	}
	s.entry.ParentID = parentID
	return nil
}

func (s *entrySource) DescendantsLoaded() bool {
	if s.entry.Kind != model.KindFolder {
		return true
	}
	return s.store.ChildrenLoaded(s.entry.ID)
}

func (s *entrySource) StartFetch() {
	if s.fetcher != nil {
		s.fetcher.Request(s.entry.ID)
	}
}
