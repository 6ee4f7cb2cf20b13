package testutil

import (
	"time"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// Empty returns an empty entry slice for edge case testing.
func Empty() []model.Entry {
	return []model.Entry{}
}

// Single returns a single root item.
func Single() []model.Entry {
	return []model.Entry{{
		ID:        "single",
		Kind:      model.KindItem,
		Name:      "single.pdf",
		Type:      model.TypeDocument,
		Caps:      model.DefaultCaps,
		CreatedAt: officeBase,
	}}
}

var officeBase = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

// OfficeTree returns a small hand-built inventory covering every entry
// variant: normal, system and trash folders, one nested folder, and one
// item of each type code. Ids and names are stable so golden tests can
// rely on them.
func OfficeTree() []model.Entry {
	at := func(i int) time.Time { return officeBase.Add(time.Duration(i) * time.Minute) }
	return []model.Entry{
		{ID: "docs", Kind: model.KindFolder, Name: "Documents",
			Role: model.RoleNormal, Caps: model.DefaultCaps, CreatedAt: at(0)},
		{ID: "media", Kind: model.KindFolder, Name: "Media",
			Role: model.RoleNormal, Caps: model.DefaultCaps, CreatedAt: at(1)},
		{ID: "system", Kind: model.KindFolder, Name: "System",
			Role: model.RoleSystem, Caps: model.CanCopy, CreatedAt: at(2)},
		{ID: "trash", Kind: model.KindFolder, Name: "Trash",
			Role: model.RoleTrash, Caps: model.CanCopy, CreatedAt: at(3)},
		{ID: "drafts", ParentID: "docs", Kind: model.KindFolder, Name: "Drafts",
			Role: model.RoleNormal, Caps: model.DefaultCaps, CreatedAt: at(4)},
		{ID: "report", ParentID: "docs", Kind: model.KindItem, Name: "quarterly.pdf",
			Type: model.TypeDocument, Caps: model.DefaultCaps, CreatedAt: at(5)},
		{ID: "memo", ParentID: "docs", Kind: model.KindItem, Name: "meeting-notes.md",
			Type: model.TypeNote, Caps: model.DefaultCaps, CreatedAt: at(6)},
		{ID: "bundle", ParentID: "drafts", Kind: model.KindItem, Name: "old-drafts.zip",
			Type: model.TypeArchive, Caps: model.DefaultCaps, CreatedAt: at(7)},
		{ID: "photo", ParentID: "media", Kind: model.KindItem, Name: "sunset.png",
			Type: model.TypeImage, Caps: model.DefaultCaps, CreatedAt: at(8)},
		{ID: "track", ParentID: "media", Kind: model.KindItem, Name: "ambient.mp3",
			Type: model.TypeAudio, Caps: model.DefaultCaps, CreatedAt: at(9)},
		{ID: "clip", ParentID: "media", Kind: model.KindItem, Name: "demo.mp4",
			Type: model.TypeVideo, Caps: model.DefaultCaps, CreatedAt: at(10)},
		{ID: "setup", ParentID: "system", Kind: model.KindItem, Name: "install.sh",
			Type: model.TypeScript, Caps: model.CanCopy, CreatedAt: at(11)},
	}
}
