// Package model defines the inventory entry records shared by data sources,
// the folder view engine, and the exporters.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes the two entry variants.
type Kind int

const (
	KindFolder Kind = iota
	KindItem
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindItem:
		return "item"
	default:
		return "unknown"
	}
}

// ParseKind converts a stored kind string back to its Kind value.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "folder":
		return KindFolder, nil
	case "item":
		return KindItem, nil
	default:
		return 0, fmt.Errorf("unknown entry kind %q", s)
	}
}

// TypeCode identifies an item's payload type. Codes are small integers so
// they can be combined into a TypeMask for filtering.
type TypeCode int

const (
	TypeDocument TypeCode = iota
	TypeImage
	TypeAudio
	TypeVideo
	TypeScript
	TypeArchive
	TypeNote

	typeCodeCount
)

func (t TypeCode) String() string {
	switch t {
	case TypeDocument:
		return "document"
	case TypeImage:
		return "image"
	case TypeAudio:
		return "audio"
	case TypeVideo:
		return "video"
	case TypeScript:
		return "script"
	case TypeArchive:
		return "archive"
	case TypeNote:
		return "note"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the defined type codes.
func (t TypeCode) Valid() bool {
	return t >= 0 && t < typeCodeCount
}

// ParseTypeCode converts a stored type string back to its TypeCode value.
func ParseTypeCode(s string) (TypeCode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "document":
		return TypeDocument, nil
	case "image":
		return TypeImage, nil
	case "audio":
		return TypeAudio, nil
	case "video":
		return TypeVideo, nil
	case "script":
		return TypeScript, nil
	case "archive":
		return TypeArchive, nil
	case "note":
		return TypeNote, nil
	default:
		return 0, fmt.Errorf("unknown type code %q", s)
	}
}

// TypeMask is a bitmask over TypeCodes used by the filter.
type TypeMask uint32

// AllTypes matches every defined type code.
const AllTypes TypeMask = 1<<typeCodeCount - 1

// MaskFor returns the mask bit for a single type code.
func MaskFor(t TypeCode) TypeMask {
	if !t.Valid() {
		return 0
	}
	return 1 << uint(t)
}

// Has reports whether the mask includes the given type code.
func (m TypeMask) Has(t TypeCode) bool {
	return m&MaskFor(t) != 0
}

// Types returns the type codes included in the mask, in code order.
func (m TypeMask) Types() []TypeCode {
	var out []TypeCode
	for t := TypeCode(0); t < typeCodeCount; t++ {
		if m.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Role classifies folders for sort grouping. Items always carry RoleNone.
type Role int

const (
	RoleNone Role = iota
	RoleNormal
	RoleSystem // pinned above normal folders under system-to-top sort
	RoleTrash  // pinned below under date sort
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return ""
	case RoleNormal:
		return "normal"
	case RoleSystem:
		return "system"
	case RoleTrash:
		return "trash"
	default:
		return "unknown"
	}
}

// ParseRole converts a stored role string back to its Role value. The empty
// string maps to RoleNone.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return RoleNone, nil
	case "normal":
		return RoleNormal, nil
	case "system":
		return RoleSystem, nil
	case "trash":
		return RoleTrash, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// CapFlags declares which mutations an entry permits.
type CapFlags uint8

const (
	CanRename CapFlags = 1 << iota
	CanRemove
	CanMove
	CanCopy

	// DefaultCaps is the full capability set carried by ordinary entries.
	DefaultCaps = CanRename | CanRemove | CanMove | CanCopy
)

// Has reports whether all bits of want are present.
func (c CapFlags) Has(want CapFlags) bool {
	return c&want == want
}

// Entry is one inventory record. A folder entry carries a Role and no
// TypeCode; an item entry carries a TypeCode and no Role.
type Entry struct {
	ID        string
	ParentID  string // empty means child of the root
	Kind      Kind
	Name      string
	Type      TypeCode
	Role      Role
	Caps      CapFlags
	CreatedAt time.Time
}

// IsFolder reports whether the entry is a folder.
func (e Entry) IsFolder() bool {
	return e.Kind == KindFolder
}

// Validate checks structural consistency of a single entry.
func (e Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entry has empty id")
	}
	if e.Name == "" {
		return fmt.Errorf("entry %s has empty name", e.ID)
	}
	if e.ID == e.ParentID {
		return fmt.Errorf("entry %s is its own parent", e.ID)
	}
	switch e.Kind {
	case KindFolder:
		if e.Role == RoleNone {
			return fmt.Errorf("folder %s has no role", e.ID)
		}
	case KindItem:
		if !e.Type.Valid() {
			return fmt.Errorf("item %s has invalid type code %d", e.ID, e.Type)
		}
		if e.Role != RoleNone {
			return fmt.Errorf("item %s carries folder role %q", e.ID, e.Role)
		}
	default:
		return fmt.Errorf("entry %s has unknown kind %d", e.ID, e.Kind)
	}
	return nil
}
