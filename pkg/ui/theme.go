package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/canopy/pkg/config"
	"github.com/vanderheijden86/canopy/pkg/model"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals use the
// terminal's own background instead of a down-converted approximation
// that may clash with palettes like Solarized.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Shared palette, Dracula-inspired with light equivalents tuned for
// WCAG AA contrast.
var (
	ColorBg          = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}
	ColorBgHighlight = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#44475A"}
	ColorText        = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorSubtext     = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
	ColorMuted       = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}

	ColorSuccess = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}

	ColorSuccessBg = lipgloss.AdaptiveColor{Light: "#D4EDDA", Dark: "#1A3D2A"}
	ColorDangerBg  = lipgloss.AdaptiveColor{Light: "#F8D7DA", Dark: "#3D1A1A"}
)

// Theme bundles the adaptive colors and the pre-computed row styles the
// tree renderer uses. Styles are created once here instead of per frame;
// the renderer touches every visible row twenty times a second.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Folder roles
	Folder lipgloss.AdaptiveColor
	System lipgloss.AdaptiveColor
	Trash  lipgloss.AdaptiveColor

	// Item types
	Document lipgloss.AdaptiveColor
	Image    lipgloss.AdaptiveColor
	Audio    lipgloss.AdaptiveColor
	Video    lipgloss.AdaptiveColor
	Script   lipgloss.AdaptiveColor
	Archive  lipgloss.AdaptiveColor
	Note     lipgloss.AdaptiveColor

	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	Base     lipgloss.Style
	Current  lipgloss.Style // focal row of the selection
	Selected lipgloss.Style // other selected rows
	Header   lipgloss.Style

	MutedText   lipgloss.Style // counts, ages, structural ancestors
	FolderText  lipgloss.Style
	SystemText  lipgloss.Style
	TrashText   lipgloss.Style
	SubtextText lipgloss.Style
	SuccessText lipgloss.Style
	DangerText  lipgloss.Style
	PrimaryBold lipgloss.Style

	typeText map[model.TypeCode]lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive).
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},

		Folder: lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
		System: lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"},
		Trash:  lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},

		Document: lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"},
		Image:    lipgloss.AdaptiveColor{Light: "#36B37E", Dark: "#57D9A3"},
		Audio:    lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Video:    lipgloss.AdaptiveColor{Light: "#2684FF", Dark: "#4C9AFF"},
		Script:   lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#F1FA8C"},
		Archive:  lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Note:     lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
	}
	t.rebuildStyles()
	return t
}

// WithOverrides applies user color overrides from the config file. Empty
// fields keep the default; values are hex strings like "#BD93F9" and
// replace both light and dark variants.
func (t Theme) WithOverrides(o config.ThemeConfig) Theme {
	if o.Accent != "" {
		t.Primary = lipgloss.AdaptiveColor{Light: o.Accent, Dark: o.Accent}
	}
	if o.Selection != "" {
		t.Highlight = lipgloss.AdaptiveColor{Light: o.Selection, Dark: o.Selection}
	}
	if o.Folder != "" {
		t.Folder = lipgloss.AdaptiveColor{Light: o.Folder, Dark: o.Folder}
	}
	if o.Dimmed != "" {
		t.Muted = lipgloss.AdaptiveColor{Light: o.Dimmed, Dark: o.Dimmed}
	}
	t.rebuildStyles()
	return t
}

func (t *Theme) rebuildStyles() {
	r := t.Renderer

	t.Base = r.NewStyle().Foreground(ColorText)

	t.Current = r.NewStyle().
		Background(t.Highlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		Bold(true)

	t.Selected = r.NewStyle().
		Background(t.Highlight)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.FolderText = r.NewStyle().Foreground(t.Folder).Bold(true)
	t.SystemText = r.NewStyle().Foreground(t.System)
	t.TrashText = r.NewStyle().Foreground(t.Trash)
	t.SubtextText = r.NewStyle().Foreground(t.Subtext)
	t.SuccessText = r.NewStyle().Foreground(ColorSuccess)
	t.DangerText = r.NewStyle().Foreground(ColorDanger)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)

	t.typeText = make(map[model.TypeCode]lipgloss.Style, 7)
	for _, tc := range model.AllTypes.Types() {
		t.typeText[tc] = r.NewStyle().Foreground(t.TypeColor(tc))
	}
}

// TypeStyle returns the pre-computed label style for an item type.
func (t Theme) TypeStyle(tc model.TypeCode) lipgloss.Style {
	if s, ok := t.typeText[tc]; ok {
		return s
	}
	return t.SubtextText
}

// TypeColor returns the row color for an item type.
func (t Theme) TypeColor(tc model.TypeCode) lipgloss.AdaptiveColor {
	switch tc {
	case model.TypeDocument:
		return t.Document
	case model.TypeImage:
		return t.Image
	case model.TypeAudio:
		return t.Audio
	case model.TypeVideo:
		return t.Video
	case model.TypeScript:
		return t.Script
	case model.TypeArchive:
		return t.Archive
	case model.TypeNote:
		return t.Note
	default:
		return t.Subtext
	}
}

// TypeBadge returns a one-cell badge letter and its color for an item
// type, for the column before the label.
func (t Theme) TypeBadge(tc model.TypeCode) (string, lipgloss.AdaptiveColor) {
	switch tc {
	case model.TypeDocument:
		return "D", t.Document
	case model.TypeImage:
		return "I", t.Image
	case model.TypeAudio:
		return "A", t.Audio
	case model.TypeVideo:
		return "V", t.Video
	case model.TypeScript:
		return "S", t.Script
	case model.TypeArchive:
		return "Z", t.Archive
	case model.TypeNote:
		return "N", t.Note
	default:
		return "·", t.Subtext
	}
}

// RoleStyle returns the label style for a folder role.
func (t Theme) RoleStyle(role model.Role) lipgloss.Style {
	switch role {
	case model.RoleSystem:
		return t.SystemText
	case model.RoleTrash:
		return t.TrashText
	default:
		return t.FolderText
	}
}

// TestTheme returns a theme suitable for use in tests (uses a plain
// stdout renderer).
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
