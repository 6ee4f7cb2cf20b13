package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/canopy/pkg/folderview"
	"github.com/vanderheijden86/canopy/pkg/metrics"
)

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	done := metrics.Timer(metrics.UIRender)
	defer done()

	var body string
	if m.showHelp || m.showInsights {
		body = m.overlay.View()
	} else {
		body = m.renderTree()
	}

	finalStyle := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		MaxHeight(m.height)

	return finalStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(), body, m.renderFooter()))
}

// renderHeader is the one-line top bar: app name, source, and mode
// badges.
func (m Model) renderHeader() string {
	t := m.theme

	parts := []string{t.Header.Render("canopy")}
	if m.sourceLabel != "" {
		parts = append(parts, t.SubtextText.Render(m.sourceLabel))
	}
	if m.readOnly {
		parts = append(parts, t.DangerText.Render("read-only"))
	}
	switch {
	case m.watcher == nil:
		parts = append(parts, t.MutedText.Render("watch off"))
	case m.watcher.IsPolling():
		parts = append(parts, t.MutedText.Render("polling"))
	default:
		parts = append(parts, t.MutedText.Render("watching"))
	}
	parts = append(parts, t.MutedText.Render("sort:"+m.sortLabel()))

	line := strings.Join(parts, " ")
	if w := lipgloss.Width(line); w < m.width {
		line += strings.Repeat(" ", m.width-w)
	}
	return line
}

func (m Model) sortLabel() string {
	switch m.root.SortOrder() {
	case folderview.DefaultSortOrder:
		return "name"
	case folderview.DefaultSortOrder | folderview.SortByDate:
		return "date+name"
	default:
		return "date"
	}
}

// renderTree maps the engine's arranged rows onto terminal lines. A row
// lands at (absY - scrollTop) / ItemHeight; rows mid-animation can
// round onto an occupied line, in which case the later row wins for
// that frame.
func (m Model) renderTree() string {
	pres := m.root.Presentation()
	rows := make([]string, m.bodyHeight())
	top := m.root.ScrollTop()

	m.root.EachVisible(func(n folderview.Node, absY, depth int) bool {
		row := (absY - top) / pres.ItemHeight
		if row >= 0 && row < len(rows) {
			rows[row] = m.renderNode(n, depth)
		}
		return true
	})

	if m.root.FilterStatus() == folderview.FilterNoMatches {
		msg := m.theme.MutedText.Render("  no matches — esc clears the filter")
		if len(rows) > 0 && rows[0] == "" {
			rows[0] = msg
		}
	}
	return strings.Join(rows, "\n")
}

// renderNode draws one tree row.
func (m Model) renderNode(n folderview.Node, depth int) string {
	t := m.theme
	indent := strings.Repeat("  ", depth)

	var marker, label, suffix string
	var markerStyle, labelStyle lipgloss.Style

	label = n.Name()
	if f := n.AsFolder(); f != nil {
		if f.IsOpen() {
			marker = "▾ "
		} else {
			marker = "▸ "
		}
		markerStyle = t.SubtextText
		labelStyle = t.RoleStyle(n.Source().Role())
		suffix = m.folderSuffix(f)
	} else {
		tc := n.Source().TypeCode()
		badge, _ := t.TypeBadge(tc)
		marker = badge + " "
		markerStyle = t.TypeStyle(tc)
		labelStyle = t.Base
	}

	avail := m.width - 1 - lipgloss.Width(indent) - lipgloss.Width(marker) - lipgloss.Width(suffix)
	label = truncate(label, avail)

	// The focal and selected rows render plain under a row-wide style;
	// per-segment colors would fight the background.
	if n.IsCurSelection() {
		return t.Current.Render(padRight(indent+marker+label+suffix, m.width-1))
	}
	if n.Selected() {
		return t.Selected.Render(padRight(indent+marker+label+suffix, m.width))
	}
	if m.root.Filter().IsNotDefault() && !n.Filtered() {
		// visible only as structure around matches
		return t.MutedText.Render(indent + marker + label + suffix)
	}
	return indent + markerStyle.Render(marker) + labelStyle.Render(label) + t.MutedText.Render(suffix)
}

// folderSuffix decorates a folder label with child counts, load state,
// hidden-selection markers, and the move hover dwell.
func (m Model) folderSuffix(f *folderview.Folder) string {
	var b strings.Builder
	open := f.IsOpen()

	if open && !f.Source().DescendantsLoaded() {
		b.WriteString(" …")
	}
	if !open {
		if total := f.FolderCount() + f.ItemCount(); total > 0 {
			fmt.Fprintf(&b, " (%s)", formatCount(f.FolderCount(), f.ItemCount()))
		}
		if k := f.NumSelectedDescendants(); k > 0 {
			fmt.Fprintf(&b, " •%d", k)
		}
		if m.movePending && m.root.CurrentSelection() == folderview.Node(f) {
			switch p := m.root.AutoOpenProgress(m.now); {
			case p > 0.66:
				b.WriteString(" ···")
			case p > 0.33:
				b.WriteString(" ··")
			case p > 0:
				b.WriteString(" ·")
			}
		}
	}
	return b.String()
}

// renderFooter is the bottom line: a transient status message when one
// is up, otherwise the active input or the shortcut hints.
func (m Model) renderFooter() string {
	t := m.theme

	if m.statusMsg != "" {
		var msgStyle lipgloss.Style
		prefix := "✓ "
		if m.statusIsError {
			prefix = "✗ "
			msgStyle = t.Renderer.NewStyle().
				Background(ColorDangerBg).Foreground(ColorDanger).Bold(true).Padding(0, 1)
		} else {
			msgStyle = t.Renderer.NewStyle().
				Background(ColorSuccessBg).Foreground(ColorSuccess).Bold(true).Padding(0, 1)
		}
		return fitLine(msgStyle.Render(prefix+m.statusMsg), m.width)
	}

	switch m.mode {
	case modeFilter:
		return fitLine(m.filterInput.View()+"  "+m.filterStateLabel(), m.width)
	case modeRename:
		return fitLine(m.renameInput.View(), m.width)
	}

	type hint struct {
		key   string
		label string
	}
	var hints []hint
	switch {
	case m.showHelp, m.showInsights:
		hints = []hint{{"j/k", "scroll"}, {"q", "close"}}
	case m.movePending:
		hints = []hint{
			{"j/k", "nav"},
			{"p", "move here"},
			{"esc", "cancel"},
		}
	default:
		hints = []hint{
			{"j/k", "nav"},
			{"space", "select"},
			{"/", "filter"},
			{"r", "rename"},
			{"x/p", "move"},
			{"s", "sort"},
			{"?", "help"},
			{"q", "quit"},
		}
	}

	keyStyle := t.Renderer.NewStyle().Foreground(ColorMuted)
	labelStyle := t.Renderer.NewStyle().Foreground(ColorText)

	var parts []string
	if buf := m.root.TypeAheadString(); buf != "" {
		parts = append(parts, t.PrimaryBold.Render("» "+buf))
	}
	if sel := len(m.root.Selection()); sel > 1 {
		parts = append(parts, t.SuccessText.Render(fmt.Sprintf("%d selected", sel)))
	}
	if m.root.Filter().IsNotDefault() {
		parts = append(parts, t.PrimaryBold.Render("/"+m.root.Filter().Text()))
		if fs := m.filterStateLabel(); fs != "" {
			parts = append(parts, fs)
		}
	}
	for _, h := range hints {
		parts = append(parts, keyStyle.Render(h.key)+":"+labelStyle.Render(h.label))
	}
	return fitLine(" "+strings.Join(parts, "  "), m.width)
}

// filterStateLabel describes where the incremental filter pass stands.
func (m Model) filterStateLabel() string {
	switch m.root.FilterStatus() {
	case folderview.FilterInProgress:
		return m.theme.MutedText.Render("filtering…")
	case folderview.FilterNoMatches:
		return m.theme.DangerText.Render("no matches")
	default:
		return ""
	}
}

// fitLine pads or leaves a rendered line to exactly width cells.
func fitLine(line string, width int) string {
	if w := lipgloss.Width(line); w < width {
		line += strings.Repeat(" ", width-w)
	}
	return line
}
