package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/vanderheijden86/canopy/pkg/analysis"
)

// helpMarkdown is the full key reference shown by the help overlay.
const helpMarkdown = `# canopy

Browse an inventory tree. Folders sort before items; typing jumps to
the next matching row.

## Moving around

| Key | Action |
|-----|--------|
| j / ↓ | next row |
| k / ↑ | previous row |
| J / shift+↓ | extend selection down |
| K / shift+↑ | extend selection up |
| l / → | open folder, then descend |
| h / ← | ascend, then close folder |
| enter | toggle folder open/closed |
| g / home | first row |
| G / end | last row |
| tab | close every folder |

## Selection

| Key | Action |
|-----|--------|
| space | toggle selection on the current row |
| esc | cancel a pending move, else clear the filter |
| y | copy selected ids to the clipboard |

## Editing

| Key | Action |
|-----|--------|
| r / F2 | rename the current row |
| x | mark the selection for moving |
| p | move the marked rows into the current folder |
| delete | remove the selection |

While a move is pending, resting on a closed folder holds it open so
you can drop inside; folders opened this way close again afterwards.

## Filtering and sorting

| Key | Action |
|-----|--------|
| / | edit the name filter |
| s | cycle sort order |
| F | toggle showing empty folders |

Any other printable key starts type-ahead: the selection jumps to the
next row whose name begins with what you typed.

## Overlays

| Key | Action |
|-----|--------|
| ? | this help |
| i | inventory insights |
| q / ctrl+c | quit |
`

// renderMarkdown renders overlay content through glamour with the
// terminal's own background. Falls back to the raw source if the
// renderer cannot be built, which happens on exotic TERM values.
func renderMarkdown(md string, width int) string {
	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// buildInsightsMarkdown formats tree statistics as a markdown document
// for the insights overlay.
func buildInsightsMarkdown(s analysis.Stats, sourceLabel string) string {
	var b strings.Builder
	b.WriteString("# Inventory insights\n\n")
	if sourceLabel != "" {
		fmt.Fprintf(&b, "Source: `%s`\n\n", sourceLabel)
	}

	fmt.Fprintf(&b, "**%d entries** — %d folders, %d items, max depth %d\n\n",
		s.Entries, s.Folders, s.Items, s.MaxDepth)

	if s.FilterActive {
		fmt.Fprintf(&b, "Filter active: **%d** matching\n\n", s.FilteredMatches)
	}

	b.WriteString("## Children per folder\n\n")
	fmt.Fprintf(&b, "| mean | σ | p50 | p90 | max |\n|------|---|-----|-----|-----|\n")
	fmt.Fprintf(&b, "| %.1f | %.1f | %.0f | %.0f | %.0f |\n\n",
		s.ChildCounts.Mean, s.ChildCounts.StdDev, s.ChildCounts.P50, s.ChildCounts.P90, s.ChildCounts.Max)

	if len(s.ByType) > 0 {
		b.WriteString("## Items by type\n\n")
		writeCountTable(&b, s.ByType)
	}
	if len(s.ByRole) > 0 {
		b.WriteString("## Folders by role\n\n")
		writeCountTable(&b, s.ByRole)
	}

	if len(s.DepthHistogram) > 0 {
		b.WriteString("## Entries by depth\n\n")
		peak := 0
		for _, n := range s.DepthHistogram {
			if n > peak {
				peak = n
			}
		}
		for d, n := range s.DepthHistogram {
			bar := ""
			if peak > 0 {
				bar = strings.Repeat("█", n*24/peak)
			}
			fmt.Fprintf(&b, "    %2d %5d %s\n", d, n, bar)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// writeCountTable emits a two-column markdown table, largest first with
// name as the tiebreak so the output is stable.
func writeCountTable(b *strings.Builder, counts map[string]int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	b.WriteString("| | count |\n|---|-------|\n")
	for _, name := range names {
		fmt.Fprintf(b, "| %s | %d |\n", name, counts[name])
	}
	b.WriteString("\n")
}
