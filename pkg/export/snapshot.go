// Package export renders the arranged inventory tree to static images
// and machine-readable dumps. Exporters consume the engine's current
// geometry verbatim: whatever Root.Update last arranged is what gets
// drawn, dimmed context rows and animation mid-states included.
package export

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/canopy/pkg/analysis"
	"github.com/vanderheijden86/canopy/pkg/folderview"
	"github.com/vanderheijden86/canopy/pkg/metrics"
	"github.com/vanderheijden86/canopy/pkg/model"
)

// SnapshotOptions controls tree snapshot export behaviour.
type SnapshotOptions struct {
	Path   string // Output path; format inferred from extension when Format empty
	Format string // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title  string // Optional title rendered in the summary block
	Source string // Data source label for provenance

	// IncludeHidden keeps rows the active filter only shows as dimmed
	// context (folders that fail the filter themselves but contain
	// matches). When false those rows are skipped; their arranged
	// positions are kept, so gaps stay where the engine placed them.
	IncludeHidden bool

	Root  *folderview.Root
	Stats *analysis.Stats // Computed from Root when nil
}

// SaveTreeSnapshot renders the currently arranged tree (SVG or PNG) with
// a summary block and a role/type legend. The caller is responsible for
// having driven Root.Update far enough that the geometry is settled.
func SaveTreeSnapshot(opts SnapshotOptions) error {
	if opts.Root == nil {
		return fmt.Errorf("no tree to export")
	}
	defer metrics.Timer(metrics.SnapshotExport)()

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg" // safe default
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path = opts.Path + ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	layout := buildTreeLayout(opts)

	switch format {
	case "svg":
		return renderTreeSVG(opts, layout)
	case "png":
		return renderTreePNG(opts, layout)
	default:
		return fmt.Errorf("unhandled format %q", format)
	}
}

// --- layout computation ----------------------------------------------------

type treeRow struct {
	ID      string
	Label   string
	Badge   string // one-letter type badge, items only
	Suffix  string // child counts, folders only
	X, Y    float64
	W, H    float64
	Folder  bool
	Open    bool
	Role    model.Role
	Seld    bool
	Current bool
	Dimmed  bool
}

type treeLayout struct {
	Rows    []treeRow
	Width   int
	Height  int
	Header  float64
	Summary treeSummary
}

type treeSummary struct {
	Title      string
	Source     string
	Entries    string
	FilterLine string
}

func buildTreeLayout(opts SnapshotOptions) treeLayout {
	const (
		padding      = 24.0
		headerHeight = 96.0
		legendWidth  = 170.0
	)

	root := opts.Root
	pres := root.Presentation()
	filterActive := root.Filter().IsNotDefault()

	rowH := float64(pres.ItemHeight)
	treeTop := padding + headerHeight

	var rows []treeRow
	maxRight := 0.0
	maxBottom := 0.0
	root.EachVisible(func(n folderview.Node, absY, depth int) bool {
		dimmed := filterActive && !n.Filtered()
		if dimmed && !opts.IncludeHidden {
			return true
		}
		r := treeRow{
			ID:      n.ID(),
			Label:   clip(n.Name(), 60),
			X:       padding + float64(n.Indentation()),
			Y:       treeTop + float64(absY),
			W:       float64(n.Rect().W - n.Indentation()),
			H:       rowH - 2,
			Seld:    n.Selected(),
			Current: n.IsCurSelection(),
			Dimmed:  dimmed,
		}
		if f := n.AsFolder(); f != nil {
			r.Folder = true
			r.Open = f.IsOpen()
			r.Role = n.Source().Role()
			r.Suffix = fmt.Sprintf("(%d)", f.FolderCount()+f.ItemCount())
		} else {
			r.Badge = typeBadge(n.Source().TypeCode())
		}
		rows = append(rows, r)
		if right := r.X + r.W; right > maxRight {
			maxRight = right
		}
		if bottom := r.Y + rowH; bottom > maxBottom {
			maxBottom = bottom
		}
		return true
	})

	width := int(math.Ceil(maxRight + padding))
	if floor := int(padding*2 + legendWidth + 360); width < floor {
		width = floor
	}
	if width < 640 {
		width = 640
	}
	height := int(math.Ceil(maxBottom + padding))
	if floor := int(treeTop + padding); height < floor {
		height = floor
	}
	if height < 360 {
		height = 360
	}

	stats := opts.Stats
	if stats == nil {
		s := analysis.Compute(root)
		stats = &s
	}

	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = "Inventory Snapshot"
	}
	source := opts.Source
	if strings.TrimSpace(source) == "" {
		source = "unknown"
	}

	filterLine := "filter: none"
	if filterActive {
		filterLine = fmt.Sprintf("filter: %q (%d matches)", root.Filter().Text(), stats.FilteredMatches)
		if root.FilterStatus() == folderview.FilterInProgress {
			filterLine += " [in progress]"
		}
	}
	if sel := len(root.Selection()); sel > 0 {
		filterLine += fmt.Sprintf("  selected: %d", sel)
	}

	return treeLayout{
		Rows:   rows,
		Width:  width,
		Height: height,
		Header: headerHeight,
		Summary: treeSummary{
			Title:      title,
			Source:     "source: " + source,
			Entries:    fmt.Sprintf("entries: %d (%d folders, %d items)", stats.Entries, stats.Folders, stats.Items),
			FilterLine: filterLine,
		},
	}
}

func typeBadge(tc model.TypeCode) string {
	switch tc {
	case model.TypeDocument:
		return "D"
	case model.TypeImage:
		return "I"
	case model.TypeAudio:
		return "A"
	case model.TypeVideo:
		return "V"
	case model.TypeScript:
		return "S"
	case model.TypeArchive:
		return "Z"
	case model.TypeNote:
		return "N"
	default:
		return "?"
	}
}

// --- rendering -------------------------------------------------------------

var (
	colorNormalFolder = color.RGBA{0xff, 0xf3, 0xe0, 0xff}
	colorSystemFolder = color.RGBA{0xe3, 0xf2, 0xfd, 0xff}
	colorTrashFolder  = color.RGBA{0xef, 0xeb, 0xe9, 0xff}
	colorItem         = color.RGBA{0xf5, 0xf5, 0xf5, 0xff}
	colorSelection    = color.RGBA{0x1a, 0x73, 0xe8, 0xff}
	colorStroke       = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorText         = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle       = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop     = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG     = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorLegendBG     = color.RGBA{0xee, 0xee, 0xee, 0xff}
)

func rowFill(r treeRow) color.RGBA {
	if !r.Folder {
		return colorItem
	}
	switch r.Role {
	case model.RoleSystem:
		return colorSystemFolder
	case model.RoleTrash:
		return colorTrashFolder
	default:
		return colorNormalFolder
	}
}

func renderTreeSVG(opts SnapshotOptions, layout treeLayout) error {
	file, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	return renderTreeSVGToWriter(file, layout)
}

func renderTreeSVGToWriter(w io.Writer, layout treeLayout) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, layout.Width-32, int(layout.Header-16), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))

	drawSummarySVG(canvas, layout)
	drawLegendSVG(canvas, layout)

	for _, r := range layout.Rows {
		x := int(r.X)
		y := int(r.Y)
		w := int(r.W)
		h := int(r.H)

		style := fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(rowFill(r)), css(colorStroke))
		if r.Seld {
			sw := 2.0
			if r.Current {
				sw = 3.0
			}
			style = fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%.0f", css(rowFill(r)), css(colorSelection), sw)
		}
		if r.Dimmed {
			style += ";fill-opacity:0.45"
		}
		canvas.Roundrect(x, y, w, h, 4, 4, style)

		tx := x + 8
		if r.Folder {
			drawDisclosureSVG(canvas, tx, y+h/2, r.Open)
			tx += 14
		} else if r.Badge != "" {
			canvas.Text(tx, y+h/2+4, r.Badge, fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace;font-weight:bold", css(colorSubtle)))
			tx += 14
		}
		canvas.Text(tx, y+h/2+4, r.Label, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorText)))
		if r.Suffix != "" {
			canvas.Text(tx+8+7*len(r.Label), y+h/2+4, r.Suffix, fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
		}
	}

	canvas.End()
	return nil
}

func drawDisclosureSVG(canvas *svg.SVG, x, cy int, open bool) {
	if open {
		canvas.Polygon(
			[]int{x, x + 8, x + 4},
			[]int{cy - 2, cy - 2, cy + 4},
			fmt.Sprintf("fill:%s", css(colorSubtle)),
		)
	} else {
		canvas.Polygon(
			[]int{x, x + 6, x},
			[]int{cy - 4, cy, cy + 4},
			fmt.Sprintf("fill:%s", css(colorSubtle)),
		)
	}
}

func drawSummarySVG(canvas *svg.SVG, layout treeLayout) {
	canvas.Text(32, 42, layout.Summary.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(32, 62, layout.Summary.Source, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))
	canvas.Text(32, 80, layout.Summary.Entries, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))
	canvas.Text(32, 98, layout.Summary.FilterLine, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))
}

func drawLegendSVG(canvas *svg.SVG, layout treeLayout) {
	boxW := 170
	boxH := 84
	x := layout.Width - boxW - 20
	y := 22
	canvas.Roundrect(x, y, boxW, boxH, 10, 10, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(colorLegendBG), css(colorStroke)))
	drawLegendRowSVG(canvas, x+12, y+18, colorNormalFolder, "Folder")
	drawLegendRowSVG(canvas, x+12, y+34, colorSystemFolder, "System folder")
	drawLegendRowSVG(canvas, x+12, y+50, colorTrashFolder, "Trash folder")
	drawLegendRowSVG(canvas, x+12, y+66, colorItem, "Item (D/I/A/V/S/Z/N)")
}

func drawLegendRowSVG(canvas *svg.SVG, x, y int, c color.RGBA, label string) {
	canvas.Roundrect(x, y-8, 14, 14, 3, 3, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(c), css(colorStroke)))
	canvas.Text(x+20, y+3, label, fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
}

func renderTreePNG(opts SnapshotOptions, layout treeLayout) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(layout.Width)-32, layout.Header-16, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)

	drawSummaryPNG(dc, layout)
	drawLegendPNG(dc, layout)

	for _, r := range layout.Rows {
		fill := rowFill(r)
		if r.Dimmed {
			fill = washOut(fill)
		}
		dc.SetColor(fill)
		dc.DrawRoundedRectangle(r.X, r.Y, r.W, r.H, 4)
		dc.Fill()

		stroke := colorStroke
		lw := 1.0
		if r.Seld {
			stroke = colorSelection
			lw = 2.0
			if r.Current {
				lw = 3.0
			}
		}
		dc.SetColor(stroke)
		dc.SetLineWidth(lw)
		dc.DrawRoundedRectangle(r.X, r.Y, r.W, r.H, 4)
		dc.Stroke()

		tx := r.X + 8
		cy := r.Y + r.H/2
		if r.Folder {
			drawDisclosurePNG(dc, tx, cy, r.Open)
			tx += 14
		} else if r.Badge != "" {
			dc.SetColor(colorSubtle)
			dc.DrawStringAnchored(r.Badge, tx, cy, 0, 0.35)
			tx += 14
		}
		dc.SetColor(colorText)
		dc.DrawStringAnchored(r.Label, tx, cy, 0, 0.35)
		if r.Suffix != "" {
			dc.SetColor(colorSubtle)
			dc.DrawStringAnchored(r.Suffix, tx+8+7*float64(len(r.Label)), cy, 0, 0.35)
		}
	}

	return dc.SavePNG(opts.Path)
}

func drawDisclosurePNG(dc *gg.Context, x, cy float64, open bool) {
	dc.SetColor(colorSubtle)
	dc.NewSubPath()
	if open {
		dc.MoveTo(x, cy-2)
		dc.LineTo(x+8, cy-2)
		dc.LineTo(x+4, cy+4)
	} else {
		dc.MoveTo(x, cy-4)
		dc.LineTo(x+6, cy)
		dc.LineTo(x, cy+4)
	}
	dc.ClosePath()
	dc.Fill()
}

func drawSummaryPNG(dc *gg.Context, layout treeLayout) {
	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Summary.Title, 32, 40, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(layout.Summary.Source, 32, 60, 0, 0.5)
	dc.DrawStringAnchored(layout.Summary.Entries, 32, 78, 0, 0.5)
	dc.DrawStringAnchored(layout.Summary.FilterLine, 32, 96, 0, 0.5)
}

func drawLegendPNG(dc *gg.Context, layout treeLayout) {
	boxW := 170.0
	boxH := 84.0
	x := float64(layout.Width) - boxW - 20
	y := 22.0
	dc.SetColor(colorLegendBG)
	dc.DrawRoundedRectangle(x, y, boxW, boxH, 10)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, y, boxW, boxH, 10)
	dc.Stroke()

	drawLegendRowPNG(dc, x+12, y+18, colorNormalFolder, "Folder")
	drawLegendRowPNG(dc, x+12, y+34, colorSystemFolder, "System folder")
	drawLegendRowPNG(dc, x+12, y+50, colorTrashFolder, "Trash folder")
	drawLegendRowPNG(dc, x+12, y+66, colorItem, "Item (D/I/A/V/S/Z/N)")
}

func drawLegendRowPNG(dc *gg.Context, x, y float64, c color.RGBA, label string) {
	dc.SetColor(c)
	dc.DrawRoundedRectangle(x, y-8, 14, 14, 3)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, y-8, 14, 14, 3)
	dc.Stroke()
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(label, x+20, y, 0, 0.5)
}

// --- helpers ---------------------------------------------------------------

// washOut blends a fill toward the backdrop, the raster stand-in for
// the SVG renderer's fill-opacity on dimmed rows.
func washOut(c color.RGBA) color.RGBA {
	mix := func(a, b uint8) uint8 {
		return uint8((int(a)*45 + int(b)*55) / 100)
	}
	return color.RGBA{
		R: mix(c.R, colorBackdrop.R),
		G: mix(c.G, colorBackdrop.G),
		B: mix(c.B, colorBackdrop.B),
		A: 0xff,
	}
}

func clip(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
