package export

import (
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/canopy/pkg/analysis"
	"github.com/vanderheijden86/canopy/pkg/folderview"
	"github.com/vanderheijden86/canopy/pkg/metrics"
)

// TreeNodeDump is one visible row of the arranged tree, in draw order.
// Geometry is in engine units; Row is the terminal row the UI would put
// the node on.
type TreeNodeDump struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Depth int    `json:"depth"`
	Row   int    `json:"row"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	W     int    `json:"w"`
	H     int    `json:"h"`

	Folder bool   `json:"folder,omitempty"`
	Open   bool   `json:"open,omitempty"`
	Role   string `json:"role,omitempty"`
	Type   string `json:"type,omitempty"`

	Selected            bool `json:"selected,omitempty"`
	Current             bool `json:"current,omitempty"`
	MatchesFilter       bool `json:"matches_filter,omitempty"`
	SelectedDescendants int  `json:"selected_descendants,omitempty"`

	CreatedAt string `json:"created_at"`
}

// TreeDump is the robot-mode view of the browse state: everything a
// script needs to reason about what the user would be seeing, without
// parsing rendered output.
type TreeDump struct {
	GeneratedAt string `json:"generated_at"`
	Source      string `json:"source"`

	SortOrder      string `json:"sort_order"`
	FilterText     string `json:"filter_text,omitempty"`
	FilterStatus   string `json:"filter_status"`
	ShowAllFolders bool   `json:"show_all_folders,omitempty"`

	// Arranged extents of the whole tree, engine units.
	Width     int `json:"width"`
	Height    int `json:"height"`
	ScrollTop int `json:"scroll_top,omitempty"`

	Selection []string `json:"selection,omitempty"`
	Current   string   `json:"current,omitempty"`

	Nodes []TreeNodeDump `json:"nodes"`

	Stats   analysis.Stats        `json:"stats"`
	Timings []metrics.TimingStats `json:"timings,omitempty"`
}

// BuildTreeDump captures the current arranged state of root. The caller
// should have driven Root.Update far enough that filtering has settled,
// or consumers will see a partial node list with filter_status saying so.
func BuildTreeDump(root *folderview.Root, source string) TreeDump {
	filterActive := root.Filter().IsNotDefault()
	pres := root.Presentation()

	dump := TreeDump{
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		Source:         source,
		SortOrder:      sortOrderLabel(root.SortOrder()),
		FilterStatus:   filterStatusLabel(root.FilterStatus()),
		ShowAllFolders: root.Filter().ShowFolders() == folderview.ShowAllFolders,
		Width:          root.Rect().W,
		Height:         root.Rect().H,
		ScrollTop:      root.ScrollTop(),
		Stats:          analysis.Compute(root),
		Timings:        metrics.AllTimingStats(),
	}
	if filterActive {
		dump.FilterText = root.Filter().Text()
	}

	for _, n := range root.Selection() {
		dump.Selection = append(dump.Selection, n.ID())
	}
	if cur := root.CurrentSelection(); cur != nil {
		dump.Current = cur.ID()
	}

	root.EachVisible(func(n folderview.Node, absY, depth int) bool {
		nd := TreeNodeDump{
			ID:        n.ID(),
			Name:      n.Name(),
			Depth:     depth,
			Row:       absY / pres.ItemHeight,
			X:         n.Indentation(),
			Y:         absY,
			W:         n.Rect().W,
			H:         n.Rect().H,
			Selected:  n.Selected(),
			Current:   n.IsCurSelection(),
			CreatedAt: n.CreatedAt().UTC().Format(time.RFC3339),
		}
		if filterActive && n.Filtered() {
			nd.MatchesFilter = true
		}
		if f := n.AsFolder(); f != nil {
			nd.Folder = true
			nd.Open = f.IsOpen()
			nd.Role = n.Source().Role().String()
			nd.SelectedDescendants = f.NumSelectedDescendants()
		} else {
			nd.Type = n.Source().TypeCode().String()
		}
		dump.Nodes = append(dump.Nodes, nd)
		return true
	})

	return dump
}

// WriteTreeJSON writes the robot dump for root to w as indented JSON.
func WriteTreeJSON(w io.Writer, root *folderview.Root, source string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildTreeDump(root, source))
}

func sortOrderLabel(o folderview.SortOrder) string {
	byDate := o&folderview.SortByDate != 0
	foldersByName := o&folderview.SortFoldersByName != 0
	switch {
	case byDate && foldersByName:
		return "date+name"
	case byDate:
		return "date"
	default:
		return "name"
	}
}

func filterStatusLabel(s folderview.FilterStatus) string {
	switch s {
	case folderview.FilterInProgress:
		return "in_progress"
	case folderview.FilterNoMatches:
		return "no_matches"
	default:
		return "done"
	}
}
