// Package analysis computes inventory shape statistics for the insights
// overlay and the robot dump.
package analysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/vanderheijden86/canopy/pkg/folderview"
)

// Distribution summarizes one measurement across the tree's folders.
type Distribution struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Stats describes the shape of an inventory tree at one point in time.
type Stats struct {
	Entries int `json:"entries"`
	Folders int `json:"folders"`
	Items   int `json:"items"`

	ByType map[string]int `json:"by_type,omitempty"`
	ByRole map[string]int `json:"by_role,omitempty"`

	// ChildCounts covers direct children per folder, the root included,
	// so flat inventories still yield one sample.
	ChildCounts Distribution `json:"child_counts"`

	// DepthHistogram[d] holds the number of entries at nesting level d,
	// with children of the root at level 0.
	DepthHistogram []int `json:"depth_histogram,omitempty"`
	MaxDepth       int   `json:"max_depth"`

	// FilteredMatches counts nodes passing the active filter as of the
	// last completed passes. Zero and omitted when no filter is set.
	FilterActive    bool `json:"filter_active"`
	FilteredMatches int  `json:"filtered_matches,omitempty"`
}

// Compute walks the whole tree once, open and closed folders alike.
func Compute(root *folderview.Root) Stats {
	s := Stats{
		ByType: make(map[string]int),
		ByRole: make(map[string]int),
	}
	s.FilterActive = root.Filter().IsNotDefault()

	var childCounts []float64
	var hist []int
	bump := func(depth int) {
		for len(hist) <= depth {
			hist = append(hist, 0)
		}
		hist[depth]++
	}

	var walk func(f *folderview.Folder, depth int)
	walk = func(f *folderview.Folder, depth int) {
		childCounts = append(childCounts, float64(f.FolderCount()+f.ItemCount()))
		for _, sub := range f.ChildFolders() {
			s.Folders++
			s.ByRole[sub.Source().Role().String()]++
			bump(depth)
			if s.FilterActive && sub.Filtered() {
				s.FilteredMatches++
			}
			walk(sub, depth+1)
		}
		for _, it := range f.ChildItems() {
			s.Items++
			s.ByType[it.TypeCode().String()]++
			bump(depth)
			if s.FilterActive && it.Filtered() {
				s.FilteredMatches++
			}
		}
	}
	walk(&root.Folder, 0)

	s.Entries = s.Folders + s.Items
	s.DepthHistogram = hist
	if len(hist) > 0 {
		s.MaxDepth = len(hist) - 1
	}
	s.ChildCounts = summarize(childCounts)
	if len(s.ByType) == 0 {
		s.ByType = nil
	}
	if len(s.ByRole) == 0 {
		s.ByRole = nil
	}
	return s
}

// summarize runs the gonum estimators over one measurement set. Quantile
// needs sorted input; sorting here keeps callers free to pass samples in
// walk order.
func summarize(xs []float64) Distribution {
	if len(xs) == 0 {
		return Distribution{}
	}
	sort.Float64s(xs)
	d := Distribution{
		Mean: stat.Mean(xs, nil),
		P50:  stat.Quantile(0.5, stat.Empirical, xs, nil),
		P90:  stat.Quantile(0.9, stat.Empirical, xs, nil),
		Max:  xs[len(xs)-1],
	}
	if len(xs) > 1 {
		d.StdDev = stat.StdDev(xs, nil)
	}
	return d
}
