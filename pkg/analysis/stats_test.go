package analysis_test

import (
	"testing"
	"time"

	"github.com/vanderheijden86/canopy/pkg/analysis"
	"github.com/vanderheijden86/canopy/pkg/folderview"
	"github.com/vanderheijden86/canopy/pkg/model"
	"github.com/vanderheijden86/canopy/pkg/testutil"
)

// treeSource is the minimal read-only NodeSource the engine needs for
// shape statistics.
type treeSource struct {
	entry model.Entry
}

func (s *treeSource) ID() string               { return s.entry.ID }
func (s *treeSource) Name() string             { return s.entry.Name }
func (s *treeSource) CreationTime() time.Time  { return s.entry.CreatedAt }
func (s *treeSource) TypeCode() model.TypeCode { return s.entry.Type }
func (s *treeSource) Role() model.Role         { return s.entry.Role }
func (s *treeSource) CanRename() bool          { return false }
func (s *treeSource) CanRemove() bool          { return false }
func (s *treeSource) CanMove() bool            { return false }
func (s *treeSource) CanCopy() bool            { return true }
func (s *treeSource) Rename(string) error      { return nil }
func (s *treeSource) Remove() error            { return nil }
func (s *treeSource) Move(string) error        { return nil }
func (s *treeSource) DescendantsLoaded() bool  { return true }
func (s *treeSource) StartFetch()              {}

func buildRoot(t *testing.T, entries []model.Entry) *folderview.Root {
	t.Helper()
	rootEntry := model.Entry{ID: "root", Kind: model.KindFolder, Name: "root", Role: model.RoleNormal}
	r := folderview.NewRoot(&treeSource{entry: rootEntry}, folderview.Presentation{
		ItemHeight:  10,
		IndentStep:  4,
		ArrowWidth:  2,
		IconWidth:   2,
		IconPad:     1,
		TextPad:     1,
		MeasureText: func(s string) int { return len(s) },
	})
	r.SetViewport(160, 400)
	if err := r.Populate(entries, func(e model.Entry) folderview.NodeSource {
		return &treeSource{entry: e}
	}); err != nil {
		t.Fatalf("populate: %v", err)
	}
	r.FinishModelChanges()
	return r
}

// settle runs enough frames for filter passes to complete on small trees.
func settle(r *folderview.Root) {
	now := time.Date(2025, time.March, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		now = now.Add(50 * time.Millisecond)
		r.Update(now)
	}
}

func TestComputeOfficeTree(t *testing.T) {
	r := buildRoot(t, testutil.OfficeTree())
	st := analysis.Compute(r)

	if st.Entries != 12 || st.Folders != 5 || st.Items != 7 {
		t.Errorf("counts = %d entries, %d folders, %d items", st.Entries, st.Folders, st.Items)
	}
	if st.ByRole["normal"] != 3 || st.ByRole["system"] != 1 || st.ByRole["trash"] != 1 {
		t.Errorf("ByRole = %v", st.ByRole)
	}
	for _, tc := range model.AllTypes.Types() {
		if st.ByType[tc.String()] != 1 {
			t.Errorf("ByType[%s] = %d, want 1", tc, st.ByType[tc.String()])
		}
	}

	if st.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", st.MaxDepth)
	}
	wantHist := []int{4, 7, 1}
	if len(st.DepthHistogram) != len(wantHist) {
		t.Fatalf("DepthHistogram = %v, want %v", st.DepthHistogram, wantHist)
	}
	for d, n := range wantHist {
		if st.DepthHistogram[d] != n {
			t.Errorf("DepthHistogram[%d] = %d, want %d", d, st.DepthHistogram[d], n)
		}
	}

	// Samples are 4 (root), 3 (docs), 3 (media), 1 (system), 0 (trash),
	// 1 (drafts).
	cc := st.ChildCounts
	if cc.Mean != 2.0 {
		t.Errorf("ChildCounts.Mean = %v, want 2", cc.Mean)
	}
	if cc.Max != 4 {
		t.Errorf("ChildCounts.Max = %v, want 4", cc.Max)
	}
	if cc.StdDev <= 0 {
		t.Errorf("ChildCounts.StdDev = %v, want > 0", cc.StdDev)
	}
	if cc.P50 < 1 || cc.P50 > 3 || cc.P90 < cc.P50 || cc.P90 > cc.Max {
		t.Errorf("quantiles out of order: %+v", cc)
	}

	if st.FilterActive || st.FilteredMatches != 0 {
		t.Errorf("filter fields = %v/%d with no filter set", st.FilterActive, st.FilteredMatches)
	}
}

func TestComputeEmptyTree(t *testing.T) {
	r := buildRoot(t, nil)
	st := analysis.Compute(r)

	if st.Entries != 0 || st.Folders != 0 || st.Items != 0 {
		t.Errorf("counts = %+v, want zeroes", st)
	}
	if st.MaxDepth != 0 || len(st.DepthHistogram) != 0 {
		t.Errorf("depth fields = %d %v", st.MaxDepth, st.DepthHistogram)
	}
	if st.ByType != nil || st.ByRole != nil {
		t.Errorf("maps should be omitted when empty: %v %v", st.ByType, st.ByRole)
	}
	// The root's own (empty) child list is still one sample
	if st.ChildCounts.Mean != 0 || st.ChildCounts.Max != 0 {
		t.Errorf("ChildCounts = %+v, want zeroes", st.ChildCounts)
	}
}

func TestComputeBalancedTree(t *testing.T) {
	// Tree(2,3): every folder holds exactly three children, root included
	r := buildRoot(t, testutil.QuickTree(2, 3))
	st := analysis.Compute(r)

	if st.Folders != 12 || st.Items != 27 {
		t.Errorf("counts = %d folders, %d items, want 12/27", st.Folders, st.Items)
	}
	if st.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", st.MaxDepth)
	}

	cc := st.ChildCounts
	if cc.Mean != 3 || cc.StdDev != 0 || cc.P50 != 3 || cc.P90 != 3 || cc.Max != 3 {
		t.Errorf("ChildCounts = %+v, want uniform 3", cc)
	}
}

func TestComputeFilteredMatches(t *testing.T) {
	r := buildRoot(t, testutil.OfficeTree())
	r.Filter().SetText("mp")
	settle(r)

	if r.FilterStatus() != folderview.FilterDone {
		t.Fatalf("filter status = %v, want done", r.FilterStatus())
	}

	st := analysis.Compute(r)
	if !st.FilterActive {
		t.Error("FilterActive should be true with a text criterion")
	}
	// ambient.mp3 and demo.mp4; no folder name contains "mp"
	if st.FilteredMatches != 2 {
		t.Errorf("FilteredMatches = %d, want 2", st.FilteredMatches)
	}

	r.Filter().Reset()
	settle(r)
	st = analysis.Compute(r)
	if st.FilterActive || st.FilteredMatches != 0 {
		t.Errorf("after reset: active=%v matches=%d", st.FilterActive, st.FilteredMatches)
	}
}

func TestComputeTypeMaskMatches(t *testing.T) {
	r := buildRoot(t, testutil.OfficeTree())
	r.Filter().SetTypeMask(model.MaskFor(model.TypeImage) | model.MaskFor(model.TypeAudio))
	settle(r)

	st := analysis.Compute(r)
	// Folders cannot pass an active type mask themselves
	if st.FilteredMatches != 2 {
		t.Errorf("FilteredMatches = %d, want 2 (photo and track)", st.FilteredMatches)
	}
}
