// Package testutil provides deterministic entry-tree fixtures for tests.
// All generators produce the same output for the same seed so failures
// reproduce exactly.
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// TreeFixture bundles a generated entry set with shape facts so tests can
// assert against what the generator intended.
type TreeFixture struct {
	Description string
	Entries     []model.Entry
	Properties  Properties
}

// Properties holds shape facts about a fixture. MaxDepth counts folder
// nesting levels, with children of the root at level 1; items do not add
// depth.
type Properties struct {
	FolderCount int
	ItemCount   int
	MaxDepth    int
}

// GeneratorConfig controls entry generation.
type GeneratorConfig struct {
	Seed          int64            // random seed (0 = use current time)
	IDPrefix      string           // prefix for entry ids (default "test")
	BaseTime      time.Time        // first CreatedAt; later entries step forward
	TypeMix       []model.TypeCode // item type distribution (nil = all types)
	WithSystem    bool             // prepend locked System and Trash folders
	ReadOnlyItems bool             // items carry CanCopy only
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:     42, // deterministic
		IDPrefix: "test",
		BaseTime: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Generator creates entry trees with various shapes.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
	seq int
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.BaseTime.IsZero() {
		cfg.BaseTime = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "test"
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

var folderNames = []string{"Projects", "Media", "Archive", "Notes", "Inbox", "Reports", "Drafts", "Shared"}

var itemPatterns = map[model.TypeCode]string{
	model.TypeDocument: "report-%03d.pdf",
	model.TypeImage:    "photo-%03d.png",
	model.TypeAudio:    "track-%03d.mp3",
	model.TypeVideo:    "clip-%03d.mp4",
	model.TypeScript:   "setup-%03d.sh",
	model.TypeArchive:  "bundle-%03d.zip",
	model.TypeNote:     "memo-%03d.md",
}

var allTypeCodes = model.AllTypes.Types()

func (g *Generator) id(s string) string {
	return g.cfg.IDPrefix + "-" + s
}

// stamp returns a CreatedAt one minute after the previous entry's, so
// every entry has a distinct timestamp in creation order.
func (g *Generator) stamp() time.Time {
	t := g.cfg.BaseTime.Add(time.Duration(g.seq) * time.Minute)
	g.seq++
	return t
}

func (g *Generator) folder(id, parent, name string) model.Entry {
	return model.Entry{
		ID:        id,
		ParentID:  parent,
		Kind:      model.KindFolder,
		Name:      name,
		Role:      model.RoleNormal,
		Caps:      model.DefaultCaps,
		CreatedAt: g.stamp(),
	}
}

func (g *Generator) item(id, parent string) model.Entry {
	tc := g.pickType()
	caps := model.DefaultCaps
	if g.cfg.ReadOnlyItems {
		caps = model.CanCopy
	}
	return model.Entry{
		ID:        id,
		ParentID:  parent,
		Kind:      model.KindItem,
		Name:      fmt.Sprintf(itemPatterns[tc], g.seq),
		Type:      tc,
		Caps:      caps,
		CreatedAt: g.stamp(),
	}
}

func (g *Generator) pickType() model.TypeCode {
	if len(g.cfg.TypeMix) > 0 {
		return g.cfg.TypeMix[g.rng.Intn(len(g.cfg.TypeMix))]
	}
	return allTypeCodes[g.rng.Intn(len(allTypeCodes))]
}

func folderName(i int) string {
	return fmt.Sprintf("%s %d", folderNames[i%len(folderNames)], i+1)
}

// prologue returns the pinned System and Trash folders when configured.
func (g *Generator) prologue() []model.Entry {
	if !g.cfg.WithSystem {
		return nil
	}
	return []model.Entry{
		{ID: g.id("system"), Kind: model.KindFolder, Name: "System",
			Role: model.RoleSystem, Caps: model.CanCopy, CreatedAt: g.stamp()},
		{ID: g.id("trash"), Kind: model.KindFolder, Name: "Trash",
			Role: model.RoleTrash, Caps: model.CanCopy, CreatedAt: g.stamp()},
	}
}

func (g *Generator) fixture(desc string, entries []model.Entry, depth int) TreeFixture {
	folders, items := 0, 0
	for _, e := range entries {
		if e.IsFolder() {
			folders++
		} else {
			items++
		}
	}
	return TreeFixture{
		Description: desc,
		Entries:     entries,
		Properties: Properties{
			FolderCount: folders,
			ItemCount:   items,
			MaxDepth:    depth,
		},
	}
}

// ============================================================================
// Tree Shape Generators
// ============================================================================

// Flat returns n items directly under the root.
func (g *Generator) Flat(items int) TreeFixture {
	entries := g.prologue()
	for i := 0; i < items; i++ {
		entries = append(entries, g.item(g.id(fmt.Sprintf("i%d", i)), ""))
	}
	depth := 0
	if g.cfg.WithSystem {
		depth = 1
	}
	return g.fixture(fmt.Sprintf("%d items at the root", items), entries, depth)
}

// Chain nests one folder per level, depth levels deep, and puts a single
// item at the bottom. The deepest shape the engine has to arrange.
func (g *Generator) Chain(depth int) TreeFixture {
	if depth < 1 {
		depth = 1
	}
	entries := g.prologue()
	parent := ""
	for d := 0; d < depth; d++ {
		id := g.id(fmt.Sprintf("f%d", d))
		entries = append(entries, g.folder(id, parent, folderName(d)))
		parent = id
	}
	entries = append(entries, g.item(g.id("leaf"), parent))
	return g.fixture(
		fmt.Sprintf("chain of %d nested folders with one leaf item", depth),
		entries, depth)
}

// Wide puts folders side by side under the root, each holding itemsPer
// items. The broadest shape, no nesting beyond one level.
func (g *Generator) Wide(folders, itemsPer int) TreeFixture {
	if folders < 1 {
		folders = 1
	}
	entries := g.prologue()
	for f := 0; f < folders; f++ {
		fid := g.id(fmt.Sprintf("f%d", f))
		entries = append(entries, g.folder(fid, "", folderName(f)))
		for i := 0; i < itemsPer; i++ {
			entries = append(entries, g.item(g.id(fmt.Sprintf("f%d-i%d", f, i)), fid))
		}
	}
	return g.fixture(
		fmt.Sprintf("%d root folders with %d items each", folders, itemsPer),
		entries, 1)
}

// Tree builds a balanced folder tree: every folder above the bottom level
// holds breadth subfolders, bottom-level folders hold breadth items each.
// Folder count is breadth + breadth^2 + ... + breadth^depth.
func (g *Generator) Tree(depth, breadth int) TreeFixture {
	if depth < 1 {
		depth = 1
	}
	if breadth < 1 {
		breadth = 1
	}
	entries := g.prologue()
	nf, ni := 0, 0

	var build func(parent string, level int)
	build = func(parent string, level int) {
		for b := 0; b < breadth; b++ {
			if level > depth {
				entries = append(entries, g.item(g.id(fmt.Sprintf("i%d", ni)), parent))
				ni++
				continue
			}
			id := g.id(fmt.Sprintf("f%d", nf))
			entries = append(entries, g.folder(id, parent, folderName(nf)))
			nf++
			build(id, level+1)
		}
	}
	build("", 1)

	return g.fixture(
		fmt.Sprintf("balanced tree, depth %d, breadth %d (%d entries)", depth, breadth, len(entries)),
		entries, depth)
}

// Mixed scatters folders and items over random parents. Folders are
// created before anything that can land inside them, so the result is
// always parent-closed.
func (g *Generator) Mixed(folders, items int) TreeFixture {
	entries := g.prologue()
	parents := []string{""}
	for f := 0; f < folders; f++ {
		id := g.id(fmt.Sprintf("f%d", f))
		entries = append(entries, g.folder(id, parents[g.rng.Intn(len(parents))], folderName(f)))
		parents = append(parents, id)
	}
	for i := 0; i < items; i++ {
		entries = append(entries, g.item(g.id(fmt.Sprintf("i%d", i)), parents[g.rng.Intn(len(parents))]))
	}
	return g.fixture(
		fmt.Sprintf("mixed tree of %d folders and %d items", folders, items),
		entries, maxFolderDepth(entries))
}

// maxFolderDepth walks each folder's parent chain and returns the deepest
// nesting level, root children counting as level 1.
func maxFolderDepth(entries []model.Entry) int {
	parent := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsFolder() {
			parent[e.ID] = e.ParentID
		}
	}
	max := 0
	for id := range parent {
		depth := 0
		for cur := id; ; {
			depth++
			next, ok := parent[cur]
			if !ok || next == "" {
				break
			}
			cur = next
			if depth > len(parent) {
				break // malformed parent loop, stop counting
			}
		}
		if depth > max {
			max = depth
		}
	}
	return max
}

// ============================================================================
// Convenience Functions
// ============================================================================

// QuickChain creates a chain fixture with default settings.
func QuickChain(depth int) []model.Entry {
	return NewDefault().Chain(depth).Entries
}

// QuickWide creates a wide fixture with default settings.
func QuickWide(folders, itemsPer int) []model.Entry {
	return NewDefault().Wide(folders, itemsPer).Entries
}

// QuickTree creates a balanced tree fixture with default settings.
func QuickTree(depth, breadth int) []model.Entry {
	return NewDefault().Tree(depth, breadth).Entries
}

// QuickMixed creates a mixed fixture with default settings.
func QuickMixed(folders, items int) []model.Entry {
	return NewDefault().Mixed(folders, items).Entries
}

// QuickFlat creates a flat fixture with default settings.
func QuickFlat(items int) []model.Entry {
	return NewDefault().Flat(items).Entries
}
