package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/vanderheijden86/canopy/internal/datasource"
	"github.com/vanderheijden86/canopy/pkg/config"
	"github.com/vanderheijden86/canopy/pkg/export"
	"github.com/vanderheijden86/canopy/pkg/folderview"
	"github.com/vanderheijden86/canopy/pkg/metrics"
	"github.com/vanderheijden86/canopy/pkg/model"
	"github.com/vanderheijden86/canopy/pkg/ui"
	"github.com/vanderheijden86/canopy/pkg/version"
	"github.com/vanderheijden86/canopy/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

// Headless runs (robot dump, exports) have no terminal to size the
// viewport from, so the engine gets a fixed one: 120 columns by 48 rows
// in engine units.
const (
	headlessCols = 120
	headlessRows = 48
)

// settleFrameStep is the synthetic clock step while settling a headless
// tree; settleMaxFrames bounds the pump for degenerate budgets.
const (
	settleFrameStep = 50 * time.Millisecond
	settleMaxFrames = 256
)

func main() {
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	dirFlag := flag.String("dir", "", "Project directory to browse (default: working directory)")
	robotDump := flag.Bool("robot-dump", false, "Print the arranged tree as JSON to stdout and exit")
	exportPath := flag.String("export", "", "Write a tree snapshot to FILE (.svg, .png, or .json) and exit")
	exportWizard := flag.Bool("export-wizard", false, "Configure a snapshot export interactively and exit")
	initSample := flag.Int("init-sample", 0, "Create a sample inventory of N entries and exit")
	filterFlag := flag.String("filter", "", "Start with a name filter applied")
	sortFlag := flag.String("sort", "", "Sort items by 'name' or 'date' (overrides config)")
	showAll := flag.Bool("show-all-folders", false, "Show every folder, not just filter matches")
	noWatch := flag.Bool("no-watch", false, "Disable live reload when the source changes on disk")
	flag.Parse()

	// CPU profiling support
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: canopy [options]")
		fmt.Println("\nA TUI browser for hierarchical inventories.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("canopy %s\n", version.Version)
		os.Exit(0)
	}

	if *sortFlag != "" && *sortFlag != "name" && *sortFlag != "date" {
		fmt.Fprintf(os.Stderr, "Error: --sort must be 'name' or 'date', got %q\n", *sortFlag)
		os.Exit(2)
	}

	dir, err := datasource.InventoryDir(*dirFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving inventory directory: %v\n", err)
		os.Exit(1)
	}

	// Handle --init-sample
	if *initSample > 0 {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", dir, err)
			os.Exit(1)
		}
		path := filepath.Join(dir, datasource.SQLiteFileName)
		if err := datasource.WriteSample(path, *initSample); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing sample inventory: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote sample inventory to %s\n", path)
		fmt.Println("Run 'canopy' in the same directory to browse it.")
		return
	}

	stopTimer := metrics.Timer(metrics.SourceLoad)
	store, src, err := datasource.OpenBest(dir)
	stopTimer()
	if err != nil {
		if errors.Is(err, datasource.ErrNoSources) {
			fmt.Fprintf(os.Stderr, "No inventory found under %s.\n", dir)
			fmt.Fprintln(os.Stderr, "Run 'canopy --init-sample 60' to create one to explore.")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error opening inventory: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()
	sourceLabel := filepath.Base(src.Path)

	reloader, err := datasource.NewReloader(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading inventory: %v\n", err)
		os.Exit(1)
	}

	// Load config for theme, sort, and engine tuning
	appCfg, cfgErr := config.Load()
	if cfgErr != nil {
		// Non-fatal: continue without config
		appCfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := datasource.NewFetcher(ctx, store, 0)
	defer fetcher.Close()

	mk := datasource.SourceFactory(store, fetcher)
	root := folderview.NewRoot(mk(model.Entry{Kind: model.KindFolder, Role: model.RoleNormal}), folderview.DefaultPresentation())

	root.SetFilterBudget(appCfg.Engine.BudgetOr(folderview.DefaultFilterBudget))
	root.SetAutoOpenDelay(appCfg.Engine.AutoOpenDelayOr(folderview.DefaultAutoOpenDelay))
	root.SetTypeAheadTimeout(appCfg.Engine.TypeAheadTimeoutOr(folderview.DefaultTypeAheadTimeout))
	root.SetAnimate(appCfg.View.AnimationEnabled())
	root.SetSortOrder(sortOrderFor(appCfg, *sortFlag))
	if *showAll || appCfg.View.ShowAllFolders {
		root.Filter().SetShowFolders(folderview.ShowAllFolders)
	}

	if err := root.Populate(reloader.Entries(), mk); err != nil {
		fmt.Fprintf(os.Stderr, "Error building tree: %v\n", err)
		os.Exit(1)
	}

	headless := *robotDump || *exportPath != "" || *exportWizard

	if len(reloader.Entries()) == 0 && !headless {
		fmt.Println("Inventory is empty. Run 'canopy --init-sample 60' for something to explore.")
		return
	}

	if *filterFlag != "" {
		root.Filter().SetText(*filterFlag)
	}

	// Restore the view the user left: open folders, selection, scroll.
	statePath := ui.ViewStatePath(dir)
	ui.LoadViewState(statePath).ApplyTo(root)

	if headless {
		pres := root.Presentation()
		root.SetAnimate(false)
		root.SetViewport(headlessCols*pres.MeasureText("M"), headlessRows*pres.ItemHeight)
		settleTree(root)
		if err := runHeadless(root, sourceLabel, *robotDump, *exportPath, *exportWizard); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var w *watcher.Watcher
	if !*noWatch {
		w, err = watcher.NewWatcher(src.Path,
			watcher.WithCompanions(src.CompanionPaths()...),
			watcher.WithPollInterval(appCfg.Watcher.PollIntervalOr(watcher.DefaultPollInterval)))
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: live reload disabled: %v\n", err)
			w = nil
		} else {
			defer w.Stop()
		}
	}

	m := ui.NewModel(ui.ModelOptions{
		Root:        root,
		Factory:     mk,
		Fetcher:     fetcher,
		Reloader:    reloader,
		Watcher:     w,
		Config:      appCfg,
		SourceLabel: sourceLabel,
		StatePath:   statePath,
		ReadOnly:    store.ReadOnly(),
	})

	if err := runTUIProgram(m); err != nil {
		fmt.Printf("Error running canopy: %v\n", err)
		os.Exit(1)
	}
}

// sortOrderFor builds the engine sort order from config, with the
// --sort flag overriding the configured name/date choice.
func sortOrderFor(cfg config.Config, override string) folderview.SortOrder {
	byDate := cfg.Sort.DateOrder()
	switch override {
	case "date":
		byDate = true
	case "name":
		byDate = false
	}

	var order folderview.SortOrder
	if byDate {
		order |= folderview.SortByDate
	}
	if cfg.Sort.FoldersByNameEnabled() {
		order |= folderview.SortFoldersByName
	}
	if cfg.Sort.SystemToTopEnabled() {
		order |= folderview.SortSystemToTop
	}
	return order
}

// settleTree pumps the engine with a synthetic clock until the filter
// pass completes. Headless runs have no frame loop, and a budgeted
// filter over a large tree needs several passes to finish.
func settleTree(root *folderview.Root) {
	now := time.Now()
	for i := 0; i < settleMaxFrames; i++ {
		root.Update(now)
		now = now.Add(settleFrameStep)
		if root.FilterStatus() != folderview.FilterInProgress {
			break
		}
	}
	// One more cycle so arrange sees the final filter state.
	root.Update(now)
}

// runHeadless services --robot-dump, --export, and --export-wizard on a
// settled tree.
func runHeadless(root *folderview.Root, sourceLabel string, robotDump bool, exportPath string, wizard bool) error {
	if robotDump {
		return export.WriteTreeJSON(os.Stdout, root, sourceLabel)
	}

	path := exportPath
	includeHidden := true
	if wizard {
		cfg, err := export.NewWizard(sourceLabel).Run()
		if err != nil {
			return err
		}
		path = cfg.Path
		includeHidden = cfg.IncludeHidden
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := writeTreeJSONFile(path, root, sourceLabel); err != nil {
			return err
		}
	} else {
		err := export.SaveTreeSnapshot(export.SnapshotOptions{
			Path:          path,
			Source:        sourceLabel,
			IncludeHidden: includeHidden,
			Root:          root,
		})
		if err != nil {
			return err
		}
	}
	fmt.Printf("Saved tree snapshot to %s\n", path)
	return nil
}

func writeTreeJSONFile(path string, root *folderview.Root, sourceLabel string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return export.WriteTreeJSON(f, root, sourceLabel)
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set CANOPY_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("CANOPY_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted)) {
		return nil
	}
	return err
}
