//go:build ignore

// generate_testdata.go creates standard inventory datasets for benchmarking.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	tests/testdata/benchmark/small.jsonl   (~100 entries)
//	tests/testdata/benchmark/medium.jsonl  (~1000 entries)
//	tests/testdata/benchmark/large.jsonl   (~5000 entries)
//	tests/testdata/benchmark/huge.jsonl    (~20000 entries)
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/canopy/internal/datasource"
	"github.com/vanderheijden86/canopy/pkg/testutil"
)

type datasetSpec struct {
	name    string
	folders int
	items   int
}

var datasets = []datasetSpec{
	{"small", 12, 88},
	{"medium", 110, 890},
	{"large", 550, 4450},
	{"huge", 2200, 17800},
}

func main() {
	outputDir := filepath.Join("tests", "testdata", "benchmark")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d folders, %d items)...\n", ds.name, ds.folders, ds.items)

		cfg := testutil.DefaultConfig()
		cfg.Seed = int64(ds.folders + ds.items) // reproducible per size
		cfg.IDPrefix = "bench"
		cfg.WithSystem = true

		fixture := testutil.New(cfg).Mixed(ds.folders, ds.items)

		outPath := filepath.Join(outputDir, ds.name+".jsonl")
		if err := datasource.WriteEntriesJSONL(outPath, fixture.Entries); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outPath, err)
			os.Exit(1)
		}

		fmt.Printf("  %s: %d entries, max depth %d\n",
			outPath, len(fixture.Entries), fixture.Properties.MaxDepth)
	}

	fmt.Println("Done.")
}
