// Package datasource discovers and opens canopy inventory sources. An
// inventory lives in a .canopy directory as either a SQLite database
// (inventory.db) or a JSONL export (inventory.jsonl); discovery ranks
// whatever is present, best first, and callers open the winner through
// OpenBest.
package datasource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DirEnvVar overrides where the inventory directory is looked up.
const DirEnvVar = "CANOPY_DIR"

// DefaultDirName is the inventory directory sought under the browse path.
const DefaultDirName = ".canopy"

// Canonical file names inside the inventory directory.
const (
	SQLiteFileName = "inventory.db"
	JSONLFileName  = "inventory.jsonl"
)

// SourceType identifies the storage format behind a source.
type SourceType string

const (
	// SourceTypeSQLite is the inventory database (inventory.db).
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSONL is a line-delimited JSON export.
	SourceTypeJSONL SourceType = "jsonl"
)

// Priority values for source types (higher = more authoritative). The
// database is authoritative whenever it is valid; the canonical JSONL
// export is the fallback, and stray .jsonl files rank below it.
const (
	PrioritySQLite     = 100
	PriorityJSONL      = 50
	PriorityJSONLExtra = 25
)

// ErrNoSources means discovery found no usable inventory file.
var ErrNoSources = errors.New("no inventory sources found")

// DataSource describes one discovered inventory copy.
type DataSource struct {
	Type     SourceType `json:"type"`
	Path     string     `json:"path"`
	Priority int        `json:"priority"`
	ModTime  time.Time  `json:"mod_time"`
	Size     int64      `json:"size"`

	// Valid and friends are filled by ValidateSource.
	Valid           bool   `json:"valid"`
	ValidationError string `json:"validation_error,omitempty"`
	EntryCount      int    `json:"entry_count"`
}

func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = "invalid"
		if s.ValidationError != "" {
			status = fmt.Sprintf("invalid: %s", s.ValidationError)
		}
	}
	return fmt.Sprintf("%s source %s (%d entries, %s)", s.Type, s.Path, s.EntryCount, status)
}

// CompanionPaths lists sibling files that change when the source does. A
// WAL-mode database journals commits into -wal and touches the main file
// only on checkpoint, so a watcher that ignores the journals misses
// every external write between checkpoints.
func (s DataSource) CompanionPaths() []string {
	if s.Type != SourceTypeSQLite {
		return nil
	}
	return []string{s.Path + "-wal", s.Path + "-journal"}
}

// InventoryDir resolves the inventory directory for a browse path.
// CANOPY_DIR wins when set; otherwise it is .canopy under path, or under
// the working directory when path is empty.
func InventoryDir(path string) (string, error) {
	if envDir := os.Getenv(DirEnvVar); envDir != "" {
		return envDir, nil
	}
	if path == "" {
		var err error
		path, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
	}
	return filepath.Join(path, DefaultDirName), nil
}

// DiscoveryOptions configures DiscoverSources.
type DiscoveryOptions struct {
	// Dir is the inventory directory to scan.
	Dir string

	// Validate opens each source and counts its entries.
	Validate bool

	// IncludeInvalid keeps sources that failed validation in the result.
	IncludeInvalid bool

	// Logger receives discovery progress lines. Nil discards them.
	Logger func(string)
}

// DiscoverSources scans the inventory directory and ranks what it finds.
// A missing or empty directory yields an empty result, not an error;
// callers decide how to react through SelectSource.
func DiscoverSources(opts DiscoveryOptions) ([]DataSource, error) {
	logf := opts.Logger
	if logf == nil {
		logf = func(string) {}
	}

	var sources []DataSource

	dbSources, err := discoverSQLiteSources(opts.Dir, logf)
	if err != nil {
		return nil, err
	}
	sources = append(sources, dbSources...)

	jsonlSources, err := discoverJSONLSources(opts.Dir, logf)
	if err != nil {
		return nil, err
	}
	sources = append(sources, jsonlSources...)

	if opts.Validate {
		for i := range sources {
			if err := ValidateSource(&sources[i]); err != nil {
				logf(fmt.Sprintf("validation failed for %s: %v", sources[i].Path, err))
			}
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sort.Slice(sources, func(i, j int) bool {
		if sources[i].Priority == sources[j].Priority {
			return sources[i].ModTime.After(sources[j].ModTime)
		}
		return sources[i].Priority > sources[j].Priority
	})

	logf(fmt.Sprintf("discovered %d sources in %s", len(sources), opts.Dir))
	return sources, nil
}

// SelectSource picks the winner from a ranked discovery result.
func SelectSource(sources []DataSource) (DataSource, error) {
	for _, s := range sources {
		if s.Valid {
			return s, nil
		}
	}
	return DataSource{}, ErrNoSources
}

// ValidateSource opens the source and records whether it can serve
// entries, filling EntryCount on success.
func ValidateSource(s *DataSource) error {
	st, err := Open(*s)
	if err != nil {
		s.Valid = false
		s.ValidationError = err.Error()
		return err
	}
	defer st.Close()

	n, err := st.CountEntries()
	if err != nil {
		s.Valid = false
		s.ValidationError = err.Error()
		return err
	}
	s.Valid = true
	s.ValidationError = ""
	s.EntryCount = n
	return nil
}

// discoverSQLiteSources looks for the inventory database.
func discoverSQLiteSources(dir string, logf func(string)) ([]DataSource, error) {
	dbPath := filepath.Join(dir, SQLiteFileName)
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", dbPath, err)
	}
	logf(fmt.Sprintf("found database %s (mod=%s)", dbPath, info.ModTime().Format(time.RFC3339)))
	return []DataSource{{
		Type:     SourceTypeSQLite,
		Path:     dbPath,
		Priority: PrioritySQLite,
		ModTime:  info.ModTime(),
		Size:     info.Size(),
	}}, nil
}

// discoverJSONLSources lists the JSONL exports in the directory. Backup
// and merge artifacts are skipped; only the canonical inventory.jsonl
// gets full JSONL priority.
func discoverJSONLSources(dir string, logf func(string)) ([]DataSource, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read inventory directory: %w", err)
	}

	var sources []DataSource
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		if strings.Contains(name, ".backup") ||
			strings.Contains(name, ".orig") ||
			strings.Contains(name, ".merge") {
			continue
		}

		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		prio := PriorityJSONLExtra
		if name == JSONLFileName {
			prio = PriorityJSONL
		}
		sources = append(sources, DataSource{
			Type:     SourceTypeJSONL,
			Path:     path,
			Priority: prio,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
		logf(fmt.Sprintf("found export %s (mod=%s)", path, info.ModTime().Format(time.RFC3339)))
	}
	return sources, nil
}
