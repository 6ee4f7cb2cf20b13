package datasource

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/canopy/pkg/debug"
	"github.com/vanderheijden86/canopy/pkg/model"
)

const entryColumns = "id, parent_id, kind, name, type, role, caps, created_at"

// schema is applied by Bootstrap and tolerant of re-runs.
const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id         TEXT PRIMARY KEY,
	parent_id  TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT '',
	caps       INTEGER NOT NULL DEFAULT 15,
	created_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_entries_parent ON entries(parent_id);
`

// SQLiteStore serves the inventory database. Reads go through a
// read-only connection; a writable one opens lazily on the first
// mutation so a browse-only session never takes write locks.
type SQLiteStore struct {
	src DataSource
	db  *sql.DB

	mu     sync.Mutex
	loaded map[string]bool
	wdb    *sql.DB
}

// NewSQLiteStore opens the database read-only with the usual read
// performance pragmas.
func NewSQLiteStore(src DataSource) (*SQLiteStore, error) {
	if src.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not sqlite: %s", src.Type)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000&_journal_mode=WAL", src.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -64000",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("sqlite: %s failed: %v", pragma, err)
		}
	}

	// Probe now so a missing or foreign file fails here instead of on
	// the first real query.
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		db.Close()
		return nil, fmt.Errorf("not an inventory database: %w", err)
	}

	return &SQLiteStore{src: src, db: db, loaded: make(map[string]bool)}, nil
}

func (s *SQLiteStore) Source() DataSource { return s.src }

func (s *SQLiteStore) ReadOnly() bool { return false }

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	w := s.wdb
	s.wdb = nil
	s.mu.Unlock()
	if w != nil {
		w.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LoadRoots returns the top-level entries and marks the root loaded.
func (s *SQLiteStore) LoadRoots() ([]model.Entry, error) {
	entries, err := s.queryEntries("SELECT " + entryColumns + " FROM entries WHERE parent_id = ''")
	if err != nil {
		return nil, err
	}
	s.markLoaded("")
	return entries, nil
}

func (s *SQLiteStore) FetchChildren(folderID string) ([]model.Entry, error) {
	entries, err := s.queryEntries("SELECT "+entryColumns+" FROM entries WHERE parent_id = ?", folderID)
	if err != nil {
		return nil, err
	}
	s.markLoaded(folderID)
	return entries, nil
}

func (s *SQLiteStore) ChildrenLoaded(folderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded[folderID]
}

func (s *SQLiteStore) markLoaded(folderID string) {
	s.mu.Lock()
	s.loaded[folderID] = true
	s.mu.Unlock()
}

func (s *SQLiteStore) Snapshot() ([]model.Entry, error) {
	return s.queryEntries("SELECT " + entryColumns + " FROM entries")
}

func (s *SQLiteStore) CountEntries() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// LastModified checks the WAL sidecar too, since commits land there
// before a checkpoint touches the main file.
func (s *SQLiteStore) LastModified() (time.Time, error) {
	info, err := os.Stat(s.src.Path)
	if err != nil {
		return time.Time{}, err
	}
	latest := info.ModTime()
	if wal, err := os.Stat(s.src.Path + "-wal"); err == nil && wal.ModTime().After(latest) {
		latest = wal.ModTime()
	}
	return latest, nil
}

func (s *SQLiteStore) RenameEntry(id, name string) error {
	db, err := s.writable()
	if err != nil {
		return err
	}
	res, err := db.Exec("UPDATE entries SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("rename %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *SQLiteStore) MoveEntry(id, newParentID string) error {
	db, err := s.writable()
	if err != nil {
		return err
	}
	res, err := db.Exec("UPDATE entries SET parent_id = ? WHERE id = ?", newParentID, id)
	if err != nil {
		return fmt.Errorf("move %s: %w", id, err)
	}
	return requireRow(res, id)
}

// RemoveEntry deletes the entry together with its whole subtree.
func (s *SQLiteStore) RemoveEntry(id string) error {
	db, err := s.writable()
	if err != nil {
		return err
	}
	res, err := db.Exec(`
		DELETE FROM entries WHERE id IN (
			WITH RECURSIVE sub(id) AS (
				SELECT id FROM entries WHERE id = ?
				UNION ALL
				SELECT e.id FROM entries e JOIN sub ON e.parent_id = sub.id
			)
			SELECT id FROM sub
		)`, id)
	if err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	return requireRow(res, id)
}

// writable returns the lazily opened read-write connection.
func (s *SQLiteStore) writable() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wdb != nil {
		return s.wdb, nil
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", s.src.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database for writing: %w", err)
	}
	s.wdb = db
	return db, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("entry %s not found", id)
	}
	return nil
}

// queryEntries scans a SELECT over entryColumns into entries, skipping
// rows that fail validation.
func (s *SQLiteStore) queryEntries(query string, args ...any) ([]model.Entry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			debug.Log("sqlite: skipping row: %v", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	return entries, nil
}

// scanEntry converts one row into an Entry, mapping the stored string
// codes back through the model parsers.
func scanEntry(rows *sql.Rows) (model.Entry, error) {
	var (
		e         model.Entry
		kind      string
		typeCode  sql.NullString
		role      sql.NullString
		caps      sql.NullInt64
		createdAt sql.NullString
	)
	if err := rows.Scan(&e.ID, &e.ParentID, &kind, &e.Name, &typeCode, &role, &caps, &createdAt); err != nil {
		return model.Entry{}, err
	}

	k, err := model.ParseKind(kind)
	if err != nil {
		return model.Entry{}, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	e.Kind = k

	if k == model.KindFolder {
		r, err := model.ParseRole(role.String)
		if err != nil {
			return model.Entry{}, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		e.Role = r
	} else if typeCode.String != "" {
		t, err := model.ParseTypeCode(typeCode.String)
		if err != nil {
			return model.Entry{}, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		e.Type = t
	}

	if caps.Valid {
		e.Caps = model.CapFlags(caps.Int64)
	} else {
		e.Caps = model.DefaultCaps
	}
	if createdAt.Valid && createdAt.String != "" {
		e.CreatedAt = parseStoredTime(createdAt.String)
	}

	if err := e.Validate(); err != nil {
		return model.Entry{}, err
	}
	return e, nil
}

// parseStoredTime accepts the formats the store has written over time.
func parseStoredTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Bootstrap creates the schema at path, making parent directories as
// needed. Safe to run on an existing database.
func Bootstrap(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create inventory directory: %w", err)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return fmt.Errorf("cannot create database: %w", err)
	}
	defer db.Close()
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// WriteEntries replaces the database contents at path with the given
// entries, bootstrapping the schema first. This is the writer behind
// --init-sample and test fixtures.
func WriteEntries(path string, entries []model.Entry) error {
	if err := Bootstrap(path); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return fmt.Errorf("cannot open database for writing: %w", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO entries (" + entryColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("write entries: %w", err)
		}
		typeCode := ""
		if e.Kind == model.KindItem {
			typeCode = e.Type.String()
		}
		if _, err := stmt.Exec(e.ID, e.ParentID, e.Kind.String(), e.Name,
			typeCode, e.Role.String(), int64(e.Caps),
			e.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// WriteSample fills path with the deterministic sample inventory.
func WriteSample(path string, n int) error {
	return WriteEntries(path, SampleEntries(n))
}

var (
	sampleFolders = []string{"Projects", "Media", "Archive", "Notes", "Inbox", "Reports"}
	sampleItems   = []struct {
		name string
		tc   model.TypeCode
	}{
		{"report-%03d.pdf", model.TypeDocument},
		{"photo-%03d.png", model.TypeImage},
		{"track-%03d.mp3", model.TypeAudio},
		{"clip-%03d.mp4", model.TypeVideo},
		{"setup-%03d.sh", model.TypeScript},
		{"bundle-%03d.zip", model.TypeArchive},
		{"memo-%03d.md", model.TypeNote},
	}
)

// SampleEntries builds a deterministic inventory of about n entries:
// locked System and Trash folders plus normal folders of nine items
// each, cycling through the item types.
func SampleEntries(n int) []model.Entry {
	if n < 4 {
		n = 4
	}
	base := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	entries := []model.Entry{
		{ID: "folder-system", Kind: model.KindFolder, Name: "System",
			Role: model.RoleSystem, Caps: model.CanCopy, CreatedAt: base},
		{ID: "folder-trash", Kind: model.KindFolder, Name: "Trash",
			Role: model.RoleTrash, Caps: model.CanCopy, CreatedAt: base.Add(time.Minute)},
	}

	parent := ""
	for i := 0; len(entries) < n; i++ {
		created := base.Add(time.Duration(i+1) * time.Hour)
		if i%10 == 0 {
			fi := i / 10
			parent = fmt.Sprintf("folder-%03d", fi)
			entries = append(entries, model.Entry{
				ID:        parent,
				Kind:      model.KindFolder,
				Name:      fmt.Sprintf("%s %d", sampleFolders[fi%len(sampleFolders)], fi+1),
				Role:      model.RoleNormal,
				Caps:      model.DefaultCaps,
				CreatedAt: created,
			})
			continue
		}
		spec := sampleItems[i%len(sampleItems)]
		entries = append(entries, model.Entry{
			ID:        fmt.Sprintf("item-%04d", i),
			ParentID:  parent,
			Kind:      model.KindItem,
			Name:      fmt.Sprintf(spec.name, i),
			Type:      spec.tc,
			Caps:      model.DefaultCaps,
			CreatedAt: created,
		})
	}
	return entries
}
