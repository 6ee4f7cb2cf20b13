package datasource

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/canopy/pkg/debug"
	"github.com/vanderheijden86/canopy/pkg/model"
)

// maxLineBytes bounds a single JSONL line; longer lines are skipped.
const maxLineBytes = 1024 * 1024

// jsonlRecord is the wire form of one entry. Enumerations travel as the
// model's string codes so the export stays hand-editable.
type jsonlRecord struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Type      string    `json:"type,omitempty"`
	Role      string    `json:"role,omitempty"`
	Caps      uint8     `json:"caps"`
	CreatedAt time.Time `json:"created_at"`
}

func recordOf(e model.Entry) jsonlRecord {
	rec := jsonlRecord{
		ID:        e.ID,
		ParentID:  e.ParentID,
		Kind:      e.Kind.String(),
		Name:      e.Name,
		Role:      e.Role.String(),
		Caps:      uint8(e.Caps),
		CreatedAt: e.CreatedAt,
	}
	if e.Kind == model.KindItem {
		rec.Type = e.Type.String()
	}
	return rec
}

func (rec jsonlRecord) entry() (model.Entry, error) {
	e := model.Entry{
		ID:        rec.ID,
		ParentID:  rec.ParentID,
		Name:      rec.Name,
		Caps:      model.CapFlags(rec.Caps),
		CreatedAt: rec.CreatedAt,
	}
	k, err := model.ParseKind(rec.Kind)
	if err != nil {
		return model.Entry{}, fmt.Errorf("entry %s: %w", rec.ID, err)
	}
	e.Kind = k
	if k == model.KindFolder {
		r, err := model.ParseRole(rec.Role)
		if err != nil {
			return model.Entry{}, fmt.Errorf("entry %s: %w", rec.ID, err)
		}
		e.Role = r
	} else if rec.Type != "" {
		t, err := model.ParseTypeCode(rec.Type)
		if err != nil {
			return model.Entry{}, fmt.Errorf("entry %s: %w", rec.ID, err)
		}
		e.Type = t
	}
	if err := e.Validate(); err != nil {
		return model.Entry{}, err
	}
	return e, nil
}

// JSONLStore serves an inventory from a line-delimited JSON export. The
// whole file loads up front, so children are always available; the
// export is treated as read-only and every mutation is refused.
type JSONLStore struct {
	src      DataSource
	entries  []model.Entry
	byParent map[string][]model.Entry
}

// NewJSONLStore reads the export fully into memory.
func NewJSONLStore(src DataSource) (*JSONLStore, error) {
	if src.Type != SourceTypeJSONL {
		return nil, fmt.Errorf("source is not jsonl: %s", src.Type)
	}
	s := &JSONLStore{src: src}
	if err := s.ReloadFromDisk(); err != nil {
		return nil, err
	}
	return s, nil
}

// ReloadFromDisk re-reads the export after an external change. The store
// is not safe for concurrent mutation; reload on the goroutine that
// serves reads.
func (s *JSONLStore) ReloadFromDisk() error {
	f, err := os.Open(s.src.Path)
	if err != nil {
		return fmt.Errorf("cannot open export: %w", err)
	}
	defer f.Close()

	entries, err := ParseEntries(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.src.Path, err)
	}
	byParent := make(map[string][]model.Entry)
	for _, e := range entries {
		byParent[e.ParentID] = append(byParent[e.ParentID], e)
	}
	s.entries = entries
	s.byParent = byParent
	return nil
}

// ParseEntries reads JSONL content line by line. Malformed or invalid
// lines are skipped with a debug note; only a broken stream fails.
func ParseEntries(r io.Reader) ([]model.Entry, error) {
	reader := bufio.NewReaderSize(r, maxLineBytes)

	var entries []model.Entry
	lineNum := 0
	for {
		lineNum++
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read line %d: %w", lineNum, err)
		}
		if isPrefix {
			debug.Log("jsonl: skipping line %d: longer than %d bytes", lineNum, maxLineBytes)
			for isPrefix {
				if _, isPrefix, err = reader.ReadLine(); err != nil {
					if err == io.EOF {
						break
					}
					return nil, fmt.Errorf("skip long line %d: %w", lineNum, err)
				}
			}
			continue
		}
		if len(line) == 0 {
			continue
		}
		if lineNum == 1 {
			line = stripBOM(line)
		}

		var rec jsonlRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			debug.Log("jsonl: skipping malformed line %d: %v", lineNum, err)
			continue
		}
		e, err := rec.entry()
		if err != nil {
			debug.Log("jsonl: skipping invalid line %d: %v", lineNum, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteEntriesJSONL writes entries as one record per line, for tests
// and export fixtures.
func WriteEntriesJSONL(path string, entries []model.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		line, err := json.Marshal(recordOf(e))
		if err != nil {
			return fmt.Errorf("encode %s: %w", e.ID, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write %s: %w", e.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	return f.Sync()
}

func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}

func (s *JSONLStore) Source() DataSource { return s.src }

func (s *JSONLStore) ReadOnly() bool { return true }

func (s *JSONLStore) Close() error { return nil }

func (s *JSONLStore) LoadRoots() ([]model.Entry, error) {
	return append([]model.Entry(nil), s.byParent[""]...), nil
}

func (s *JSONLStore) FetchChildren(folderID string) ([]model.Entry, error) {
	return append([]model.Entry(nil), s.byParent[folderID]...), nil
}

// ChildrenLoaded is always true: the full export is in memory.
func (s *JSONLStore) ChildrenLoaded(string) bool { return true }

func (s *JSONLStore) Snapshot() ([]model.Entry, error) {
	return append([]model.Entry(nil), s.entries...), nil
}

func (s *JSONLStore) CountEntries() (int, error) { return len(s.entries), nil }

func (s *JSONLStore) LastModified() (time.Time, error) {
	info, err := os.Stat(s.src.Path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (s *JSONLStore) RenameEntry(id, name string) error {
	return fmt.Errorf("rename %s: %w", id, ErrReadOnlySource)
}

func (s *JSONLStore) RemoveEntry(id string) error {
	return fmt.Errorf("remove %s: %w", id, ErrReadOnlySource)
}

func (s *JSONLStore) MoveEntry(id, newParentID string) error {
	return fmt.Errorf("move %s: %w", id, ErrReadOnlySource)
}
