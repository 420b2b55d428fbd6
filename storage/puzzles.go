package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"sync"
)

// PuzzleMeta is the summary block written alongside the puzzles. Keys other
// than the two it maintains are kept in Extra and written back unchanged.
type PuzzleMeta struct {
	TotalPuzzles int                        `json:"total_puzzles"`
	DateRange    string                     `json:"date_range"`
	Extra        map[string]json.RawMessage `json:"-"`
}

// MarshalJSON writes the maintained keys first, then Extra by key.
func (m PuzzleMeta) MarshalJSON() ([]byte, error) {
	return marshalObject([]jsonField{
		{"total_puzzles", m.TotalPuzzles},
		{"date_range", m.DateRange},
	}, m.Extra)
}

// UnmarshalJSON reads the maintained keys and keeps the rest in Extra.
func (m *PuzzleMeta) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if v, ok := fields["total_puzzles"]; ok {
		if err := json.Unmarshal(v, &m.TotalPuzzles); err != nil {
			return fmt.Errorf("total_puzzles: %w", err)
		}
		delete(fields, "total_puzzles")
	}
	if v, ok := fields["date_range"]; ok {
		if err := json.Unmarshal(v, &m.DateRange); err != nil {
			return fmt.Errorf("date_range: %w", err)
		}
		delete(fields, "date_range")
	}
	m.Extra = nil
	if len(fields) > 0 {
		m.Extra = fields
	}
	return nil
}

// Puzzles maps a year to its ordered hints. It marshals with years in
// numeric order.
type Puzzles map[int][]string

// MarshalJSON writes years in ascending numeric order, so negative years
// come first.
func (p Puzzles) MarshalJSON() ([]byte, error) {
	years := p.years()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, year := range years {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(strconv.Itoa(year))
		buf.Write(key)
		buf.WriteByte(':')

		hints := p[year]
		if hints == nil {
			hints = []string{}
		}
		val, err := marshalNoEscape(hints)
		if err != nil {
			return nil, fmt.Errorf("marshal year %d: %w", year, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p Puzzles) years() []int {
	years := make([]int, 0, len(p))
	for y := range p {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// PuzzleDocument is the on-disk puzzles.json shape. Unknown top-level keys
// are kept in Extra.
type PuzzleDocument struct {
	Puzzles Puzzles                    `json:"puzzles"`
	Meta    PuzzleMeta                 `json:"meta"`
	Extra   map[string]json.RawMessage `json:"-"`
}

// MarshalJSON writes puzzles, then meta, then Extra by key.
func (d PuzzleDocument) MarshalJSON() ([]byte, error) {
	return marshalObject([]jsonField{
		{"puzzles", d.Puzzles},
		{"meta", d.Meta},
	}, d.Extra)
}

// refreshMeta recomputes the meta block from the puzzles.
func (d *PuzzleDocument) refreshMeta() {
	years := d.Puzzles.years()
	d.Meta.TotalPuzzles = len(years)
	d.Meta.DateRange = ""
	if len(years) > 0 {
		d.Meta.DateRange = fmt.Sprintf("%d-%d", years[0], years[len(years)-1])
	}
}

// PuzzleFile manages the puzzles.json document. Writes replace the file
// atomically.
type PuzzleFile struct {
	mu   sync.Mutex
	path string
}

// NewPuzzleFile returns a manager for the document at path.
func NewPuzzleFile(path string) *PuzzleFile {
	return &PuzzleFile{path: path}
}

// Path returns the document path.
func (f *PuzzleFile) Path() string {
	return f.path
}

// Load reads the document. A missing file is an error wrapping
// os.ErrNotExist.
func (f *PuzzleFile) Load() (*PuzzleDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *PuzzleFile) load() (*PuzzleDocument, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read puzzles file: %w", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("parse puzzles file: %w", err)
	}

	var rawPuzzles map[string][]string
	if v, ok := top["puzzles"]; ok {
		if err := json.Unmarshal(v, &rawPuzzles); err != nil {
			return nil, fmt.Errorf("parse puzzles file: %w", err)
		}
		delete(top, "puzzles")
	}

	doc := &PuzzleDocument{Puzzles: make(Puzzles, len(rawPuzzles))}
	if v, ok := top["meta"]; ok {
		if err := json.Unmarshal(v, &doc.Meta); err != nil {
			return nil, fmt.Errorf("parse puzzles meta: %w", err)
		}
		delete(top, "meta")
	}
	if len(top) > 0 {
		doc.Extra = top
	}

	for key, hints := range rawPuzzles {
		year, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("parse puzzles file: invalid year key %q", key)
		}
		doc.Puzzles[year] = hints
	}
	return doc, nil
}

// loadOrEmpty is load, but a missing file yields an empty document.
func (f *PuzzleFile) loadOrEmpty() (*PuzzleDocument, error) {
	doc, err := f.load()
	if errors.Is(err, os.ErrNotExist) {
		return &PuzzleDocument{Puzzles: Puzzles{}}, nil
	}
	return doc, err
}

func (f *PuzzleFile) save(doc *PuzzleDocument) error {
	doc.refreshMeta()

	data, err := marshalIndentNoEscape(doc)
	if err != nil {
		return fmt.Errorf("marshal puzzles: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create puzzles dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".puzzles-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write puzzles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close puzzles: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace puzzles file: %w", err)
	}
	return nil
}

// Add stores hints for a new year. It fails with ErrYearExists when the year
// is already present. The file must exist.
func (f *PuzzleFile) Add(year int, hints []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Puzzles[year]; ok {
		return fmt.Errorf("year %d: %w", year, ErrYearExists)
	}
	doc.Puzzles[year] = slices.Clone(hints)
	return f.save(doc)
}

// Update replaces the hints of an existing year. It fails with ErrNotFound
// when the year is absent.
func (f *PuzzleFile) Update(year int, hints []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Puzzles[year]; !ok {
		return fmt.Errorf("year %d: %w", year, ErrNotFound)
	}
	doc.Puzzles[year] = slices.Clone(hints)
	return f.save(doc)
}

// ImportClues upserts the hints for year, creating the file if needed.
func (f *PuzzleFile) ImportClues(ctx context.Context, year int, clues []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.loadOrEmpty()
	if err != nil {
		return err
	}
	doc.Puzzles[year] = slices.Clone(clues)
	return f.save(doc)
}

// Get returns the hints stored for year.
func (f *PuzzleFile) Get(year int) ([]string, error) {
	doc, err := f.Load()
	if err != nil {
		return nil, err
	}
	hints, ok := doc.Puzzles[year]
	if !ok {
		return nil, fmt.Errorf("year %d: %w", year, ErrNotFound)
	}
	return hints, nil
}

// Years lists stored years in ascending order. A missing file has no years.
func (f *PuzzleFile) Years() ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.loadOrEmpty()
	if err != nil {
		return nil, err
	}
	return doc.Puzzles.years(), nil
}

type jsonField struct {
	key   string
	value any
}

// marshalObject encodes fields in order followed by the extra keys sorted.
func marshalObject(fields []jsonField, extra map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		val, err := marshalNoEscape(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		buf.Write(val)
		return nil
	}
	for _, f := range fields {
		if err := write(f.key, f.value); err != nil {
			return nil, err
		}
	}
	for _, key := range slices.Sorted(maps.Keys(extra)) {
		if err := write(key, extra[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func marshalIndentNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
