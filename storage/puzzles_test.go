package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, content string) *PuzzleFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "puzzles.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return NewPuzzleFile(path)
}

func TestPuzzleFile_AddSortsYearsAndUpdatesMeta(t *testing.T) {
	f := writeDoc(t, `{"puzzles":{"1969":["Moon landing"]},"meta":{"total_puzzles":1,"date_range":"1969-1969"}}`)

	require.NoError(t, f.Add(-44, []string{"Caesar is stabbed"}))
	require.NoError(t, f.Add(476, []string{"Rome falls"}))

	doc, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Meta.TotalPuzzles)
	assert.Equal(t, "-44-1969", doc.Meta.DateRange)

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	text := string(data)
	assert.Less(t, strings.Index(text, `"-44"`), strings.Index(text, `"476"`))
	assert.Less(t, strings.Index(text, `"476"`), strings.Index(text, `"1969"`))
	assert.Contains(t, text, "\n  \"puzzles\": {")
}

func TestPuzzleFile_AddExistingYear(t *testing.T) {
	f := writeDoc(t, `{"puzzles":{"1969":["Moon landing"]},"meta":{}}`)

	err := f.Add(1969, []string{"other"})
	assert.ErrorIs(t, err, ErrYearExists)

	hints, err := f.Get(1969)
	require.NoError(t, err)
	assert.Equal(t, []string{"Moon landing"}, hints)
}

func TestPuzzleFile_UpdateMissingYear(t *testing.T) {
	f := writeDoc(t, `{"puzzles":{},"meta":{}}`)

	err := f.Update(1066, []string{"Norman conquest"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPuzzleFile_Update(t *testing.T) {
	f := writeDoc(t, `{"puzzles":{"1066":["old"]},"meta":{}}`)

	require.NoError(t, f.Update(1066, []string{"William crowned at Westminster"}))

	hints, err := f.Get(1066)
	require.NoError(t, err)
	assert.Equal(t, []string{"William crowned at Westminster"}, hints)
}

func TestPuzzleFile_AddRequiresFile(t *testing.T) {
	f := NewPuzzleFile(filepath.Join(t.TempDir(), "missing.json"))

	err := f.Add(1969, []string{"x"})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPuzzleFile_ImportCreatesAndUpserts(t *testing.T) {
	f := NewPuzzleFile(filepath.Join(t.TempDir(), "data", "puzzles.json"))
	ctx := context.Background()

	require.NoError(t, f.ImportClues(ctx, 1969, []string{"Astronauts walk on the Moon"}))
	require.NoError(t, f.ImportClues(ctx, 1969, []string{"Woodstock draws a vast crowd"}))

	hints, err := f.Get(1969)
	require.NoError(t, err)
	assert.Equal(t, []string{"Woodstock draws a vast crowd"}, hints)

	years, err := f.Years()
	require.NoError(t, err)
	assert.Equal(t, []int{1969}, years)
}

func TestPuzzleFile_PreservesUnicodeAndHTML(t *testing.T) {
	f := NewPuzzleFile(filepath.Join(t.TempDir(), "puzzles.json"))

	require.NoError(t, f.ImportClues(context.Background(), 1889, []string{"Eiffel's tower opens in Paris & dazzles <visitors>", "Émile Zola écrit"}))

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "& dazzles <visitors>")
	assert.Contains(t, string(data), "Émile Zola écrit")
}

func TestPuzzleFile_EmptyMeta(t *testing.T) {
	doc := &PuzzleDocument{Puzzles: Puzzles{}}
	doc.refreshMeta()
	assert.Equal(t, 0, doc.Meta.TotalPuzzles)
	assert.Equal(t, "", doc.Meta.DateRange)
}

func TestPuzzleFile_YearsMissingFile(t *testing.T) {
	f := NewPuzzleFile(filepath.Join(t.TempDir(), "none.json"))
	years, err := f.Years()
	require.NoError(t, err)
	assert.Empty(t, years)
}

func TestPuzzleFile_InvalidYearKey(t *testing.T) {
	f := writeDoc(t, `{"puzzles":{"nineteen":["x"]},"meta":{}}`)
	_, err := f.Load()
	assert.Error(t, err)
}

func TestPuzzleFile_KeepsUnknownKeys(t *testing.T) {
	f := writeDoc(t, `{
  "puzzles": {"1969": ["Moon landing"]},
  "meta": {"total_puzzles": 1, "date_range": "1969-1969", "source": "manual"},
  "version": 2
}`)

	require.NoError(t, f.Add(1066, []string{"Norman conquest"}))

	doc, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Meta.TotalPuzzles)
	assert.Equal(t, "1066-1969", doc.Meta.DateRange)
	assert.JSONEq(t, `"manual"`, string(doc.Meta.Extra["source"]))
	assert.JSONEq(t, `2`, string(doc.Extra["version"]))
	assert.NotContains(t, doc.Extra, "puzzles")
	assert.NotContains(t, doc.Meta.Extra, "total_puzzles")

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{
  "puzzles": {"1066": ["Norman conquest"], "1969": ["Moon landing"]},
  "meta": {"total_puzzles": 2, "date_range": "1066-1969", "source": "manual"},
  "version": 2
}`, string(data))

	text := string(data)
	assert.Less(t, strings.Index(text, `"puzzles"`), strings.Index(text, `"meta"`))
	assert.Less(t, strings.Index(text, `"meta"`), strings.Index(text, `"version"`))
}
