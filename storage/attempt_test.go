package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptFile_RecordAndRecent(t *testing.T) {
	f := NewAttemptFile(filepath.Join(t.TempDir(), "logs", "attempts.jsonl"))
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, year := range []int{1969, 1066, -44} {
		require.NoError(t, f.RecordAttempt(ctx, AttemptRecord{
			Year:      year,
			Era:       "CE",
			Status:    AttemptSuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := f.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, -44, recent[0].Year)
	assert.Equal(t, 1066, recent[1].Year)
	assert.NotEmpty(t, recent[0].ID)

	all, err := f.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAttemptFile_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attempts.jsonl")
	content := `{"id":"a","year":1969,"status":"failed","created_at":"2026-01-01T00:00:00Z"}
not json

{"id":"b","year":1970,"status":"success","created_at":"2026-01-02T00:00:00Z"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	recent, err := NewAttemptFile(path).Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].ID)
	assert.Equal(t, AttemptFailed, recent[1].Status)
}

func TestAttemptFile_MissingFile(t *testing.T) {
	recent, err := NewAttemptFile(filepath.Join(t.TempDir(), "none.jsonl")).Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestAttemptRecord_Prepare(t *testing.T) {
	r := AttemptRecord{ID: "fixed"}
	r.prepare()
	assert.Equal(t, "fixed", r.ID)
	assert.False(t, r.CreatedAt.IsZero())

	var empty AttemptRecord
	empty.prepare()
	assert.Len(t, empty.ID, 36)
}
