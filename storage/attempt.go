package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// BucketAttempts holds one record per pipeline run.
const BucketAttempts = "YEARCLUE_ATTEMPTS"

// AttemptStatus is the outcome of one pipeline run.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// TokenTotals is the token usage persisted with an attempt.
type TokenTotals struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// AttemptRecord is the log entry written once per year per batch.
type AttemptRecord struct {
	ID              string        `json:"id"`
	Year            int           `json:"year"`
	Era             string        `json:"era"`
	Status          AttemptStatus `json:"status"`
	AttemptCount    int           `json:"attempt_count"`
	EventsGenerated int           `json:"events_generated"`
	TokenUsage      TokenTotals   `json:"token_usage"`
	CostUSD         float64       `json:"cost_usd"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// prepare fills ID and CreatedAt when unset.
func (r *AttemptRecord) prepare() {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
}

// newestFirst sorts records by CreatedAt descending and keeps at most limit
// (limit <= 0 keeps all).
func newestFirst(records []AttemptRecord, limit int) []AttemptRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// AttemptStore keeps attempt records in a JetStream KV bucket keyed by ID.
type AttemptStore struct {
	kv jetstream.KeyValue
}

// NewAttemptStore opens (or creates) the attempts bucket.
func NewAttemptStore(ctx context.Context, js jetstream.JetStream) (*AttemptStore, error) {
	kv, err := OpenBucket(ctx, js, BucketAttempts, "yearclue pipeline attempts")
	if err != nil {
		return nil, fmt.Errorf("open attempts bucket: %w", err)
	}
	return &AttemptStore{kv: kv}, nil
}

// RecordAttempt stores r, assigning an ID and timestamp when missing.
func (s *AttemptStore) RecordAttempt(ctx context.Context, r AttemptRecord) error {
	r.prepare()

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	if _, err := s.kv.Create(ctx, r.ID, data); err != nil {
		return fmt.Errorf("store attempt: %w", err)
	}
	return nil
}

// Get retrieves an attempt by ID.
func (s *AttemptStore) Get(ctx context.Context, id string) (*AttemptRecord, error) {
	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	var r AttemptRecord
	if err := json.Unmarshal(entry.Value(), &r); err != nil {
		return nil, fmt.Errorf("unmarshal attempt: %w", err)
	}
	return &r, nil
}

// Recent returns up to limit records, newest first.
func (s *AttemptStore) Recent(ctx context.Context, limit int) ([]AttemptRecord, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list attempt keys: %w", err)
	}

	records := make([]AttemptRecord, 0, len(keys))
	for _, key := range keys {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			continue // Skip entries deleted since listing
		}
		var r AttemptRecord
		if err := json.Unmarshal(entry.Value(), &r); err != nil {
			continue
		}
		records = append(records, r)
	}
	return newestFirst(records, limit), nil
}
