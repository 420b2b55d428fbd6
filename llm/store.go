package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360studio/yearclue/storage"
	"github.com/nats-io/nats.go/jetstream"
)

// BucketCalls holds one record per generation call.
const BucketCalls = "YEARCLUE_LLM_CALLS"

var (
	globalCallStore   *CallStore
	globalCallStoreMu sync.RWMutex
	initOnce          sync.Once
	initErr           error
)

// CallRecord describes one generation call across all its attempts.
type CallRecord struct {
	RequestID    string       `json:"request_id"`
	Trace        TraceContext `json:"trace"`
	Capability   string       `json:"capability"`
	Model        string       `json:"model"`
	ModelsTried  []string     `json:"models_tried,omitempty"`
	Attempts     int          `json:"attempts"`
	Usage        TokenUsage   `json:"usage"`
	FinishReason string       `json:"finish_reason,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  time.Time    `json:"completed_at"`
	DurationMs   int64        `json:"duration_ms"`
	Error        string       `json:"error,omitempty"`
}

// Key returns the KV key: run_id.request_id when the call belongs to a
// run, else the request id alone.
func (r *CallRecord) Key() string {
	if r.Trace.RunID != "" {
		return r.Trace.RunID + "." + r.RequestID
	}
	return r.RequestID
}

// CallRecorder persists call records.
type CallRecorder interface {
	Record(ctx context.Context, record *CallRecord) error
}

// kvPutter is the slice of jetstream.KeyValue the store writes through.
type kvPutter interface {
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// CallStore writes call records to a JetStream KV bucket.
type CallStore struct {
	kv     kvPutter
	logger *slog.Logger
}

// CallStoreOption configures a CallStore.
type CallStoreOption func(*CallStore)

// WithStoreLogger sets the logger for the call store.
func WithStoreLogger(logger *slog.Logger) CallStoreOption {
	return func(s *CallStore) {
		s.logger = logger
	}
}

// NewCallStore opens (or creates) the calls bucket.
func NewCallStore(ctx context.Context, js jetstream.JetStream, opts ...CallStoreOption) (*CallStore, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream required")
	}

	kv, err := storage.OpenBucket(ctx, js, BucketCalls, "Generation call records")
	if err != nil {
		return nil, fmt.Errorf("open calls bucket: %w", err)
	}
	return newCallStore(kv, opts...), nil
}

func newCallStore(kv kvPutter, opts ...CallStoreOption) *CallStore {
	s := &CallStore{
		kv:     kv,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitGlobalCallStore initializes the process-wide call store once.
// Every caller receives the result of the first initialization.
func InitGlobalCallStore(ctx context.Context, js jetstream.JetStream, opts ...CallStoreOption) error {
	initOnce.Do(func() {
		store, err := NewCallStore(ctx, js, opts...)
		if err != nil {
			initErr = err
			return
		}
		globalCallStoreMu.Lock()
		globalCallStore = store
		globalCallStoreMu.Unlock()
	})
	return initErr
}

// GlobalCallStore returns the process-wide call store, or nil.
func GlobalCallStore() *CallStore {
	globalCallStoreMu.RLock()
	defer globalCallStoreMu.RUnlock()
	return globalCallStore
}

// Record writes one call record.
func (s *CallStore) Record(ctx context.Context, record *CallRecord) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if record.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal call record: %w", err)
	}

	if _, err := s.kv.Put(ctx, record.Key(), data); err != nil {
		return fmt.Errorf("store call record: %w", err)
	}

	s.logger.Debug("Recorded generation call",
		"request_id", record.RequestID,
		"run_id", record.Trace.RunID,
		"capability", record.Capability)
	return nil
}

// SortByStartTime sorts records chronologically by StartedAt.
func SortByStartTime(records []*CallRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}

// TraceContext ties a call to the pipeline run and stage that made it.
type TraceContext struct {
	RunID string `json:"run_id,omitempty"`
	Stage string `json:"stage,omitempty"`
	Year  int    `json:"year,omitempty"`
}

type traceContextKey struct{}

// WithTraceContext adds trace information to a context.
func WithTraceContext(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// WithStage returns ctx with the trace's stage replaced.
func WithStage(ctx context.Context, stage string) context.Context {
	tc := GetTraceContext(ctx)
	tc.Stage = stage
	return WithTraceContext(ctx, tc)
}

// GetTraceContext extracts trace information from a context.
func GetTraceContext(ctx context.Context) TraceContext {
	if tc, ok := ctx.Value(traceContextKey{}).(TraceContext); ok {
		return tc
	}
	return TraceContext{}
}
