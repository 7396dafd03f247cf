// Package journal records the stages of every mutating endpoint run. It
// does not compensate: a failed run leaves earlier steps applied, and the
// journal is what an operator reconciles from.
package journal

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"sync"
	"time"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/auth"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/ids"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/obs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema files for migrate.Manager.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Entry is one stage outcome.
type Entry struct {
	ID         string    `json:"id"`
	RunID      string    `json:"runID"`
	Operation  string    `json:"operation"`
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	RequestID  string    `json:"requestID,omitempty"`
	CallerID   string    `json:"callerID,omitempty"`
	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Store persists entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Run(ctx context.Context, runID string) ([]Entry, error)
}

var ErrUnknownRun = errors.New("journal: unknown run")

type runKey struct{}

// WithRun starts a run and returns its id.
func WithRun(ctx context.Context) (context.Context, string) {
	id := ids.New()
	return context.WithValue(ctx, runKey{}, id), id
}

// RunID returns the run started by WithRun.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runKey{}).(string)
	return id
}

// Recorder is a pipeline observer writing to a Store. Store errors are
// logged and never fail the request.
type Recorder struct {
	store Store
	now   func() time.Time
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// StageDone implements pipeline.Observer.
func (r *Recorder) StageDone(ctx context.Context, operation, stage string, err error) {
	if r == nil || r.store == nil {
		return
	}
	e := Entry{
		ID:         ids.New(),
		RunID:      RunID(ctx),
		Operation:  operation,
		Stage:      stage,
		Status:     StatusCompleted,
		RequestID:  obs.RequestIDFromContext(ctx),
		CallerID:   auth.CallerID(ctx),
		RecordedAt: r.now().UTC(),
	}
	if e.RunID == "" {
		e.RunID = e.RequestID
	}
	if err != nil {
		e.Status = StatusFailed
		e.Error = err.Error()
	}
	if aerr := r.store.Append(context.WithoutCancel(ctx), e); aerr != nil {
		obs.Warn("journal_append_failed", map[string]any{
			"request_id": e.RequestID,
			"operation":  operation,
			"stage":      stage,
			"error":      aerr.Error(),
		})
	}
}

// DefaultMemoryLimit bounds NewMemory.
const DefaultMemoryLimit = 10000

// Memory keeps the most recent entries in process; the oldest are dropped
// once limit is reached. Used in tests.
type Memory struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
}

func NewMemory() *Memory { return NewMemoryLimit(DefaultMemoryLimit) }

// NewMemoryLimit keeps at most limit entries; limit <= 0 means the default.
func NewMemoryLimit(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Memory{limit: limit}
}

func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) >= m.limit {
		n := copy(m.entries, m.entries[len(m.entries)-m.limit+1:])
		m.entries = m.entries[:n]
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) Run(_ context.Context, runID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, ErrUnknownRun
	}
	return out, nil
}

// Entries returns everything recorded so far.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// LogStore writes entries as log lines and keeps nothing. It is the store
// used when no DSN is configured.
type LogStore struct{}

func (LogStore) Append(_ context.Context, e Entry) error {
	fields := map[string]any{
		"run_id":     e.RunID,
		"operation":  e.Operation,
		"stage":      e.Stage,
		"status":     e.Status,
		"request_id": e.RequestID,
		"user_id":    e.CallerID,
	}
	if e.Error != "" {
		fields["error"] = e.Error
		obs.Warn("journal_step", fields)
		return nil
	}
	obs.Info("journal_step", fields)
	return nil
}

func (LogStore) Run(context.Context, string) ([]Entry, error) {
	return nil, ErrUnknownRun
}
