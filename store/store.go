package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/graph"
)

var (
	// ErrNotFound is returned when a workflow, version, draft or run does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionActive is returned when deleting the active version.
	ErrVersionActive = errors.New("version is active")
)

// VersionLayout formats version names from their creation time.
const VersionLayout = "2006-01-02T15-04-05"

// Version describes one saved snapshot of a workflow graph.
type Version struct {
	WorkflowID string    `json:"workflow_id"`
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Snapshot is a version with its content.
type Snapshot struct {
	Version
	Graph graph.Graph `json:"graph"`
	Code  string      `json:"code"`
}

// GraphStore persists workflow graphs as named versions. Exactly one version
// per workflow is active; Load returns it.
type GraphStore interface {
	Load(ctx context.Context, workflowID string) (graph.Graph, error)
	// Save stores g with its generated code as a new version named after the
	// current time and makes it active.
	Save(ctx context.Context, workflowID string, g graph.Graph, code string) (Version, error)
	// ListVersions returns versions latest first.
	ListVersions(ctx context.Context, workflowID string) ([]Version, error)
	LoadVersion(ctx context.Context, workflowID, name string) (Snapshot, error)
	ActivateVersion(ctx context.Context, workflowID, name string) error
	DeleteVersion(ctx context.Context, workflowID, name string) error
}

// Draft is unsaved editor state.
type Draft struct {
	WorkflowID string      `json:"workflow_id"`
	Graph      graph.Graph `json:"graph"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// DraftStore keeps one draft per workflow.
type DraftStore interface {
	GetDraft(ctx context.Context, workflowID string) (Draft, error)
	PutDraft(ctx context.Context, workflowID string, g graph.Graph) (Draft, error)
	DeleteDraft(ctx context.Context, workflowID string) error
}

// RunStatus is the lifecycle state of a run record.
type RunStatus string

const (
	RunQueued    RunStatus = "QUEUED"
	RunRunning   RunStatus = "RUNNING"
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// Run records one batch execution of a workflow session.
type Run struct {
	ID         string     `json:"id"`
	WorkflowID string     `json:"workflow_id"`
	SessionID  string     `json:"session_id,omitempty"`
	Status     RunStatus  `json:"status"`
	Steps      int        `json:"steps"`
	Failures   int        `json:"failures"`
	Output     string     `json:"output"`
	Error      string     `json:"error"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunStore persists run records.
type RunStore interface {
	// CreateRun assigns an ID when empty and sets the timestamps.
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns the newest runs first; limit <= 0 means no limit.
	ListRuns(ctx context.Context, workflowID string, limit int) ([]Run, error)
}

// Recorder observes store operations.
type Recorder interface {
	RecordStoreOp(backend, op string, err error, dur time.Duration)
}

// Option configures a store.
type Option func(*options)

type options struct {
	now      func() time.Time
	recorder Recorder
	logger   *zap.Logger
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithRecorder reports operation outcomes and durations.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(component string, opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.With(zap.String("component", component))
	return o
}

// observe reports an operation when a recorder is set. Not-found results
// count as success.
func (o options) observe(backend, op string, start time.Time, err error) {
	if o.recorder == nil {
		return
	}
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	o.recorder.RecordStoreOp(backend, op, err, o.now().Sub(start))
}

// VersionName returns the version name for t, suffixed with _2, _3, ...
// when taken reports a collision.
func VersionName(t time.Time, taken func(string) bool) string {
	base := t.UTC().Format(VersionLayout)
	name := base
	for i := 2; taken(name); i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	return name
}

func validID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s id is required", kind)
	}
	return nil
}
