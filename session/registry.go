package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/interp"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLimit    = errors.New("session limit reached")
)

// Gauge tracks the number of live sessions.
type Gauge interface {
	SetActiveSessions(n int)
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// IdleTTL closes sessions unused for longer. Zero disables expiry.
	IdleTTL time.Duration
	// MaxSessions bounds live sessions. Zero means unbounded.
	MaxSessions int
	// SweepInterval is how often Run checks for idle sessions.
	SweepInterval time.Duration
}

// Entry pairs a controller with its registry metadata.
type Entry struct {
	ID         string
	WorkflowID string
	CreatedAt  time.Time
	Controller *Controller
}

// Registry owns the live sessions of a process.
type Registry struct {
	cfg     RegistryConfig
	factory interp.Factory
	opts    []Option
	gauge   Gauge
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Entry
}

// NewRegistry creates a registry whose controllers use factory and opts.
func NewRegistry(cfg RegistryConfig, factory interp.Factory, gauge Gauge, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Registry{
		cfg:      cfg,
		factory:  factory,
		opts:     opts,
		gauge:    gauge,
		logger:   logger.With(zap.String("component", "session_registry")),
		now:      time.Now,
		sessions: make(map[string]*Entry),
	}
}

// Create registers a new idle session.
func (r *Registry) Create(workflowID string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		return nil, ErrSessionLimit
	}
	e := &Entry{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		CreatedAt:  r.now(),
		Controller: New(r.factory, r.opts...),
	}
	r.sessions[e.ID] = e
	r.updateGaugeLocked()
	r.logger.Info("session created", zap.String("session_id", e.ID), zap.String("workflow_id", workflowID))
	return e, nil
}

// Get returns a live session.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// List returns the live sessions, oldest first.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	out := make([]*Entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		r.updateGaugeLocked()
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	r.logger.Info("session removed", zap.String("session_id", id))
	return e.Controller.Close()
}

// Sweep closes sessions idle for longer than IdleTTL and returns how many
// were closed. Running sessions are never swept.
func (r *Registry) Sweep() int {
	if r.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	var expired []*Entry
	for id, e := range r.sessions {
		c := e.Controller
		if c.Snapshot(false).State == StateRunning || !c.LastActive().Before(cutoff) {
			continue
		}
		expired = append(expired, e)
		delete(r.sessions, id)
	}
	if len(expired) > 0 {
		r.updateGaugeLocked()
	}
	r.mu.Unlock()

	for _, e := range expired {
		if err := e.Controller.Close(); err != nil {
			r.logger.Warn("failed to close expired session", zap.String("session_id", e.ID), zap.Error(err))
		}
		r.logger.Info("session expired", zap.String("session_id", e.ID))
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done, then closes every session.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// CloseAll closes and forgets every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Entry)
	r.updateGaugeLocked()
	r.mu.Unlock()

	for id, e := range all {
		if err := e.Controller.Close(); err != nil {
			r.logger.Warn("failed to close session", zap.String("session_id", id), zap.Error(err))
		}
	}
}

func (r *Registry) updateGaugeLocked() {
	if r.gauge != nil {
		r.gauge.SetActiveSessions(len(r.sessions))
	}
}
