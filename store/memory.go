package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/BaSui01/blockflow/graph"
)

// MemoryStore is an in-process GraphStore, DraftStore and RunStore.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string][]Snapshot // per workflow, creation order
	drafts   map[string]Draft
	runs     map[string]Run
	opts     options
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		versions: make(map[string][]Snapshot),
		drafts:   make(map[string]Draft),
		runs:     make(map[string]Run),
		opts:     newOptions("memory_store", opts),
	}
}

const memoryBackend = "memory"

// track reports the operation with its final error when the returned func runs.
func (s *MemoryStore) track(op string, err *error) func() {
	start := s.opts.now()
	return func() { s.opts.observe(memoryBackend, op, start, *err) }
}

// Load returns the active graph.
func (s *MemoryStore) Load(_ context.Context, workflowID string) (_ graph.Graph, err error) {
	defer s.track("load", &err)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[workflowID] {
		if v.Active {
			return v.Graph, nil
		}
	}
	return graph.Graph{}, ErrNotFound
}

// Save creates and activates a new version.
func (s *MemoryStore) Save(_ context.Context, workflowID string, g graph.Graph, code string) (_ Version, err error) {
	defer s.track("save", &err)()
	if err := validID("workflow", workflowID); err != nil {
		return Version{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.versions[workflowID]
	now := s.opts.now()
	name := VersionName(now, func(n string) bool { return indexOf(list, n) >= 0 })
	for i := range list {
		list[i].Active = false
	}
	snap := Snapshot{
		Version: Version{WorkflowID: workflowID, Name: name, Active: true, CreatedAt: now.UTC()},
		Graph:   g,
		Code:    code,
	}
	s.versions[workflowID] = append(list, snap)
	return snap.Version, nil
}

// ListVersions returns versions latest first.
func (s *MemoryStore) ListVersions(_ context.Context, workflowID string) (_ []Version, err error) {
	defer s.track("list_versions", &err)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.versions[workflowID]
	out := make([]Version, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i].Version)
	}
	return out, nil
}

// LoadVersion returns one version with its content.
func (s *MemoryStore) LoadVersion(_ context.Context, workflowID, name string) (_ Snapshot, err error) {
	defer s.track("load_version", &err)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.versions[workflowID]
	i := indexOf(list, name)
	if i < 0 {
		return Snapshot{}, ErrNotFound
	}
	return list[i], nil
}

// ActivateVersion makes name the active version.
func (s *MemoryStore) ActivateVersion(_ context.Context, workflowID, name string) (err error) {
	defer s.track("activate_version", &err)()
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.versions[workflowID]
	i := indexOf(list, name)
	if i < 0 {
		return ErrNotFound
	}
	for j := range list {
		list[j].Active = j == i
	}
	return nil
}

// DeleteVersion removes an inactive version.
func (s *MemoryStore) DeleteVersion(_ context.Context, workflowID, name string) (err error) {
	defer s.track("delete_version", &err)()
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.versions[workflowID]
	i := indexOf(list, name)
	if i < 0 {
		return ErrNotFound
	}
	if list[i].Active {
		return ErrVersionActive
	}
	s.versions[workflowID] = append(list[:i:i], list[i+1:]...)
	return nil
}

func indexOf(list []Snapshot, name string) int {
	for i, v := range list {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// GetDraft returns the draft for a workflow.
func (s *MemoryStore) GetDraft(_ context.Context, workflowID string) (_ Draft, err error) {
	defer s.track("get_draft", &err)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[workflowID]
	if !ok {
		return Draft{}, ErrNotFound
	}
	return d, nil
}

// PutDraft replaces the draft for a workflow.
func (s *MemoryStore) PutDraft(_ context.Context, workflowID string, g graph.Graph) (_ Draft, err error) {
	defer s.track("put_draft", &err)()
	if err := validID("workflow", workflowID); err != nil {
		return Draft{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := Draft{WorkflowID: workflowID, Graph: g, UpdatedAt: s.opts.now().UTC()}
	s.drafts[workflowID] = d
	return d, nil
}

// DeleteDraft removes the draft; deleting a missing draft is not an error.
func (s *MemoryStore) DeleteDraft(_ context.Context, workflowID string) (err error) {
	defer s.track("delete_draft", &err)()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, workflowID)
	return nil
}

// CreateRun stores a new run.
func (s *MemoryStore) CreateRun(_ context.Context, run *Run) (err error) {
	defer s.track("create_run", &err)()
	if err := validID("workflow", run.WorkflowID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = RunQueued
	}
	now := s.opts.now().UTC()
	run.CreatedAt, run.UpdatedAt = now, now
	s.runs[run.ID] = *run
	return nil
}

// UpdateRun overwrites status, counters and logs of an existing run.
func (s *MemoryStore) UpdateRun(_ context.Context, run *Run) (err error) {
	defer s.track("update_run", &err)()
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.runs[run.ID]
	if !ok {
		return ErrNotFound
	}
	run.CreatedAt = old.CreatedAt
	run.UpdatedAt = s.opts.now().UTC()
	s.runs[run.ID] = *run
	return nil
}

// GetRun returns one run.
func (s *MemoryStore) GetRun(_ context.Context, id string) (_ Run, err error) {
	defer s.track("get_run", &err)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return r, nil
}

// ListRuns returns runs of a workflow, newest first.
func (s *MemoryStore) ListRuns(_ context.Context, workflowID string, limit int) (_ []Run, err error) {
	defer s.track("list_runs", &err)()
	s.mu.RLock()
	var out []Run
	for _, r := range s.runs {
		if r.WorkflowID == workflowID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ GraphStore = (*MemoryStore)(nil)
	_ DraftStore = (*MemoryStore)(nil)
	_ RunStore   = (*MemoryStore)(nil)
)
