package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/graph"
	"github.com/BaSui01/blockflow/internal/cache"
)

const redisBackend = "redis"

// RedisDraftStore keeps drafts in Redis with a TTL refreshed on every write.
type RedisDraftStore struct {
	cache *cache.Manager
	ttl   time.Duration
	opts  options
}

// NewRedisDraftStore creates a draft store. ttl <= 0 uses the cache default.
func NewRedisDraftStore(m *cache.Manager, ttl time.Duration, opts ...Option) *RedisDraftStore {
	return &RedisDraftStore{cache: m, ttl: ttl, opts: newOptions("redis_draft_store", opts)}
}

func draftKey(workflowID string) string {
	return "draft:" + workflowID
}

// GetDraft returns the draft for a workflow.
func (s *RedisDraftStore) GetDraft(ctx context.Context, workflowID string) (d Draft, err error) {
	start := s.opts.now()
	defer func() { s.opts.observe(redisBackend, "get_draft", start, err) }()

	if err = s.cache.GetJSON(ctx, "draft", draftKey(workflowID), &d); err != nil {
		if cache.IsCacheMiss(err) {
			err = ErrNotFound
		}
		return Draft{}, err
	}
	return d, nil
}

// PutDraft replaces the draft for a workflow.
func (s *RedisDraftStore) PutDraft(ctx context.Context, workflowID string, g graph.Graph) (d Draft, err error) {
	start := s.opts.now()
	defer func() { s.opts.observe(redisBackend, "put_draft", start, err) }()

	if err = validID("workflow", workflowID); err != nil {
		return Draft{}, err
	}
	d = Draft{WorkflowID: workflowID, Graph: g, UpdatedAt: s.opts.now().UTC()}
	if err = s.cache.SetJSON(ctx, draftKey(workflowID), d, s.ttl); err != nil {
		s.opts.logger.Warn("draft write failed", zap.String("workflow_id", workflowID), zap.Error(err))
		return Draft{}, err
	}
	return d, nil
}

// DeleteDraft removes the draft; deleting a missing draft is not an error.
func (s *RedisDraftStore) DeleteDraft(ctx context.Context, workflowID string) (err error) {
	start := s.opts.now()
	defer func() { s.opts.observe(redisBackend, "delete_draft", start, err) }()

	_, err = s.cache.Delete(ctx, draftKey(workflowID))
	if errors.Is(err, cache.ErrCacheMiss) {
		err = nil
	}
	return err
}

var _ DraftStore = (*RedisDraftStore)(nil)
