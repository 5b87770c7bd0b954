package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/blockflow/graph"
	"github.com/BaSui01/blockflow/internal/database"
)

// versionRow maps the workflow_versions table.
type versionRow struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	WorkflowID string    `gorm:"column:workflow_id;size:128;not null"`
	Name       string    `gorm:"column:name;size:64;not null"`
	Graph      string    `gorm:"column:graph;type:text;not null"`
	Code       string    `gorm:"column:code;type:text;not null"`
	Active     bool      `gorm:"column:active;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (versionRow) TableName() string { return "workflow_versions" }

func (r versionRow) version() Version {
	return Version{WorkflowID: r.WorkflowID, Name: r.Name, Active: r.Active, CreatedAt: r.CreatedAt.UTC()}
}

// runRow maps the workflow_runs table.
type runRow struct {
	ID         string     `gorm:"column:id;primaryKey;size:36"`
	WorkflowID string     `gorm:"column:workflow_id;size:128;not null"`
	SessionID  string     `gorm:"column:session_id;size:36;not null"`
	Status     string     `gorm:"column:status;size:16;not null"`
	Steps      int        `gorm:"column:steps;not null"`
	Failures   int        `gorm:"column:failures;not null"`
	Output     string     `gorm:"column:output;type:text;not null"`
	Error      string     `gorm:"column:error;type:text;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;not null"`
	FinishedAt *time.Time `gorm:"column:finished_at"`
}

func (runRow) TableName() string { return "workflow_runs" }

func (r runRow) run() Run {
	out := Run{
		ID:         r.ID,
		WorkflowID: r.WorkflowID,
		SessionID:  r.SessionID,
		Status:     RunStatus(r.Status),
		Steps:      r.Steps,
		Failures:   r.Failures,
		Output:     r.Output,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.FinishedAt != nil {
		t := r.FinishedAt.UTC()
		out.FinishedAt = &t
	}
	return out
}

func toRunRow(r *Run) runRow {
	return runRow{
		ID:         r.ID,
		WorkflowID: r.WorkflowID,
		SessionID:  r.SessionID,
		Status:     string(r.Status),
		Steps:      r.Steps,
		Failures:   r.Failures,
		Output:     r.Output,
		Error:      r.Error,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		FinishedAt: r.FinishedAt,
	}
}

// GormStore is a GraphStore and RunStore over a relational database. The
// schema comes from internal/migration.
type GormStore struct {
	pool *database.PoolManager
	opts options
}

// NewGormStore creates a store on an open pool.
func NewGormStore(pool *database.PoolManager, opts ...Option) *GormStore {
	return &GormStore{pool: pool, opts: newOptions("gorm_store", opts)}
}

const gormBackend = "gorm"

func (s *GormStore) db(ctx context.Context) *gorm.DB {
	return s.pool.DB().WithContext(ctx)
}

// track reports the operation with its final error when the returned func runs.
func (s *GormStore) track(op string, err *error) func() {
	start := s.opts.now()
	return func() { s.opts.observe(gormBackend, op, start, *err) }
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Load returns the active graph.
func (s *GormStore) Load(ctx context.Context, workflowID string) (g graph.Graph, err error) {
	defer s.track("load", &err)()
	var row versionRow
	if err = s.db(ctx).Where("workflow_id = ? AND active = ?", workflowID, true).Take(&row).Error; err != nil {
		err = notFound(err)
		return graph.Graph{}, err
	}
	g, err = graph.ParseJSON([]byte(row.Graph))
	if err != nil {
		return graph.Graph{}, fmt.Errorf("stored graph %s/%s: %w", workflowID, row.Name, err)
	}
	return g, nil
}

// Save creates and activates a new version in one transaction.
func (s *GormStore) Save(ctx context.Context, workflowID string, g graph.Graph, code string) (v Version, err error) {
	defer s.track("save", &err)()

	if err = validID("workflow", workflowID); err != nil {
		return Version{}, err
	}
	data, err := g.ToJSON()
	if err != nil {
		return Version{}, err
	}

	var row versionRow
	err = s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		now := s.opts.now().UTC()
		base := now.Format(VersionLayout)
		var names []string
		if err := tx.Model(&versionRow{}).
			Where("workflow_id = ? AND (name = ? OR name LIKE ?)", workflowID, base, base+"_%").
			Pluck("name", &names).Error; err != nil {
			return err
		}
		taken := make(map[string]bool, len(names))
		for _, n := range names {
			taken[n] = true
		}

		if err := tx.Model(&versionRow{}).
			Where("workflow_id = ? AND active = ?", workflowID, true).
			Update("active", false).Error; err != nil {
			return err
		}
		row = versionRow{
			WorkflowID: workflowID,
			Name:       VersionName(now, func(n string) bool { return taken[n] }),
			Graph:      string(data),
			Code:       code,
			Active:     true,
			CreatedAt:  now,
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return Version{}, fmt.Errorf("save workflow %s: %w", workflowID, err)
	}
	s.opts.logger.Debug("workflow version saved", zap.String("workflow_id", workflowID), zap.String("version", row.Name))
	return row.version(), nil
}

// ListVersions returns versions latest first.
func (s *GormStore) ListVersions(ctx context.Context, workflowID string) (out []Version, err error) {
	defer s.track("list_versions", &err)()
	var rows []versionRow
	err = s.db(ctx).
		Select("id", "workflow_id", "name", "active", "created_at").
		Where("workflow_id = ?", workflowID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out = make([]Version, len(rows))
	for i, r := range rows {
		out[i] = r.version()
	}
	return out, nil
}

// LoadVersion returns one version with its content.
func (s *GormStore) LoadVersion(ctx context.Context, workflowID, name string) (snap Snapshot, err error) {
	defer s.track("load_version", &err)()
	var row versionRow
	if err = s.db(ctx).Where("workflow_id = ? AND name = ?", workflowID, name).Take(&row).Error; err != nil {
		err = notFound(err)
		return Snapshot{}, err
	}
	g, err := graph.ParseJSON([]byte(row.Graph))
	if err != nil {
		return Snapshot{}, fmt.Errorf("stored graph %s/%s: %w", workflowID, name, err)
	}
	return Snapshot{Version: row.version(), Graph: g, Code: row.Code}, nil
}

// ActivateVersion makes name the active version.
func (s *GormStore) ActivateVersion(ctx context.Context, workflowID, name string) (err error) {
	defer s.track("activate_version", &err)()
	return s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		var row versionRow
		if err := tx.Select("id").Where("workflow_id = ? AND name = ?", workflowID, name).Take(&row).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Model(&versionRow{}).
			Where("workflow_id = ? AND active = ?", workflowID, true).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&versionRow{}).Where("id = ?", row.ID).Update("active", true).Error
	})
}

// DeleteVersion removes an inactive version.
func (s *GormStore) DeleteVersion(ctx context.Context, workflowID, name string) (err error) {
	defer s.track("delete_version", &err)()
	return s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var row versionRow
		if err := tx.Select("id", "active").Where("workflow_id = ? AND name = ?", workflowID, name).Take(&row).Error; err != nil {
			return notFound(err)
		}
		if row.Active {
			return ErrVersionActive
		}
		return tx.Delete(&versionRow{}, row.ID).Error
	})
}

// CreateRun stores a new run.
func (s *GormStore) CreateRun(ctx context.Context, run *Run) (err error) {
	defer s.track("create_run", &err)()
	if err = validID("workflow", run.WorkflowID); err != nil {
		return err
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = RunQueued
	}
	now := s.opts.now().UTC()
	run.CreatedAt, run.UpdatedAt = now, now
	row := toRunRow(run)
	return s.db(ctx).Create(&row).Error
}

// UpdateRun overwrites status, counters and logs of an existing run.
func (s *GormStore) UpdateRun(ctx context.Context, run *Run) (err error) {
	defer s.track("update_run", &err)()
	run.UpdatedAt = s.opts.now().UTC()
	res := s.db(ctx).Model(&runRow{}).Where("id = ?", run.ID).Updates(map[string]any{
		"status":      string(run.Status),
		"steps":       run.Steps,
		"failures":    run.Failures,
		"output":      run.Output,
		"error":       run.Error,
		"updated_at":  run.UpdatedAt,
		"finished_at": run.FinishedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun returns one run.
func (s *GormStore) GetRun(ctx context.Context, id string) (r Run, err error) {
	defer s.track("get_run", &err)()
	var row runRow
	if err = s.db(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		err = notFound(err)
		return Run{}, err
	}
	return row.run(), nil
}

// ListRuns returns runs of a workflow, newest first.
func (s *GormStore) ListRuns(ctx context.Context, workflowID string, limit int) (out []Run, err error) {
	defer s.track("list_runs", &err)()
	q := s.db(ctx).Where("workflow_id = ?", workflowID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []runRow
	if err = q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out = make([]Run, len(rows))
	for i, r := range rows {
		out[i] = r.run()
	}
	return out, nil
}

var (
	_ GraphStore = (*GormStore)(nil)
	_ RunStore   = (*GormStore)(nil)
)
