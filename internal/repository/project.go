package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flowgate-io/flowgate/internal/db"
)

// gormProjectRepository is the GORM implementation of ProjectRepository.
type gormProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository returns a ProjectRepository backed by the provided
// *gorm.DB, which may be a transaction handle.
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &gormProjectRepository{db: db}
}

// Create inserts a new project record.
func (r *gormProjectRepository) Create(ctx context.Context, project *db.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("projects: create: %w", err)
	}
	return nil
}

// GetByName retrieves a project by its name (the owner's email for personal
// projects). Returns ErrNotFound if no record exists.
func (r *gormProjectRepository) GetByName(ctx context.Context, name string) (*db.Project, error) {
	var project db.Project
	err := r.db.WithContext(ctx).First(&project, "name = ?", name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("projects: get by name: %w", err)
	}
	return &project, nil
}

// CreateRelation inserts the project ownership row. An existing
// (project, account) pair is left untouched — ON CONFLICT DO NOTHING — so
// repeated reconciliations of the same identity are idempotent.
func (r *gormProjectRepository) CreateRelation(ctx context.Context, relation *db.ProjectRelation) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "account_id"}},
			DoNothing: true,
		}).
		Create(relation).Error
	if err != nil {
		return fmt.Errorf("projects: create relation: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// gormWorkflowRepository
// -----------------------------------------------------------------------------

// gormWorkflowRepository is the GORM implementation of WorkflowRepository.
type gormWorkflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository returns a WorkflowRepository backed by the provided *gorm.DB.
func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &gormWorkflowRepository{db: db}
}

// Create inserts a new workflow record.
func (r *gormWorkflowRepository) Create(ctx context.Context, workflow *db.Workflow) error {
	if err := r.db.WithContext(ctx).Create(workflow).Error; err != nil {
		return fmt.Errorf("workflows: create: %w", err)
	}
	return nil
}

// CountByProject returns the number of workflows in a project. Used to skip
// starter provisioning when the project already has content.
func (r *gormWorkflowRepository) CountByProject(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Workflow{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("workflows: count by project: %w", err)
	}
	return count, nil
}
