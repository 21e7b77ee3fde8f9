// Package repository provides data access for Flowgate's relational store.
// Each repository is a thin interface over GORM so the reconciler and the
// API layer never touch SQL directly, and tests can substitute in-memory
// fakes. Implementations are constructed over an arbitrary *gorm.DB handle,
// which may be a transaction — the reconciler builds its repositories
// inside a single db.Transaction scope so account and project creation
// commit or roll back together.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/flowgate-io/flowgate/internal/db"
)

// AccountRepository manages durable local accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *db.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Account, error)

	// GetBySubject looks up an account by the upstream provider's subject
	// claim. Returns ErrNotFound when no account carries the subject.
	GetBySubject(ctx context.Context, subject string) (*db.Account, error)

	GetByEmail(ctx context.Context, email string) (*db.Account, error)
	Update(ctx context.Context, account *db.Account) error

	// RotateCredentials replaces both the platform-readable password hash
	// and the encrypted raw secret in a single update. Used when an
	// account's stored secret is missing or no longer decryptable, and by
	// the logout reconciler to force-invalidate platform sessions.
	RotateCredentials(ctx context.Context, id uuid.UUID, passwordHash string, secret db.EncryptedString) error

	// TouchLogin stamps LastLoginAt with the current time.
	TouchLogin(ctx context.Context, id uuid.UUID) error
}

// ProjectRepository manages projects and their account relations.
type ProjectRepository interface {
	Create(ctx context.Context, project *db.Project) error
	GetByName(ctx context.Context, name string) (*db.Project, error)

	// CreateRelation inserts the (project, account) ownership row.
	// Inserting a relation that already exists is a no-op.
	CreateRelation(ctx context.Context, relation *db.ProjectRelation) error
}

// WorkflowRepository manages workflow records provisioned into projects.
type WorkflowRepository interface {
	Create(ctx context.Context, workflow *db.Workflow) error
	CountByProject(ctx context.Context, projectID string) (int64, error)
}
