package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains the common fields shared by all UUID-keyed models.
// ID uses UUID v7 (time-ordered) for efficient B-tree indexing and natural
// chronological ordering without a separate created_at sort. CreatedAt and
// UpdatedAt are managed automatically by GORM.
type Base struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a new UUID v7 if the ID is not already set.
// This ensures every record has a valid time-ordered ID before insertion.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == (uuid.UUID{}) {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	return nil
}

// Role values mirror the workflow platform's own role vocabulary so rows
// written by the bridge are indistinguishable from rows the platform writes.
const (
	GlobalRoleMember    = "global:member"
	ProjectRoleOwner    = "project:personalOwner"
	ProjectTypePersonal = "personal"
)

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

// Account is the durable local account provisioned for an identity
// authenticated at the upstream provider. Subject is the provider's stable
// subject claim and the primary join key; Email serves as the secondary
// match so a subject-scheme migration at the provider does not produce a
// duplicate account.
//
// Password holds the bcrypt hash the workflow platform verifies on its own
// login endpoint. Secret holds the matching raw login secret, encrypted at
// rest — it exists only so the bridge can perform the internal login call
// on the user's behalf and is never exposed outside that call.
type Account struct {
	Base
	Email       string          `gorm:"uniqueIndex;not null"`
	Subject     string          `gorm:"index;default:''"` // upstream subject claim, may lag behind Email
	FirstName   string          `gorm:"not null;default:''"`
	LastName    string          `gorm:"not null;default:''"`
	DisplayName string          `gorm:"not null;default:''"`
	Password    string          `gorm:"not null"`           // bcrypt hash, platform-readable
	Secret      EncryptedString `gorm:"type:text;not null"` // raw login secret, AES-256-GCM at rest
	Role        string          `gorm:"not null;default:'global:member'"`
	LastLoginAt *time.Time
}

// -----------------------------------------------------------------------------
// Projects
// -----------------------------------------------------------------------------

// Project is the personal project owned by an account on the workflow
// platform. The platform uses 16-character nanoid-style string IDs rather
// than UUIDs, so Project does not embed Base. Name carries the owner's
// email address — the platform's convention for personal projects.
type Project struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	Type      string    `gorm:"not null;default:'personal'"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ProjectRelation associates an account with a project and a project-scoped
// role. Exactly one relation exists per (project, account) pair.
type ProjectRelation struct {
	Base
	ProjectID string    `gorm:"not null;uniqueIndex:idx_project_account"`
	AccountID uuid.UUID `gorm:"type:text;not null;uniqueIndex:idx_project_account"`
	Role      string    `gorm:"not null;default:'project:personalOwner'"`
}

// -----------------------------------------------------------------------------
// Workflows
// -----------------------------------------------------------------------------

// Workflow is a workflow record inserted into a project on behalf of a
// newly provisioned account (the starter template). Nodes, Connections and
// Settings carry the platform's workflow definition as opaque JSON — the
// bridge never interprets them beyond template preparation. Starter
// workflows are created inactive so the user configures credentials before
// the first run.
type Workflow struct {
	ID          string    `gorm:"primaryKey"`
	ProjectID   string    `gorm:"not null;index"`
	Name        string    `gorm:"not null"`
	Active      bool      `gorm:"not null;default:false"`
	Nodes       string    `gorm:"type:text;not null;default:'[]'"`
	Connections string    `gorm:"type:text;not null;default:'{}'"`
	Settings    string    `gorm:"type:text;not null;default:'{}'"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}
