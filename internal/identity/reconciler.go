// Package identity reconciles upstream identities with platform accounts.
//
// Reconciliation is transactional: the account, its personal project and
// the owner relation are created (or looked up) inside a single database
// transaction so a half-provisioned identity never becomes visible.
// Starter content provisioning runs after commit and is best effort.
package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/flowgate-io/flowgate/internal/db"
	"github.com/flowgate-io/flowgate/internal/idp"
	"github.com/flowgate-io/flowgate/internal/repository"
)

// ErrReconcile indicates the identity could not be mapped to a usable
// platform account. The underlying cause is wrapped.
var ErrReconcile = errors.New("identity: reconciliation failed")

// StarterProvisioner seeds a freshly created project with starter content.
type StarterProvisioner interface {
	ProvisionStarter(ctx context.Context, projectID, email string) error
}

// Resolved is the outcome of reconciling an upstream identity.
type Resolved struct {
	Account   *db.Account
	ProjectID string
	// Secret is the plaintext login secret for the platform. It is
	// decrypted from storage for existing accounts, or freshly generated
	// when the account is created or the stored secret is unusable.
	Secret string
	// Created reports whether the account was created by this call.
	Created bool
}

// Reconciler maps verified upstream claims to platform accounts.
type Reconciler struct {
	db          *gorm.DB
	provisioner StarterProvisioner
	logger      *zap.Logger
}

// NewReconciler creates a Reconciler. provisioner may be nil to disable
// starter content provisioning.
func NewReconciler(gdb *gorm.DB, provisioner StarterProvisioner, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		db:          gdb,
		provisioner: provisioner,
		logger:      logger.Named("identity"),
	}
}

// Reconcile resolves claims to an account, creating the account together
// with its personal project and owner relation when no match exists.
// Lookup prefers the upstream subject and falls back to email, adopting
// the subject onto accounts that predate subject tracking.
func (r *Reconciler) Reconcile(ctx context.Context, claims *idp.Claims) (*Resolved, error) {
	var (
		resolved       Resolved
		provisionReady bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts := repository.NewAccountRepository(tx)
		projects := repository.NewProjectRepository(tx)

		account, err := r.findAccount(ctx, accounts, claims)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("looking up account: %w", err)
		}

		if account == nil {
			account, projectID, err := r.createAccount(ctx, accounts, projects, claims)
			if err != nil {
				return err
			}
			resolved.Created = true
			provisionReady = true
			resolved.Account = account
			resolved.ProjectID = projectID
			resolved.Secret = string(account.Secret)
			return accounts.TouchLogin(ctx, account.ID)
		}

		if account.Subject == "" && claims.Subject != "" {
			account.Subject = claims.Subject
			if err := accounts.Update(ctx, account); err != nil {
				return fmt.Errorf("adopting subject: %w", err)
			}
		}

		secret, err := r.ensureSecret(ctx, accounts, account)
		if err != nil {
			return err
		}

		projectID, err := r.ensureProject(ctx, projects, account)
		if err != nil {
			return err
		}

		resolved.Account = account
		resolved.ProjectID = projectID
		resolved.Secret = secret
		return accounts.TouchLogin(ctx, account.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReconcile, err)
	}

	// Starter provisioning must not block or fail the login.
	if provisionReady && r.provisioner != nil {
		if err := r.provisioner.ProvisionStarter(ctx, resolved.ProjectID, resolved.Account.Email); err != nil {
			r.logger.Warn("starter provisioning failed",
				zap.String("project_id", resolved.ProjectID),
				zap.Error(err))
		}
	}

	return &resolved, nil
}

func (r *Reconciler) findAccount(ctx context.Context, accounts repository.AccountRepository, claims *idp.Claims) (*db.Account, error) {
	if claims.Subject != "" {
		account, err := accounts.GetBySubject(ctx, claims.Subject)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return accounts.GetByEmail(ctx, claims.Email)
}

func (r *Reconciler) createAccount(ctx context.Context, accounts repository.AccountRepository, projects repository.ProjectRepository, claims *idp.Claims) (*db.Account, string, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, "", err
	}
	hash, err := HashSecret(secret)
	if err != nil {
		return nil, "", err
	}

	account := &db.Account{
		Email:       claims.Email,
		Subject:     claims.Subject,
		FirstName:   claims.FirstName,
		LastName:    claims.LastName,
		DisplayName: claims.DisplayName,
		Password:    hash,
		Secret:      db.EncryptedString(secret),
	}
	if err := accounts.Create(ctx, account); err != nil {
		return nil, "", fmt.Errorf("creating account: %w", err)
	}

	projectID, err := r.createPersonalProject(ctx, projects, account)
	if err != nil {
		return nil, "", err
	}

	r.logger.Info("account created",
		zap.String("email", account.Email),
		zap.String("project_id", projectID))
	return account, projectID, nil
}

func (r *Reconciler) ensureSecret(ctx context.Context, accounts repository.AccountRepository, account *db.Account) (string, error) {
	if secret := string(account.Secret); secret != "" {
		return secret, nil
	}

	// The stored secret is missing or failed to decrypt (key rotation,
	// legacy row). Rotate both the platform hash and the stored secret.
	secret, err := GenerateSecret()
	if err != nil {
		return "", err
	}
	hash, err := HashSecret(secret)
	if err != nil {
		return "", err
	}
	if err := accounts.RotateCredentials(ctx, account.ID, hash, db.EncryptedString(secret)); err != nil {
		return "", fmt.Errorf("rotating credentials: %w", err)
	}
	account.Password = hash
	account.Secret = db.EncryptedString(secret)
	r.logger.Info("login secret rotated", zap.String("email", account.Email))
	return secret, nil
}

func (r *Reconciler) ensureProject(ctx context.Context, projects repository.ProjectRepository, account *db.Account) (string, error) {
	project, err := projects.GetByName(ctx, account.Email)
	if err == nil {
		if relErr := projects.CreateRelation(ctx, &db.ProjectRelation{
			ProjectID: project.ID,
			AccountID: account.ID,
			Role:      db.ProjectRoleOwner,
		}); relErr != nil {
			return "", fmt.Errorf("ensuring project relation: %w", relErr)
		}
		return project.ID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("looking up project: %w", err)
	}
	return r.createPersonalProject(ctx, projects, account)
}

func (r *Reconciler) createPersonalProject(ctx context.Context, projects repository.ProjectRepository, account *db.Account) (string, error) {
	projectID, err := db.NewPlatformID()
	if err != nil {
		return "", fmt.Errorf("generating project id: %w", err)
	}
	project := &db.Project{
		ID:   projectID,
		Name: account.Email,
		Type: db.ProjectTypePersonal,
	}
	if err := projects.Create(ctx, project); err != nil {
		return "", fmt.Errorf("creating project: %w", err)
	}
	if err := projects.CreateRelation(ctx, &db.ProjectRelation{
		ProjectID: project.ID,
		AccountID: account.ID,
		Role:      db.ProjectRoleOwner,
	}); err != nil {
		return "", fmt.Errorf("creating project relation: %w", err)
	}
	return project.ID, nil
}
