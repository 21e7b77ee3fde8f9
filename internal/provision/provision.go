// Package provision creates starter workflows in freshly provisioned
// projects. Templates are embedded JSON files in the workflow platform's
// own export format; before insertion each template is scrubbed of
// credential references and webhook ids so nothing user-specific or
// instance-specific leaks into the new project.
//
// Provisioning is strictly best-effort: it runs after the account
// transaction has committed, and every failure is logged and swallowed.
// A user without a starter workflow is a cosmetic problem; a failed login
// because a template was malformed would not be.
package provision

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"

	"github.com/flowgate-io/flowgate/internal/db"
	"github.com/flowgate-io/flowgate/internal/repository"
)

//go:embed templates/*.json
var templatesFS embed.FS

// starterNameSuffix marks provisioned workflows so users can tell them
// apart from their own work.
const starterNameSuffix = " (Starter)"

// template is the subset of the platform's workflow export format the
// provisioner needs to understand. Nodes stay loosely typed — the scrubber
// only removes keys, it never interprets node semantics.
type template struct {
	Name        string           `json:"name"`
	Nodes       []map[string]any `json:"nodes"`
	Connections map[string]any   `json:"connections"`
	Settings    map[string]any   `json:"settings"`
}

// Provisioner inserts prepared starter workflows into projects.
type Provisioner struct {
	workflows repository.WorkflowRepository
	logger    *zap.Logger
	templates []template
}

// New loads all embedded templates and returns a ready Provisioner.
// A template that fails to parse is skipped with a warning rather than
// failing startup.
func New(workflows repository.WorkflowRepository, logger *zap.Logger) *Provisioner {
	p := &Provisioner{
		workflows: workflows,
		logger:    logger.Named("provision"),
	}

	entries, err := fs.Glob(templatesFS, "templates/*.json")
	if err != nil {
		p.logger.Warn("listing embedded templates failed", zap.Error(err))
		return p
	}

	for _, path := range entries {
		data, err := templatesFS.ReadFile(path)
		if err != nil {
			p.logger.Warn("reading embedded template failed", zap.String("template", path), zap.Error(err))
			continue
		}
		var tpl template
		if err := json.Unmarshal(data, &tpl); err != nil {
			p.logger.Warn("parsing embedded template failed", zap.String("template", path), zap.Error(err))
			continue
		}
		if tpl.Name == "" {
			tpl.Name = strings.TrimSuffix(strings.TrimPrefix(path, "templates/"), ".json")
		}
		p.templates = append(p.templates, tpl)
	}

	return p
}

// TemplateCount reports how many templates loaded successfully.
func (p *Provisioner) TemplateCount() int { return len(p.templates) }

// ProvisionStarter inserts the starter workflows into the given project.
// Projects that already contain workflows are skipped — re-reconciling an
// identity must never duplicate starters. The caller treats any returned
// error as log-and-swallow.
func (p *Provisioner) ProvisionStarter(ctx context.Context, projectID, email string) error {
	if len(p.templates) == 0 {
		return nil
	}

	count, err := p.workflows.CountByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("provision: checking project contents: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, tpl := range p.templates {
		workflow, err := tpl.prepare(projectID)
		if err != nil {
			return fmt.Errorf("provision: preparing template %q: %w", tpl.Name, err)
		}
		if err := p.workflows.Create(ctx, workflow); err != nil {
			return fmt.Errorf("provision: inserting starter workflow %q: %w", tpl.Name, err)
		}
		p.logger.Info("starter workflow provisioned",
			zap.String("project_id", projectID),
			zap.String("email", email),
			zap.String("workflow", workflow.Name),
		)
	}

	return nil
}

// prepare scrubs a template and renders it as an insertable workflow row.
// Credential references would point at other users' credentials and
// webhook ids must be unique per instance, so both are removed. The
// workflow is created inactive — the user activates it after configuring
// their own credentials.
func (t template) prepare(projectID string) (*db.Workflow, error) {
	nodes := make([]map[string]any, 0, len(t.Nodes))
	for _, node := range t.Nodes {
		scrubbed := make(map[string]any, len(node))
		for key, value := range node {
			if key == "credentials" || key == "webhookId" {
				continue
			}
			scrubbed[key] = value
		}
		nodes = append(nodes, scrubbed)
	}

	nodesJSON, err := json.Marshal(nodes)
	if err != nil {
		return nil, err
	}
	connectionsJSON, err := json.Marshal(orEmptyObject(t.Connections))
	if err != nil {
		return nil, err
	}
	settingsJSON, err := json.Marshal(orEmptyObject(t.Settings))
	if err != nil {
		return nil, err
	}

	id, err := db.NewPlatformID()
	if err != nil {
		return nil, err
	}

	return &db.Workflow{
		ID:          id,
		ProjectID:   projectID,
		Name:        t.Name + starterNameSuffix,
		Active:      false,
		Nodes:       string(nodesJSON),
		Connections: string(connectionsJSON),
		Settings:    string(settingsJSON),
	}, nil
}

// orEmptyObject substitutes an empty map for nil so marshaling yields "{}"
// instead of "null" — the platform rejects null workflow sections.
func orEmptyObject(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
