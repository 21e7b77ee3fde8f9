package provision

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowgate-io/flowgate/internal/db"
)

// fakeWorkflows captures created workflows in memory.
type fakeWorkflows struct {
	created  []*db.Workflow
	count    int64
	countErr error
}

func (f *fakeWorkflows) Create(_ context.Context, workflow *db.Workflow) error {
	f.created = append(f.created, workflow)
	return nil
}

func (f *fakeWorkflows) CountByProject(context.Context, string) (int64, error) {
	return f.count, f.countErr
}

func TestNewLoadsEmbeddedTemplates(t *testing.T) {
	p := New(&fakeWorkflows{}, zap.NewNop())
	assert.Greater(t, p.TemplateCount(), 0)
}

func TestProvisionStarter(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts scrubbed inactive workflows", func(t *testing.T) {
		workflows := &fakeWorkflows{}
		p := New(workflows, zap.NewNop())

		require.NoError(t, p.ProvisionStarter(ctx, "proj0123456789ab", "jane@example.com"))
		require.Len(t, workflows.created, p.TemplateCount())

		for _, wf := range workflows.created {
			assert.Equal(t, "proj0123456789ab", wf.ProjectID)
			assert.False(t, wf.Active)
			assert.Len(t, wf.ID, 16)
			assert.Contains(t, wf.Name, "(Starter)")

			var nodes []map[string]any
			require.NoError(t, json.Unmarshal([]byte(wf.Nodes), &nodes))
			for _, node := range nodes {
				assert.NotContains(t, node, "credentials")
				assert.NotContains(t, node, "webhookId")
			}

			// Sections must be valid JSON objects, never null.
			assert.NotEqual(t, "null", wf.Connections)
			assert.NotEqual(t, "null", wf.Settings)
		}
	})

	t.Run("skips projects that already have content", func(t *testing.T) {
		workflows := &fakeWorkflows{count: 3}
		p := New(workflows, zap.NewNop())

		require.NoError(t, p.ProvisionStarter(ctx, "proj0123456789ab", "jane@example.com"))
		assert.Empty(t, workflows.created)
	})

	t.Run("propagates lookup failure for the caller to log", func(t *testing.T) {
		workflows := &fakeWorkflows{countErr: errors.New("db gone")}
		p := New(workflows, zap.NewNop())

		err := p.ProvisionStarter(ctx, "proj0123456789ab", "jane@example.com")
		assert.Error(t, err)
		assert.Empty(t, workflows.created)
	})
}

func TestPrepareScrubsCredentialNodes(t *testing.T) {
	tpl := template{
		Name: "Example",
		Nodes: []map[string]any{
			{
				"name":        "HTTP Request",
				"type":        "n8n-nodes-base.httpRequest",
				"credentials": map[string]any{"httpBasicAuth": map[string]any{"id": "1"}},
				"webhookId":   "abc-123",
			},
		},
	}

	wf, err := tpl.prepare("proj0123456789ab")
	require.NoError(t, err)

	assert.Equal(t, "Example (Starter)", wf.Name)
	assert.NotContains(t, wf.Nodes, "credentials")
	assert.NotContains(t, wf.Nodes, "webhookId")
	assert.Contains(t, wf.Nodes, "HTTP Request")
	assert.Equal(t, "{}", wf.Connections)
	assert.Equal(t, "{}", wf.Settings)
}
