package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowgate-io/flowgate/internal/broker"
)

type stubLogouts struct {
	outcome broker.Outcome
	events  []broker.Event
}

func (s *stubLogouts) HandleEvent(_ context.Context, ev broker.Event) broker.Outcome {
	s.events = append(s.events, ev)
	return s.outcome
}

func postWebhook(t *testing.T, handler *WebhookHandler, body string) (*http.Response, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/logout", strings.NewReader(body))
	handler.Logout(rec, req)

	resp := rec.Result()
	var ack map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ack))
	return resp, ack
}

func TestWebhookLogout(t *testing.T) {
	t.Run("extendedUser payload", func(t *testing.T) {
		logouts := &stubLogouts{outcome: broker.OutcomeSessionCleared}
		handler := NewWebhookHandler(logouts, zap.NewNop())

		resp, ack := postWebhook(t, handler, `{
			"id": 42,
			"action": "logout",
			"extendedUser": {"id": "cas-sub-1", "name": "jane", "email": "jane@example.com"}
		}`)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, string(broker.OutcomeSessionCleared), ack["status"])
		assert.Equal(t, "42", ack["event_id"])

		require.Len(t, logouts.events, 1)
		assert.Equal(t, "42", logouts.events[0].ID)
		assert.Equal(t, "cas-sub-1", logouts.events[0].Subject)
		assert.Equal(t, "jane@example.com", logouts.events[0].Email)
	})

	t.Run("object payload", func(t *testing.T) {
		logouts := &stubLogouts{outcome: broker.OutcomeSessionCleared}
		handler := NewWebhookHandler(logouts, zap.NewNop())

		_, ack := postWebhook(t, handler, `{
			"id": 7,
			"action": "logout",
			"object": {"id": "cas-sub-2", "email": "john@example.com"}
		}`)

		assert.Equal(t, string(broker.OutcomeSessionCleared), ack["status"])
		require.Len(t, logouts.events, 1)
		assert.Equal(t, "cas-sub-2", logouts.events[0].Subject)
		assert.Equal(t, "john@example.com", logouts.events[0].Email)
	})

	t.Run("string-encoded object payload", func(t *testing.T) {
		logouts := &stubLogouts{outcome: broker.OutcomeSessionCleared}
		handler := NewWebhookHandler(logouts, zap.NewNop())

		_, _ = postWebhook(t, handler, `{
			"id": 8,
			"action": "logout",
			"object": "{\"id\": \"cas-sub-3\", \"email\": \"jo@example.com\"}"
		}`)

		require.Len(t, logouts.events, 1)
		assert.Equal(t, "cas-sub-3", logouts.events[0].Subject)
		assert.Equal(t, "jo@example.com", logouts.events[0].Email)
	})

	t.Run("non-logout action is acknowledged but ignored", func(t *testing.T) {
		logouts := &stubLogouts{}
		handler := NewWebhookHandler(logouts, zap.NewNop())

		resp, ack := postWebhook(t, handler, `{"id": 9, "action": "login", "extendedUser": {"email": "a@b.c"}}`)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, string(broker.OutcomeIgnored), ack["status"])
		assert.Empty(t, logouts.events)
	})

	t.Run("malformed payload", func(t *testing.T) {
		handler := NewWebhookHandler(&stubLogouts{}, zap.NewNop())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/logout", strings.NewReader("not json"))
		handler.Logout(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Result().StatusCode)
	})
}
