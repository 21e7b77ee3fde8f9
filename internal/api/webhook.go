package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/flowgate-io/flowgate/internal/broker"
)

// LogoutProcessor reconciles one logout event.
type LogoutProcessor interface {
	HandleEvent(ctx context.Context, ev broker.Event) broker.Outcome
}

// WebhookHandler implements the provider-facing webhook endpoint.
type WebhookHandler struct {
	logouts LogoutProcessor
	logger  *zap.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(logouts LogoutProcessor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{logouts: logouts, logger: logger.Named("api.webhook")}
}

// webhookPayload is the provider's event envelope, reduced to the fields
// the bridge reads. The user record arrives either inline under
// "extendedUser" or as "object", which some provider versions serialize as
// a JSON string rather than an object.
type webhookPayload struct {
	ID           json.Number     `json:"id"`
	Action       string          `json:"action"`
	ExtendedUser *webhookUser    `json:"extendedUser"`
	Object       json.RawMessage `json:"object"`
}

type webhookUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Logout receives the provider's logout notification. Delivery is always
// acknowledged with 200 once the payload parses — the outcome string in
// the body is what distinguishes the cases, so provider-side retries stop
// after the first successful delivery.
func (h *WebhookHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&payload); err != nil {
		ErrBadRequest(w, "invalid webhook payload: "+err.Error())
		return
	}

	eventID := payload.ID.String()

	if payload.Action != "logout" {
		h.logger.Debug("ignoring webhook event",
			zap.String("action", payload.Action),
			zap.String("event_id", eventID))
		JSON(w, http.StatusOK, envelope{"status": broker.OutcomeIgnored, "event_id": eventID})
		return
	}

	user := payload.user()
	outcome := h.logouts.HandleEvent(r.Context(), broker.Event{
		ID:      eventID,
		Subject: user.ID,
		Email:   user.Email,
	})

	JSON(w, http.StatusOK, envelope{"status": outcome, "event_id": eventID})
}

// user resolves the event's user record: extendedUser wins, then object,
// unwrapping the string-encoded variant when necessary.
func (p *webhookPayload) user() webhookUser {
	if p.ExtendedUser != nil {
		return *p.ExtendedUser
	}

	raw := p.Object
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return webhookUser{}
		}
		raw = json.RawMessage(inner)
	}

	var user webhookUser
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &user)
	}
	return user
}
