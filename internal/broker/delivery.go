package broker

// DeliveryMode selects how the platform session is handed to the browser.
type DeliveryMode int

const (
	// DeliverCookie sets the platform's session cookie directly and
	// redirects the browser to the platform. The normal path.
	DeliverCookie DeliveryMode = iota

	// DeliverForm serves a self-submitting login form that posts the
	// user's platform credentials to the platform's own login endpoint
	// from the browser. Used when the server-side login produced no
	// discoverable session cookie.
	DeliverForm
)

// Delivery is the orchestrator's instruction to the HTTP layer for
// completing a callback. Exactly one variant's fields are populated.
type Delivery struct {
	Mode DeliveryMode

	// Credential is the platform session cookie value (DeliverCookie).
	Credential string

	// Email and Secret are the platform login credentials for the
	// self-submitting form (DeliverForm).
	Email  string
	Secret string
}
