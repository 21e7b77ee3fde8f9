package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	t.Run("success returns response with cookie", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/rest/login", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "user@example.com", body["emailOrLdapLoginId"])
			assert.Equal(t, "s3cret", body["password"])

			http.SetCookie(w, &http.Cookie{Name: "n8n-auth", Value: "session-token"})
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := NewClient(Config{BaseURL: srv.URL})
		resp, err := client.Login(context.Background(), "user@example.com", "s3cret")
		require.NoError(t, err)

		credential, ok := client.ExtractCredential(resp)
		require.True(t, ok)
		assert.Equal(t, "session-token", credential)
	})

	t.Run("non-2xx is a login failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		client := NewClient(Config{BaseURL: srv.URL})
		_, err := client.Login(context.Background(), "user@example.com", "wrong")
		assert.ErrorIs(t, err, ErrLoginFailed)
	})

	t.Run("unreachable platform is a login failure", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
		_, err := client.Login(context.Background(), "user@example.com", "s3cret")
		assert.ErrorIs(t, err, ErrLoginFailed)
	})

	t.Run("redirects are not followed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: "n8n-auth", Value: "before-redirect"})
			w.Header().Set("Location", "/somewhere")
			w.WriteHeader(http.StatusFound)
		}))
		defer srv.Close()

		client := NewClient(Config{BaseURL: srv.URL})
		// 302 counts as non-2xx; what matters is that the client did not
		// chase the redirect and lose the Set-Cookie headers.
		resp, err := client.Login(context.Background(), "user@example.com", "s3cret")
		assert.ErrorIs(t, err, ErrLoginFailed)
		assert.Nil(t, resp)
	})
}

func TestLogout(t *testing.T) {
	t.Run("sends the session cookie", func(t *testing.T) {
		var gotCookie string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rest/logout", r.URL.Path)
			if c, err := r.Cookie("n8n-auth"); err == nil {
				gotCookie = c.Value
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := NewClient(Config{BaseURL: srv.URL})
		require.NoError(t, client.Logout(context.Background(), "session-token"))
		assert.Equal(t, "session-token", gotCookie)
	})

	t.Run("platform rejection is a logout failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewClient(Config{BaseURL: srv.URL})
		err := client.Logout(context.Background(), "session-token")
		assert.ErrorIs(t, err, ErrLogoutFailed)
	})
}

func TestEndpointURLs(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://platform.local/"})
	assert.Equal(t, "http://platform.local/rest/login", client.LoginURL())
	assert.Equal(t, "http://platform.local/home/workflows", client.LandingURL())
	assert.Equal(t, "n8n-auth", client.CookieName())
}
