package idp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapClaims(t *testing.T) {
	t.Run("full profile", func(t *testing.T) {
		claims, err := mapClaims(rawClaims{
			Sub:        "sub-1",
			Email:      "jane@example.com",
			Name:       "Jane Doe",
			GivenName:  "Jane",
			FamilyName: "Doe",
			Owner:      "acme",
		})
		require.NoError(t, err)
		assert.Equal(t, "sub-1", claims.Subject)
		assert.Equal(t, "jane@example.com", claims.Email)
		assert.Equal(t, "Jane", claims.FirstName)
		assert.Equal(t, "Doe", claims.LastName)
		assert.Equal(t, "Jane Doe", claims.DisplayName)
		assert.Equal(t, "acme", claims.Organization)
	})

	t.Run("email fallback chain", func(t *testing.T) {
		claims, err := mapClaims(rawClaims{Mail: "mail@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "mail@example.com", claims.Email)

		claims, err = mapClaims(rawClaims{PreferredUsername: "pref@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "pref@example.com", claims.Email)

		claims, err = mapClaims(rawClaims{
			Email:             "primary@example.com",
			Mail:              "mail@example.com",
			PreferredUsername: "pref@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, "primary@example.com", claims.Email)
	})

	t.Run("no email candidate fails", func(t *testing.T) {
		_, err := mapClaims(rawClaims{Sub: "sub-1", Name: "Jane Doe"})
		assert.ErrorIs(t, err, ErrClaimsDecode)
	})

	t.Run("subject falls back to id", func(t *testing.T) {
		claims, err := mapClaims(rawClaims{ID: "raw-id", Email: "a@b.c"})
		require.NoError(t, err)
		assert.Equal(t, "raw-id", claims.Subject)
	})

	t.Run("missing subject is allowed", func(t *testing.T) {
		claims, err := mapClaims(rawClaims{Email: "a@b.c"})
		require.NoError(t, err)
		assert.Empty(t, claims.Subject)
	})

	t.Run("name split from display name", func(t *testing.T) {
		claims, err := mapClaims(rawClaims{Email: "a@b.c", Name: "Jane van Doe"})
		require.NoError(t, err)
		assert.Equal(t, "Jane", claims.FirstName)
		assert.Equal(t, "van Doe", claims.LastName)
	})

	t.Run("single-word display name", func(t *testing.T) {
		claims, err := mapClaims(rawClaims{Email: "a@b.c", DisplayName: "Madonna"})
		require.NoError(t, err)
		assert.Equal(t, "Madonna", claims.FirstName)
		assert.Empty(t, claims.LastName)
		assert.Equal(t, "Madonna", claims.DisplayName)
	})

	t.Run("given name wins over display name split", func(t *testing.T) {
		claims, err := mapClaims(rawClaims{
			Email:      "a@b.c",
			Name:       "Something Else",
			GivenName:  "Jane",
			FamilyName: "Doe",
		})
		require.NoError(t, err)
		assert.Equal(t, "Jane", claims.FirstName)
		assert.Equal(t, "Doe", claims.LastName)
	})
}
