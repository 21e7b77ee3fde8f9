package idp

import (
	"fmt"
	"strings"
)

// Claims carries the profile attributes extracted from a verified id_token.
// Immutable once produced.
type Claims struct {
	// Subject is the provider's stable subject identifier. May be empty for
	// providers that omit it, in which case Email is the durable join key.
	Subject string

	// Email is always non-empty — an id_token with no usable email
	// candidate fails the exchange with ErrClaimsDecode.
	Email string

	FirstName    string
	LastName     string
	DisplayName  string
	Organization string
}

// rawClaims enumerates every candidate field the known providers use for
// each profile attribute. Providers are not consistent about which field
// carries the email or the display name, so mapping applies an ordered
// fallback across the candidates.
type rawClaims struct {
	Sub               string `json:"sub"`
	ID                string `json:"id"`
	Email             string `json:"email"`
	Mail              string `json:"mail"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	DisplayName       string `json:"display_name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	Owner             string `json:"owner"`
	Organization      string `json:"organization"`
}

// mapClaims resolves the fallback chains and validates required attributes.
func mapClaims(raw rawClaims) (*Claims, error) {
	email := firstNonEmpty(raw.Email, raw.Mail, raw.PreferredUsername)
	if email == "" {
		return nil, fmt.Errorf("%w: no email candidate present", ErrClaimsDecode)
	}

	displayName := firstNonEmpty(raw.Name, raw.DisplayName)

	firstName := raw.GivenName
	lastName := raw.FamilyName
	if firstName == "" && displayName != "" {
		// Split the display name when the provider does not send the parts
		// separately. Only the first space splits — compound last names
		// stay together.
		first, rest, found := strings.Cut(displayName, " ")
		firstName = first
		if found {
			lastName = rest
		}
	}

	return &Claims{
		Subject:      firstNonEmpty(raw.Sub, raw.ID),
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		DisplayName:  displayName,
		Organization: firstNonEmpty(raw.Owner, raw.Organization),
	}, nil
}

// firstNonEmpty returns the first non-empty string among the candidates.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
