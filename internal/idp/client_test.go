package idp

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

func TestClassifyExchangeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "invalid_grant error code",
			err: &oauth2.RetrieveError{
				ErrorCode: "invalid_grant",
				Response:  &http.Response{StatusCode: http.StatusBadRequest},
			},
			want: ErrInvalidGrant,
		},
		{
			name: "4xx token response without error code",
			err: &oauth2.RetrieveError{
				Response: &http.Response{StatusCode: http.StatusBadRequest},
			},
			want: ErrInvalidGrant,
		},
		{
			name: "5xx token response",
			err: &oauth2.RetrieveError{
				Response: &http.Response{StatusCode: http.StatusBadGateway},
			},
			want: ErrUpstreamUnavailable,
		},
		{
			name: "transport failure",
			err:  errors.New("dial tcp: connection refused"),
			want: ErrUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyExchangeError(tt.err), tt.want)
		})
	}
}
