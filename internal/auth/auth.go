// Package auth provides the narrow Authenticator boundary internal/httpapi
// depends on. Per spec.md §1 non-goals, building out a full account system
// is out of scope; this is a thin adapter a real deployment is expected to
// replace with whatever session/JWT system the surrounding product already
// has (the original's JWT bearer dependency,
// original_source/backend/app/api/routes_he.py's get_current_user).
package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when a request carries no usable
// credential.
var ErrUnauthenticated = errors.New("auth: missing or invalid bearer token")

// Authenticator extracts the authenticated user_id from an incoming
// request. internal/httpapi depends on this interface, never a concrete
// implementation, so the core handlers never see how authentication
// actually works.
type Authenticator interface {
	Authenticate(r *http.Request) (userID string, err error)
}

// BearerAuthenticator accepts requests carrying "Authorization: Bearer
// <token>" where token is looked up in a static map of token -> user_id.
// It is the one implementation this repo ships; it is not meant to be the
// last word on authentication for a real deployment.
type BearerAuthenticator struct {
	tokens map[string]string
}

// NewBearerAuthenticator builds an Authenticator from a token -> user_id
// map.
func NewBearerAuthenticator(tokens map[string]string) *BearerAuthenticator {
	return &BearerAuthenticator{tokens: tokens}
}

func (b *BearerAuthenticator) Authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrUnauthenticated
	}
	token := strings.TrimPrefix(header, prefix)
	userID, ok := b.tokens[token]
	if !ok {
		return "", ErrUnauthenticated
	}
	return userID, nil
}
