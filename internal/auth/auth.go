// Package auth identifies the owner of incoming list requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Method represents the authentication method used.
type Method string

const (
	// MethodNone indicates no authentication; every caller is anonymous.
	MethodNone Method = "none"
	// MethodBasic indicates HTTP Basic authentication.
	MethodBasic Method = "basic"
	// MethodAPIKey indicates API key authentication.
	MethodAPIKey Method = "apikey"
	// MethodMulti indicates multi-method authentication.
	MethodMulti Method = "multi"
)

// AnonymousOwner owns the items of unauthenticated callers.
const AnonymousOwner = "anonymous"

// Identity is an authenticated caller. Subject doubles as the owner ID of
// the list items the caller creates.
type Identity struct {
	Method  Method
	Subject string
}

// Authenticator validates a request and returns the caller's identity.
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
	Method() Method
}

// Sentinel errors for authentication failures.
var (
	ErrUnauthenticated    = errors.New("unauthenticated: no credentials provided")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type contextKey string

const identityKey contextKey = "identity"

// FromContext retrieves the Identity stored by WithIdentity.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// WithIdentity stores id in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// OwnerID returns the owner the request context acts for.
func OwnerID(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok && id != nil && id.Subject != "" {
		return id.Subject
	}
	return AnonymousOwner
}

// parsePairs splits "a:b,c:d" into a map. Entries are split on the first
// colon, blank entries are skipped.
func parsePairs(kind, config string) (map[string]string, error) {
	trimmed := strings.TrimSpace(config)
	if trimmed == "" {
		return nil, fmt.Errorf("%s auth: config must not be empty", kind)
	}

	pairs := make(map[string]string)
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		left, right, found := strings.Cut(entry, ":")
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if !found {
			return nil, fmt.Errorf("%s auth: invalid entry format, expected a:b", kind)
		}
		if left == "" || right == "" {
			return nil, fmt.Errorf("%s auth: entry parts must not be empty", kind)
		}

		pairs[left] = right
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("%s auth: no valid entries found", kind)
	}

	return pairs, nil
}
