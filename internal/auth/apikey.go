package auth

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader is the HTTP header name for API key authentication.
const APIKeyHeader = "X-API-Key"

// APIKeyAuthenticator authenticates requests by the X-API-Key header. The
// name configured for a key becomes the caller's owner ID.
type APIKeyAuthenticator struct {
	keys map[string]string // key value -> owner name
}

// NewAPIKeyAuthenticator parses a "key1:owner1,key2:owner2" config.
func NewAPIKeyAuthenticator(keysConfig string) (*APIKeyAuthenticator, error) {
	keys, err := parsePairs("apikey", keysConfig)
	if err != nil {
		return nil, err
	}
	return &APIKeyAuthenticator{keys: keys}, nil
}

// Authenticate compares the presented key with every configured key in
// constant time.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	apiKey := r.Header.Get(APIKeyHeader)
	if apiKey == "" {
		return nil, ErrUnauthenticated
	}

	var owner string
	for key, name := range a.keys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			owner = name
		}
	}

	if owner == "" {
		return nil, ErrInvalidAPIKey
	}

	return &Identity{Method: MethodAPIKey, Subject: owner}, nil
}

// Method returns the authentication method type.
func (a *APIKeyAuthenticator) Method() Method {
	return MethodAPIKey
}
