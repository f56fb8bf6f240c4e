//go:build e2e

package e2e_test

import (
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/vyrodovalexey/tasklist/internal/remote"
)

// Environment variable names for E2E test configuration.
const (
	EnvServerURL = "E2E_SERVER_URL"
	EnvAPIKey    = "E2E_API_KEY"
	EnvBasicUser = "E2E_BASIC_USER"
	EnvBasicPass = "E2E_BASIC_PASS"
)

// Default configuration values.
const (
	DefaultServerURL = "http://localhost:8080"
	DefaultTimeout   = 15 * time.Second
)

// getEnvOrDefault returns the value of the environment variable
// identified by key, or defaultVal if the variable is not set.
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// e2eServerURL returns the base URL of the server under test.
func e2eServerURL() string {
	return getEnvOrDefault(EnvServerURL, DefaultServerURL)
}

// skipIfServerUnavailable checks whether the server is reachable
// and skips the test if it is not.
func skipIfServerUnavailable(t *testing.T) {
	t.Helper()

	base := e2eServerURL()
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(base + "/health")
	if err != nil {
		t.Skipf("Server unavailable at %s: %v", base, err)
	}
	resp.Body.Close()
}

// authOptions returns client options for the credentials found in the
// environment, if any.
func authOptions() []remote.Option {
	if apiKey := os.Getenv(EnvAPIKey); apiKey != "" {
		return []remote.Option{remote.WithAPIKey(apiKey)}
	}

	user := os.Getenv(EnvBasicUser)
	pass := os.Getenv(EnvBasicPass)
	if user != "" && pass != "" {
		return []remote.Option{remote.WithBasicAuth(user, pass)}
	}

	return nil
}

// newClient returns a client for the server under test using the
// environment credentials plus extra options.
func newClient(t *testing.T, extra ...remote.Option) *remote.Client {
	t.Helper()

	opts := append([]remote.Option{
		remote.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
	}, authOptions()...)
	opts = append(opts, extra...)

	c, err := remote.New(e2eServerURL(), opts...)
	if err != nil {
		t.Fatalf("remote.New() error: %v", err)
	}
	return c
}

// uniqueList returns a list id no earlier run has used, so tests against a
// persistent server start from an empty list.
func uniqueList(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("e2e-%s-%d", t.Name(), time.Now().UnixNano())
}
