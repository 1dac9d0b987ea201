// ABOUTME: Test helpers for config tests
// ABOUTME: Provides utilities for environment variable management

package config

import (
	"os"
	"testing"
)

// withCleanEnv clears the environment, sets the required backend env vars to
// test values, and returns a cleanup function that restores the original env.
// Use with t.Cleanup().
func withCleanEnv(t *testing.T) func() {
	t.Helper()
	return withCleanEnvAndExtra(t, nil)
}

// withCleanEnvAndExtra clears the environment, sets the required env vars
// plus additional vars, and returns a cleanup function that restores the
// original env. Use with t.Cleanup().
func withCleanEnvAndExtra(t *testing.T, extra map[string]string) func() {
	t.Helper()

	originalEnv := os.Environ()
	os.Clearenv()

	os.Setenv("ODATA_API_URL", "https://edms.test.com/odata")
	os.Setenv("AAD_TENANT_ID", "11111111-2222-3333-4444-555555555555")
	os.Setenv("AAD_CLIENT_ID", "test-client")
	os.Setenv("AAD_CLIENT_SECRET", "test-secret")

	for key, value := range extra {
		os.Setenv(key, value)
	}

	return func() {
		os.Clearenv()
		for _, env := range originalEnv {
			for i := 0; i < len(env); i++ {
				if env[i] == '=' {
					os.Setenv(env[:i], env[i+1:])
					break
				}
			}
		}
	}
}
