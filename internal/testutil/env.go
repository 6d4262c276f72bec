// Package testutil provides utilities for testing depfetch in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupTestEnv points every depfetch environment override at a fresh temp
// directory and returns that directory. This ensures tests never touch a
// real registry file or a real FFmpeg destination.
//
// The cleanup function is automatically handled by t.TempDir(),
// so callers don't need to manually clean up.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	t.Setenv("DEPFETCH_REGISTRY", filepath.Join(tmpDir, "config", "sources.json"))
	t.Setenv("DEPFETCH_DEST", filepath.Join(tmpDir, "dest"))
	t.Setenv("DEPFETCH_KEYRING", "")
	t.Setenv("DEPFETCH_POLICY", "reject")
	t.Setenv("DEPFETCH_RETRIES", "0")

	dirs := []string{
		filepath.Join(tmpDir, "config"),
		filepath.Join(tmpDir, "dest"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	return tmpDir
}
