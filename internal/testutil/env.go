// Package testutil provides utilities for testing slashgen in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// ciVariables are read by the CLI and the metadata collector. Tests must
// never inherit them from the machine running the suite.
var ciVariables = []string{
	"GITHUB_REPOSITORY",
	"GITHUB_REF",
	"GITHUB_SHA",
	"GITHUB_RUN_ID",
	"GITHUB_RUN_NUMBER",
	"GITHUB_WORKFLOW",
	"GITHUB_ACTOR",
	"GITHUB_EVENT_NAME",
	"GITHUB_SERVER_URL",
	"GITHUB_API_URL",
	"GITHUB_WORKSPACE",
	"GITHUB_TOKEN",
	"GH_TOKEN",
	"INCLUDE_BUILD_METADATA",
	"SLASHGEN_SIGNING_KEY",
}

// SetupTestEnv clears CI variables and points the temp and workspace
// directories at a per-test location. It returns that location.
//
// The cleanup function is automatically handled by t.TempDir() and
// t.Setenv(), so callers don't need to manually clean up.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	for _, name := range ciVariables {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	dirs := []string{
		filepath.Join(tmpDir, "tmp"),
		filepath.Join(tmpDir, "workspace"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	t.Setenv("TMPDIR", filepath.Join(tmpDir, "tmp"))
	t.Setenv("GITHUB_WORKSPACE", filepath.Join(tmpDir, "workspace"))

	return tmpDir
}
