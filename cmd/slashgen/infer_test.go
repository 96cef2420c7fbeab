package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfer(t *testing.T) {
	h := newHarness(t)
	code := h.run("infer", "tool-linux.tar.gz", "tool.tzst", "tool.exe", "tool.zip")
	require.Equal(t, 0, code, h.stderr.String())

	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	require.Len(t, lines, 4)
	want := [][]string{
		{"tool-linux.tar.gz", "tar.gz"},
		{"tool.tzst", "tar.zst"},
		{"tool.exe", "none"},
		{"tool.zip", "zip"},
	}
	for i, line := range lines {
		assert.Equal(t, want[i], strings.Fields(line))
	}
}

func TestInferProbe(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte("not a tarball"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	// Named like a tarball but only gzip-compressed.
	path := filepath.Join(dir, "tool.tar.gz")
	require.NoError(t, os.WriteFile(path, gz.Bytes(), 0o644))

	code := h.run("infer", "--probe", path)
	require.Equal(t, 0, code, h.stderr.String())
	assert.Equal(t, []string{path, "tar.gz", "gz", "mismatch"}, strings.Fields(h.stdout.String()))

	h = newHarness(t)
	assert.Equal(t, 1, h.run("infer", "--probe", filepath.Join(dir, "missing.zip")))
}

func TestInferRequiresNames(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, 1, h.run("infer"))
	assert.Contains(t, h.stderr.String(), "at least one artifact name")
}
