package main

import (
	"context"
	"io"
	"os"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"
	"github.com/ZebulonRouseFrantzich/slashgen/internal/metadata"
	"github.com/ZebulonRouseFrantzich/slashgen/internal/release"
)

// backend is everything generate needs from the release host.
type backend interface {
	dotslash.CatalogSource
	dotslash.Fetcher
	FetchConfig(ctx context.Context, path, ref string) ([]byte, error)
	Upload(ctx context.Context, tag, path string) error
}

// env holds the process-level dependencies of the commands.
type env struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	clock  metadata.Clock

	newBackend func(opts release.GitHubOptions) (backend, error)
}

func newEnv() *env {
	return &env{
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
		clock:  metadata.RealClock{},
		newBackend: func(opts release.GitHubOptions) (backend, error) {
			return release.NewGitHub(opts)
		},
	}
}

// envOr returns the first non-empty environment variable, or def.
func (e *env) envOr(def string, keys ...string) string {
	for _, key := range keys {
		if v := e.getenv(key); v != "" {
			return v
		}
	}
	return def
}
