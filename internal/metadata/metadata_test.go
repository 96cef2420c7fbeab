package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2025, 3, 4, 5, 6, 7, 890000000, time.FixedZone("CET", 3600))

func envFrom(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestCollect(t *testing.T) {
	env := envFrom(map[string]string{
		"GITHUB_REPOSITORY": "acme/tool",
		"GITHUB_SHA":        "abc123",
		"GITHUB_RUN_ID":     "42",
		"GITHUB_SERVER_URL": "https://github.com",
		"GITHUB_ACTOR":      "octocat",
	})

	m, err := Collect(context.Background(), Options{
		ConfigPath: ".github/dotslash.json",
		Getenv:     env,
		Clock:      FixedClock{Time: fixedTime},
		NewID:      func() string { return "id-1" },
	})
	require.NoError(t, err)

	data, err := m.JSON()
	require.NoError(t, err)
	assert.Equal(t, `{"source_config":".github/dotslash.json",`+
		`"ci":{"github_repository":"acme/tool","github_sha":"abc123","github_run_id":"42","github_actor":"octocat","github_server_url":"https://github.com"},`+
		`"generated_at":"2025-03-04T04:06:07.890000Z",`+
		`"ci_job_url":"https://github.com/acme/tool/actions/runs/42",`+
		`"invocation_id":"id-1"}`, string(data))
}

func TestCollectOutsideCI(t *testing.T) {
	m, err := Collect(context.Background(), Options{
		Getenv: envFrom(nil),
		Clock:  FixedClock{Time: fixedTime},
	})
	require.NoError(t, err)

	assert.Nil(t, m.CI)
	assert.Empty(t, m.CIJobURL)
	assert.Empty(t, m.SourceConfig)
	assert.Len(t, m.InvocationID, 36)

	var decoded map[string]interface{}
	data, err := m.JSON()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded, "ci")
	assert.NotContains(t, decoded, "host")
	assert.Contains(t, decoded, "generated_at")
}

func TestCollectJobURLNeedsAllParts(t *testing.T) {
	m, err := Collect(context.Background(), Options{
		Getenv: envFrom(map[string]string{"GITHUB_SERVER_URL": "https://github.com", "GITHUB_RUN_ID": "1"}),
	})
	require.NoError(t, err)
	assert.Empty(t, m.CIJobURL)
	require.NotNil(t, m.CI)
	assert.Equal(t, "1", m.CI.RunID)
}

func TestCollectHost(t *testing.T) {
	t.Run("reported", func(t *testing.T) {
		m, err := Collect(context.Background(), Options{
			Getenv:      envFrom(nil),
			IncludeHost: true,
			hostInfo: func(context.Context) (*host.InfoStat, error) {
				return &host.InfoStat{Hostname: "runner-7", OS: "linux", Platform: "ubuntu", PlatformVersion: "24.04", KernelArch: "x86_64"}, nil
			},
		})
		require.NoError(t, err)
		assert.Equal(t, &Host{OS: "linux", Platform: "ubuntu", PlatformVersion: "24.04", KernelArch: "x86_64"}, m.Host)
	})

	t.Run("detection failure is skipped", func(t *testing.T) {
		m, err := Collect(context.Background(), Options{
			Getenv:      envFrom(nil),
			IncludeHost: true,
			hostInfo: func(context.Context) (*host.InfoStat, error) {
				return nil, errors.New("no /etc/os-release")
			},
		})
		require.NoError(t, err)
		assert.Nil(t, m.Host)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Collect(ctx, Options{Getenv: envFrom(nil), IncludeHost: true})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func initRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".github"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".github", "dotslash.json"), []byte(`{"outputs":{}}`), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(".github/dotslash.json")
	require.NoError(t, err)
	hash, err := wt.Commit("add config", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: fixedTime},
	})
	require.NoError(t, err)
	return dir, hash.String()
}

func TestHeadCommit(t *testing.T) {
	dir, want := initRepo(t)

	got, err := HeadCommit(filepath.Join(dir, ".github", "dotslash.json"))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = HeadCommit(filepath.Join(dir, ".github"))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = HeadCommit(t.TempDir())
	assert.ErrorIs(t, err, ErrNotAGitRepo)
}

func TestCollectSourceCommit(t *testing.T) {
	dir, want := initRepo(t)

	m, err := Collect(context.Background(), Options{Getenv: envFrom(nil), RepoDir: filepath.Join(dir, ".github", "dotslash.json")})
	require.NoError(t, err)
	assert.Equal(t, want, m.SourceCommit)

	m, err = Collect(context.Background(), Options{Getenv: envFrom(nil), RepoDir: t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, m.SourceCommit)
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		flag    string
		exclude bool
		env     string
		want    bool
	}{
		{flag: "true", want: true},
		{flag: "", want: true},
		{flag: "yes", want: true},
		{flag: "false", want: false},
		{flag: "FALSE", want: false},
		{flag: "0", want: false},
		{flag: "No", want: false},
		{flag: "true", exclude: true, want: false},
		{flag: "true", env: "false", want: false},
		{flag: "true", env: "0", want: false},
		{flag: "true", env: "true", want: true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Enabled(tt.flag, tt.exclude, tt.env), "flag=%q exclude=%v env=%q", tt.flag, tt.exclude, tt.env)
	}
}
