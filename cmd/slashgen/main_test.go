package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/metadata"
	"github.com/ZebulonRouseFrantzich/slashgen/internal/release"
	"github.com/ZebulonRouseFrantzich/slashgen/internal/sign"
	"github.com/ZebulonRouseFrantzich/slashgen/internal/testutil"
)

// fakeBackend is an in-memory release host.
type fakeBackend struct {
	*testutil.FakeRelease

	mu      sync.Mutex
	configs map[string]string // "path@ref" -> content
	uploads []string
	opts    release.GitHubOptions
}

func (b *fakeBackend) FetchConfig(_ context.Context, path, ref string) ([]byte, error) {
	content, ok := b.configs[path+"@"+ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", release.ErrAssetNotFound, path, ref)
	}
	return []byte(content), nil
}

func (b *fakeBackend) Upload(_ context.Context, tag, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, tag+":"+filepath.Base(path))
	return nil
}

type harness struct {
	env     *env
	backend *fakeBackend
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	vars    map[string]string
	workdir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := testutil.SetupTestEnv(t)

	h := &harness{
		backend: &fakeBackend{
			FakeRelease: testutil.NewFakeRelease("https://x"),
			configs:     make(map[string]string),
		},
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
		vars:    make(map[string]string),
		workdir: dir,
	}
	h.vars["GITHUB_WORKSPACE"] = os.Getenv("GITHUB_WORKSPACE")
	h.env = &env{
		stdout: h.stdout,
		stderr: h.stderr,
		getenv: func(key string) string { return h.vars[key] },
		clock:  metadata.FixedClock{Time: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
		newBackend: func(opts release.GitHubOptions) (backend, error) {
			h.backend.opts = opts
			return h.backend, nil
		},
	}
	return h
}

func (h *harness) run(args ...string) int {
	return run(context.Background(), h.env, args)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

const remoteConfig = `{
  // comments are allowed
  "outputs": {
    "tool": {
      "platforms": {
        "linux-x86_64": {"regex": "tool-linux", "hash": "sha256", "path": "tool"},
        "windows-x86_64": {"name": "tool.exe", "hash": "sha256", "path": "tool.exe", "format": null}
      }
    }
  }
}`

func TestGenerateRemoteConfig(t *testing.T) {
	h := newHarness(t)
	linux := []byte("linux-bytes")
	windows := []byte("windows-bytes")
	h.backend.Add("tool-linux.tar.gz", linux).Add("tool.exe", windows)
	h.backend.configs[".github/dotslash.json@abc123"] = remoteConfig
	h.vars["GITHUB_REPOSITORY"] = "acme/tool"
	h.vars["GITHUB_SHA"] = "abc123"

	out := filepath.Join(h.workdir, "out")
	code := h.run("generate", "--tag", "v1.0.0", "--config", ".github/dotslash.json", "--output", out, "--exclude-build-metadata")
	require.Equal(t, 0, code, h.stderr.String())

	data, err := os.ReadFile(filepath.Join(out, "tool"))
	require.NoError(t, err)

	want := fmt.Sprintf(`#!/usr/bin/env dotslash

{
  "name": "tool",
  "platforms": {
    "linux-x86_64": {
      "size": 11,
      "hash": "sha256",
      "digest": "%s",
      "format": "tar.gz",
      "path": "tool",
      "providers": [
        {
          "url": "https://x/tool-linux.tar.gz"
        },
        {
          "type": "github-release",
          "repo": "https://github.com/acme/tool",
          "tag": "v1.0.0",
          "name": "tool-linux.tar.gz"
        }
      ]
    },
    "windows-x86_64": {
      "size": 13,
      "hash": "sha256",
      "digest": "%s",
      "path": "tool.exe",
      "providers": [
        {
          "url": "https://x/tool.exe"
        },
        {
          "type": "github-release",
          "repo": "https://github.com/acme/tool",
          "tag": "v1.0.0",
          "name": "tool.exe"
        }
      ]
    }
  }
}
`, sha256Hex(linux), sha256Hex(windows))
	assert.Equal(t, want, string(data))
	assert.Equal(t, filepath.Join(out, "tool")+"\n", h.stdout.String())
	assert.Equal(t, "acme/tool", h.backend.opts.Repo)
	assert.Equal(t, release.DefaultAPIURL, h.backend.opts.APIURL)
	assert.Empty(t, h.backend.uploads)
}

func TestGenerateLocalConfigWithMetadataAndUpload(t *testing.T) {
	h := newHarness(t)
	h.backend.Add("tool-macos.zip", []byte("macos"))
	h.vars["GITHUB_RUN_ID"] = "42"
	h.vars["GITHUB_SERVER_URL"] = "https://github.com"
	h.vars["GITHUB_REPOSITORY"] = "acme/tool"

	configPath := filepath.Join(h.workdir, "dotslash.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
exclude-github-release-provider: true
outputs:
  tool:
    platforms:
      macos-aarch64:
        name: tool-macos.zip
        path: bin/tool
`), 0o644))

	code := h.run("--tag", "v2.0.0", "--local-config", "--config", configPath, "--upload", "--repo", "acme/tool")
	require.Equal(t, 0, code, h.stderr.String())

	out := os.Getenv("GITHUB_WORKSPACE")
	data, err := os.ReadFile(filepath.Join(out, "tool"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "github-release")
	assert.Contains(t, string(data), `"hash": "blake3"`)
	assert.Contains(t, string(data), `"format": "zip"`)

	body := strings.TrimPrefix(string(data), "#!/usr/bin/env dotslash\n\n")
	var manifest struct {
		BuildMetadata map[string]interface{} `json:"build_metadata"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &manifest))
	assert.Equal(t, configPath, manifest.BuildMetadata["source_config"])
	assert.Equal(t, "2025-01-02T03:04:05.000000Z", manifest.BuildMetadata["generated_at"])
	assert.Equal(t, "https://github.com/acme/tool/actions/runs/42", manifest.BuildMetadata["ci_job_url"])

	assert.Equal(t, []string{"v2.0.0:tool"}, h.backend.uploads)
}

func TestGenerateMetadataDisabledByEnv(t *testing.T) {
	h := newHarness(t)
	h.backend.Add("tool", []byte("bin"))
	h.backend.configs["dotslash.json@main"] = `{"outputs":{"tool":{"platforms":{"linux":{"name":"tool","path":"tool","format":null}}}}}`
	h.vars["INCLUDE_BUILD_METADATA"] = "no"

	code := h.run("generate", "--tag", "v1", "--config", "dotslash.json", "--repo", "acme/tool")
	require.Equal(t, 0, code, h.stderr.String())

	data, err := os.ReadFile(filepath.Join(os.Getenv("GITHUB_WORKSPACE"), "tool"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "build_metadata")
}

func TestGenerateSigns(t *testing.T) {
	h := newHarness(t)
	h.backend.Add("tool", []byte("bin"))
	h.backend.configs["dotslash.json@main"] = `{"outputs":{"tool":{"platforms":{"linux":{"name":"tool","path":"tool","format":null}}}}}`

	entity, err := openpgp.NewEntity("Release Bot", "", "release@example.com", nil)
	require.NoError(t, err)
	keyPath := filepath.Join(h.workdir, "key.asc")
	var key bytes.Buffer
	w, err := armor.Encode(&key, openpgp.PrivateKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.SerializePrivate(w, nil))
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(keyPath, key.Bytes(), 0o600))

	code := h.run("generate", "--tag", "v1", "--config", "dotslash.json", "--repo", "acme/tool",
		"--exclude-build-metadata", "--sign-key", keyPath, "--upload")
	require.Equal(t, 0, code, h.stderr.String())

	out := os.Getenv("GITHUB_WORKSPACE")
	manifest, err := os.ReadFile(filepath.Join(out, "tool"))
	require.NoError(t, err)
	sig, err := os.ReadFile(filepath.Join(out, "tool.asc"))
	require.NoError(t, err)
	assert.NoError(t, sign.Verify(openpgp.EntityList{entity}, manifest, sig))
	assert.Equal(t, []string{"v1:tool", "v1:tool.asc"}, h.backend.uploads)
}

func TestGeneratePartialFailure(t *testing.T) {
	h := newHarness(t)
	h.backend.Add("good", []byte("bin"))
	h.backend.configs["dotslash.json@main"] = `{"outputs":{
		"broken":{"platforms":{"linux":{"name":"missing","path":"x","format":null}}},
		"good":{"platforms":{"linux":{"name":"good","path":"good","format":null}}}
	}}`

	code := h.run("generate", "--tag", "v1", "--config", "dotslash.json", "--repo", "acme/tool", "--exclude-build-metadata")
	assert.Equal(t, 1, code)
	assert.Contains(t, h.stderr.String(), "1 of 2 outputs failed")

	out := os.Getenv("GITHUB_WORKSPACE")
	assert.FileExists(t, filepath.Join(out, "good"))
	assert.NoFileExists(t, filepath.Join(out, "broken"))
}

func TestGenerateInvalidOutputKeepsOthers(t *testing.T) {
	h := newHarness(t)
	h.backend.Add("good", []byte("bin"))
	h.backend.configs["dotslash.json@main"] = `{"outputs":{
		"broken":{"platforms":{"linux":{"name":"good","path":"x","hash":"md5"}}},
		"good":{"platforms":{"linux":{"name":"good","path":"good","format":null}}}
	}}`

	code := h.run("generate", "--tag", "v1", "--config", "dotslash.json", "--repo", "acme/tool", "--exclude-build-metadata")
	assert.Equal(t, 1, code)
	assert.Contains(t, h.stderr.String(), "1 of 2 outputs failed")

	out := os.Getenv("GITHUB_WORKSPACE")
	assert.FileExists(t, filepath.Join(out, "good"))
	assert.NoFileExists(t, filepath.Join(out, "broken"))
}

func TestGenerateIntegrityFailureWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.backend.Add("good", []byte("bin"))
	h.backend.AddWithSize("corrupt", []byte("short"), 1000)
	h.backend.configs["dotslash.json@main"] = `{"outputs":{
		"good":{"platforms":{"linux":{"name":"good","path":"good","format":null}}},
		"corrupt":{"platforms":{"linux":{"name":"corrupt","path":"x","format":null}}}
	}}`

	code := h.run("generate", "--tag", "v1", "--config", "dotslash.json", "--repo", "acme/tool", "--exclude-build-metadata", "--upload")
	assert.Equal(t, 1, code)
	assert.Contains(t, h.stderr.String(), "corrupt")

	entries, err := os.ReadDir(os.Getenv("GITHUB_WORKSPACE"))
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, h.backend.uploads)
}

func TestGenerateArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing tag", args: []string{"generate", "--config", "c.json", "--repo", "a/b"}, want: "--tag is required"},
		{name: "missing config", args: []string{"generate", "--tag", "v1", "--repo", "a/b"}, want: "--config is required"},
		{name: "missing repo", args: []string{"generate", "--tag", "v1", "--config", "c.json"}, want: "no repo specified"},
		{name: "bad repo", args: []string{"generate", "--tag", "v1", "--config", "c.json", "--repo", "acme"}, want: "OWNER/NAME"},
		{name: "bad fetch", args: []string{"generate", "--tag", "v1", "--config", "c.json", "--repo", "a/b", "--fetch", "ftp"}, want: "--fetch"},
		{name: "bad jobs", args: []string{"generate", "--tag", "v1", "--config", "c.json", "--repo", "a/b", "--jobs", "0"}, want: "--jobs"},
		{name: "unknown flag", args: []string{"generate", "--nope"}, want: "unknown flag"},
		{name: "missing remote config", args: []string{"generate", "--tag", "v1", "--config", "c.json", "--repo", "a/b"}, want: "fetch config"},
		{name: "missing key", args: []string{"generate", "--tag", "v1", "--config", "c.json", "--repo", "a/b", "--sign-key", "/nonexistent/key.asc"}, want: "load signing key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			assert.Equal(t, 1, h.run(tt.args...))
			assert.Contains(t, h.stderr.String(), tt.want)
		})
	}
}

func TestGenerateInvalidConfig(t *testing.T) {
	h := newHarness(t)
	h.backend.configs["dotslash.json@main"] = `{"outputs": {}}`

	code := h.run("generate", "--tag", "v1", "--config", "dotslash.json", "--repo", "acme/tool")
	assert.Equal(t, 1, code)
	assert.Contains(t, h.stderr.String(), "no outputs specified in config")
}

func TestRunDispatch(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, 0, h.run("--version"))
	assert.Equal(t, "slashgen "+Version+"\n", h.stdout.String())

	h = newHarness(t)
	assert.Equal(t, 0, h.run())
	assert.Contains(t, h.stdout.String(), "Usage:")

	h = newHarness(t)
	assert.Equal(t, 2, h.run("bogus"))
	assert.Contains(t, h.stderr.String(), "unknown command: bogus")

	h = newHarness(t)
	assert.Equal(t, 0, h.run("generate", "--help"))
	assert.Contains(t, h.stderr.String(), "--include-build-metadata")
}
