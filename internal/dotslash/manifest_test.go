package dotslash_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"
)

func resolvedFor(key, name, path string, size int64) dotslash.Resolved {
	return dotslash.Resolved{
		Key: key,
		Artifact: dotslash.Artifact{
			Name:  name,
			URL:   "https://x/" + name,
			Size:  size,
			State: dotslash.StateUploaded,
		},
		Selector: dotslash.Selector{Name: name, Path: path},
	}
}

func TestManifestEncode(t *testing.T) {
	b := &dotslash.Builder{
		Repo:                   "https://github.com/acme/tool",
		Tag:                    "v1.0.0",
		IncludeHTTPProvider:    true,
		IncludeReleaseProvider: true,
	}
	digest := dotslash.Digest{Algorithm: dotslash.HashSHA256, Hex: "abc123"}

	m := b.Build("tool", []dotslash.PlatformEntry{
		{
			Key:   "linux-x86_64",
			Entry: b.Entry(resolvedFor("linux-x86_64", "tool-linux.tar.gz", "tool", 1024), dotslash.FormatTarGz, digest),
		},
		{
			Key:   "macos-aarch64",
			Entry: b.Entry(resolvedFor("macos-aarch64", "tool-macos", "tool-macos", 7), dotslash.FormatNone, digest),
		},
	}, nil)

	got, err := m.Encode()
	require.NoError(t, err)

	want := `#!/usr/bin/env dotslash

{
  "name": "tool",
  "platforms": {
    "linux-x86_64": {
      "size": 1024,
      "hash": "sha256",
      "digest": "abc123",
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
    "macos-aarch64": {
      "size": 7,
      "hash": "sha256",
      "digest": "abc123",
      "path": "tool-macos",
      "providers": [
        {
          "url": "https://x/tool-macos"
        },
        {
          "type": "github-release",
          "repo": "https://github.com/acme/tool",
          "tag": "v1.0.0",
          "name": "tool-macos"
        }
      ]
    }
  }
}
`
	assert.Equal(t, want, string(got))
}

func TestManifestEncodeKeepsPlatformOrder(t *testing.T) {
	b := &dotslash.Builder{IncludeHTTPProvider: true}
	digest := dotslash.Digest{Algorithm: dotslash.HashBlake3, Hex: "00"}

	var entries []dotslash.PlatformEntry
	for _, key := range []string{"windows", "linux", "macos"} {
		entries = append(entries, dotslash.PlatformEntry{
			Key:   key,
			Entry: b.Entry(resolvedFor(key, key+".zip", "bin", 1), dotslash.FormatZip, digest),
		})
	}

	got, err := b.Build("tool", entries, nil).Encode()
	require.NoError(t, err)

	s := string(got)
	iw := strings.Index(s, `"windows"`)
	il := strings.Index(s, `"linux"`)
	im := strings.Index(s, `"macos"`)
	assert.True(t, iw < il && il < im, "platform order not preserved:\n%s", s)
}

func TestManifestEncodeBuildMetadata(t *testing.T) {
	b := &dotslash.Builder{IncludeHTTPProvider: true}
	meta := json.RawMessage(`{"source_commit":"deadbeef","ci":{"run_id":"42"}}`)

	got, err := b.Build("tool", nil, meta).Encode()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(got), dotslash.Header+"\n\n{\n"))
	assert.True(t, strings.HasSuffix(string(got), "}\n"))
	assert.Contains(t, string(got), "\"build_metadata\": {\n    \"source_commit\": \"deadbeef\",")
	assert.Contains(t, string(got), `"platforms": {}`)

	without, err := b.Build("tool", nil, nil).Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(without), "build_metadata")
}

func TestManifestEncodeDoesNotEscapeHTML(t *testing.T) {
	b := &dotslash.Builder{IncludeHTTPProvider: true}
	r := resolvedFor("linux", "tool.tar.gz", "a&b<c>", 1)
	r.Artifact.URL = "https://x/download?a=1&b=2"

	got, err := b.Build("tool", []dotslash.PlatformEntry{
		{Key: "linux", Entry: b.Entry(r, dotslash.FormatTarGz, dotslash.Digest{Algorithm: dotslash.HashBlake3, Hex: "00"})},
	}, nil).Encode()
	require.NoError(t, err)
	assert.Contains(t, string(got), `"path": "a&b<c>"`)
	assert.Contains(t, string(got), `"url": "https://x/download?a=1&b=2"`)
}

func TestBuilderProviders(t *testing.T) {
	artifact := dotslash.Artifact{Name: "tool.tar.gz", URL: "https://x/tool.tar.gz"}
	httpProvider := dotslash.Provider{URL: "https://x/tool.tar.gz"}
	releaseProvider := dotslash.Provider{
		Type: dotslash.ProviderTypeGitHubRelease,
		Repo: "acme/tool",
		Tag:  "v1",
		Name: "tool.tar.gz",
	}

	tests := []struct {
		name        string
		includeHTTP bool
		includeRel  bool
		want        []dotslash.Provider
	}{
		{name: "both", includeHTTP: true, includeRel: true, want: []dotslash.Provider{httpProvider, releaseProvider}},
		{name: "http only", includeHTTP: true, want: []dotslash.Provider{httpProvider}},
		{name: "release only", includeRel: true, want: []dotslash.Provider{releaseProvider}},
		{name: "neither", want: []dotslash.Provider{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &dotslash.Builder{
				Repo:                   "acme/tool",
				Tag:                    "v1",
				IncludeHTTPProvider:    tt.includeHTTP,
				IncludeReleaseProvider: tt.includeRel,
			}
			got := b.Providers(artifact)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuilderProvidersEncodeEmptyList(t *testing.T) {
	b := &dotslash.Builder{}
	entry := b.Entry(resolvedFor("linux", "tool", "tool", 1), dotslash.FormatNone, dotslash.Digest{Algorithm: dotslash.HashBlake3, Hex: "00"})

	data, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"providers":[]`)
	assert.NotContains(t, string(data), `"format"`)
}

func TestBuilderValidate(t *testing.T) {
	b := &dotslash.Builder{}

	tests := []struct {
		name      string
		mutate    func(*dotslash.Resolved)
		wantField string
	}{
		{name: "complete", mutate: func(*dotslash.Resolved) {}},
		{name: "unknown size", mutate: func(r *dotslash.Resolved) { r.Artifact.Size = dotslash.UnknownSize }, wantField: "size"},
		{name: "no name", mutate: func(r *dotslash.Resolved) { r.Artifact.Name = "" }, wantField: "name"},
		{name: "no path", mutate: func(r *dotslash.Resolved) { r.Selector.Path = "" }, wantField: "path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resolvedFor("linux", "tool.tar.gz", "tool", 0)
			tt.mutate(&r)

			err := b.Validate(r)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, dotslash.ErrMissingField)
			var e *dotslash.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.wantField, e.Field)
			assert.Equal(t, "linux", e.Platform)
		})
	}
}

func TestPlatformsLookup(t *testing.T) {
	p := dotslash.Platforms{
		{Key: "linux", Entry: dotslash.Entry{Path: "a"}},
		{Key: "macos", Entry: dotslash.Entry{Path: "b"}},
	}
	got, ok := p.Lookup("macos")
	require.True(t, ok)
	assert.Equal(t, "b", got.Path)

	_, ok = p.Lookup("windows")
	assert.False(t, ok)
}
