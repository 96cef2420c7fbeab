package dotslash

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Header is the interpreter line every DotSlash file starts with.
const Header = "#!/usr/bin/env dotslash"

// ProviderTypeGitHubRelease is the provider type for release references.
const ProviderTypeGitHubRelease = "github-release"

// Provider tells a DotSlash client where to get the artifact bytes. It is
// either a plain URL or a release reference.
type Provider struct {
	URL string `json:"url,omitempty"`

	Type string `json:"type,omitempty"`
	Repo string `json:"repo,omitempty"`
	Tag  string `json:"tag,omitempty"`
	Name string `json:"name,omitempty"`
}

// Entry is the manifest object for one platform.
type Entry struct {
	Size      int64         `json:"size"`
	Hash      HashAlgorithm `json:"hash"`
	Digest    string        `json:"digest"`
	Format    Format        `json:"format,omitempty"`
	Path      string        `json:"path"`
	Providers []Provider    `json:"providers"`
}

// PlatformEntry pairs a platform key with its entry.
type PlatformEntry struct {
	Key   string
	Entry Entry
}

// Platforms is an ordered platform map. It encodes as a JSON object whose
// keys keep insertion order.
type Platforms []PlatformEntry

// MarshalJSON implements json.Marshaler.
func (p Platforms) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pe := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(pe.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := marshalNoEscape(pe.Entry)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Lookup returns the entry for a platform key.
func (p Platforms) Lookup(key string) (Entry, bool) {
	for _, pe := range p {
		if pe.Key == key {
			return pe.Entry, true
		}
	}
	return Entry{}, false
}

// Manifest is a complete DotSlash document.
type Manifest struct {
	Name          string          `json:"name"`
	Platforms     Platforms       `json:"platforms"`
	BuildMetadata json.RawMessage `json:"build_metadata,omitempty"`
}

// Encode renders the manifest exactly as it is written to disk: the header
// line, a blank line, the JSON document indented by two spaces and a
// trailing newline.
func (m *Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Header)
	buf.WriteString("\n\n")

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

func marshalNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Builder assembles manifest entries for one release.
type Builder struct {
	Repo string // repository reference written into release providers
	Tag  string

	IncludeHTTPProvider    bool
	IncludeReleaseProvider bool
}

// Validate checks that a resolved entry carries every field a manifest
// entry needs.
func (b *Builder) Validate(r Resolved) error {
	missing := func(field string) error {
		return &Error{
			Kind:     ErrMissingField,
			Platform: r.Key,
			Artifact: r.Artifact.Name,
			Field:    field,
		}
	}
	if r.Artifact.Size < 0 {
		return missing("size")
	}
	if r.Artifact.Name == "" {
		return missing("name")
	}
	if r.Selector.Path == "" {
		return missing("path")
	}
	return nil
}

// Providers returns the provider list for an artifact. The HTTP provider
// always precedes the release reference.
func (b *Builder) Providers(artifact Artifact) []Provider {
	providers := make([]Provider, 0, 2)
	if b.IncludeHTTPProvider {
		providers = append(providers, Provider{URL: artifact.URL})
	}
	if b.IncludeReleaseProvider {
		providers = append(providers, Provider{
			Type: ProviderTypeGitHubRelease,
			Repo: b.Repo,
			Tag:  b.Tag,
			Name: artifact.Name,
		})
	}
	return providers
}

// Entry builds the manifest entry for a resolved platform. An explicit
// FormatNone leaves the format attribute out of the encoded entry.
func (b *Builder) Entry(r Resolved, format Format, digest Digest) Entry {
	return Entry{
		Size:      r.Artifact.Size,
		Hash:      digest.Algorithm,
		Digest:    digest.Hex,
		Format:    format,
		Path:      r.Selector.Path,
		Providers: b.Providers(r.Artifact),
	}
}

// Build wraps entries into a manifest. meta is copied verbatim into
// build_metadata when non-empty.
func (b *Builder) Build(name string, entries []PlatformEntry, meta json.RawMessage) *Manifest {
	platforms := make(Platforms, len(entries))
	copy(platforms, entries)
	m := &Manifest{
		Name:      name,
		Platforms: platforms,
	}
	if len(meta) > 0 {
		m.BuildMetadata = meta
	}
	return m
}
