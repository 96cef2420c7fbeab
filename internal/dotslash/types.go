package dotslash

import (
	"context"
	"io"
)

// UnknownSize marks an artifact whose catalog entry carried no size.
const UnknownSize int64 = -1

// StateUploaded is the only artifact state eligible for resolution.
const StateUploaded = "uploaded"

// Artifact is a single file attached to a release.
type Artifact struct {
	ID    int64  // provider-specific asset ID (0 when unknown)
	Name  string // file name, unique within a release
	URL   string // direct download URL
	Size  int64  // byte count advertised by the release, or UnknownSize
	State string // upload state, e.g. "uploaded"
}

// Catalog maps artifact names to the artifacts of one release.
// Catalogs handed to the resolver contain uploaded artifacts only.
type Catalog map[string]Artifact

// NewCatalog builds a Catalog from a list of artifacts, dropping any that
// are not fully uploaded.
func NewCatalog(artifacts []Artifact) Catalog {
	catalog := make(Catalog, len(artifacts))
	for _, artifact := range artifacts {
		if artifact.State != StateUploaded {
			continue
		}
		catalog[artifact.Name] = artifact
	}
	return catalog
}

// Selector is the configuration of one platform key.
type Selector struct {
	Name  string        // exact artifact name
	Regex string        // pattern anchored at the start of the artifact name
	Hash  HashAlgorithm // digest algorithm, blake3 by default
	Path  string        // path of the executable inside the artifact

	// Format is only meaningful when FormatSet is true. FormatSet with
	// FormatNone means the artifact is deliberately not packaged.
	Format    Format
	FormatSet bool
}

// PlatformSpec pairs a platform key with its selector.
type PlatformSpec struct {
	Key      string
	Selector Selector
}

// OutputSpec describes one manifest file. Platforms keeps configuration
// order; a nil slice means the configuration had no platforms map at all.
type OutputSpec struct {
	Name      string
	Platforms []PlatformSpec

	// Err is set when the output's configuration could not be built. The
	// generator reports it for this output without touching the release.
	Err error
}

// Resolved is a platform key bound to the artifact its selector matched.
type Resolved struct {
	Key      string
	Artifact Artifact
	Selector Selector
}

// AssetRef identifies an artifact for the byte-fetch collaborator.
type AssetRef struct {
	Repo string // repository reference, e.g. https://github.com/acme/tool
	Tag  string
	Name string

	// ID and URL are hints for fetchers that address assets directly.
	ID  int64
	URL string
}

// Fetcher retrieves artifact bytes. The returned length may be -1 when
// the source does not know it up front; callers verify the byte count
// themselves.
type Fetcher interface {
	Fetch(ctx context.Context, ref AssetRef) (io.ReadCloser, int64, error)
}

// CatalogSource lists the uploaded artifacts of a release.
type CatalogSource interface {
	Catalog(ctx context.Context, tag string) (Catalog, error)
}
