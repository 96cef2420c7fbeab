package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"
)

// FakeRelease is an in-memory release. It implements both
// dotslash.CatalogSource and dotslash.Fetcher and counts fetches per
// artifact name.
type FakeRelease struct {
	URLBase string

	mu       sync.Mutex
	order    []string
	content  map[string][]byte
	size     map[string]int64
	state    map[string]string
	fetches  map[string]int
	fetchErr error
}

// NewFakeRelease creates an empty release whose artifact URLs start with
// urlBase.
func NewFakeRelease(urlBase string) *FakeRelease {
	return &FakeRelease{
		URLBase: urlBase,
		content: make(map[string][]byte),
		size:    make(map[string]int64),
		state:   make(map[string]string),
		fetches: make(map[string]int),
	}
}

// Add uploads an artifact whose advertised size matches its content.
func (f *FakeRelease) Add(name string, content []byte) *FakeRelease {
	return f.AddWithSize(name, content, int64(len(content)))
}

// AddWithSize uploads an artifact that advertises size regardless of its
// real length.
func (f *FakeRelease) AddWithSize(name string, content []byte, size int64) *FakeRelease {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.content[name]; !ok {
		f.order = append(f.order, name)
	}
	f.content[name] = content
	f.size[name] = size
	f.state[name] = dotslash.StateUploaded
	return f
}

// SetState overrides the upload state of an artifact.
func (f *FakeRelease) SetState(name, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[name] = state
}

// FailFetches makes every subsequent Fetch return err.
func (f *FakeRelease) FailFetches(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

// Artifacts lists every artifact, including ones not yet uploaded.
func (f *FakeRelease) Artifacts() []dotslash.Artifact {
	f.mu.Lock()
	defer f.mu.Unlock()
	artifacts := make([]dotslash.Artifact, 0, len(f.order))
	for i, name := range f.order {
		artifacts = append(artifacts, dotslash.Artifact{
			ID:    int64(i + 1),
			Name:  name,
			URL:   f.URLBase + "/" + name,
			Size:  f.size[name],
			State: f.state[name],
		})
	}
	return artifacts
}

// Catalog implements dotslash.CatalogSource.
func (f *FakeRelease) Catalog(ctx context.Context, tag string) (dotslash.Catalog, error) {
	return dotslash.NewCatalog(f.Artifacts()), nil
}

// Fetch implements dotslash.Fetcher.
func (f *FakeRelease) Fetch(ctx context.Context, ref dotslash.AssetRef) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[ref.Name]++
	if f.fetchErr != nil {
		return nil, 0, f.fetchErr
	}
	content, ok := f.content[ref.Name]
	if !ok {
		return nil, 0, fmt.Errorf("asset %s not found", ref.Name)
	}
	return io.NopCloser(bytes.NewReader(content)), int64(len(content)), nil
}

// Fetches reports how often name was fetched.
func (f *FakeRelease) Fetches(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[name]
}

// TotalFetches reports the number of fetches across all artifacts.
func (f *FakeRelease) TotalFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.fetches {
		total += n
	}
	return total
}
