package dotslash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options configures a Generator.
type Options struct {
	// Catalogs lists the uploaded artifacts of the release.
	Catalogs CatalogSource

	// Fetcher retrieves artifact bytes for hashing.
	Fetcher Fetcher

	Logger Logger

	// Repo is the repository reference written into release providers and
	// passed to the Fetcher, e.g. https://github.com/acme/tool.
	Repo string
	Tag  string

	IncludeHTTPProvider    bool
	IncludeReleaseProvider bool

	// BuildMetadata is copied verbatim into every manifest when set.
	BuildMetadata json.RawMessage

	// Jobs bounds concurrent artifact hashing within one output.
	// Values below 1 mean sequential processing.
	Jobs int

	// VerifyFormat sniffs fetched artifacts and rejects entries whose
	// content does not match the resolved format.
	VerifyFormat bool

	// TempDir is the parent of the per-run working directory. Empty uses
	// the system default.
	TempDir string
}

// Result is the outcome for one output file.
type Result struct {
	Output   string
	Manifest *Manifest
	Content  []byte // encoded manifest, nil when Err is set
	Err      error
}

// Generator turns output specs into manifests for one release.
type Generator struct {
	opts    Options
	logger  Logger
	builder *Builder
}

// NewGenerator validates opts and creates a Generator.
func NewGenerator(opts Options) (*Generator, error) {
	if opts.Catalogs == nil {
		return nil, fmt.Errorf("catalog source is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if opts.Tag == "" {
		return nil, fmt.Errorf("tag is required")
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}

	return &Generator{
		opts:   opts,
		logger: LoggerOrNop(opts.Logger),
		builder: &Builder{
			Repo:                   opts.Repo,
			Tag:                    opts.Tag,
			IncludeHTTPProvider:    opts.IncludeHTTPProvider,
			IncludeReleaseProvider: opts.IncludeReleaseProvider,
		},
	}, nil
}

// Run generates a manifest for every output, in order.
//
// An error in one output is recorded in its Result and the remaining
// outputs are still processed; the returned error joins them. An integrity
// failure stops the run at once: Run then returns no results at all, so
// nothing from a possibly corrupted release is ever published.
func (g *Generator) Run(ctx context.Context, outputs []OutputSpec) ([]Result, error) {
	startTime := time.Now()

	catalog, err := g.opts.Catalogs.Catalog(ctx, g.opts.Tag)
	if err != nil {
		return nil, fmt.Errorf("list release artifacts: %w", err)
	}
	g.logger.Info("loaded release catalog", "tag", g.opts.Tag, "artifacts", len(catalog))

	workDir, err := os.MkdirTemp(g.opts.TempDir, "slashgen-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	hasherOpts := []HasherOption{WithHasherLogger(g.logger)}
	if g.opts.VerifyFormat {
		hasherOpts = append(hasherOpts, WithFormatProbe())
	}
	hasher := NewHasher(g.opts.Fetcher, workDir, hasherOpts...)

	results := make([]Result, 0, len(outputs))
	var errs []error
	for _, out := range outputs {
		manifest, content, err := g.generate(ctx, out, catalog, hasher)
		if IsFatal(err) {
			g.logger.Error("aborting run", "output", out.Name, "error", err)
			return nil, err
		}
		if err != nil {
			g.logger.Error("manifest generation failed", "output", out.Name, "error", err)
			errs = append(errs, fmt.Errorf("output %s: %w", out.Name, err))
			results = append(results, Result{Output: out.Name, Err: err})
			continue
		}
		g.logger.Info("generated manifest", "output", out.Name, "platforms", len(manifest.Platforms))
		results = append(results, Result{Output: out.Name, Manifest: manifest, Content: content})
	}

	g.logger.Debug("run finished", "outputs", len(outputs), "failed", len(errs), "duration", time.Since(startTime))
	return results, errors.Join(errs...)
}

// pending is one platform moving through the per-entry pipeline.
type pending struct {
	resolved Resolved
	format   Format
	ref      AssetRef
}

// generate runs the pipeline for a single output.
func (g *Generator) generate(ctx context.Context, out OutputSpec, catalog Catalog, hasher *Hasher) (*Manifest, []byte, error) {
	if out.Err != nil {
		return nil, nil, withOutput(out.Err, out.Name)
	}

	resolved, err := ResolvePlatforms(out, catalog)
	if err != nil {
		return nil, nil, err
	}

	work := make([]pending, len(resolved))
	for i, r := range resolved {
		if r.Selector.Hash == "" {
			r.Selector.Hash = DefaultHash
		}
		work[i] = pending{
			resolved: r,
			ref: AssetRef{
				Repo: g.opts.Repo,
				Tag:  g.opts.Tag,
				Name: r.Artifact.Name,
				ID:   r.Artifact.ID,
				URL:  r.Artifact.URL,
			},
		}
	}

	digests, err := g.processAll(ctx, work, hasher)
	if err != nil {
		return nil, nil, withOutput(err, out.Name)
	}

	entries := make([]PlatformEntry, 0, len(work))
	for i, p := range work {
		entries = append(entries, PlatformEntry{
			Key:   p.resolved.Key,
			Entry: g.builder.Entry(p.resolved, p.format, digests[i]),
		})
	}

	manifest := g.builder.Build(out.Name, entries, g.opts.BuildMetadata)
	content, err := manifest.Encode()
	if err != nil {
		return nil, nil, err
	}
	return manifest, content, nil
}

// process takes one platform through validate, hash and format, in that
// order. The resolved format is stored back into p.
func (g *Generator) process(ctx context.Context, p *pending, hasher *Hasher) (Digest, error) {
	if err := g.builder.Validate(p.resolved); err != nil {
		return Digest{}, err
	}
	d, err := hasher.Digest(ctx, p.ref, p.resolved.Selector.Hash, p.resolved.Artifact.Size)
	if err != nil {
		return Digest{}, err
	}
	format, err := ResolveFormat(p.resolved.Selector, p.resolved.Artifact.Name)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Platform = p.resolved.Key
		}
		return Digest{}, err
	}
	p.format = format
	if g.opts.VerifyFormat {
		if err := checkProbedFormat(*p, hasher); err != nil {
			return Digest{}, err
		}
	}
	return d, nil
}

// processAll runs process for every platform, at most Jobs at a time.
// Digests are returned in the order of work.
//
// The sequential path stops at the first failing platform. The parallel
// path never cancels a sibling: every platform finishes, then an integrity
// failure from any of them wins, otherwise the error of the earliest
// platform is returned.
func (g *Generator) processAll(ctx context.Context, work []pending, hasher *Hasher) ([]Digest, error) {
	digests := make([]Digest, len(work))

	if g.opts.Jobs == 1 {
		for i := range work {
			d, err := g.process(ctx, &work[i], hasher)
			if err != nil {
				return nil, err
			}
			digests[i] = d
		}
		return digests, nil
	}

	errs := make([]error, len(work))
	var group errgroup.Group
	group.SetLimit(g.opts.Jobs)
	for i := range work {
		group.Go(func() error {
			d, err := g.process(ctx, &work[i], hasher)
			if err != nil {
				errs[i] = err
				return nil
			}
			digests[i] = d
			return nil
		})
	}
	_ = group.Wait()

	return digests, firstError(errs)
}

// firstError picks the error a run reports when several platforms failed.
func firstError(errs []error) error {
	for _, err := range errs {
		if IsFatal(err) {
			return err
		}
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func checkProbedFormat(p pending, hasher *Hasher) error {
	probed, ok := hasher.ProbedFormat(p.ref, p.resolved.Selector.Hash, p.resolved.Artifact.Size)
	if !ok || probed == p.format {
		return nil
	}
	return &Error{
		Kind:     ErrFormatMismatch,
		Platform: p.resolved.Key,
		Artifact: p.resolved.Artifact.Name,
		Field:    "format",
		Detail:   fmt.Sprintf("declared %s, content is %s", p.format, probed),
	}
}
