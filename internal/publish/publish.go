// Package publish writes generated manifests to disk, signs them and
// attaches them to the release.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dustin/go-humanize"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"
	"github.com/ZebulonRouseFrantzich/slashgen/internal/sign"
)

const (
	// ManifestMode makes manifests directly executable through their shebang.
	ManifestMode os.FileMode = 0o755
	// SignatureMode is used for signature files.
	SignatureMode os.FileMode = 0o644
)

// Uploader attaches a local file to a release. Existing assets are never
// replaced.
type Uploader interface {
	Upload(ctx context.Context, tag, path string) error
}

// Signer produces a detached signature. *sign.Signer implements it.
type Signer interface {
	SignBytes(data []byte) ([]byte, error)
}

// Options configures a Publisher.
type Options struct {
	// Dir receives the manifests. It is created when missing.
	Dir string

	// Tag is the release uploads go to.
	Tag string

	// Signer, when set, writes <name>.asc next to each manifest.
	Signer Signer

	// Uploader, when set, uploads manifests and signatures.
	Uploader Uploader

	Logger dotslash.Logger

	goos string
}

// Publisher writes, signs and uploads manifests.
type Publisher struct {
	opts   Options
	logger dotslash.Logger
}

// New creates a Publisher and its output directory.
func New(opts Options) (*Publisher, error) {
	if opts.Dir == "" {
		return nil, errors.New("output directory is required")
	}
	if opts.Uploader != nil && opts.Tag == "" {
		return nil, errors.New("tag is required for uploads")
	}
	if opts.goos == "" {
		opts.goos = runtime.GOOS
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	logger := dotslash.LoggerOrNop(opts.Logger)
	return &Publisher{opts: opts, logger: logger}, nil
}

// Publish writes one manifest and returns the paths it produced, the
// manifest first.
func (p *Publisher) Publish(ctx context.Context, name string, content []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	path := filepath.Join(p.opts.Dir, name)
	mode := ManifestMode
	if p.opts.goos == "windows" {
		mode = SignatureMode
	}
	if err := WriteFile(path, content, mode); err != nil {
		return nil, err
	}
	p.logger.Info("wrote manifest", "path", path, "size", humanize.Bytes(uint64(len(content))))
	paths := []string{path}

	if p.opts.Signer != nil {
		sig, err := p.opts.Signer.SignBytes(content)
		if err != nil {
			return paths, fmt.Errorf("sign %s: %w", name, err)
		}
		sigPath := path + sign.SignatureExt
		if err := WriteFile(sigPath, sig, SignatureMode); err != nil {
			return paths, err
		}
		p.logger.Info("wrote signature", "path", sigPath)
		paths = append(paths, sigPath)
	}

	if p.opts.Uploader != nil {
		for _, file := range paths {
			if err := p.opts.Uploader.Upload(ctx, p.opts.Tag, file); err != nil {
				return paths, fmt.Errorf("upload %s: %w", filepath.Base(file), err)
			}
		}
	}
	return paths, nil
}

// PublishAll publishes every successful result in order. Results that
// carry an error are skipped. The first write, sign or upload failure
// stops publishing.
func (p *Publisher) PublishAll(ctx context.Context, results []dotslash.Result) ([]string, error) {
	var written []string
	for _, r := range results {
		if r.Err != nil || r.Content == nil {
			continue
		}
		paths, err := p.Publish(ctx, r.Output, r.Content)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// WriteFile atomically replaces path with data. The data goes to a
// temporary file in the same directory that is renamed into place, so
// readers never observe a partial manifest.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	success = true
	return nil
}
