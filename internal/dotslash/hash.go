package dotslash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"
)

// HashAlgorithm names the digest written into a manifest entry.
type HashAlgorithm string

const (
	HashBlake3 HashAlgorithm = "blake3"
	HashSHA256 HashAlgorithm = "sha256"
)

// DefaultHash is used when a selector does not name an algorithm.
const DefaultHash = HashBlake3

// chunkSize is the read size used while digesting artifacts.
const chunkSize = 4096

// ParseHashAlgorithm validates an algorithm name from configuration.
// An empty string yields DefaultHash.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch algo := HashAlgorithm(s); algo {
	case "":
		return DefaultHash, nil
	case HashBlake3, HashSHA256:
		return algo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedHash, s)
	}
}

func (a HashAlgorithm) newHash() (hash.Hash, error) {
	switch a {
	case HashBlake3:
		return blake3.New(), nil
	case HashSHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHash, string(a))
	}
}

// Digest is the hex-encoded hash of one verified artifact.
type Digest struct {
	Algorithm HashAlgorithm
	Hex       string
}

// cacheKey identifies one digest computation within a run.
type cacheKey struct {
	repo    string
	workDir string
	tag     string
	name    string
	algo    HashAlgorithm
	size    int64
}

func (k cacheKey) String() string {
	return k.repo + "\x00" + k.workDir + "\x00" + k.tag + "\x00" + k.name +
		"\x00" + string(k.algo) + "\x00" + strconv.FormatInt(k.size, 10)
}

type cacheEntry struct {
	digest  Digest
	probed  Format
	probeOK bool
}

// Hasher fetches artifacts, checks their size and digests them. Results
// are memoized for the lifetime of the Hasher, which is one run.
type Hasher struct {
	fetcher Fetcher
	workDir string
	logger  Logger
	probe   bool

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
	group singleflight.Group
}

// HasherOption configures a Hasher.
type HasherOption func(*Hasher)

// WithHasherLogger sets the logger used for fetch and digest events.
func WithHasherLogger(logger Logger) HasherOption {
	return func(h *Hasher) {
		h.logger = LoggerOrNop(logger)
	}
}

// WithFormatProbe makes the Hasher sniff the packaging format of every
// artifact while its bytes are on disk. See ProbedFormat.
func WithFormatProbe() HasherOption {
	return func(h *Hasher) {
		h.probe = true
	}
}

// NewHasher creates a Hasher that stages fetched bytes under workDir.
// The caller owns workDir and must remove it when the run ends.
func NewHasher(fetcher Fetcher, workDir string, opts ...HasherOption) *Hasher {
	h := &Hasher{
		fetcher: fetcher,
		workDir: workDir,
		logger:  NopLogger{},
		cache:   make(map[cacheKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hasher) key(ref AssetRef, algo HashAlgorithm, size int64) cacheKey {
	return cacheKey{
		repo:    ref.Repo,
		workDir: h.workDir,
		tag:     ref.Tag,
		name:    ref.Name,
		algo:    algo,
		size:    size,
	}
}

// Digest returns the digest of the artifact identified by ref. The first
// call for a given (repo, tag, name, algorithm, size) fetches and verifies
// the artifact; later calls are served from the cache.
//
// A size mismatch returns an *IntegrityError and is never cached.
func (h *Hasher) Digest(ctx context.Context, ref AssetRef, algo HashAlgorithm, size int64) (Digest, error) {
	entry, err := h.lookup(ctx, ref, algo, size)
	if err != nil {
		return Digest{}, err
	}
	return entry.digest, nil
}

// ProbedFormat returns the packaging format sniffed from the artifact
// content. It is only available after Digest succeeded on a Hasher built
// with WithFormatProbe.
func (h *Hasher) ProbedFormat(ref AssetRef, algo HashAlgorithm, size int64) (Format, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.cache[h.key(ref, algo, size)]
	if !ok || !entry.probeOK {
		return FormatNone, false
	}
	return entry.probed, true
}

func (h *Hasher) lookup(ctx context.Context, ref AssetRef, algo HashAlgorithm, size int64) (cacheEntry, error) {
	key := h.key(ref, algo, size)

	h.mu.Lock()
	entry, ok := h.cache[key]
	h.mu.Unlock()
	if ok {
		h.logger.Debug("digest cache hit", "artifact", ref.Name, "hash", algo)
		return entry, nil
	}

	// Concurrent misses for the same key share one fetch.
	v, err, _ := h.group.Do(key.String(), func() (interface{}, error) {
		h.mu.Lock()
		entry, ok := h.cache[key]
		h.mu.Unlock()
		if ok {
			return entry, nil
		}

		entry, err := h.compute(ctx, ref, algo, size)
		if err != nil {
			return cacheEntry{}, err
		}

		h.mu.Lock()
		h.cache[key] = entry
		h.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return cacheEntry{}, err
	}
	return v.(cacheEntry), nil
}

// compute fetches the artifact into a private file, verifies its size and
// digests it. The file is removed before compute returns.
func (h *Hasher) compute(ctx context.Context, ref AssetRef, algo HashAlgorithm, size int64) (cacheEntry, error) {
	hasher, err := algo.newHash()
	if err != nil {
		return cacheEntry{}, err
	}

	tmpFile, err := os.CreateTemp(h.workDir, "artifact-*")
	if err != nil {
		return cacheEntry{}, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	h.logger.Info("fetching artifact", "artifact", ref.Name, "tag", ref.Tag,
		"size", humanize.Bytes(uint64(max(size, 0))))

	body, _, err := h.fetcher.Fetch(ctx, ref)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("fetch %s: %w", ref.Name, err)
	}
	_, err = io.Copy(tmpFile, body)
	body.Close()
	if err != nil {
		return cacheEntry{}, fmt.Errorf("write %s: %w", ref.Name, err)
	}

	// Trust the bytes on disk, not what the fetcher claimed.
	stat, err := tmpFile.Stat()
	if err != nil {
		return cacheEntry{}, fmt.Errorf("stat %s: %w", ref.Name, err)
	}
	if stat.Size() != size {
		return cacheEntry{}, &IntegrityError{
			Artifact: ref.Name,
			Expected: size,
			Actual:   stat.Size(),
		}
	}

	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return cacheEntry{}, fmt.Errorf("seek %s: %w", ref.Name, err)
	}
	if err := digestChunks(hasher, tmpFile); err != nil {
		return cacheEntry{}, fmt.Errorf("digest %s: %w", ref.Name, err)
	}

	entry := cacheEntry{
		digest: Digest{Algorithm: algo, Hex: hex.EncodeToString(hasher.Sum(nil))},
	}

	if h.probe {
		if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
			return cacheEntry{}, fmt.Errorf("seek %s: %w", ref.Name, err)
		}
		format, err := ProbeFormat(tmpFile)
		if err != nil {
			h.logger.Warn("could not probe artifact format", "artifact", ref.Name, "error", err)
		} else {
			entry.probed = format
			entry.probeOK = true
		}
	}

	h.logger.Debug("computed digest", "artifact", ref.Name, "hash", algo, "digest", entry.digest.Hex)
	return entry, nil
}

// digestChunks feeds r into hasher in fixed-size reads so large artifacts
// never sit in memory.
func digestChunks(hasher hash.Hash, r io.Reader) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
