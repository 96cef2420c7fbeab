package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/go-github/v74/github"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"
)

// DefaultAPIURL is the public GitHub API endpoint.
const DefaultAPIURL = "https://api.github.com"

const assetsPerPage = 100

// GitHubOptions configures a GitHub client.
type GitHubOptions struct {
	// Repo is the repository in OWNER/NAME form.
	Repo string

	// Token authenticates API calls. Empty means anonymous access.
	Token string

	// APIURL selects a GitHub Enterprise server. Empty or DefaultAPIURL
	// uses github.com.
	APIURL string

	Client ClientOptions
}

// GitHub talks to the releases and contents APIs of one repository. It
// implements dotslash.CatalogSource and dotslash.Fetcher.
type GitHub struct {
	client   *github.Client
	download *http.Client
	owner    string
	repo     string
	logger   dotslash.Logger

	mu       sync.Mutex
	releases map[string]int64 // tag -> release ID
	catalogs map[string]dotslash.Catalog
}

// NewGitHub creates a client for opts.Repo.
func NewGitHub(opts GitHubOptions) (*GitHub, error) {
	owner, repo, err := SplitRepo(opts.Repo)
	if err != nil {
		return nil, err
	}

	clientOpts := opts.Client.withDefaults()
	retry := newRetryClient(clientOpts)

	client := github.NewClient(retry.StandardClient())
	client.UserAgent = clientOpts.UserAgent
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}
	if api := strings.TrimSuffix(opts.APIURL, "/"); api != "" && api != DefaultAPIURL {
		client, err = client.WithEnterpriseURLs(api, api)
		if err != nil {
			return nil, fmt.Errorf("configure API URL %s: %w", opts.APIURL, err)
		}
	}

	logger := dotslash.LoggerOrNop(clientOpts.Logger)

	return &GitHub{
		client:   client,
		download: retry.StandardClient(),
		owner:    owner,
		repo:     repo,
		logger:   logger,
		releases: make(map[string]int64),
		catalogs: make(map[string]dotslash.Catalog),
	}, nil
}

// SplitRepo splits OWNER/NAME.
func SplitRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository must be in OWNER/NAME form, got %q", repo)
	}
	return parts[0], parts[1], nil
}

// releaseID resolves a tag to its release ID.
func (g *GitHub) releaseID(ctx context.Context, tag string) (int64, error) {
	g.mu.Lock()
	id, ok := g.releases[tag]
	g.mu.Unlock()
	if ok {
		return id, nil
	}

	rel, _, err := g.client.Repositories.GetReleaseByTag(ctx, g.owner, g.repo, tag)
	if err != nil {
		return 0, fmt.Errorf("get release %s: %w", tag, translateError(err))
	}

	g.mu.Lock()
	g.releases[tag] = rel.GetID()
	g.mu.Unlock()
	return rel.GetID(), nil
}

// Assets lists every asset of the release, whatever its upload state.
func (g *GitHub) Assets(ctx context.Context, tag string) ([]dotslash.Artifact, error) {
	id, err := g.releaseID(ctx, tag)
	if err != nil {
		return nil, err
	}

	var artifacts []dotslash.Artifact
	opts := &github.ListOptions{PerPage: assetsPerPage}
	for {
		assets, resp, err := g.client.Repositories.ListReleaseAssets(ctx, g.owner, g.repo, id, opts)
		if err != nil {
			return nil, fmt.Errorf("list assets of release %s: %w", tag, translateError(err))
		}
		for _, asset := range assets {
			artifacts = append(artifacts, toArtifact(asset))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	g.logger.Debug("listed release assets", "tag", tag, "assets", len(artifacts))
	return artifacts, nil
}

func toArtifact(asset *github.ReleaseAsset) dotslash.Artifact {
	size := dotslash.UnknownSize
	if asset.Size != nil {
		size = int64(asset.GetSize())
	}
	return dotslash.Artifact{
		ID:    asset.GetID(),
		Name:  asset.GetName(),
		URL:   asset.GetBrowserDownloadURL(),
		Size:  size,
		State: asset.GetState(),
	}
}

// Catalog implements dotslash.CatalogSource. A release without any assets
// is an error; assets that are not fully uploaded are skipped.
func (g *GitHub) Catalog(ctx context.Context, tag string) (dotslash.Catalog, error) {
	g.mu.Lock()
	catalog, ok := g.catalogs[tag]
	g.mu.Unlock()
	if ok {
		return catalog, nil
	}

	artifacts, err := g.Assets(ctx, tag)
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("%w '%s'", ErrNoAssets, tag)
	}

	catalog = dotslash.NewCatalog(artifacts)
	g.mu.Lock()
	g.catalogs[tag] = catalog
	g.mu.Unlock()
	return catalog, nil
}

// Fetch implements dotslash.Fetcher through the release asset API, which
// works for private repositories as well. Assets are addressed by ID; when
// the ref carries none, the ID is looked up by name.
func (g *GitHub) Fetch(ctx context.Context, ref dotslash.AssetRef) (io.ReadCloser, int64, error) {
	id := ref.ID
	if id == 0 {
		catalog, err := g.Catalog(ctx, ref.Tag)
		if err != nil {
			return nil, 0, err
		}
		artifact, ok := catalog[ref.Name]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s in release %s", ErrAssetNotFound, ref.Name, ref.Tag)
		}
		id = artifact.ID
	}

	rc, _, err := g.client.Repositories.DownloadReleaseAsset(ctx, g.owner, g.repo, id, g.download)
	if err != nil {
		return nil, 0, fmt.Errorf("download %s: %w", ref.Name, translateError(err))
	}
	return rc, -1, nil
}

// FetchConfig reads a file from the repository at ref (a branch, tag or
// commit SHA).
func (g *GitHub) FetchConfig(ctx context.Context, path, ref string) ([]byte, error) {
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	file, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path, opts)
	if err != nil {
		return nil, fmt.Errorf("get %s at %s: %w", path, ref, translateError(err))
	}
	if file == nil {
		return nil, fmt.Errorf("get %s at %s: path is a directory", path, ref)
	}

	// Files above 1MB come back without inline content.
	if file.Content == nil && file.GetSize() > 0 {
		rc, _, err := g.client.Repositories.DownloadContents(ctx, g.owner, g.repo, path, opts)
		if err != nil {
			return nil, fmt.Errorf("download %s at %s: %w", path, ref, translateError(err))
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []byte(content), nil
}

// Upload attaches the file at path to the release. An existing asset with
// the same name is never replaced; GitHub rejects the upload instead.
func (g *GitHub) Upload(ctx context.Context, tag, path string) error {
	id, err := g.releaseID(ctx, tag)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	mediaType := mime.TypeByExtension(filepath.Ext(name))
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	asset, _, err := g.client.Repositories.UploadReleaseAsset(ctx, g.owner, g.repo, id, &github.UploadOptions{
		Name:      name,
		MediaType: mediaType,
	}, f)
	if err != nil {
		return fmt.Errorf("upload %s to release %s: %w", name, tag, translateError(err))
	}

	g.logger.Info("uploaded release asset", "tag", tag, "name", asset.GetName(), "id", asset.GetID())
	return nil
}

// translateError maps a 404 from the API to ErrAssetNotFound.
func translateError(err error) error {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrAssetNotFound, err)
	}
	return err
}
