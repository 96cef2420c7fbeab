package release

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"
)

// HTTPFetcher downloads artifacts from their direct download URL.
type HTTPFetcher struct {
	client    *retryablehttp.Client
	userAgent string
	token     string
}

// NewHTTPFetcher creates a fetcher. A non-empty token is sent as a bearer
// token, which private repositories require.
func NewHTTPFetcher(token string, opts ClientOptions) *HTTPFetcher {
	opts = opts.withDefaults()
	return &HTTPFetcher{
		client:    newRetryClient(opts),
		userAgent: opts.UserAgent,
		token:     token,
	}
}

// Fetch implements dotslash.Fetcher. The body must be closed by the caller.
// A 404 is reported as ErrAssetNotFound.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref dotslash.AssetRef) (io.ReadCloser, int64, error) {
	if ref.URL == "" {
		return nil, 0, fmt.Errorf("asset %s has no download URL", ref.Name)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/octet-stream")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download %s: %w", ref.Name, err)
	}

	if code := resp.StatusCode; code != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if code == http.StatusNotFound {
			return nil, 0, fmt.Errorf("%w: %s", ErrAssetNotFound, ref.URL)
		}
		return nil, 0, fmt.Errorf("download %s from %s, status: %s", ref.Name, ref.URL, resp.Status)
	}

	return resp.Body, resp.ContentLength, nil
}
