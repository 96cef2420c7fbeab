package release

import (
	"errors"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"
)

const (
	// DefaultTimeout bounds a single HTTP request, including the body.
	DefaultTimeout = 5 * time.Minute
	// DefaultRetries is the default number of retries per request.
	DefaultRetries = 3
	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "slashgen/1.0"
)

var (
	// ErrAssetNotFound signals a 404 for an artifact or config file.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrNoAssets is returned when a release has no assets at all.
	ErrNoAssets = errors.New("no assets found for release")
)

// ClientOptions configures the retrying HTTP client shared by the GitHub
// API client and the plain HTTP fetcher.
type ClientOptions struct {
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	UserAgent    string
	Logger       dotslash.Logger
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.Retries <= 0 {
		o.Retries = DefaultRetries
	}
	if o.RetryWaitMin <= 0 {
		o.RetryWaitMin = time.Second
	}
	if o.RetryWaitMax <= 0 {
		o.RetryWaitMax = 30 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// newRetryClient builds a client that retries connection errors, 429 and
// 5xx responses with exponential back off.
func newRetryClient(opts ClientOptions) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.Retries
	client.RetryWaitMin = opts.RetryWaitMin
	client.RetryWaitMax = opts.RetryWaitMax
	client.HTTPClient.Timeout = opts.Timeout
	if opts.Logger != nil {
		client.Logger = newLeveledLogger(opts.Logger)
	} else {
		client.Logger = nil
	}
	return client
}
