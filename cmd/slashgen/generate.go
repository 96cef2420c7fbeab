package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/config"
	"github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"
	"github.com/ZebulonRouseFrantzich/slashgen/internal/metadata"
	"github.com/ZebulonRouseFrantzich/slashgen/internal/publish"
	"github.com/ZebulonRouseFrantzich/slashgen/internal/release"
	"github.com/ZebulonRouseFrantzich/slashgen/internal/sign"
)

const (
	defaultConfigRef = "main"
	defaultServer    = "https://github.com"
)

type generateOptions struct {
	tag         string
	configPath  string
	localConfig bool
	repo        string
	upload      bool
	configRef   string
	server      string
	apiServer   string
	output      string
	token       string

	includeBuildMetadata string
	excludeBuildMetadata bool

	fetch         string
	jobs          int
	retries       int
	verifyFormat  bool
	signKey       string
	passphraseEnv string
	verbose       bool
}

func newGenerateFlags(e *env, opts *generateOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.SortFlags = false

	fs.StringVar(&opts.tag, "tag", "", "tag identifying the release (required)")
	fs.StringVar(&opts.configPath, "config", "", "path to the config file in the repository (required)")
	fs.BoolVar(&opts.localConfig, "local-config", false, "treat --config as a local path and ignore --config-ref")
	fs.StringVar(&opts.repo, "repo", e.getenv("GITHUB_REPOSITORY"), "GitHub repository in OWNER/REPO form")
	fs.BoolVar(&opts.upload, "upload", false, "upload the generated DotSlash files to the release")
	fs.StringVar(&opts.configRef, "config-ref", e.envOr(defaultConfigRef, "GITHUB_SHA"), "Git ref to read the config from")
	fs.StringVar(&opts.server, "server", e.envOr(defaultServer, "GITHUB_SERVER_URL"), "URL of the GitHub server")
	fs.StringVar(&opts.apiServer, "api-server", e.envOr(release.DefaultAPIURL, "GITHUB_API_URL"), "URL of the GitHub API server")
	fs.StringVar(&opts.output, "output", e.getenv("GITHUB_WORKSPACE"), "directory the DotSlash files are written to (default $GITHUB_WORKSPACE or a temp dir)")
	fs.StringVar(&opts.token, "token", e.envOr("", "GITHUB_TOKEN", "GH_TOKEN"), "GitHub token (default $GITHUB_TOKEN or $GH_TOKEN)")
	fs.StringVar(&opts.includeBuildMetadata, "include-build-metadata", "true", "include build metadata in the generated DotSlash files")
	fs.BoolVar(&opts.excludeBuildMetadata, "exclude-build-metadata", false, "exclude build metadata from the generated DotSlash files")
	fs.StringVar(&opts.fetch, "fetch", "github", "how artifacts are downloaded for hashing: github (release API) or http (download URL)")
	fs.IntVar(&opts.jobs, "jobs", 1, "number of artifacts hashed concurrently")
	fs.IntVar(&opts.retries, "retries", release.DefaultRetries, "retries per HTTP request")
	fs.BoolVar(&opts.verifyFormat, "verify-format", false, "check that artifact contents match their declared format")
	fs.StringVar(&opts.signKey, "sign-key", e.getenv("SLASHGEN_SIGNING_KEY"), "OpenPGP private key used to write <file>.asc signatures")
	fs.StringVar(&opts.passphraseEnv, "sign-passphrase-env", "SLASHGEN_SIGNING_PASSPHRASE", "environment variable holding the signing key passphrase")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	return fs
}

func (o *generateOptions) validate() error {
	if o.tag == "" {
		return errors.New("--tag is required")
	}
	if o.configPath == "" {
		return errors.New("--config is required")
	}
	if o.repo == "" {
		return errors.New("no repo specified: must specify --repo or set the GITHUB_REPOSITORY environment variable")
	}
	if _, _, err := release.SplitRepo(o.repo); err != nil {
		return err
	}
	if o.fetch != "github" && o.fetch != "http" {
		return fmt.Errorf("--fetch must be github or http, got %q", o.fetch)
	}
	if o.jobs < 1 {
		return fmt.Errorf("--jobs must be at least 1, got %d", o.jobs)
	}
	return nil
}

func newLogger(e *env, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(e.stderr, &slog.HandlerOptions{Level: level}))
}

// runGenerate handles `slashgen generate`.
func runGenerate(ctx context.Context, e *env, args []string) error {
	var opts generateOptions
	fs := newGenerateFlags(e, &opts)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if err := opts.validate(); err != nil {
		return err
	}

	logger := newLogger(e, opts.verbose)
	repoURL := strings.TrimSuffix(opts.server, "/") + "/" + opts.repo

	// Fail before any network traffic when the key is unusable.
	var signer publish.Signer
	if opts.signKey != "" {
		s, err := sign.LoadSigner(opts.signKey, []byte(e.getenv(opts.passphraseEnv)))
		if err != nil {
			return fmt.Errorf("load signing key: %w", err)
		}
		logger.Info("signing manifests", "key_id", s.KeyID())
		signer = s
	}

	clientOpts := release.ClientOptions{Retries: opts.retries, Logger: logger}
	gh, err := e.newBackend(release.GitHubOptions{
		Repo:   opts.repo,
		Token:  opts.token,
		APIURL: opts.apiServer,
		Client: clientOpts,
	})
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx, gh, &opts, repoURL, logger)
	if err != nil {
		return err
	}

	outputDir := opts.output
	if outputDir == "" {
		outputDir, err = os.MkdirTemp("", strings.ReplaceAll(opts.repo, "/", "_")+"_dotslash")
		if err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	logger.Info("DotSlash files will be written", "dir", outputDir)

	var buildMetadata []byte
	if metadata.Enabled(opts.includeBuildMetadata, opts.excludeBuildMetadata, e.getenv("INCLUDE_BUILD_METADATA")) {
		repoDir := ""
		if opts.localConfig {
			repoDir = opts.configPath
		}
		meta, err := metadata.Collect(ctx, metadata.Options{
			ConfigPath:  opts.configPath,
			RepoDir:     repoDir,
			IncludeHost: true,
			Getenv:      e.getenv,
			Clock:       e.clock,
		})
		if err != nil {
			return err
		}
		if buildMetadata, err = meta.JSON(); err != nil {
			return err
		}
		logger.Debug("build metadata", "metadata", string(buildMetadata))
	}

	var fetcher dotslash.Fetcher = gh
	if opts.fetch == "http" {
		fetcher = release.NewHTTPFetcher(opts.token, clientOpts)
	}

	gen, err := dotslash.NewGenerator(dotslash.Options{
		Catalogs:               gh,
		Fetcher:                fetcher,
		Logger:                 logger,
		Repo:                   repoURL,
		Tag:                    opts.tag,
		IncludeHTTPProvider:    !cfg.ExcludeHTTPProvider,
		IncludeReleaseProvider: !cfg.ExcludeGitHubReleaseProvider,
		BuildMetadata:          buildMetadata,
		Jobs:                   opts.jobs,
		VerifyFormat:           opts.verifyFormat,
	})
	if err != nil {
		return err
	}

	results, runErr := gen.Run(ctx, cfg.Outputs)
	if dotslash.IsFatal(runErr) {
		return runErr
	}

	var uploader publish.Uploader
	if opts.upload {
		uploader = gh
	}
	pub, err := publish.New(publish.Options{
		Dir:      outputDir,
		Tag:      opts.tag,
		Signer:   signer,
		Uploader: uploader,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	written, err := pub.PublishAll(ctx, results)
	for _, path := range written {
		fmt.Fprintln(e.stdout, path)
	}
	if err != nil {
		return err
	}

	if runErr != nil {
		return fmt.Errorf("%d of %d outputs failed: %w", countFailed(results), len(results), runErr)
	}
	return nil
}

// loadConfig reads the config from disk or from the repository at
// --config-ref.
func loadConfig(ctx context.Context, gh backend, opts *generateOptions, repoURL string, logger *slog.Logger) (*config.Config, error) {
	loadOpts := config.LoadOptions{
		Release: config.ReleaseInfo{Tag: opts.tag, Repo: repoURL},
		Logger:  logger,
	}

	var (
		cfg *config.Config
		err error
	)
	if opts.localConfig {
		cfg, err = config.Load(ctx, opts.configPath, loadOpts)
	} else {
		var data []byte
		data, err = gh.FetchConfig(ctx, opts.configPath, opts.configRef)
		if err != nil {
			return nil, fmt.Errorf("fetch config: %w", err)
		}
		cfg, err = config.Parse(ctx, data, config.SyntaxFromPath(opts.configPath), loadOpts)
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %s", filepath.Base(opts.configPath), config.FormatError(err, opts.verbose))
	}

	logger.Info("using config", "path", opts.configPath, "outputs", len(cfg.Outputs))
	return cfg, nil
}

func countFailed(results []dotslash.Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
