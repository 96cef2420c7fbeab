// Package metadata collects the build_metadata block embedded in generated
// manifests: where the configuration came from, the CI run that produced
// the manifest and when it was generated.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"
)

// TimeFormat renders generated_at in UTC with a literal Z suffix.
const TimeFormat = "2006-01-02T15:04:05.000000Z"

// ciVariables maps CI keys to the environment variables they are read from.
// Order matters: it is the key order of the encoded "ci" object.
var ciVariables = []struct {
	key, env string
}{
	{"github_repository", "GITHUB_REPOSITORY"},
	{"github_ref", "GITHUB_REF"},
	{"github_sha", "GITHUB_SHA"},
	{"github_run_id", "GITHUB_RUN_ID"},
	{"github_run_number", "GITHUB_RUN_NUMBER"},
	{"github_workflow", "GITHUB_WORKFLOW"},
	{"github_actor", "GITHUB_ACTOR"},
	{"github_event_name", "GITHUB_EVENT_NAME"},
	{"github_server_url", "GITHUB_SERVER_URL"},
}

// CI holds the GitHub Actions variables that were set.
type CI struct {
	Repository string `json:"github_repository,omitempty"`
	Ref        string `json:"github_ref,omitempty"`
	SHA        string `json:"github_sha,omitempty"`
	RunID      string `json:"github_run_id,omitempty"`
	RunNumber  string `json:"github_run_number,omitempty"`
	Workflow   string `json:"github_workflow,omitempty"`
	Actor      string `json:"github_actor,omitempty"`
	EventName  string `json:"github_event_name,omitempty"`
	ServerURL  string `json:"github_server_url,omitempty"`
}

func (c *CI) set(key, value string) {
	switch key {
	case "github_repository":
		c.Repository = value
	case "github_ref":
		c.Ref = value
	case "github_sha":
		c.SHA = value
	case "github_run_id":
		c.RunID = value
	case "github_run_number":
		c.RunNumber = value
	case "github_workflow":
		c.Workflow = value
	case "github_actor":
		c.Actor = value
	case "github_event_name":
		c.EventName = value
	case "github_server_url":
		c.ServerURL = value
	}
}

// Host describes the machine that generated the manifest.
type Host struct {
	OS              string `json:"os,omitempty"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelArch      string `json:"kernel_arch,omitempty"`
}

// BuildMetadata is the build_metadata object. Field order is the encoded
// key order.
type BuildMetadata struct {
	SourceConfig string `json:"source_config,omitempty"`
	SourceCommit string `json:"source_commit,omitempty"`
	CI           *CI    `json:"ci,omitempty"`
	GeneratedAt  string `json:"generated_at"`
	CIJobURL     string `json:"ci_job_url,omitempty"`
	Host         *Host  `json:"host,omitempty"`
	InvocationID string `json:"invocation_id,omitempty"`
}

// JSON encodes the metadata for dotslash.Options.BuildMetadata.
func (m *BuildMetadata) JSON() (json.RawMessage, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode build metadata: %w", err)
	}
	return data, nil
}

// Options configures Collect.
type Options struct {
	// ConfigPath is recorded as source_config.
	ConfigPath string

	// RepoDir is searched upwards for a git repository whose HEAD becomes
	// source_commit. Empty skips the lookup.
	RepoDir string

	// IncludeHost adds facts about the current machine.
	IncludeHost bool

	// Getenv defaults to os.Getenv.
	Getenv func(string) string

	// Clock defaults to RealClock.
	Clock Clock

	// NewID generates invocation_id. Defaults to a random UUID.
	NewID func() string

	hostInfo func(ctx context.Context) (*host.InfoStat, error)
}

// Collect gathers build metadata. Failing to read the git commit or host
// facts is not an error; those keys are left out.
func Collect(ctx context.Context, opts Options) (*BuildMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	m := &BuildMetadata{
		SourceConfig: opts.ConfigPath,
		GeneratedAt:  clock.Now().UTC().Format(TimeFormat),
		InvocationID: newID(),
	}

	ci := &CI{}
	found := false
	for _, v := range ciVariables {
		if value := getenv(v.env); value != "" {
			ci.set(v.key, value)
			found = true
		}
	}
	if found {
		m.CI = ci
	}

	server, repo, runID := getenv("GITHUB_SERVER_URL"), getenv("GITHUB_REPOSITORY"), getenv("GITHUB_RUN_ID")
	if server != "" && repo != "" && runID != "" {
		m.CIJobURL = fmt.Sprintf("%s/%s/actions/runs/%s", strings.TrimSuffix(server, "/"), repo, runID)
	}

	if opts.RepoDir != "" {
		commit, err := HeadCommit(opts.RepoDir)
		if err == nil {
			m.SourceCommit = commit
		}
	}

	if opts.IncludeHost {
		hostInfo := opts.hostInfo
		if hostInfo == nil {
			hostInfo = host.InfoWithContext
		}
		info, err := hostInfo(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("host detection cancelled: %w", ctx.Err())
			}
		} else {
			m.Host = &Host{
				OS:              info.OS,
				Platform:        info.Platform,
				PlatformVersion: info.PlatformVersion,
				KernelArch:      info.KernelArch,
			}
		}
	}

	return m, nil
}

// ErrNotAGitRepo is returned by HeadCommit outside a repository.
var ErrNotAGitRepo = errors.New("not a git repository")

// HeadCommit returns the HEAD commit of the repository containing path.
func HeadCommit(path string) (string, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return "", fmt.Errorf("%w: %s", ErrNotAGitRepo, path)
	}
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// Enabled reports whether build metadata should be included. flagValue is
// the --include-build-metadata string; any of false, 0 or no (in any case)
// turns it off, as do the exclude flag and the same values in envValue.
func Enabled(flagValue string, exclude bool, envValue string) bool {
	if exclude || isFalse(flagValue) {
		return false
	}
	return !isFalse(envValue)
}

func isFalse(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "false", "0", "no":
		return true
	}
	return false
}
