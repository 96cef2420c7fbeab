package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"
)

// Config is a decoded slashgen configuration.
type Config struct {
	// Outputs lists the manifests to generate, in document order.
	Outputs []dotslash.OutputSpec

	ExcludeHTTPProvider          bool
	ExcludeGitHubReleaseProvider bool
}

// Output returns the output spec with the given file name.
func (c *Config) Output(name string) (dotslash.OutputSpec, bool) {
	for _, out := range c.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return dotslash.OutputSpec{}, false
}

// Syntax is the surface language of a configuration document.
type Syntax string

const (
	SyntaxJSON Syntax = "json" // JSON, comments and trailing commas allowed
	SyntaxYAML Syntax = "yaml"
	SyntaxLua  Syntax = "lua"
)

// SyntaxFromPath picks the syntax from a file extension. Unknown extensions
// are read as JSON.
func SyntaxFromPath(path string) Syntax {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return SyntaxYAML
	case ".lua":
		return SyntaxLua
	default:
		return SyntaxJSON
	}
}

// ReleaseInfo describes the release a configuration is evaluated for. Lua
// configs see it as the read-only global table `release`.
type ReleaseInfo struct {
	Tag  string
	Repo string
}

// LoadOptions configures Load and Parse.
type LoadOptions struct {
	Release ReleaseInfo
	Logger  dotslash.Logger
}

// ParseError represents a config parsing error with a friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw parser error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// Unwrap lets callers match parse failures with dotslash.ErrConfig.
func (e *ParseError) Unwrap() error {
	return dotslash.ErrConfig
}
