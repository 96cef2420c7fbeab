package config

// Document field names
const (
	fieldOutputs                      = "outputs"
	fieldPlatforms                    = "platforms"
	fieldExcludeHTTPProvider          = "exclude-http-provider"
	fieldExcludeGitHubReleaseProvider = "exclude-github-release-provider"
	fieldName                         = "name"
	fieldRegex                        = "regex"
	fieldHash                         = "hash"
	fieldPath                         = "path"
	fieldFormat                       = "format"
)

// Lua globals
const (
	luaGlobalConfig  = "dotslash"
	luaGlobalRelease = "release"
	luaGlobalNone    = "NONE"
)

// Resource limits
const (
	// MaxConfigSize is the largest configuration document accepted.
	MaxConfigSize = 10 << 20

	// maxDepth bounds nesting while converting Lua tables, which may be
	// self-referential.
	maxDepth = 32
)
