// Package config loads slashgen configuration documents.
//
// # Overview
//
// A configuration names the DotSlash files to generate for a release and,
// per file, how each platform key selects its artifact:
//
//	{
//	  "outputs": {
//	    "tool": {
//	      "platforms": {
//	        "linux-x86_64": {"regex": "^tool-.*-linux", "path": "tool"},
//	        "windows-x86_64": {"name": "tool.exe", "path": "tool.exe", "format": null}
//	      }
//	    }
//	  },
//	  "exclude-github-release-provider": false
//	}
//
// Per platform: exactly one of "name" or "regex", "path", an optional
// "hash" (blake3 or sha256, blake3 by default) and an optional "format".
// A present "format": null means the artifact is not packaged; an absent
// "format" is inferred from the artifact name.
//
// # Syntaxes
//
// The same document can be written as:
//   - JSON, with comments and trailing commas allowed (tidwall/jsonc)
//   - YAML (gopkg.in/yaml.v3)
//   - Lua, evaluated in a sandboxed gopher-lua VM
//
// JSON and YAML keep document order for outputs and platforms. Lua tables
// are unordered, so their keys are sorted.
//
// # Lua configs
//
// A Lua config assigns the global `dotslash` table. The release being
// processed is available as the read-only table `release` with fields
// `tag` and `repo`, and `NONE` stands in for a null format:
//
//	dotslash = {
//	  outputs = {
//	    tool = {
//	      platforms = {
//	        ["linux-x86_64"] = { name = "tool-" .. release.tag .. "-linux.tar.gz", path = "tool" },
//	        ["macos-aarch64"] = { name = "tool-macos", path = "tool", format = NONE },
//	      },
//	    },
//	  },
//	}
//
// The sandbox removes os, io, debug, module loading and metatable access.
// Evaluation honours the context passed to Parse or Load.
//
// # Errors
//
// Structural problems are *dotslash.Error values with Kind
// dotslash.ErrConfig, naming the output, platform and field involved.
// Syntax errors are *ParseError, which also matches dotslash.ErrConfig.
package config
