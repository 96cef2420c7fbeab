// Package dotslash resolves release artifacts into DotSlash manifests.
//
// # Overview
//
// A manifest tells a DotSlash client, per platform, which artifact to fetch,
// how large it is, what it hashes to, how it is packaged and which path inside
// it to execute. This package builds those manifests from a declarative
// configuration and the catalog of artifacts uploaded to a release.
//
// # Pipeline
//
// Every output file goes through the same linear chain:
//
//	resolve selectors -> validate fields -> resolve format -> hash -> build -> encode
//
// Any error short-circuits the output. There is no partial manifest and no
// retry. Integrity failures (a fetched artifact whose size differs from the
// size the release advertises) abort the whole run, not just one output.
//
// # Components
//
//   - ResolvePlatforms: matches each selector to exactly one catalog artifact
//   - InferFormat / ResolveFormat: maps artifact names to packaging formats
//   - Hasher: fetches, size-checks and digests artifacts, memoized per run
//   - Builder: assembles entries, providers and the final Manifest
//   - Generator: runs the chain for every configured output
//   - ProbeFormat: sniffs the real packaging of a fetched artifact
//
// # Usage
//
//	gen, err := dotslash.NewGenerator(dotslash.Options{
//	    Catalogs: github,
//	    Fetcher:  github,
//	    Repo:     "https://github.com/acme/tool",
//	    Tag:      "v1.2.0",
//	    IncludeHTTPProvider:    true,
//	    IncludeReleaseProvider: true,
//	})
//	if err != nil {
//	    return err
//	}
//	results, err := gen.Run(ctx, cfg.Outputs)
package dotslash
