// Package release reads and writes GitHub releases.
//
// GitHub lists the assets of a release and downloads them through the
// release asset API, so it serves as both the catalog source and the
// fetcher for a generator run. HTTPFetcher downloads artifacts from their
// direct URL instead. Both retry transient failures with
// hashicorp/go-retryablehttp.
package release
