package dotslash

import (
	"regexp"
	"sort"
)

// ResolvePlatforms binds every platform of an output to exactly one catalog
// artifact. It returns either a complete list in configuration order or the
// first error encountered; there are no partial results.
//
// Regex selectors are anchored at the start of the artifact name only. When
// several artifacts match, the lexicographically smallest name wins so the
// result never depends on map iteration order.
func ResolvePlatforms(out OutputSpec, catalog Catalog) ([]Resolved, error) {
	if out.Platforms == nil {
		return nil, &Error{
			Kind:   ErrConfig,
			Output: out.Name,
			Field:  "platforms",
			Detail: "'platforms' field missing from config",
		}
	}

	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)

	resolved := make([]Resolved, 0, len(out.Platforms))
	seen := make(map[string]bool, len(out.Platforms))
	for _, p := range out.Platforms {
		if seen[p.Key] {
			return nil, &Error{
				Kind:     ErrConfig,
				Output:   out.Name,
				Platform: p.Key,
				Detail:   "duplicate platform key",
			}
		}
		seen[p.Key] = true

		artifact, err := resolvePlatform(p, catalog, names)
		if err != nil {
			return nil, withOutput(err, out.Name)
		}
		resolved = append(resolved, Resolved{
			Key:      p.Key,
			Artifact: artifact,
			Selector: p.Selector,
		})
	}

	return resolved, nil
}

func resolvePlatform(p PlatformSpec, catalog Catalog, names []string) (Artifact, error) {
	sel := p.Selector
	switch {
	case sel.Name != "" && sel.Regex != "":
		return Artifact{}, &Error{Kind: ErrAmbiguousSelector, Platform: p.Key}
	case sel.Name == "" && sel.Regex == "":
		return Artifact{}, &Error{Kind: ErrMissingSelector, Platform: p.Key}
	}

	if sel.Name != "" {
		if artifact, ok := catalog[sel.Name]; ok {
			return artifact, nil
		}
		return Artifact{}, &Error{
			Kind:     ErrNoMatchingArtifact,
			Platform: p.Key,
			Selector: sel.Name,
			Detail:   "could not find asset with name",
		}
	}

	re, err := compileAnchored(sel.Regex)
	if err != nil {
		return Artifact{}, &Error{
			Kind:     ErrConfig,
			Platform: p.Key,
			Selector: sel.Regex,
			Field:    "regex",
			Err:      err,
		}
	}
	for _, name := range names {
		if re.MatchString(name) {
			return catalog[name], nil
		}
	}
	return Artifact{}, &Error{
		Kind:     ErrNoMatchingArtifact,
		Platform: p.Key,
		Selector: sel.Regex,
		Detail:   "could not find asset matching regex",
	}
}

// compileAnchored compiles pattern so that it must match at the start of
// the input but may stop anywhere.
func compileAnchored(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)`)
}
