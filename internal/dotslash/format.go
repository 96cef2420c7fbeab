package dotslash

import (
	"fmt"
	"strings"
)

// Format is an artifact packaging format understood by DotSlash.
type Format string

const (
	// FormatNone means the artifact is the executable itself.
	FormatNone   Format = ""
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
	FormatTarXz  Format = "tar.xz"
	FormatTar    Format = "tar"
	FormatGz     Format = "gz"
	FormatZst    Format = "zst"
	FormatXz     Format = "xz"
	FormatZip    Format = "zip"
)

// String returns the format tag, or "none" for FormatNone.
func (f Format) String() string {
	if f == FormatNone {
		return "none"
	}
	return string(f)
}

// ParseFormat validates a format tag from configuration.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTarGz, FormatTarZst, FormatTarXz, FormatTar,
		FormatGz, FormatZst, FormatXz, FormatZip:
		return f, nil
	default:
		return FormatNone, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// formatSuffixes is evaluated top to bottom. Compound suffixes come before
// the shorter suffixes they end with.
var formatSuffixes = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGz},
	{".tgz", FormatTarGz},
	{".tar.zst", FormatTarZst},
	{".tzst", FormatTarZst},
	{".tar.xz", FormatTarXz},
	{".tar", FormatTar},
	{".gz", FormatGz},
	{".zst", FormatZst},
	{".xz", FormatXz},
	{".zip", FormatZip},
}

// InferFormat guesses the packaging format from an artifact name.
// The boolean is false when no suffix matched.
func InferFormat(name string) (Format, bool) {
	for _, s := range formatSuffixes {
		if strings.HasSuffix(name, s.suffix) {
			return s.format, true
		}
	}
	return FormatNone, false
}

// ResolveFormat applies the selector's explicit format, falling back to
// inference from the artifact name.
func ResolveFormat(sel Selector, artifactName string) (Format, error) {
	if sel.FormatSet {
		return sel.Format, nil
	}
	format, ok := InferFormat(artifactName)
	if !ok {
		return FormatNone, &Error{
			Kind:     ErrFormatUnresolvable,
			Artifact: artifactName,
		}
	}
	return format, nil
}
