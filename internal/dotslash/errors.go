package dotslash

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error produced by the pipeline wraps exactly one of
// these, so callers can branch with errors.Is.
var (
	ErrConfig             = errors.New("invalid configuration")
	ErrAmbiguousSelector  = errors.New("only one of 'name' and 'regex' may be specified")
	ErrMissingSelector    = errors.New("exactly one of 'name' and 'regex' must be specified")
	ErrNoMatchingArtifact = errors.New("no matching artifact")
	ErrFormatUnresolvable = errors.New("format could not be inferred, must specify explicitly")
	ErrMissingField       = errors.New("missing required field")
	ErrIntegrity          = errors.New("artifact integrity check failed")
	ErrFormatMismatch     = errors.New("artifact content does not match declared format")
	ErrUnsupportedHash    = errors.New("unsupported hash algorithm")
	ErrUnsupportedFormat  = errors.New("unsupported artifact format")
)

// Error carries the context of a failed resolution step.
type Error struct {
	Kind     error  // one of the Err* sentinels
	Output   string // output file name
	Platform string // platform key
	Selector string // name or regex that was being matched
	Artifact string // artifact name
	Field    string // missing or invalid field
	Detail   string
	Err      error // underlying cause, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())

	var ctx []string
	if e.Output != "" {
		ctx = append(ctx, fmt.Sprintf("output=%q", e.Output))
	}
	if e.Platform != "" {
		ctx = append(ctx, fmt.Sprintf("platform=%q", e.Platform))
	}
	if e.Selector != "" {
		ctx = append(ctx, fmt.Sprintf("selector=%q", e.Selector))
	}
	if e.Artifact != "" {
		ctx = append(ctx, fmt.Sprintf("artifact=%q", e.Artifact))
	}
	if e.Field != "" {
		ctx = append(ctx, fmt.Sprintf("field=%q", e.Field))
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// withOutput stamps the output name onto a pipeline error.
func withOutput(err error, output string) error {
	var e *Error
	if errors.As(err, &e) && e.Output == "" {
		e.Output = output
	}
	return err
}

// IntegrityError reports a fetched artifact whose size differs from the
// size advertised by the release.
type IntegrityError struct {
	Artifact string
	Expected int64
	Actual   int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: expected size %d for %s but got %d",
		ErrIntegrity, e.Expected, e.Artifact, e.Actual)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// IsFatal reports whether err must abort the whole run rather than a single
// output.
func IsFatal(err error) bool {
	return errors.Is(err, ErrIntegrity)
}
