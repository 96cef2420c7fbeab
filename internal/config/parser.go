package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"
)

// Load reads and parses the configuration file at path. The syntax is
// chosen from the file extension.
func Load(ctx context.Context, path string, opts LoadOptions) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if info.Size() > MaxConfigSize {
		return nil, fmt.Errorf("read config: %s is larger than %d bytes", path, MaxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(ctx, data, SyntaxFromPath(path), opts)
}

// Parse decodes a configuration document of the given syntax and validates
// it into a Config.
func Parse(ctx context.Context, data []byte, syntax Syntax, opts LoadOptions) (*Config, error) {
	if len(data) > MaxConfigSize {
		return nil, &ParseError{
			Message: "config too large",
			Detail:  fmt.Sprintf("%d bytes exceeds the limit of %d", len(data), MaxConfigSize),
		}
	}

	logger := dotslash.LoggerOrNop(opts.Logger)
	for _, finding := range DetectSensitiveData(string(data)) {
		logger.Warn("config may contain a secret", "pattern", finding.PatternName,
			"line", finding.Line, "preview", finding.Preview)
	}

	var root value
	var err error
	switch syntax {
	case SyntaxJSON:
		root, err = decodeJSON(data)
		if err != nil {
			return nil, &ParseError{Message: "invalid JSON", Detail: err.Error()}
		}
	case SyntaxYAML:
		root, err = decodeYAML(data)
		if err != nil {
			return nil, &ParseError{Message: "invalid YAML", Detail: err.Error()}
		}
	case SyntaxLua:
		root, err = decodeLua(ctx, string(data), opts.Release)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config syntax %q", syntax)
	}

	cfg, err := buildConfig(root)
	if err != nil {
		return nil, err
	}
	logger.Debug("parsed config", "syntax", syntax, "outputs", len(cfg.Outputs))
	return cfg, nil
}

func configError(output, platform, field, format string, args ...interface{}) *dotslash.Error {
	return &dotslash.Error{
		Kind:     dotslash.ErrConfig,
		Output:   output,
		Platform: platform,
		Field:    field,
		Detail:   fmt.Sprintf(format, args...),
	}
}

// buildConfig validates the document tree. Errors at the root reject the
// whole document; errors inside one output are recorded on that output.
func buildConfig(root value) (*Config, error) {
	if root.kind != kindObject {
		return nil, configError("", "", "", "config should be an object, but was %s", root.describe())
	}

	outputs, ok := root.get(fieldOutputs)
	if !ok || outputs.empty() {
		return nil, configError("", "", fieldOutputs, "no %s specified in config", fieldOutputs)
	}
	if outputs.kind != kindObject {
		return nil, configError("", "", fieldOutputs, "%q must be an object, but was %s", fieldOutputs, outputs.describe())
	}

	cfg := &Config{}
	var err error
	if cfg.ExcludeHTTPProvider, err = optionalBool(root, fieldExcludeHTTPProvider); err != nil {
		return nil, err
	}
	if cfg.ExcludeGitHubReleaseProvider, err = optionalBool(root, fieldExcludeGitHubReleaseProvider); err != nil {
		return nil, err
	}

	// An invalid output only fails itself; its siblings are still generated.
	for _, m := range outputs.members {
		out, err := buildOutput(m.key, m.val)
		if err != nil {
			out.Platforms = nil
			out.Err = err
		}
		cfg.Outputs = append(cfg.Outputs, out)
	}
	return cfg, nil
}

func optionalBool(obj value, field string) (bool, error) {
	v, ok := obj.get(field)
	if !ok {
		return false, nil
	}
	if v.kind != kindBool {
		return false, configError("", "", field, "%q field must be a boolean, but was `%s`", field, v.describe())
	}
	return v.boolean, nil
}

func buildOutput(name string, v value) (dotslash.OutputSpec, error) {
	out := dotslash.OutputSpec{Name: name}
	if name == "" {
		return out, configError("", "", "", "output file name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return out, configError(name, "", "", "output file name must not contain a path")
	}
	if v.kind != kindObject {
		return out, configError(name, "", "", "output config must be an object, but was %s", v.describe())
	}

	platforms, ok := v.get(fieldPlatforms)
	if !ok || platforms.kind == kindNull {
		// Reported by the resolver as a missing platforms map.
		return out, nil
	}
	if platforms.kind != kindObject {
		return out, configError(name, "", fieldPlatforms, "%q must be an object, but was %s", fieldPlatforms, platforms.describe())
	}

	out.Platforms = make([]dotslash.PlatformSpec, 0, len(platforms.members))
	for _, m := range platforms.members {
		sel, err := buildSelector(name, m.key, m.val)
		if err != nil {
			return out, err
		}
		out.Platforms = append(out.Platforms, dotslash.PlatformSpec{Key: m.key, Selector: sel})
	}
	return out, nil
}

func buildSelector(output, platform string, v value) (dotslash.Selector, error) {
	var sel dotslash.Selector
	if v.kind != kindObject {
		return sel, configError(output, platform, "", "platform config must be an object, but was %s", v.describe())
	}

	str := func(field string) (string, error) {
		f, ok := v.get(field)
		if !ok {
			return "", nil
		}
		if f.kind != kindString {
			return "", configError(output, platform, field, "%q must be a string, but was %s", field, f.describe())
		}
		return f.str, nil
	}

	var err error
	if sel.Name, err = str(fieldName); err != nil {
		return sel, err
	}
	if sel.Regex, err = str(fieldRegex); err != nil {
		return sel, err
	}
	if sel.Path, err = str(fieldPath); err != nil {
		return sel, err
	}

	hashName, err := str(fieldHash)
	if err != nil {
		return sel, err
	}
	if sel.Hash, err = dotslash.ParseHashAlgorithm(hashName); err != nil {
		e := configError(output, platform, fieldHash, "")
		e.Err = err
		return sel, e
	}

	if f, ok := v.get(fieldFormat); ok {
		sel.FormatSet = true
		switch f.kind {
		case kindNull:
			sel.Format = dotslash.FormatNone
		case kindString:
			if sel.Format, err = dotslash.ParseFormat(f.str); err != nil {
				e := configError(output, platform, fieldFormat, "")
				e.Err = err
				return sel, e
			}
		default:
			return sel, configError(output, platform, fieldFormat, "%q must be a string or null, but was %s", fieldFormat, f.describe())
		}
	}

	return sel, nil
}

// FormatError formats a config error for user display.
// In verbose mode, show the raw parser error. Otherwise, show a friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
