package config

import (
	"regexp"
	"strings"
)

// SensitivePattern represents a pattern that might indicate a secret
// committed to a config file.
type SensitivePattern struct {
	Name    string
	Pattern *regexp.Regexp
}

var sensitivePatterns = []SensitivePattern{
	{
		Name:    "GitHub Token",
		Pattern: regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36,}`),
	},
	{
		Name:    "GitHub Fine-grained Token",
		Pattern: regexp.MustCompile(`github_pat_[a-zA-Z0-9_]{22,}`),
	},
	{
		Name:    "Private Key",
		Pattern: regexp.MustCompile(`-----BEGIN ([A-Z]+ )?PRIVATE KEY( BLOCK)?-----`),
	},
	{
		Name:    "Token",
		Pattern: regexp.MustCompile(`(?i)["']?(token|auth[_-]?token|access[_-]?token|passphrase)["']?\s*[:=]\s*['"][a-zA-Z0-9_-]{15,}['"]`),
	},
}

// SensitiveDataFinding is one suspicious line.
type SensitiveDataFinding struct {
	PatternName string
	Line        int
	Preview     string // Redacted preview of the match
}

// DetectSensitiveData scans configuration content for potential secrets.
// Configs are usually committed next to the release workflow, so anything
// found here is reported as a warning.
func DetectSensitiveData(content string) []SensitiveDataFinding {
	var findings []SensitiveDataFinding
	lines := strings.Split(content, "\n")

	for lineNum, line := range lines {
		for _, pattern := range sensitivePatterns {
			if pattern.Pattern.MatchString(line) {
				findings = append(findings, SensitiveDataFinding{
					PatternName: pattern.Name,
					Line:        lineNum + 1,
					Preview:     redactSensitiveValue(line),
				})
			}
		}
	}

	return findings
}

// redactSensitiveValue keeps the key part of an assignment and hides the
// value.
func redactSensitiveValue(line string) string {
	idx := strings.IndexAny(line, "=:")
	if idx == -1 {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 4 {
			return trimmed[:4] + "... [REDACTED]"
		}
		return "[REDACTED]"
	}

	keyPart := strings.TrimSpace(line[:idx])
	return keyPart + string(line[idx]) + " [REDACTED]"
}
