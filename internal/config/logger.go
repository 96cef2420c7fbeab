package config

import "github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"

// Logger receives config warnings, such as secrets found in a config file.
// It is the generator's Logger, so one *slog.Logger serves both.
type Logger = dotslash.Logger
