package release

import (
	"github.com/hashicorp/go-retryablehttp"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"
)

// newLeveledLogger bridges retryablehttp into a dotslash.Logger. Per-request
// chatter is demoted to debug; retries and failures stay visible.
func newLeveledLogger(log dotslash.Logger) retryablehttp.LeveledLogger {
	return &leveledLogger{log: log}
}

type leveledLogger struct {
	log dotslash.Logger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, keysAndValues...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn(msg, keysAndValues...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}
