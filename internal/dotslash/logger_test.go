package dotslash_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ZebulonRouseFrantzich/slashgen/internal/dotslash"
)

func TestLoggerOrNop(t *testing.T) {
	assert.Equal(t, dotslash.NopLogger{}, dotslash.LoggerOrNop(nil))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	got := dotslash.LoggerOrNop(logger)
	assert.Same(t, logger, got)

	got.Info("hello", "key", "value")
	assert.Contains(t, buf.String(), "key=value")

	assert.NotPanics(t, func() { dotslash.NopLogger{}.Error("dropped", "key", "value") })
}
