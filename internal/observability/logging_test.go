package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/servicedesk/internal/config"
)

func TestLoggerConfig(t *testing.T) {
	cfg := loggerConfig(config.LoggerConfig{Level: "DEBUG"}, config.AppConfig{Env: "production"})
	assert.Equal(t, zapcore.DebugLevel, cfg.Level.Level())
	assert.False(t, cfg.Development)
	assert.Equal(t, "json", cfg.Encoding)

	cfg = loggerConfig(config.LoggerConfig{Level: "loud"}, config.AppConfig{Env: "development"})
	assert.Equal(t, zapcore.InfoLevel, cfg.Level.Level())
	assert.True(t, cfg.Development)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "warn"}, config.AppConfig{Name: "servicedesk", Env: "test"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
