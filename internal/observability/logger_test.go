package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zap.AtomicLevel
	}{
		{"debug", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{" WARN ", zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"error", zap.NewAtomicLevelAt(zap.ErrorLevel)},
		{"", zap.NewAtomicLevelAt(zap.InfoLevel)},
		{"verbose", zap.NewAtomicLevelAt(zap.InfoLevel)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want.Level(), ParseLogLevel(tt.in).Level())
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}
