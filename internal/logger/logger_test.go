package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		want          zapcore.Level
		wantErr       bool
	}{
		{"info", "json", zapcore.InfoLevel, false},
		{"debug", "console", zapcore.DebugLevel, false},
		{"warn", "", zapcore.WarnLevel, false},
		{"loud", "json", 0, true},
		{"info", "xml", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			l, lvl, err := New(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
			assert.Equal(t, tt.want, lvl.Level())
		})
	}
}

func TestAtomicLevelChange(t *testing.T) {
	l, lvl, err := New("info", "json")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	lvl.SetLevel(zapcore.DebugLevel)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}
