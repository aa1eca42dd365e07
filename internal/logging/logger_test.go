package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	for level, want := range map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"DEBUG":   logrus.DebugLevel,
		"error":   logrus.ErrorLevel,
		"fatal":   logrus.FatalLevel,
		"info":    logrus.InfoLevel,
		"trace":   logrus.TraceLevel,
		"warn":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"":        logrus.TraceLevel,
		"bogus":   logrus.TraceLevel,
	} {
		assert.Equal(t, want, GetLevel(level), level)
	}
}

func TestSetup_logFile(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)

	logPath := filepath.Join(t.TempDir(), "portfolio")
	Setup(LoggerSetupParams{
		LogFileName: logPath,
		LogLevel:    "info",
	})
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())

	logrus.Info("content pipeline ready")

	b, err := os.ReadFile(logPath + ".log")
	require.NoError(t, err)
	assert.Contains(t, string(b), "content pipeline ready")
}

func TestSentryHook_Levels(t *testing.T) {
	hook := NewSentryHook([]logrus.Level{logrus.ErrorLevel})
	assert.Equal(t, []logrus.Level{logrus.ErrorLevel}, hook.Levels())
	assert.Equal(t, "fatal", string(sentryLevel(logrus.PanicLevel)))
	assert.Equal(t, "error", string(sentryLevel(logrus.ErrorLevel)))
	assert.Equal(t, "warning", string(sentryLevel(logrus.WarnLevel)))
}
