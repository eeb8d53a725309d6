package log

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitLoggerWithWriteSyncer(t *testing.T) {
	var buf bytes.Buffer
	l, p, err := InitLoggerWithWriteSyncer(&Config{Level: "warn", Format: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	l.Info("dropped")
	l.Warn("kept", zap.String("format", "binary"))
	require.NoError(t, l.Sync())

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
	assert.Contains(t, buf.String(), `"format":"binary"`)
	assert.Equal(t, zapcore.WarnLevel, p.Level.Level())
}

func TestInitLoggerBadLevel(t *testing.T) {
	_, _, err := InitLoggerWithWriteSyncer(&Config{Level: "loud"}, zapcore.AddSync(&bytes.Buffer{}))
	require.Error(t, err)
}

func TestReplaceGlobals(t *testing.T) {
	old, oldP := L(), _globalP.Load()
	defer ReplaceGlobals(old, oldP)

	var buf bytes.Buffer
	l, p, err := InitLoggerWithWriteSyncer(&Config{Level: "debug"}, zapcore.AddSync(&buf))
	require.NoError(t, err)
	ReplaceGlobals(l, p)

	Debug("hello")
	assert.Contains(t, buf.String(), "hello")

	SetLevel(zapcore.ErrorLevel)
	Warn("quiet")
	assert.NotContains(t, buf.String(), "quiet")
}

func TestFileLog(t *testing.T) {
	dir := t.TempDir()
	l, _, err := InitLogger(&Config{Level: "info", File: FileLogConfig{RootPath: dir, Filename: "visitor.log"}})
	require.NoError(t, err)
	l.Info("to file")
	require.NoError(t, l.Sync())

	b, err := os.ReadFile(filepath.Join(dir, "visitor.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "to file")
}

func TestFileLogDirectory(t *testing.T) {
	dir := t.TempDir()
	_, _, err := InitLogger(&Config{File: FileLogConfig{RootPath: filepath.Dir(dir), Filename: filepath.Base(dir)}})
	require.Error(t, err)
}
