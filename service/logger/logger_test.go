package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

func TestFileMode(t *testing.T) {
	var m FileMode
	require.NoError(t, m.Set(""))
	assert.Equal(t, FileModeAppend, m)
	require.NoError(t, m.Set("rotate"))
	assert.Equal(t, FileModeRotate, m)
	assert.Error(t, m.Set("bogus"))
}

func TestConfigYAML(t *testing.T) {
	var conf Config
	err := yaml.Unmarshal([]byte("path: stderr\nmode: truncate\nname: compiler\nlevel: debug\n"), &conf)
	require.NoError(t, err)
	assert.Equal(t, Config{Path: "stderr", Mode: FileModeTruncate, Name: "compiler", Level: zapcore.DebugLevel}, conf)
}

func TestNameFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edgeql.log")
	logger, err := New(Config{Path: path, Mode: FileModeTruncate, Name: "compiler", Level: zapcore.InfoLevel})
	require.NoError(t, err)
	logger.Named("compiler").Info("kept", zap.Int("n", 1))
	logger.Named("parser").Info("dropped")
	logger.Named("compiler").Debug("below level")
	require.NoError(t, logger.Sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg":"kept"`)
	assert.Contains(t, lines[0], `"logger":"compiler"`)
}

func TestOpenFileMissingDir(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing", "x.log"), FileModeAppend)
	assert.Error(t, err)
}
