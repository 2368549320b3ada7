package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileMode says how an existing log file is treated when the logger opens
// it.  It implements flag.Value.
type FileMode string

const (
	FileModeAppend   FileMode = "append"
	FileModeTruncate FileMode = "truncate"
	// FileModeRotate rotates the file once it reaches MaxSize megabytes.
	FileModeRotate FileMode = "rotate"
)

// Rotation settings for FileModeRotate.
const (
	MaxSize    = 5 // megabytes
	MaxBackups = 3
	MaxAge     = 28 // days
)

func (m *FileMode) Set(s string) error {
	switch mode := FileMode(s); mode {
	case "":
		*m = FileModeAppend
	case FileModeAppend, FileModeTruncate, FileModeRotate:
		*m = mode
	default:
		return fmt.Errorf("invalid log file mode: %q", s)
	}
	return nil
}

func (m FileMode) String() string {
	return string(m)
}

func (m *FileMode) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return m.Set(s)
}

// OpenFile opens the log destination named by path.  The names stdout,
// stderr, and /dev/null are special.
func OpenFile(path string, mode FileMode) (zapcore.WriteSyncer, error) {
	switch path {
	case "stdout", "":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	case "/dev/null":
		return zapcore.AddSync(io.Discard), nil
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return nil, err
	}
	flags := os.O_WRONLY | os.O_CREATE
	switch mode {
	case FileModeRotate:
		// lumberjack.Logger does its own locking.
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    MaxSize,
			MaxBackups: MaxBackups,
			MaxAge:     MaxAge,
			Compress:   true,
		}), nil
	case FileModeTruncate:
		flags |= os.O_TRUNC
	default:
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}
	return zapcore.Lock(f), nil
}
