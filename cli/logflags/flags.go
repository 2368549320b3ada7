// Package logflags binds the logger configuration to command-line flags.
package logflags

import (
	"flag"

	"github.com/brimdata/edgeql/service/logger"
	"go.uber.org/zap"
)

type Flags struct {
	Config logger.Config
}

func (f *Flags) SetFlags(fs *flag.FlagSet) {
	f.Config.Level = zap.WarnLevel
	fs.Var(&f.Config.Level, "log.level", "logging level (debug, info, warn, error)")
	fs.StringVar(&f.Config.Path, "log.path", "stderr", "where to send logs (stderr, stdout, or a file path)")
	f.Config.Mode = logger.FileModeAppend
	fs.Var(&f.Config.Mode, "log.filemode", "log file write mode (append, truncate, rotate)")
	fs.StringVar(&f.Config.Name, "log.name", "", "only log entries from the named logger")
	fs.BoolVar(&f.Config.DevMode, "log.devmode", false, "development mode (dpanic level logs panic)")
}

func (f *Flags) Open() (*zap.Logger, error) {
	return logger.New(f.Config)
}
