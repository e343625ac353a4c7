// Package logger owns the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global logger. It is a no-op until Initialize runs.
var Logger *zap.SugaredLogger

func init() {
	Logger = zap.NewNop().Sugar()
}

// Standard field names.
const (
	FieldFamily     = "family"
	FieldKey        = "key"
	FieldFormat     = "format"
	FieldDriver     = "driver"
	FieldUnits      = "units"
	FieldDurationMS = "duration_ms"
	FieldDataID     = "data_id"
)

// Initialize replaces Logger with a JSON (production) or console logger
// writing to stderr at the given level.
func Initialize(jsonOutput bool, level string) error {
	return InitializeTo(os.Stderr, jsonOutput, level)
}

// InitializeTo is Initialize with an explicit destination.
func InitializeTo(w io.Writer, jsonOutput bool, level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	var enc zapcore.Encoder
	if jsonOutput {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		enc = zapcore.NewConsoleEncoder(cfg)
	}
	Logger = zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl)).Sugar()
	return nil
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zapcore.InfoLevel, errors.WithHint(errors.Wrapf(err, "log level %q", level), "use debug, info, warn or error")
	}
	return lvl, nil
}

// Named returns a child of the global logger.
func Named(name string) *zap.SugaredLogger { return Logger.Named(name) }
