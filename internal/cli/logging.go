package cli

import (
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a development-style zap logger on w behind the logr
// interface. Verbosity n enables logr V(1)..V(n).
func newLogger(w io.Writer, verbosity int) (logr.Logger, func()) {
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	level := zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	zl := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
	return zapr.NewLogger(zl).WithName("gitversion"), func() { _ = zl.Sync() }
}
