// Package logging builds the zap loggers used across securechat.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RedactedValue is rendered in place of any secret value.
const RedactedValue = "[REDACTED]"

// New creates a logger. Verbose mode writes human-readable debug output to
// stderr; otherwise only warnings and errors are written, as JSON.
func New(verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		cfg.DisableStacktrace = true
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// Nop returns a logger that discards everything. Library packages use it
// when no logger is supplied.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Redacted returns a field that marks key as present but hides its value.
func Redacted(key string) zap.Field {
	return zap.String(key, RedactedValue)
}

// Secret is a string that always renders as RedactedValue, for values that
// must pass through fmt or zap without being revealed.
type Secret string

// String implements fmt.Stringer.
func (s Secret) String() string {
	return RedactedValue
}

// GoString implements fmt.GoStringer for %#v.
func (s Secret) GoString() string {
	return RedactedValue
}

// MaskToken returns a short masked form of a token for display.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
