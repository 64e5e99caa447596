package zaplogger

import (
	"strings"

	"go.uber.org/zap"

	"github.com/ThierryFotabong/feeya/internal/observability"
)

const redacted = "[REDACTED]"

// sensitiveKeys never reach the log sink with their value. Matching is by
// lower-cased key suffix so "stripe_client_secret" is caught as well.
var sensitiveKeys = []string{
	"authorization",
	"client_secret",
	"password",
	"secret_key",
	"signature",
	"token",
}

type logger struct{ l *zap.Logger }

// New adapts zap to the observability port with fixed fields bound once.
func New(base *zap.Logger, fixed ...observability.Field) observability.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &logger{l: base.With(zapFields(fixed)...)}
}

func (z *logger) With(fields ...observability.Field) observability.Logger {
	if len(fields) == 0 {
		return z
	}
	return &logger{l: z.l.With(zapFields(fields)...)}
}

func (z *logger) Debug(msg string, fields ...observability.Field) { z.l.Debug(msg, zapFields(fields)...) }
func (z *logger) Info(msg string, fields ...observability.Field)  { z.l.Info(msg, zapFields(fields)...) }
func (z *logger) Warn(msg string, fields ...observability.Field)  { z.l.Warn(msg, zapFields(fields)...) }
func (z *logger) Error(msg string, fields ...observability.Field) { z.l.Error(msg, zapFields(fields)...) }

func (z *logger) Sync() error { return z.l.Sync() }

func zapFields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		switch v := f.Value.(type) {
		case error:
			out = append(out, zap.NamedError(f.Key, v))
		case string:
			if sensitive(f.Key) && v != "" {
				v = redacted
			}
			out = append(out, zap.String(f.Key, v))
		default:
			if sensitive(f.Key) {
				out = append(out, zap.String(f.Key, redacted))
				continue
			}
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}

func sensitive(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.HasSuffix(k, s) {
			return true
		}
	}
	return false
}
