// Package zap adapts a *zap.Logger to cachegate.Logger.
package zap

import (
	"github.com/unkn0wn-root/cachegate"
	"go.uber.org/zap"
)

var _ cachegate.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New names the logger "cachegate" so its entries are easy to filter.
func New(l *zap.Logger) ZapLogger { return ZapLogger{L: l.Named("cachegate")} }

func (z ZapLogger) Debug(msg string, f cachegate.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f cachegate.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f cachegate.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f cachegate.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f cachegate.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
