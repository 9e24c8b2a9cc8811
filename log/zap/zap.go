// Package zap adapts a *zap.Logger to swrcache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/swrcache"
)

var _ swrcache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

func New(l *zap.Logger) Logger { return Logger{L: l.WithOptions(zap.AddCallerSkip(1))} }

func (z Logger) Debug(msg string, f swrcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f swrcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f swrcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f swrcache.Fields) { z.L.Error(msg, fields(f)...) }

// fields sorts keys so output is stable. Errors become zap.NamedError to keep
// their message instead of a reflected struct.
func fields(f swrcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
