// Package logrus adapts a *logrus.Entry to swrcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/swrcache"
)

var _ swrcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps a logger, tagging every line with component=swrcache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "swrcache")}
}

func (l Logger) Debug(msg string, f swrcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f swrcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f swrcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f swrcache.Fields) { l.with(f).Error(msg) }

// with moves an "err" field to logrus' own error key.
func (l Logger) with(f swrcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			lf[logrus.ErrorKey] = err
			continue
		}
		lf[k] = v
	}
	return l.E.WithFields(lf)
}
