// Package logrus adapts a *logrus.Entry to cachegate.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/cachegate"
)

var _ cachegate.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New tags every entry with component=cachegate.
func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: l.WithField("component", "cachegate")}
}

func (l LogrusLogger) Debug(msg string, f cachegate.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f cachegate.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f cachegate.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f cachegate.Fields) { l.with(f).Error(msg) }

func (l LogrusLogger) with(f cachegate.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	e := l.E
	if err, ok := f["err"].(error); ok {
		e = e.WithError(err)
	}
	return e.WithFields(logrus.Fields(f))
}
