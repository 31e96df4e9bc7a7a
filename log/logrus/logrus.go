// Package logrus adapts a logrus entry to nscache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/nscache"
)

var _ nscache.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New tags every line with component=nscache.
func New(l *logrus.Logger) LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return LogrusLogger{E: l.WithField("component", "nscache")}
}

func (l LogrusLogger) Debug(msg string, f nscache.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f nscache.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f nscache.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f nscache.Fields) { l.with(f).Error(msg) }

func (l LogrusLogger) with(f nscache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		if k == "err" {
			k = logrus.ErrorKey
		}
		lf[k] = v
	}
	return l.E.WithFields(lf)
}
