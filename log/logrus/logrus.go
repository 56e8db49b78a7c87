// Package logrus adapts a logrus entry to variantcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	vc "github.com/unkn0wn-root/variantcache"
)

// Logger writes through E. An "err" field holding an error is attached with
// WithError so logrus formatters render it as the entry error.
type Logger struct{ E *logrus.Entry }

var _ vc.Logger = Logger{}

// New tags every entry with component=variantcache and the cache namespace.
func New(l *logrus.Logger, namespace string) Logger {
	return Logger{E: l.WithFields(logrus.Fields{"component": "variantcache", "namespace": namespace})}
}

func (l Logger) Debug(msg string, f vc.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f vc.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f vc.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f vc.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f vc.Fields) *logrus.Entry {
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
