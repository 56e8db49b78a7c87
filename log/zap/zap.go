// Package zap adapts a zap logger to variantcache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	vc "github.com/unkn0wn-root/variantcache"
)

type Logger struct{ L *zap.Logger }

var _ vc.Logger = Logger{}

// New names the logger "variantcache" and adds the cache namespace.
func New(l *zap.Logger, namespace string) Logger {
	return Logger{L: l.Named("variantcache").With(zap.String("namespace", namespace))}
}

func (z Logger) Debug(msg string, f vc.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f vc.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f vc.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f vc.Fields) { z.L.Error(msg, fields(f)...) }

// fields sorts keys so encoded lines are stable.
func fields(f vc.Fields) []zap.Field {
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
		switch v := f[k].(type) {
		case error:
			out = append(out, zap.NamedError(k, v))
		case string:
			out = append(out, zap.String(k, v))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
