package options

import (
	"go.uber.org/zap/zapcore"
)

// FilteringCore is a zapcore.Core wrapper dropping entries rejected by
// the filter function.
type FilteringCore struct {
	zapcore.Core
	filter FilterFunc
}

// FilterFunc decides whether an entry is to be written.
type FilterFunc func(zapcore.Entry) bool

// NewFilteringCore returns a core middleware that uses the given filter function
// to decide whether to log this message or not.
func NewFilteringCore(next zapcore.Core, filter FilterFunc) zapcore.Core {
	return &FilteringCore{next, filter}
}

// With implements zapcore.Core interface keeping the filter for children.
func (c *FilteringCore) With(fields []zapcore.Field) zapcore.Core {
	return &FilteringCore{c.Core.With(fields), c.filter}
}

// Check implements zapcore.Core interface and performs log entries filtering.
func (c *FilteringCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.filter(e) {
		return c.Core.Check(e, ce)
	}
	return ce
}

// DropDebugOf rejects debug entries of the named loggers. RPC client
// traces every call at debug level, that's too much for regular debugging.
func DropDebugOf(names ...string) FilterFunc {
	return func(e zapcore.Entry) bool {
		if e.Level != zapcore.DebugLevel {
			return true
		}
		for _, n := range names {
			if e.LoggerName == n {
				return false
			}
		}
		return true
	}
}
