package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// floorCore drops entries below floor and otherwise defers to the wrapped core,
// so it can only narrow what the wrapped core already writes.
type floorCore struct {
	zapcore.Core

	// floor is the lowest level that passes.
	floor zapcore.Level
}

// Enabled reports whether l passes both the floor and the wrapped core.
func (c *floorCore) Enabled(l zapcore.Level) bool {
	return l >= c.floor && c.Core.Enabled(l)
}

// Check adds the core to ce when the entry level is enabled.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *floorCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// With keeps the floor on the derived core.
//
//nolint:ireturn,nolintlint // zapcore.Core is the contract.
func (c *floorCore) With(fields []zapcore.Field) zapcore.Core {
	return &floorCore{Core: c.Core.With(fields), floor: c.floor}
}

// WithLevel raises the minimum level of a logger to lvl. The global level still
// applies, so a logger built with WithLevel(zapcore.WarnLevel) stays silent
// while the process runs at error.
//
//nolint:ireturn,nolintlint // zap.Option is the contract.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &floorCore{Core: core, floor: lvl}
	})
}

// Leveled returns a named child of the global logger that only writes entries at lvl or above.
func Leveled(name string, lvl zapcore.Level) *zap.SugaredLogger {
	return global.Desugar().WithOptions(WithLevel(lvl)).Sugar().Named(name)
}
