package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// floorCore drops entries below min regardless of what the wrapped core allows.
// The HTTP client uses it to keep retry chatter out of normal runs.
type floorCore struct {
	zapcore.Core

	min zapcore.Level
}

// Enabled implements zapcore.LevelEnabler.
func (c *floorCore) Enabled(l zapcore.Level) bool {
	return l >= c.min && c.Core.Enabled(l)
}

// Check implements zapcore.Core.
//
//nolint:gocritic // zapcore.Core passes the entry by value.
func (c *floorCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}

	return ce.AddCore(ent, c)
}

// With implements zapcore.Core.
//
//nolint:ireturn // zapcore.Core is the contract.
func (c *floorCore) With(fields []zapcore.Field) zapcore.Core {
	return &floorCore{Core: c.Core.With(fields), min: c.min}
}

// WithLevel raises the minimum level of a derived logger to lvl.
//
//nolint:ireturn // zap.Option is the contract.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &floorCore{Core: core, min: lvl}
	})
}
