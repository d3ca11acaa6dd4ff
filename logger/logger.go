// Package logger declares the logging contract the engine writes
// diagnostics through (Relate's best-effort divergence warning) and a safe
// no-op default so the engine never panics before a concrete backend calls
// Init (spec.md §4.6; SPEC_FULL §2). The integrity checker returns its
// findings in a Report and does not log them.
package logger

// Logger is the trimmed subset of the teacher's StandardLogger interface
// this engine actually needs: leveled, printf-style logging. There is no
// controller/service/database request context here to attach, so the
// richer With*Context methods of the teacher's types.Logger are not
// carried forward.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Runtime is the engine's single logger. It defaults to noop so the engine
// is usable before any backend's Init runs; logger/zap.Init replaces it.
var Runtime Logger = noop{}

type noop struct{}

func (noop) Debugf(string, ...any) {}
func (noop) Infof(string, ...any)  {}
func (noop) Warnf(string, ...any)  {}
func (noop) Errorf(string, ...any) {}
