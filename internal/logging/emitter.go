package logging

import (
	"fmt"
	"time"
)

// Emitter holds the sinks a session logs through. A nil *Emitter is safe
// to hold; callers guard emission the same way the original printf-based
// backend did, just with typed levels instead of a va_list.
//
//	if emitter != nil {
//	    emitter.Log(logging.LevelNotice, file, line, "mapped: %s", path)
//	}
type Emitter struct {
	min   Level
	sinks []Sink
}

func NewEmitter(min Level, sinks ...Sink) *Emitter {
	return &Emitter{min: min, sinks: sinks}
}

// Log writes one event through every sink. file/line identify the call
// site the way the C backend's (level, file, line, fmt, args) contract
// did; pass "" / 0 when the caller doesn't track them.
func (e *Emitter) Log(level Level, file string, line int, format string, args ...any) {
	if e == nil || level > e.min {
		return
	}
	event := &Event{
		Timestamp: time.Now().UTC(),
		Level:     level,
		File:      file,
		Line:      line,
		Summary:   fmt.Sprintf(format, args...),
	}
	for _, sink := range e.sinks {
		_ = sink.Write(event)
	}
}

func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	var firstErr error
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Pass logs the stable "pass:" contract line (§7 "Mapping declined").
func (e *Emitter) Pass(funcName, path string) {
	e.Log(LevelNotice, "", 0, "pass: %s '%s'", funcName, path)
}

// Mapped logs the stable "mapped:" contract line.
func (e *Emitter) Mapped(funcName, from, to string) {
	e.Log(LevelNotice, "", 0, "mapped: %s '%s' -> '%s'", funcName, from, to)
}

// Disabled logs the stable "disabled:" contract line (mapping skipped
// because the per-thread reentrancy guard is held, or SBOX_DISABLE_MAPPING
// is set).
func (e *Emitter) Disabled(funcName, path string) {
	e.Log(LevelDebug, "", 0, "disabled: %s '%s'", funcName, path)
}
