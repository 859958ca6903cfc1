// Package ren binds a Ren runtime to Go hosts.
//
// Values are typed wrappers over the runtime's opaque cells, bound to
// the Engine that created them. Construction is two-phase: a wrapper
// allocates an uninitialized cell, writes the kind tag and payload
// through the engine's runtime, and only then records the engine
// binding; no caller ever observes the half-constructed state. Dropping
// a wrapper only ends the host-side binding, the runtime's collector
// owns whatever the cell references.
//
// An Engine must outlive every value bound to it. That is a documented
// precondition of the runtime's memory model, not something this package
// checks at run time.
package ren

import (
	"fmt"

	"github.com/renlang/rengo/ren/abi"
)

// Value is a cell bound to the engine that owns it.
//
// The zero Value is absent: it has no cell and no engine. Every
// predicate reports false for it and operations that need a live cell
// fail with *HasNoValue.
type Value struct {
	cell   abi.Cell
	engine *Engine
}

// finishInit completes two-phase construction: the cell must already
// carry a kind tag written through the engine's runtime. A missing tag
// means a constructor skipped the tag write, which is a bug in this
// package, so it panics.
func (v *Value) finishInit(e *Engine) {
	if !e.rt.Tagged(e.handle, &v.cell) {
		panic("ren: value initialized without a kind tag")
	}
	v.engine = e
}

// HasValue reports whether the value is bound to an engine at all. The
// zero Value reports false.
func (v Value) HasValue() bool { return v.engine != nil }

// Engine returns the engine the value is bound to, or nil for the
// absent value.
func (v Value) Engine() *Engine { return v.engine }

// Predicates consult the live cell tag on every call. They are never
// cached: the runtime may rewrite a cell between calls, for example
// across a suspension back into the evaluator.

// IsUnset reports whether the value is the unset value.
func (v Value) IsUnset() bool {
	return v.engine != nil && v.engine.rt.IsUnset(v.engine.handle, &v.cell)
}

// IsNone reports whether the value is the none value.
func (v Value) IsNone() bool {
	return v.engine != nil && v.engine.rt.IsNone(v.engine.handle, &v.cell)
}

// IsLogic reports whether the value is a logic.
func (v Value) IsLogic() bool {
	return v.engine != nil && v.engine.rt.IsLogic(v.engine.handle, &v.cell)
}

// IsTrue reports whether the value is a logic holding true.
func (v Value) IsTrue() bool {
	return v.IsLogic() && v.engine.rt.Logic(v.engine.handle, &v.cell)
}

// IsFalse reports whether the value is a logic holding false.
func (v Value) IsFalse() bool {
	return v.IsLogic() && !v.engine.rt.Logic(v.engine.handle, &v.cell)
}

// IsCharacter reports whether the value is a character.
func (v Value) IsCharacter() bool {
	return v.engine != nil && v.engine.rt.IsChar(v.engine.handle, &v.cell)
}

// IsInteger reports whether the value is an integer.
func (v Value) IsInteger() bool {
	return v.engine != nil && v.engine.rt.IsInteger(v.engine.handle, &v.cell)
}

// IsFloat reports whether the value is a decimal.
func (v Value) IsFloat() bool {
	return v.engine != nil && v.engine.rt.IsDecimal(v.engine.handle, &v.cell)
}

// IsDate reports whether the value is a date.
func (v Value) IsDate() bool {
	return v.engine != nil && v.engine.rt.IsDate(v.engine.handle, &v.cell)
}

// IsError reports whether the value is an error value.
func (v Value) IsError() bool {
	return v.engine != nil && v.engine.rt.IsError(v.engine.handle, &v.cell)
}

// AsLogic converts the value to its logic view. The second return is
// false if the value is not a logic.
func (v Value) AsLogic() (Logic, bool) {
	if !v.IsLogic() {
		return Logic{}, false
	}
	return Logic{v}, true
}

// AsCharacter converts the value to its character view.
func (v Value) AsCharacter() (Character, bool) {
	if !v.IsCharacter() {
		return Character{}, false
	}
	return Character{v}, true
}

// AsInteger converts the value to its integer view.
func (v Value) AsInteger() (Integer, bool) {
	if !v.IsInteger() {
		return Integer{}, false
	}
	return Integer{v}, true
}

// AsFloat converts the value to its decimal view.
func (v Value) AsFloat() (Float, bool) {
	if !v.IsFloat() {
		return Float{}, false
	}
	return Float{v}, true
}

// AsDate converts the value to its date view.
func (v Value) AsDate() (Date, bool) {
	if !v.IsDate() {
		return Date{}, false
	}
	return Date{v}, true
}

// AsError converts the value to its error view.
func (v Value) AsError() (Error, bool) {
	if !v.IsError() {
		return Error{}, false
	}
	return Error{v}, true
}

// Form renders the value as a human-readable string through the
// runtime. The absent value fails with *HasNoValue.
func (v Value) Form() (string, error) {
	if v.engine == nil {
		return "", &HasNoValue{}
	}
	s, err := v.engine.rt.Form(v.engine.handle, &v.cell)
	if err != nil {
		return "", fmt.Errorf("ren: form: %w", err)
	}
	return s, nil
}

// String implements fmt.Stringer. A value that cannot be formed renders
// as a fixed placeholder.
func (v Value) String() string {
	s, err := v.Form()
	if err != nil {
		return "#[no-value]"
	}
	return s
}
