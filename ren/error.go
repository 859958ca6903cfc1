package ren

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEngine is returned by the package-level constructors when no
	// engine was given and no finder is registered.
	ErrNoEngine = errors.New("ren: no engine bound and no finder registered")

	// ErrNonASCII is returned by Character.Char for codepoints above
	// the narrow host character range. It is a plain conversion range
	// error, not part of the evaluation error taxonomy.
	ErrNonASCII = errors.New("ren: non-ASCII codepoint cast to char")
)

// Error is an error value: a value of the runtime's error kind.
type Error struct{ Value }

// NewError builds an error value with the given message, bound to the
// engine resolved by the registered finder.
func NewError(msg string) (Error, error) {
	e, err := CurrentEngine()
	if err != nil {
		return Error{}, err
	}
	return e.NewError(msg)
}

// NewError builds an error value with the given message, bound to e.
func (e *Engine) NewError(msg string) (Error, error) {
	var v Value
	if err := e.rt.MakeError(e.handle, msg, &v.cell); err != nil {
		return Error{}, fmt.Errorf("ren: make error: %w", err)
	}
	v.finishInit(e)
	return Error{v}, nil
}

// IsValid reports whether the value is an error value.
func (er Error) IsValid() bool { return er.IsError() }

// Apply raises the error in its engine and returns the
// *EvaluationError reporting it. Raising is the runtime's own
// error-signaling operation; returning the resulting error from host
// code running inside an evaluation is equivalent to the runtime
// raising this value itself.
func (er Error) Apply() error {
	if er.engine == nil {
		return &HasNoValue{}
	}
	if err := er.engine.rt.Raise(er.engine.handle, &er.cell); err != nil {
		return fmt.Errorf("ren: raise: %w", err)
	}
	return NewEvaluationError(er)
}

// EvaluationError reports an error value raised during an evaluation.
// It is the universal error form of the runtime: every raised condition
// reaches the host as one of these. Host code that is not itself
// running inside an evaluation must report failures as EvaluationError,
// never as a bare Error value, so the failure stays intelligible with
// no runtime frame listening.
type EvaluationError struct {
	value Error
	msg   string
}

// NewEvaluationError captures the error value and renders its message
// immediately. The message must not be formed lazily: once the runtime
// unwinds further, the cell behind the error value may be invalidated.
func NewEvaluationError(v Error) *EvaluationError {
	msg, err := v.Form()
	if err != nil {
		msg = "unformable error value"
	}
	return &EvaluationError{value: v, msg: msg}
}

func (e *EvaluationError) Error() string { return "ren: evaluation error: " + e.msg }

// Value returns the raised error value. The cell behind it is only
// valid as long as its engine is.
func (e *EvaluationError) Value() Error { return e.value }

// HasNoValue reports the use of an absent value where a live one is
// required. It is a host API misuse, deliberately kept apart from the
// runtime's own error taxonomy; translating it into a runtime error at
// an extension boundary is the extension's business.
type HasNoValue struct{}

func (*HasNoValue) Error() string { return "ren: no value" }

// EvaluationCancelled reports that an evaluation wound down after
// observing a cancellation request at a safe point. It carries no
// payload and has no runtime-visible representation; it is purely a
// host-side control signal.
type EvaluationCancelled struct{}

func (*EvaluationCancelled) Error() string { return "ren: evaluation cancelled" }

// ExitCommand reports that evaluated code requested termination of the
// session. An embedding host may intercept it; left uncaught, the host
// is expected to terminate the process with the carried code.
type ExitCommand struct {
	code int
}

func (e *ExitCommand) Error() string { return fmt.Sprintf("ren: exit command (code %d)", e.code) }

// Code returns the requested exit code.
func (e *ExitCommand) Code() int { return e.code }
