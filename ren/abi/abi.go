// Package abi declares the call surface assumed of a Ren runtime.
//
// The binding reaches the runtime exclusively through this package. A
// Runtime implementation provides engine management, cell accessors and
// evaluation; the device protocol lets the runtime call back out to host
// I/O. The cell layout itself belongs to the runtime and is never
// interpreted on the host side.
package abi

import "context"

// CellSize is the size in bytes of a value cell.
const CellSize = 32

// Cell is the runtime's value representation, a fixed-size opaque
// buffer. The binding allocates cells and moves them around, but only
// ever reads or writes their content through a Runtime.
type Cell [CellSize]byte

// EngineHandle identifies one engine, an isolated interpreter instance
// with its own user context. Handles are non-owning; engine lifecycle is
// managed through Runtime.OpenEngine and CloseEngine.
type EngineHandle int32

// InvalidEngine is never returned by a successful OpenEngine.
const InvalidEngine EngineHandle = -1

// OutcomeKind enumerates the terminal states of an evaluation. Every
// evaluation ends in exactly one of them; none are resumable.
type OutcomeKind int

const (
	// OutcomeNormal means the evaluation produced a value in the result
	// cell.
	OutcomeNormal OutcomeKind = iota

	// OutcomeRaised means the evaluation raised an error; the result
	// cell holds the error value.
	OutcomeRaised

	// OutcomeExited means the evaluated code requested termination of
	// the session, carrying an exit code.
	OutcomeExited

	// OutcomeInterrupted means the interrupt probe reported true at a
	// safe point and the evaluation wound down.
	OutcomeInterrupted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNormal:
		return "normal"
	case OutcomeRaised:
		return "raised"
	case OutcomeExited:
		return "exited"
	case OutcomeInterrupted:
		return "interrupted"
	}
	return "unknown"
}

// Outcome is the terminal state of one evaluation. ExitCode is
// meaningful only for OutcomeExited.
type Outcome struct {
	Kind     OutcomeKind
	ExitCode int
}

// Runtime is the narrow call surface of a Ren runtime.
//
// Accessors follow a fixed discipline: Set* writes the kind tag and
// payload into an uninitialized cell, Is* inspects the live tag, and the
// payload getters assume the tag was already checked and do not
// revalidate it. Implementations are not required to be safe for
// concurrent use of one engine; the binding serializes everything except
// the cooperative interrupt probe.
type Runtime interface {
	// OpenEngine creates a new engine and returns its handle.
	OpenEngine() (EngineHandle, error)

	// CloseEngine frees the engine behind h. Cells bound to it must not
	// be used afterwards.
	CloseEngine(h EngineHandle) error

	SetUnset(h EngineHandle, c *Cell)
	SetNone(h EngineHandle, c *Cell)
	SetLogic(h EngineHandle, c *Cell, b bool)
	SetChar(h EngineHandle, c *Cell, r rune)
	SetInteger(h EngineHandle, c *Cell, i int64)
	SetDecimal(h EngineHandle, c *Cell, f float64)
	// SetDate writes a date cell from nanoseconds since the Unix epoch.
	// How the runtime stores the instant is its own business.
	SetDate(h EngineHandle, c *Cell, epochns int64)

	IsUnset(h EngineHandle, c *Cell) bool
	IsNone(h EngineHandle, c *Cell) bool
	IsLogic(h EngineHandle, c *Cell) bool
	IsChar(h EngineHandle, c *Cell) bool
	IsInteger(h EngineHandle, c *Cell) bool
	IsDecimal(h EngineHandle, c *Cell) bool
	IsDate(h EngineHandle, c *Cell) bool
	IsError(h EngineHandle, c *Cell) bool
	// Tagged reports whether the cell carries any valid kind tag at all.
	Tagged(h EngineHandle, c *Cell) bool

	Logic(h EngineHandle, c *Cell) bool
	Char(h EngineHandle, c *Cell) rune
	Integer(h EngineHandle, c *Cell) int64
	Decimal(h EngineHandle, c *Cell) float64
	// Date returns nanoseconds since the Unix epoch.
	Date(h EngineHandle, c *Cell) int64

	// MakeError builds an error cell carrying msg.
	MakeError(h EngineHandle, msg string, c *Cell) error

	// Raise performs the runtime's own error-signaling operation with
	// the error value in c.
	Raise(h EngineHandle, c *Cell) error

	// Form renders the cell as a human-readable string.
	Form(h EngineHandle, c *Cell) (string, error)

	// Evaluate runs source until one of the terminal outcomes. The
	// result cell is written for OutcomeNormal (the produced value) and
	// OutcomeRaised (the error value). The evaluator must call interrupt
	// at every safe point of its loop and wind down with
	// OutcomeInterrupted when the probe reports true; a nil probe never
	// interrupts. A non-nil error reports a failure of the runtime
	// itself, not of the evaluated code.
	Evaluate(ctx context.Context, h EngineHandle, source string, interrupt func() bool, result *Cell) (Outcome, error)

	// RegisterDevice installs dev in the engine's device table,
	// replacing any previous entry with the same id.
	RegisterDevice(h EngineHandle, dev *Device) error
}
