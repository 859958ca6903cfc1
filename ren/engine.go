package ren

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/renlang/rengo/ren/abi"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("ren.engine")

// An Engine is one isolated instance of the runtime, with its own user
// context. Values are bound to the engine that created them and must not
// outlive it.
//
// An Engine is not safe for concurrent use: evaluations and value
// constructions must run one at a time. The single exception is Cancel,
// which may be called from any goroutine while an evaluation runs.
type Engine struct {
	rt     abi.Runtime
	handle abi.EngineHandle
	closed bool

	// cancel is the cooperative cancellation flag: set wait-free from
	// any goroutine, consumed by the evaluator at its safe points.
	cancel atomic.Bool
}

// NewEngine opens a new engine on rt.
func NewEngine(rt abi.Runtime) (*Engine, error) {
	h, err := rt.OpenEngine()
	if err != nil {
		return nil, fmt.Errorf("ren: open engine: %w", err)
	}
	log.Debugf("engine %d: open", h)
	return &Engine{rt: rt, handle: h}, nil
}

// Handle returns the engine's runtime handle.
func (e *Engine) Handle() abi.EngineHandle { return e.handle }

// Close frees the engine. Values bound to it must not be used
// afterwards. Closing twice is a no-op.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	log.Debugf("engine %d: close", e.handle)
	if err := e.rt.CloseEngine(e.handle); err != nil {
		return fmt.Errorf("ren: close engine: %w", err)
	}
	return nil
}

// RegisterDevice installs dev in the engine's device table.
func (e *Engine) RegisterDevice(dev *abi.Device) error {
	if err := e.rt.RegisterDevice(e.handle, dev); err != nil {
		return fmt.Errorf("ren: register device: %w", err)
	}
	return nil
}

// Cancel requests cancellation of the evaluation in progress. It is
// safe to call from any goroutine and never blocks. The request takes
// effect when the evaluator reaches its next safe point; if no
// evaluation is running it stays pending and cancels the next one. A
// request the evaluator never reaches a safe point for never fires.
func (e *Engine) Cancel() { e.cancel.Store(true) }

// interrupted is the safe-point probe handed to the runtime. It
// consumes a pending cancellation request: the flag is cleared in the
// same atomic step that observes it.
func (e *Engine) interrupted() bool {
	return e.cancel.CompareAndSwap(true, false)
}

// Do evaluates source on the engine and returns the produced value.
//
// The three abnormal endings of an evaluation are reported as typed
// errors: a raised error value as *EvaluationError, a requested session
// exit as *ExitCommand, and an observed cancellation as
// *EvaluationCancelled. Cancelling ctx behaves like calling Cancel, so
// it too surfaces as *EvaluationCancelled once a safe point is reached.
func (e *Engine) Do(ctx context.Context, source string) (Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if done := ctx.Done(); done != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-done:
				e.cancel.Store(true)
			case <-stop:
			}
		}()
	}

	var result abi.Cell
	out, err := e.rt.Evaluate(ctx, e.handle, source, e.interrupted, &result)
	if err != nil {
		return Value{}, fmt.Errorf("ren: evaluate: %w", err)
	}

	switch out.Kind {
	case abi.OutcomeNormal:
		return e.wrapCell(&result), nil
	case abi.OutcomeRaised:
		return Value{}, NewEvaluationError(Error{e.wrapCell(&result)})
	case abi.OutcomeExited:
		return Value{}, &ExitCommand{code: out.ExitCode}
	case abi.OutcomeInterrupted:
		return Value{}, &EvaluationCancelled{}
	}
	return Value{}, fmt.Errorf("ren: evaluate: unknown outcome %v", out.Kind)
}

// wrapCell binds a cell produced by the runtime.
func (e *Engine) wrapCell(c *abi.Cell) Value {
	var v Value
	v.cell = *c
	v.finishInit(e)
	return v
}

// A Finder resolves the engine to bind values to when a constructor is
// not given one explicitly.
type Finder func() (*Engine, error)

var (
	finderMu sync.RWMutex
	finder   Finder
)

// SetFinder registers the engine lookup used by the package-level
// constructors. A nil finder restores the default, under which those
// constructors fail with ErrNoEngine.
func SetFinder(f Finder) {
	finderMu.Lock()
	finder = f
	finderMu.Unlock()
}

// CurrentEngine resolves an engine through the registered finder.
func CurrentEngine() (*Engine, error) {
	finderMu.RLock()
	f := finder
	finderMu.RUnlock()
	if f == nil {
		return nil, ErrNoEngine
	}
	return f()
}
