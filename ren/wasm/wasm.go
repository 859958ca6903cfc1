// Package wasm runs an engine compiled to a WASI reactor and adapts it
// to the abi.Runtime interface.
//
// The guest owns every cell and all evaluation state; the host talks to
// it through a small exported surface (ren_* functions) plus two scratch
// buffers allocated from the guest heap at load time. Evaluation is
// stepped: ren_do_step runs a bounded slice of work and reports whether
// the evaluation is still going, finished, or stopped at a device
// request the host must serve before stepping again. That stepping is
// what makes the interrupt probe work without any guest-side signal
// handling.
package wasm

import (
	"context"
	"fmt"
	"math"

	"github.com/renlang/rengo/ren/abi"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("ren.wasm")

// Cell kind codes reported by ren_cell_kind.
const (
	kindInvalid uint32 = iota
	kindUnset
	kindNone
	kindLogic
	kindChar
	kindInteger
	kindDecimal
	kindDate
	kindError
)

// Step states reported by ren_do_step.
const (
	stepMore uint32 = iota
	stepDone
	stepRaised
	stepExited
	stepInterrupted
	stepDevice
)

// Module is an instantiated engine guest. It implements abi.Runtime.
// Like every abi.Runtime it serializes use per engine; the caller must
// not evaluate on the same engine from two goroutines.
type Module struct {
	mod api.Module

	malloc      api.Function
	free        api.Function
	engineOpen  api.Function
	engineClose api.Function
	cellKind    api.Function
	setUnset    api.Function
	setNone     api.Function
	setLogic    api.Function
	setChar     api.Function
	setInteger  api.Function
	setDecimal  api.Function
	setDate     api.Function
	getLogic    api.Function
	getChar     api.Function
	getInteger  api.Function
	getDecimal  api.Function
	getDate     api.Function
	makeError   api.Function
	raise       api.Function
	form        api.Function
	doBegin     api.Function
	doStep      api.Function
	doResult    api.Function
	doExitCode  api.Function
	doAnswer    api.Function
	doRequest   api.Function
	escape      api.Function

	// Guest-heap scratch: one cell and one u32 out-parameter.
	cellPtr uint32
	lenPtr  uint32

	devices map[abi.EngineHandle]map[uint8]*abi.Device
}

var _ abi.Runtime = (*Module)(nil)

// Load compiles and instantiates the guest and resolves its exports.
// The module config controls the guest's WASI world (stdio, fs, args);
// a nil config gets an empty one. Load instantiates WASI on r, so use
// a fresh wazero runtime per guest.
func Load(ctx context.Context, r wazero.Runtime, guest []byte, config wazero.ModuleConfig) (*Module, error) {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return nil, fmt.Errorf("ren/wasm: instantiate wasi: %w", err)
	}

	compiled, err := r.CompileModule(ctx, guest)
	if err != nil {
		return nil, fmt.Errorf("ren/wasm: compile module: %w", err)
	}

	if config == nil {
		config = wazero.NewModuleConfig()
	}
	mod, err := r.InstantiateModule(ctx, compiled, config.WithName("ren").WithStartFunctions())
	if err != nil {
		return nil, fmt.Errorf("ren/wasm: instantiate module: %w", err)
	}

	// Reactor convention: run the initializer once, before anything else.
	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("ren/wasm: guest _initialize: %w", err)
		}
	}

	m := &Module{
		mod:     mod,
		devices: make(map[abi.EngineHandle]map[uint8]*abi.Device),
	}
	for _, e := range []struct {
		name string
		fn   *api.Function
	}{
		{"ren_malloc", &m.malloc},
		{"ren_free", &m.free},
		{"ren_engine_open", &m.engineOpen},
		{"ren_engine_close", &m.engineClose},
		{"ren_cell_kind", &m.cellKind},
		{"ren_set_unset", &m.setUnset},
		{"ren_set_none", &m.setNone},
		{"ren_set_logic", &m.setLogic},
		{"ren_set_char", &m.setChar},
		{"ren_set_integer", &m.setInteger},
		{"ren_set_decimal", &m.setDecimal},
		{"ren_set_date", &m.setDate},
		{"ren_get_logic", &m.getLogic},
		{"ren_get_char", &m.getChar},
		{"ren_get_integer", &m.getInteger},
		{"ren_get_decimal", &m.getDecimal},
		{"ren_get_date", &m.getDate},
		{"ren_make_error", &m.makeError},
		{"ren_raise", &m.raise},
		{"ren_form", &m.form},
		{"ren_do_begin", &m.doBegin},
		{"ren_do_step", &m.doStep},
		{"ren_do_result", &m.doResult},
		{"ren_do_exit_code", &m.doExitCode},
		{"ren_do_answer", &m.doAnswer},
		{"ren_do_request", &m.doRequest},
		{"ren_escape", &m.escape},
	} {
		f := mod.ExportedFunction(e.name)
		if f == nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("ren/wasm: missing export %s", e.name)
		}
		*e.fn = f
	}

	if m.cellPtr, err = m.alloc(ctx, abi.CellSize); err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	if m.lenPtr, err = m.alloc(ctx, 4); err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	return m, nil
}

// Close releases the scratch buffers and the guest instance.
func (m *Module) Close(ctx context.Context) error {
	m.freePtr(ctx, m.lenPtr)
	m.freePtr(ctx, m.cellPtr)
	if err := m.mod.Close(ctx); err != nil {
		return fmt.Errorf("ren/wasm: close module: %w", err)
	}
	return nil
}

func (m *Module) alloc(ctx context.Context, n uint32) (uint32, error) {
	res, err := m.malloc.Call(ctx, uint64(n))
	if err != nil {
		return 0, fmt.Errorf("ren/wasm: guest malloc: %w", err)
	}
	ptr := uint32(res[0])
	if ptr == 0 {
		return 0, fmt.Errorf("ren/wasm: guest malloc of %d bytes returned null", n)
	}
	return ptr, nil
}

func (m *Module) freePtr(ctx context.Context, ptr uint32) {
	if _, err := m.free.Call(ctx, uint64(ptr)); err != nil {
		log.Errorf("guest free: %s", err.Error())
	}
}

// allocString copies s onto the guest heap. Empty strings still get a
// one-byte allocation so the guest never sees a null pointer.
func (m *Module) allocString(ctx context.Context, s string) (ptr, n uint32, err error) {
	n = uint32(len(s))
	size := n
	if size == 0 {
		size = 1
	}
	if ptr, err = m.alloc(ctx, size); err != nil {
		return 0, 0, err
	}
	if n > 0 {
		if err = m.memWrite(ptr, []byte(s)); err != nil {
			m.freePtr(ctx, ptr)
			return 0, 0, err
		}
	}
	return ptr, n, nil
}

func (m *Module) memRead(ptr, n uint32) ([]byte, error) {
	b, ok := m.mod.Memory().Read(ptr, n)
	if !ok {
		return nil, fmt.Errorf("ren/wasm: memory read %d+%d out of range", ptr, n)
	}
	return b, nil
}

func (m *Module) memWrite(ptr uint32, b []byte) error {
	if !m.mod.Memory().Write(ptr, b) {
		return fmt.Errorf("ren/wasm: memory write %d+%d out of range", ptr, len(b))
	}
	return nil
}

// call invokes a guest function that has no failure mode short of a
// corrupted guest, so a trap here panics like any other memory fault.
func (m *Module) call(fn api.Function, args ...uint64) []uint64 {
	res, err := fn.Call(context.Background(), args...)
	if err != nil {
		panic(fmt.Sprintf("ren/wasm: guest %s trapped: %s", fn.Definition().Name(), err))
	}
	return res
}

func (m *Module) writeCell(c *abi.Cell) {
	if !m.mod.Memory().Write(m.cellPtr, c[:]) {
		panic("ren/wasm: cell scratch out of range")
	}
}

func (m *Module) readCell(c *abi.Cell) {
	b, ok := m.mod.Memory().Read(m.cellPtr, abi.CellSize)
	if !ok {
		panic("ren/wasm: cell scratch out of range")
	}
	copy(c[:], b)
}

func handleArg(h abi.EngineHandle) uint64 { return uint64(uint32(h)) }

func (m *Module) OpenEngine() (abi.EngineHandle, error) {
	res, err := m.engineOpen.Call(context.Background())
	if err != nil {
		return abi.InvalidEngine, fmt.Errorf("ren/wasm: engine open: %w", err)
	}
	h := abi.EngineHandle(int32(uint32(res[0])))
	if h < 0 {
		return abi.InvalidEngine, fmt.Errorf("ren/wasm: engine open failed (%d)", h)
	}
	return h, nil
}

func (m *Module) CloseEngine(h abi.EngineHandle) error {
	delete(m.devices, h)
	if _, err := m.engineClose.Call(context.Background(), handleArg(h)); err != nil {
		return fmt.Errorf("ren/wasm: engine close: %w", err)
	}
	return nil
}

// setCell runs a guest setter against the cell scratch and copies the
// written cell back out.
func (m *Module) setCell(h abi.EngineHandle, c *abi.Cell, fn api.Function, extra ...uint64) {
	args := append([]uint64{handleArg(h), uint64(m.cellPtr)}, extra...)
	m.call(fn, args...)
	m.readCell(c)
}

func (m *Module) SetUnset(h abi.EngineHandle, c *abi.Cell) { m.setCell(h, c, m.setUnset) }
func (m *Module) SetNone(h abi.EngineHandle, c *abi.Cell)  { m.setCell(h, c, m.setNone) }

func (m *Module) SetLogic(h abi.EngineHandle, c *abi.Cell, b bool) {
	var v uint64
	if b {
		v = 1
	}
	m.setCell(h, c, m.setLogic, v)
}

func (m *Module) SetChar(h abi.EngineHandle, c *abi.Cell, cp rune) {
	m.setCell(h, c, m.setChar, uint64(uint32(cp)))
}

func (m *Module) SetInteger(h abi.EngineHandle, c *abi.Cell, i int64) {
	m.setCell(h, c, m.setInteger, uint64(i))
}

func (m *Module) SetDecimal(h abi.EngineHandle, c *abi.Cell, f float64) {
	m.setCell(h, c, m.setDecimal, math.Float64bits(f))
}

func (m *Module) SetDate(h abi.EngineHandle, c *abi.Cell, epochns int64) {
	m.setCell(h, c, m.setDate, uint64(epochns))
}

func (m *Module) kind(h abi.EngineHandle, c *abi.Cell) uint32 {
	m.writeCell(c)
	res := m.call(m.cellKind, handleArg(h), uint64(m.cellPtr))
	return uint32(res[0])
}

func (m *Module) IsUnset(h abi.EngineHandle, c *abi.Cell) bool   { return m.kind(h, c) == kindUnset }
func (m *Module) IsNone(h abi.EngineHandle, c *abi.Cell) bool    { return m.kind(h, c) == kindNone }
func (m *Module) IsLogic(h abi.EngineHandle, c *abi.Cell) bool   { return m.kind(h, c) == kindLogic }
func (m *Module) IsChar(h abi.EngineHandle, c *abi.Cell) bool    { return m.kind(h, c) == kindChar }
func (m *Module) IsInteger(h abi.EngineHandle, c *abi.Cell) bool { return m.kind(h, c) == kindInteger }
func (m *Module) IsDecimal(h abi.EngineHandle, c *abi.Cell) bool { return m.kind(h, c) == kindDecimal }
func (m *Module) IsDate(h abi.EngineHandle, c *abi.Cell) bool    { return m.kind(h, c) == kindDate }
func (m *Module) IsError(h abi.EngineHandle, c *abi.Cell) bool   { return m.kind(h, c) == kindError }

func (m *Module) Tagged(h abi.EngineHandle, c *abi.Cell) bool {
	k := m.kind(h, c)
	return k >= kindUnset && k <= kindError
}

func (m *Module) getPayload(h abi.EngineHandle, c *abi.Cell, fn api.Function) uint64 {
	m.writeCell(c)
	res := m.call(fn, handleArg(h), uint64(m.cellPtr))
	return res[0]
}

func (m *Module) Logic(h abi.EngineHandle, c *abi.Cell) bool {
	return uint32(m.getPayload(h, c, m.getLogic)) != 0
}

func (m *Module) Char(h abi.EngineHandle, c *abi.Cell) rune {
	return rune(int32(uint32(m.getPayload(h, c, m.getChar))))
}

func (m *Module) Integer(h abi.EngineHandle, c *abi.Cell) int64 {
	return int64(m.getPayload(h, c, m.getInteger))
}

func (m *Module) Decimal(h abi.EngineHandle, c *abi.Cell) float64 {
	return math.Float64frombits(m.getPayload(h, c, m.getDecimal))
}

func (m *Module) Date(h abi.EngineHandle, c *abi.Cell) int64 {
	return int64(m.getPayload(h, c, m.getDate))
}

func (m *Module) MakeError(h abi.EngineHandle, msg string, c *abi.Cell) error {
	ctx := context.Background()
	ptr, n, err := m.allocString(ctx, msg)
	if err != nil {
		return err
	}
	defer m.freePtr(ctx, ptr)
	res, err := m.makeError.Call(ctx, handleArg(h), uint64(ptr), uint64(n), uint64(m.cellPtr))
	if err != nil {
		return fmt.Errorf("ren/wasm: make error: %w", err)
	}
	if code := int32(uint32(res[0])); code != 0 {
		return fmt.Errorf("ren/wasm: make error failed (%d)", code)
	}
	m.readCell(c)
	return nil
}

func (m *Module) Raise(h abi.EngineHandle, c *abi.Cell) error {
	m.writeCell(c)
	res, err := m.raise.Call(context.Background(), handleArg(h), uint64(m.cellPtr))
	if err != nil {
		return fmt.Errorf("ren/wasm: raise: %w", err)
	}
	if code := int32(uint32(res[0])); code != 0 {
		return fmt.Errorf("ren/wasm: raise failed (%d)", code)
	}
	return nil
}

// Form asks the guest to render the cell. The guest returns a heap
// string it expects the host to free, with its length in the u32
// scratch.
func (m *Module) Form(h abi.EngineHandle, c *abi.Cell) (string, error) {
	ctx := context.Background()
	m.writeCell(c)
	res, err := m.form.Call(ctx, handleArg(h), uint64(m.cellPtr), uint64(m.lenPtr))
	if err != nil {
		return "", fmt.Errorf("ren/wasm: form: %w", err)
	}
	strPtr := uint32(res[0])
	if strPtr == 0 {
		return "", fmt.Errorf("ren/wasm: form failed")
	}
	defer m.freePtr(ctx, strPtr)
	n, ok := m.mod.Memory().ReadUint32Le(m.lenPtr)
	if !ok {
		return "", fmt.Errorf("ren/wasm: length scratch out of range")
	}
	b, err := m.memRead(strPtr, n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (m *Module) RegisterDevice(h abi.EngineHandle, dev *abi.Device) error {
	devs := m.devices[h]
	if devs == nil {
		devs = make(map[uint8]*abi.Device)
		m.devices[h] = devs
	}
	devs[dev.ID] = dev
	log.Debugf("engine %d: device %d (%s) registered", h, dev.ID, dev.Title)
	return nil
}

// Evaluate drives one evaluation to completion. Between steps it polls
// the interrupt probe and forwards a positive answer to the guest as
// an escape request; the guest then winds down and reports the
// interrupted state on a later step. Callers without a probe get the
// same treatment from ctx cancellation.
func (m *Module) Evaluate(ctx context.Context, h abi.EngineHandle, source string, interrupt func() bool, result *abi.Cell) (abi.Outcome, error) {
	srcPtr, srcLen, err := m.allocString(ctx, source)
	if err != nil {
		return abi.Outcome{}, err
	}
	defer m.freePtr(ctx, srcPtr)

	res, err := m.doBegin.Call(ctx, handleArg(h), uint64(srcPtr), uint64(srcLen))
	if err != nil {
		return abi.Outcome{}, fmt.Errorf("ren/wasm: begin evaluation: %w", err)
	}
	if code := int32(uint32(res[0])); code != 0 {
		return abi.Outcome{}, fmt.Errorf("ren/wasm: begin evaluation failed (%d)", code)
	}

	escaped := false
	for {
		if !escaped {
			stop := interrupt != nil && interrupt()
			if !stop && interrupt == nil && ctx.Err() != nil {
				stop = true
			}
			if stop {
				if _, err := m.escape.Call(ctx, handleArg(h)); err != nil {
					return abi.Outcome{}, fmt.Errorf("ren/wasm: escape: %w", err)
				}
				escaped = true
			}
		}

		res, err := m.doStep.Call(ctx, handleArg(h))
		if err != nil {
			return abi.Outcome{}, fmt.Errorf("ren/wasm: evaluation step: %w", err)
		}
		switch state := uint32(res[0]); state {
		case stepMore:

		case stepDone, stepRaised:
			if _, err := m.doResult.Call(ctx, handleArg(h), uint64(m.cellPtr)); err != nil {
				return abi.Outcome{}, fmt.Errorf("ren/wasm: fetch result: %w", err)
			}
			m.readCell(result)
			kind := abi.OutcomeNormal
			if state == stepRaised {
				kind = abi.OutcomeRaised
			}
			return abi.Outcome{Kind: kind}, nil

		case stepExited:
			res, err := m.doExitCode.Call(ctx, handleArg(h))
			if err != nil {
				return abi.Outcome{}, fmt.Errorf("ren/wasm: fetch exit code: %w", err)
			}
			return abi.Outcome{Kind: abi.OutcomeExited, ExitCode: int(int32(uint32(res[0])))}, nil

		case stepInterrupted:
			return abi.Outcome{Kind: abi.OutcomeInterrupted}, nil

		case stepDevice:
			if err := m.serveRequest(ctx, h); err != nil {
				return abi.Outcome{}, err
			}

		default:
			return abi.Outcome{}, fmt.Errorf("ren/wasm: unknown step state %d", state)
		}
	}
}

// serveRequest handles one device request the guest parked on. The
// request record is rewritten in place and the command's result code
// handed back through ren_do_answer, so from the guest's point of view
// the device completed synchronously.
func (m *Module) serveRequest(ctx context.Context, h abi.EngineHandle) error {
	res, err := m.doRequest.Call(ctx, handleArg(h))
	if err != nil {
		return fmt.Errorf("ren/wasm: fetch device request: %w", err)
	}
	reqPtr := uint32(res[0])
	if reqPtr == 0 {
		return fmt.Errorf("ren/wasm: guest reported a device request but returned none")
	}
	raw, err := m.memRead(reqPtr, requestSize)
	if err != nil {
		return err
	}
	greq := decodeRequest(raw)

	req := &abi.Request{
		Device: greq.device,
		Modes:  greq.modes,
		Flags:  greq.flags,
		Error:  greq.errcode,
		Actual: int(greq.actual),
	}

	result := abi.Failed
	dev := m.devices[h][greq.device]
	if dev == nil {
		req.Error = abi.CodeNoDevice
		log.Errorf("engine %d: request for unregistered device %d", h, greq.device)
	} else {
		cmd := abi.Command(greq.command)
		switch cmd {
		case abi.CmdWrite:
			if greq.length > 0 {
				b, err := m.memRead(greq.data, greq.length)
				if err != nil {
					return err
				}
				req.Data = append([]byte(nil), b...)
			}
		case abi.CmdRead:
			req.Data = make([]byte, greq.length)
		}
		result = dev.Do(cmd, req)
		if cmd == abi.CmdRead && result == abi.Done && req.Actual > 0 {
			if err := m.memWrite(greq.data, req.Data[:req.Actual]); err != nil {
				return err
			}
		}
	}

	greq.modes = req.Modes
	greq.flags = req.Flags
	greq.errcode = req.Error
	greq.actual = uint32(req.Actual)
	buf := make([]byte, requestSize)
	greq.encode(buf)
	if err := m.memWrite(reqPtr, buf); err != nil {
		return err
	}

	if _, err := m.doAnswer.Call(ctx, handleArg(h), uint64(uint32(result))); err != nil {
		return fmt.Errorf("ren/wasm: answer device request: %w", err)
	}
	return nil
}
