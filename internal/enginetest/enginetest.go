// Package enginetest provides an in-memory Runtime for exercising the
// binding without a real engine.
//
// Scripts are line-oriented directives rather than a language: one
// directive per line (or per ';'-separated segment), just enough to
// drive every outcome, accessor and device path the binding has. The
// cell layout is private to this package, as a real runtime's would be:
// byte 0 holds the kind tag, bytes 8 to 15 the payload, little-endian.
package enginetest

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dolthub/swiss"
	"github.com/renlang/rengo/ren/abi"
)

// Kind tags at cell byte 0. Zero means uninitialized.
const (
	tagUnset byte = iota + 1
	tagNone
	tagLogic
	tagChar
	tagInteger
	tagDecimal
	tagDate
	tagError
)

// Runtime implements abi.Runtime with host-side state. One engine at a
// time; it is not safe for concurrent use of a single engine, matching
// the contract of the interface it fakes.
type Runtime struct {
	mu      sync.Mutex
	next    abi.EngineHandle
	engines map[abi.EngineHandle]*engineState
}

var _ abi.Runtime = (*Runtime)(nil)

type engineState struct {
	words   *swiss.Map[string, int64]
	msgs    *swiss.Map[int64, string]
	nextMsg int64

	devices map[uint8]*abi.Device
	opened  bool
	modes   uint32 // modes established by the device open

	lastRaised string
}

// New returns an empty runtime with no engines.
func New() *Runtime {
	return &Runtime{engines: make(map[abi.EngineHandle]*engineState)}
}

func (r *Runtime) OpenEngine() (abi.EngineHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	h := r.next
	r.engines[h] = &engineState{
		words:   swiss.NewMap[string, int64](8),
		msgs:    swiss.NewMap[int64, string](8),
		devices: make(map[uint8]*abi.Device),
	}
	return h, nil
}

func (r *Runtime) CloseEngine(h abi.EngineHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[h]; !ok {
		return fmt.Errorf("enginetest: unknown engine %d", h)
	}
	delete(r.engines, h)
	return nil
}

func (r *Runtime) engine(h abi.EngineHandle) (*engineState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eng, ok := r.engines[h]
	if !ok {
		return nil, fmt.Errorf("enginetest: unknown engine %d", h)
	}
	return eng, nil
}

// LastRaised returns the formed message of the last error value raised
// on the engine, or "" if none was.
func (r *Runtime) LastRaised(h abi.EngineHandle) string {
	eng, err := r.engine(h)
	if err != nil {
		return ""
	}
	return eng.lastRaised
}

func writeCell(c *abi.Cell, tag byte, payload uint64) {
	*c = abi.Cell{}
	c[0] = tag
	binary.LittleEndian.PutUint64(c[8:], payload)
}

func payload(c *abi.Cell) uint64 { return binary.LittleEndian.Uint64(c[8:]) }

func tagOf(c *abi.Cell) byte { return c[0] }

func (r *Runtime) SetUnset(_ abi.EngineHandle, c *abi.Cell) { writeCell(c, tagUnset, 0) }
func (r *Runtime) SetNone(_ abi.EngineHandle, c *abi.Cell)  { writeCell(c, tagNone, 0) }

func (r *Runtime) SetLogic(_ abi.EngineHandle, c *abi.Cell, b bool) {
	var p uint64
	if b {
		p = 1
	}
	writeCell(c, tagLogic, p)
}

func (r *Runtime) SetChar(_ abi.EngineHandle, c *abi.Cell, cp rune) {
	writeCell(c, tagChar, uint64(uint32(cp)))
}

func (r *Runtime) SetInteger(_ abi.EngineHandle, c *abi.Cell, i int64) {
	writeCell(c, tagInteger, uint64(i))
}

func (r *Runtime) SetDecimal(_ abi.EngineHandle, c *abi.Cell, f float64) {
	writeCell(c, tagDecimal, math.Float64bits(f))
}

func (r *Runtime) SetDate(_ abi.EngineHandle, c *abi.Cell, epochns int64) {
	writeCell(c, tagDate, uint64(epochns))
}

func (r *Runtime) IsUnset(_ abi.EngineHandle, c *abi.Cell) bool   { return tagOf(c) == tagUnset }
func (r *Runtime) IsNone(_ abi.EngineHandle, c *abi.Cell) bool    { return tagOf(c) == tagNone }
func (r *Runtime) IsLogic(_ abi.EngineHandle, c *abi.Cell) bool   { return tagOf(c) == tagLogic }
func (r *Runtime) IsChar(_ abi.EngineHandle, c *abi.Cell) bool    { return tagOf(c) == tagChar }
func (r *Runtime) IsInteger(_ abi.EngineHandle, c *abi.Cell) bool { return tagOf(c) == tagInteger }
func (r *Runtime) IsDecimal(_ abi.EngineHandle, c *abi.Cell) bool { return tagOf(c) == tagDecimal }
func (r *Runtime) IsDate(_ abi.EngineHandle, c *abi.Cell) bool    { return tagOf(c) == tagDate }
func (r *Runtime) IsError(_ abi.EngineHandle, c *abi.Cell) bool   { return tagOf(c) == tagError }

func (r *Runtime) Tagged(_ abi.EngineHandle, c *abi.Cell) bool {
	return tagOf(c) >= tagUnset && tagOf(c) <= tagError
}

// Payload getters do not revalidate the tag.

func (r *Runtime) Logic(_ abi.EngineHandle, c *abi.Cell) bool { return payload(c) != 0 }
func (r *Runtime) Char(_ abi.EngineHandle, c *abi.Cell) rune  { return rune(uint32(payload(c))) }
func (r *Runtime) Integer(_ abi.EngineHandle, c *abi.Cell) int64 {
	return int64(payload(c))
}
func (r *Runtime) Decimal(_ abi.EngineHandle, c *abi.Cell) float64 {
	return math.Float64frombits(payload(c))
}
func (r *Runtime) Date(_ abi.EngineHandle, c *abi.Cell) int64 { return int64(payload(c)) }

func (r *Runtime) MakeError(h abi.EngineHandle, msg string, c *abi.Cell) error {
	eng, err := r.engine(h)
	if err != nil {
		return err
	}
	eng.nextMsg++
	eng.msgs.Put(eng.nextMsg, msg)
	writeCell(c, tagError, uint64(eng.nextMsg))
	return nil
}

func (r *Runtime) Raise(h abi.EngineHandle, c *abi.Cell) error {
	eng, err := r.engine(h)
	if err != nil {
		return err
	}
	msg, err := r.Form(h, c)
	if err != nil {
		return err
	}
	eng.lastRaised = msg
	return nil
}

func (r *Runtime) Form(h abi.EngineHandle, c *abi.Cell) (string, error) {
	switch tagOf(c) {
	case tagUnset:
		return "", nil
	case tagNone:
		return "none", nil
	case tagLogic:
		if payload(c) != 0 {
			return "true", nil
		}
		return "false", nil
	case tagChar:
		return string(rune(uint32(payload(c)))), nil
	case tagInteger:
		return strconv.FormatInt(int64(payload(c)), 10), nil
	case tagDecimal:
		return strconv.FormatFloat(math.Float64frombits(payload(c)), 'g', -1, 64), nil
	case tagDate:
		return time.Unix(0, int64(payload(c))).UTC().Format(time.RFC3339), nil
	case tagError:
		eng, err := r.engine(h)
		if err != nil {
			return "", err
		}
		msg, ok := eng.msgs.Get(int64(payload(c)))
		if !ok {
			return "", fmt.Errorf("enginetest: error cell %d has no message", int64(payload(c)))
		}
		return msg, nil
	}
	return "", fmt.Errorf("enginetest: form of untagged cell")
}

func (r *Runtime) RegisterDevice(h abi.EngineHandle, dev *abi.Device) error {
	eng, err := r.engine(h)
	if err != nil {
		return err
	}
	eng.devices[dev.ID] = dev
	return nil
}

// callStdio routes one request through the registered standard-I/O
// device, opening it first if this engine has not yet. The modes
// established by the open are carried on every later request, the way
// a port would carry them.
func (eng *engineState) callStdio(cmd abi.Command, data []byte) (*abi.Request, abi.Result, error) {
	dev := eng.devices[abi.DeviceStdio]
	if dev == nil {
		return nil, 0, fmt.Errorf("enginetest: no stdio device registered")
	}
	if !eng.opened {
		open := &abi.Request{Device: abi.DeviceStdio}
		if res := dev.Do(abi.CmdOpen, open); res != abi.Done {
			return nil, 0, fmt.Errorf("enginetest: stdio open failed (code %d)", open.Error)
		}
		eng.modes = open.Modes
		eng.opened = true
	}
	req := &abi.Request{Device: abi.DeviceStdio, Modes: eng.modes, Data: data}
	return req, dev.Do(cmd, req), nil
}

// Evaluate interprets the directive script. The interrupt probe is
// consulted before every directive and on every spin iteration; those
// are the safe points of this evaluator.
func (r *Runtime) Evaluate(ctx context.Context, h abi.EngineHandle, source string, interrupt func() bool, result *abi.Cell) (abi.Outcome, error) {
	eng, err := r.engine(h)
	if err != nil {
		return abi.Outcome{}, err
	}

	raise := func(format string, args ...any) (abi.Outcome, error) {
		if err := r.MakeError(h, fmt.Sprintf(format, args...), result); err != nil {
			return abi.Outcome{}, err
		}
		return abi.Outcome{Kind: abi.OutcomeRaised}, nil
	}

	var last abi.Cell
	r.SetUnset(h, &last)

	for _, line := range scriptLines(source) {
		if interrupt != nil && interrupt() {
			return abi.Outcome{Kind: abi.OutcomeInterrupted}, nil
		}

		directive, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch directive {
		case "unset":
			r.SetUnset(h, &last)

		case "none":
			r.SetNone(h, &last)

		case "logic":
			b, err := strconv.ParseBool(arg)
			if err != nil {
				return abi.Outcome{}, fmt.Errorf("enginetest: logic: %w", err)
			}
			r.SetLogic(h, &last, b)

		case "int":
			i, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return abi.Outcome{}, fmt.Errorf("enginetest: int: %w", err)
			}
			r.SetInteger(h, &last, i)

		case "dec":
			f, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return abi.Outcome{}, fmt.Errorf("enginetest: dec: %w", err)
			}
			r.SetDecimal(h, &last, f)

		case "char":
			cp, size := utf8.DecodeRuneInString(arg)
			if size == 0 || cp == utf8.RuneError {
				return abi.Outcome{}, fmt.Errorf("enginetest: char: invalid argument %q", arg)
			}
			r.SetChar(h, &last, cp)

		case "date":
			t, err := time.Parse(time.RFC3339, arg)
			if err != nil {
				return abi.Outcome{}, fmt.Errorf("enginetest: date: %w", err)
			}
			r.SetDate(h, &last, t.UnixNano())

		case "error":
			return raise("%s", arg)

		case "quit":
			code := 0
			if arg != "" {
				code, err = strconv.Atoi(arg)
				if err != nil {
					return abi.Outcome{}, fmt.Errorf("enginetest: quit: %w", err)
				}
			}
			return abi.Outcome{Kind: abi.OutcomeExited, ExitCode: code}, nil

		case "spin":
			// Loop until interrupted. The ctx guard only matters for
			// callers that evaluate without a probe; the binding turns
			// ctx cancellation into an interrupt request.
			for {
				if interrupt != nil && interrupt() {
					return abi.Outcome{Kind: abi.OutcomeInterrupted}, nil
				}
				if interrupt == nil {
					select {
					case <-ctx.Done():
						return abi.Outcome{}, ctx.Err()
					default:
					}
				}
				time.Sleep(time.Millisecond)
			}

		case "print":
			req, res, err := eng.callStdio(abi.CmdWrite, []byte(arg))
			if err != nil {
				return abi.Outcome{}, err
			}
			if res != abi.Done {
				return raise("stdio write failed (code %d)", req.Error)
			}
			r.SetUnset(h, &last)

		case "input":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return abi.Outcome{}, fmt.Errorf("enginetest: input: %w", err)
			}
			req, res, err := eng.callStdio(abi.CmdRead, make([]byte, n))
			if err != nil {
				return abi.Outcome{}, err
			}
			if res != abi.Done {
				return raise("stdio read failed (code %d)", req.Error)
			}
			r.SetInteger(h, &last, int64(req.Actual))

		case "set":
			name, num, ok := strings.Cut(arg, " ")
			if !ok {
				return abi.Outcome{}, fmt.Errorf("enginetest: set: need a word and a value")
			}
			i, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
			if err != nil {
				return abi.Outcome{}, fmt.Errorf("enginetest: set: %w", err)
			}
			eng.words.Put(name, i)
			r.SetInteger(h, &last, i)

		case "get":
			i, ok := eng.words.Get(arg)
			if !ok {
				return raise("%s has no value", arg)
			}
			r.SetInteger(h, &last, i)

		case "words":
			r.SetInteger(h, &last, int64(eng.words.Count()))

		default:
			return abi.Outcome{}, fmt.Errorf("enginetest: unknown directive %q", directive)
		}
	}

	*result = last
	return abi.Outcome{Kind: abi.OutcomeNormal}, nil
}

func scriptLines(source string) []string {
	fields := strings.FieldsFunc(source, func(r rune) bool {
		return r == '\n' || r == ';'
	})
	lines := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			lines = append(lines, f)
		}
	}
	return lines
}
