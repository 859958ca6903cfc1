// Package stdio adapts the runtime's standard-I/O device to host
// streams.
//
// The runtime performs console input and output through its device
// table; this package provides the table entry that forwards those
// requests to an io.Reader and io.Writer supplied by the host. Handlers
// report failures exclusively through the request's error code and the
// protocol's Failed result: the caller is runtime-internal dispatch
// code, so no Go error ever crosses the device boundary.
package stdio

import (
	"io"
	"os"

	"github.com/renlang/rengo/ren/abi"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("ren.stdio")

// Error codes reported by the shim.
const (
	// CodeStreamError reports a host stream that failed to read or
	// write.
	CodeStreamError uint32 = 1020
	// CodeEchoUnsupported reports the echo redirection command, which
	// the shim does not implement.
	CodeEchoUnsupported uint32 = 1021
)

// deviceNull is the device-specific flag bit recording that the device
// was first opened in null mode.
const deviceNull = 31

// A Shim forwards the runtime's standard-I/O device requests to host
// streams. It owns neither stream: closing them remains the host's
// business, whatever the device protocol does.
type Shim struct {
	in  io.Reader
	out io.Writer
	dev abi.Device
}

// New returns a shim reading from in and writing to out. A nil in or
// out selects the process standard input or output.
func New(in io.Reader, out io.Writer) *Shim {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	s := &Shim{in: in, out: out}
	s.dev = abi.Device{Title: "Standard IO", ID: abi.DeviceStdio}
	s.dev.Commands[abi.CmdQuit] = s.quit
	s.dev.Commands[abi.CmdOpen] = s.open
	s.dev.Commands[abi.CmdClose] = s.close
	s.dev.Commands[abi.CmdRead] = s.read
	s.dev.Commands[abi.CmdWrite] = s.write
	s.dev.Commands[abi.CmdCreate] = s.echo
	return s
}

// Device returns the device table entry to register with an engine.
func (s *Shim) Device() *abi.Device { return &s.dev }

// Null marks the device null before it is first opened: reads report
// nothing and writes are discarded. Opens after the mark propagate it
// into the request modes.
func (s *Shim) Null() {
	s.dev.Flags = abi.SetFlag(s.dev.Flags, deviceNull)
}

// open marks the device and the request open. Opening twice is
// idempotent. The null marker propagates both ways: a null-mode open
// marks the device, and a marked device forces null mode onto the
// request of every open, so later requests on the port carry it.
func (s *Shim) open(req *abi.Request) abi.Result {
	if abi.HasFlag(s.dev.Flags, abi.DevOpen) {
		if abi.HasFlag(s.dev.Flags, deviceNull) {
			req.Modes = abi.SetFlag(req.Modes, abi.ModeNull)
		}
		req.Flags = abi.SetFlag(req.Flags, abi.FlagOpen)
		return abi.Done
	}
	if abi.HasFlag(req.Modes, abi.ModeNull) {
		s.dev.Flags = abi.SetFlag(s.dev.Flags, deviceNull)
	} else if abi.HasFlag(s.dev.Flags, deviceNull) {
		req.Modes = abi.SetFlag(req.Modes, abi.ModeNull)
	}
	req.Flags = abi.SetFlag(req.Flags, abi.FlagOpen)
	s.dev.Flags = abi.SetFlag(s.dev.Flags, abi.DevOpen)
	return abi.Done
}

// close clears the request's open flag. The device stays open and the
// host streams are untouched.
func (s *Shim) close(req *abi.Request) abi.Result {
	req.Flags = abi.ClearFlag(req.Flags, abi.FlagOpen)
	return abi.Done
}

// quit clears the device's open flag.
func (s *Shim) quit(req *abi.Request) abi.Result {
	s.dev.Flags = abi.ClearFlag(s.dev.Flags, abi.DevOpen)
	return abi.Done
}

// write sends the whole buffer to the output stream in one call.
// Failure is all-or-nothing: a partial write to the underlying stream
// cannot be detected reliably, so a stream error reports
// CodeStreamError and no partial length.
func (s *Shim) write(req *abi.Request) abi.Result {
	if abi.HasFlag(req.Modes, abi.ModeNull) {
		req.Actual = len(req.Data)
		return abi.Done
	}
	if _, err := s.out.Write(req.Data); err != nil {
		log.Errorf("write %d bytes: %s", len(req.Data), err)
		req.Error = CodeStreamError
		return abi.Failed
	}
	req.Actual = len(req.Data)
	return abi.Done
}

// read fills up to len(req.Data) bytes from the input stream in one
// call and reports the count actually read. The buffer is never
// NUL-terminated; callers rely solely on the reported length. A stream
// that fails before any byte is available reports CodeStreamError.
func (s *Shim) read(req *abi.Request) abi.Result {
	if abi.HasFlag(req.Modes, abi.ModeNull) {
		req.Actual = 0
		return abi.Done
	}
	n, err := s.in.Read(req.Data)
	if n == 0 && err != nil {
		log.Errorf("read up to %d bytes: %s", len(req.Data), err)
		req.Error = CodeStreamError
		return abi.Failed
	}
	req.Actual = n
	return abi.Done
}

// echo occupies the create slot of the table, which the console device
// repurposes for echo redirection. The shim refuses it: splitting the
// console to a log file needs a stream aggregator composed on the host
// side and passed to New as the primary stream.
func (s *Shim) echo(req *abi.Request) abi.Result {
	log.Error("echo to file is not supported by the shim: compose a host-side stream aggregator and pass it to New instead")
	req.Error = CodeEchoUnsupported
	return abi.Failed
}
