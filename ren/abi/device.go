package abi

// The runtime performs I/O by filling a request record and dispatching
// it to a device's command table. The dispatch code understands only the
// protocol's own vocabulary: a Result plus the request's error code.
// Handlers must never let a Go error or panic cross that boundary.

// Command indexes the fixed dispatch table of a device.
type Command uint8

const (
	CmdInit Command = iota
	CmdQuit
	CmdOpen
	CmdClose
	CmdRead
	CmdWrite
	CmdPoll
	CmdConnect
	CmdQuery
	CmdModify
	// CmdCreate may be repurposed by a device; the console device uses
	// it for echo redirection.
	CmdCreate

	CommandMax
)

func (c Command) String() string {
	names := [...]string{
		"init", "quit", "open", "close", "read", "write",
		"poll", "connect", "query", "modify", "create",
	}
	if int(c) < len(names) {
		return names[c]
	}
	return "invalid"
}

// Result is what a handler reports back to the dispatcher.
type Result int32

const (
	// Pending means the request was accepted but has not completed.
	Pending Result = iota
	// Done means the request completed.
	Done
	// Failed means the request failed; the request's error code says
	// how.
	Failed
)

// Error codes reported by the dispatcher itself. Device-specific codes
// start at 1000.
const (
	// CodeNoCommand reports a request naming a command the device does
	// not implement.
	CodeNoCommand uint32 = 1
	// CodeNoDevice reports a request naming a device id with no
	// registered device.
	CodeNoDevice uint32 = 2
)

// Device table ids.
const (
	DeviceSystem uint8 = iota
	DeviceStdio
)

// Request is one I/O request traveling through a device's dispatch
// table. The same record shape serves every command; which fields are
// meaningful depends on the command being dispatched (the command itself
// is not part of the record).
type Request struct {
	// Device is the device table id the request is addressed to.
	Device uint8
	// Modes holds the Mode* bits, established when the device is opened.
	Modes uint32
	// Flags holds the Flag* bits of this request.
	Flags uint32
	// Error is the code reported by a failed command.
	Error uint32
	// Data is the transfer buffer; its length is the requested transfer
	// length.
	Data []byte
	// Actual is the number of bytes actually transferred.
	Actual int
}

// A Handler implements one device command.
type Handler func(*Request) Result

// Device is one entry of the runtime's device table.
type Device struct {
	// Title describes the device, for diagnostics only.
	Title string
	// ID is the device table id requests are routed by.
	ID uint8
	// Flags holds the Dev* state bits. Bits 16 and up are reserved for
	// device-specific use.
	Flags uint32
	// Commands is the dispatch table, indexed by Command. A nil entry
	// means the command is not implemented by the device.
	Commands [CommandMax]Handler
}

// Do dispatches one request to the command's handler. A command outside
// the table, or one without a handler, fails with CodeNoCommand.
func (d *Device) Do(cmd Command, req *Request) Result {
	if cmd >= CommandMax || d.Commands[cmd] == nil {
		req.Error = CodeNoCommand
		return Failed
	}
	return d.Commands[cmd](req)
}
