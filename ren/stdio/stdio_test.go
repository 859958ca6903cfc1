package stdio_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/renlang/rengo/ren/abi"
	"github.com/renlang/rengo/ren/stdio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failStream struct{}

func (failStream) Read(p []byte) (int, error)  { return 0, errors.New("stream failure") }
func (failStream) Write(p []byte) (int, error) { return 0, errors.New("stream failure") }

func openShim(t *testing.T, s *stdio.Shim) *abi.Request {
	t.Helper()
	req := &abi.Request{Device: abi.DeviceStdio}
	require.Equal(t, abi.Done, s.Device().Do(abi.CmdOpen, req))
	return req
}

func TestOpen(t *testing.T) {
	s := stdio.New(strings.NewReader(""), &bytes.Buffer{})

	req := openShim(t, s)
	assert.True(t, abi.HasFlag(req.Flags, abi.FlagOpen))
	assert.True(t, abi.HasFlag(s.Device().Flags, abi.DevOpen))

	// opening twice is idempotent
	again := openShim(t, s)
	assert.True(t, abi.HasFlag(again.Flags, abi.FlagOpen))
}

func TestOpenNullFromRequest(t *testing.T) {
	s := stdio.New(strings.NewReader(""), &bytes.Buffer{})

	first := &abi.Request{Device: abi.DeviceStdio}
	first.Modes = abi.SetFlag(first.Modes, abi.ModeNull)
	require.Equal(t, abi.Done, s.Device().Do(abi.CmdOpen, first))

	// the null marker sticks to the device and reaches later opens
	second := openShim(t, s)
	assert.True(t, abi.HasFlag(second.Modes, abi.ModeNull))
}

func TestOpenNullFromDevice(t *testing.T) {
	s := stdio.New(strings.NewReader(""), &bytes.Buffer{})
	s.Null()

	req := openShim(t, s)
	assert.True(t, abi.HasFlag(req.Modes, abi.ModeNull))
}

func TestCloseAndQuit(t *testing.T) {
	s := stdio.New(strings.NewReader(""), &bytes.Buffer{})
	req := openShim(t, s)

	// close releases the request, not the device
	require.Equal(t, abi.Done, s.Device().Do(abi.CmdClose, req))
	assert.False(t, abi.HasFlag(req.Flags, abi.FlagOpen))
	assert.True(t, abi.HasFlag(s.Device().Flags, abi.DevOpen))

	// closing again is harmless
	require.Equal(t, abi.Done, s.Device().Do(abi.CmdClose, req))
	assert.Zero(t, req.Error)

	// quit shuts the device down
	require.Equal(t, abi.Done, s.Device().Do(abi.CmdQuit, &abi.Request{Device: abi.DeviceStdio}))
	assert.False(t, abi.HasFlag(s.Device().Flags, abi.DevOpen))
}

func TestWrite(t *testing.T) {
	var out bytes.Buffer
	s := stdio.New(strings.NewReader(""), &out)
	modes := openShim(t, s).Modes

	req := &abi.Request{Device: abi.DeviceStdio, Modes: modes, Data: []byte("hello")}
	require.Equal(t, abi.Done, s.Device().Do(abi.CmdWrite, req))
	assert.Equal(t, 5, req.Actual)
	assert.Equal(t, "hello", out.String())

	// the flush flag is accepted and ignored
	flushed := &abi.Request{Device: abi.DeviceStdio, Modes: modes, Data: []byte(" there")}
	flushed.Flags = abi.SetFlag(flushed.Flags, abi.FlagFlush)
	require.Equal(t, abi.Done, s.Device().Do(abi.CmdWrite, flushed))
	assert.Equal(t, 6, flushed.Actual)
	assert.Equal(t, "hello there", out.String())
}

func TestWriteNull(t *testing.T) {
	var out bytes.Buffer
	s := stdio.New(strings.NewReader(""), &out)
	s.Null()
	modes := openShim(t, s).Modes

	req := &abi.Request{Device: abi.DeviceStdio, Modes: modes, Data: []byte("hello")}
	require.Equal(t, abi.Done, s.Device().Do(abi.CmdWrite, req))
	assert.Equal(t, 5, req.Actual, "a null write reports the full length")
	assert.Zero(t, out.Len())
}

func TestWriteStreamError(t *testing.T) {
	s := stdio.New(strings.NewReader(""), failStream{})
	modes := openShim(t, s).Modes

	req := &abi.Request{Device: abi.DeviceStdio, Modes: modes, Data: []byte("hello")}
	require.Equal(t, abi.Failed, s.Device().Do(abi.CmdWrite, req))
	assert.EqualValues(t, 1020, req.Error)
	assert.Zero(t, req.Actual, "a failed write reports no partial length")
}

func TestRead(t *testing.T) {
	cases := []struct {
		desc   string
		in     string
		buf    int
		actual int
	}{
		{"fills the buffer", "hello world", 5, 5},
		{"short read", "hi", 8, 2},
		{"empty buffer", "hi", 0, 0},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			s := stdio.New(strings.NewReader(c.in), &bytes.Buffer{})
			modes := openShim(t, s).Modes

			req := &abi.Request{Device: abi.DeviceStdio, Modes: modes, Data: make([]byte, c.buf)}
			require.Equal(t, abi.Done, s.Device().Do(abi.CmdRead, req))
			assert.Equal(t, c.actual, req.Actual)
			assert.Equal(t, c.in[:c.actual], string(req.Data[:req.Actual]))
		})
	}
}

func TestReadStreamError(t *testing.T) {
	for _, c := range []struct {
		desc string
		in   io.Reader
	}{
		{"failing stream", failStream{}},
		{"exhausted stream", strings.NewReader("")},
	} {
		t.Run(c.desc, func(t *testing.T) {
			s := stdio.New(c.in, &bytes.Buffer{})
			modes := openShim(t, s).Modes

			req := &abi.Request{Device: abi.DeviceStdio, Modes: modes, Data: make([]byte, 8)}
			require.Equal(t, abi.Failed, s.Device().Do(abi.CmdRead, req))
			assert.EqualValues(t, 1020, req.Error)
		})
	}
}

func TestReadNull(t *testing.T) {
	s := stdio.New(strings.NewReader("hello"), &bytes.Buffer{})
	s.Null()
	modes := openShim(t, s).Modes

	req := &abi.Request{Device: abi.DeviceStdio, Modes: modes, Data: make([]byte, 8)}
	require.Equal(t, abi.Done, s.Device().Do(abi.CmdRead, req))
	assert.Zero(t, req.Actual)
	assert.Equal(t, make([]byte, 8), req.Data, "a null read leaves the buffer untouched")
}

func TestEchoUnsupported(t *testing.T) {
	s := stdio.New(strings.NewReader(""), &bytes.Buffer{})
	openShim(t, s)

	req := &abi.Request{Device: abi.DeviceStdio}
	require.Equal(t, abi.Failed, s.Device().Do(abi.CmdCreate, req))
	assert.EqualValues(t, 1021, req.Error)
}

func TestUnimplementedCommand(t *testing.T) {
	s := stdio.New(strings.NewReader(""), &bytes.Buffer{})

	req := &abi.Request{Device: abi.DeviceStdio}
	require.Equal(t, abi.Failed, s.Device().Do(abi.CmdPoll, req))
	assert.Equal(t, abi.CodeNoCommand, req.Error)
}
