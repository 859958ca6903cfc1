package wasm

import "encoding/binary"

// requestSize is the size of the device request record the guest
// shares with the host. Layout, little-endian:
//
//	off 0  u8  device
//	off 1  u8  command
//	off 4  u32 modes
//	off 8  u32 flags
//	off 12 u32 error
//	off 16 u32 data pointer
//	off 20 u32 length
//	off 24 u32 actual
const requestSize = 28

type guestRequest struct {
	device  uint8
	command uint8
	modes   uint32
	flags   uint32
	errcode uint32
	data    uint32
	length  uint32
	actual  uint32
}

func decodeRequest(b []byte) guestRequest {
	return guestRequest{
		device:  b[0],
		command: b[1],
		modes:   binary.LittleEndian.Uint32(b[4:]),
		flags:   binary.LittleEndian.Uint32(b[8:]),
		errcode: binary.LittleEndian.Uint32(b[12:]),
		data:    binary.LittleEndian.Uint32(b[16:]),
		length:  binary.LittleEndian.Uint32(b[20:]),
		actual:  binary.LittleEndian.Uint32(b[24:]),
	}
}

func (q guestRequest) encode(b []byte) {
	b[0] = q.device
	b[1] = q.command
	b[2] = 0
	b[3] = 0
	binary.LittleEndian.PutUint32(b[4:], q.modes)
	binary.LittleEndian.PutUint32(b[8:], q.flags)
	binary.LittleEndian.PutUint32(b[12:], q.errcode)
	binary.LittleEndian.PutUint32(b[16:], q.data)
	binary.LittleEndian.PutUint32(b[20:], q.length)
	binary.LittleEndian.PutUint32(b[24:], q.actual)
}
