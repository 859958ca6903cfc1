package abi

import "golang.org/x/exp/constraints"

// Mode and flag fields are bit sets indexed from 0, manipulated through
// the helpers below rather than hand-written masks.

// Request mode bits (Request.Modes).
const (
	// ModeNull marks the null device: reads return nothing and writes
	// are discarded.
	ModeNull uint = iota
)

// Request flag bits (Request.Flags).
const (
	// FlagOpen marks a request referring to an open device.
	FlagOpen uint = iota
	// FlagFlush asks for output to be flushed after a write.
	FlagFlush
)

// Device flag bits (Device.Flags).
const (
	// DevInit marks an initialized device.
	DevInit uint = iota
	// DevOpen marks an opened device.
	DevOpen
)

// HasFlag reports whether bit n of flags is set.
func HasFlag[T constraints.Unsigned](flags T, n uint) bool {
	return flags&(1<<n) != 0
}

// SetFlag returns flags with bit n set.
func SetFlag[T constraints.Unsigned](flags T, n uint) T {
	return flags | 1<<n
}

// ClearFlag returns flags with bit n cleared.
func ClearFlag[T constraints.Unsigned](flags T, n uint) T {
	return flags &^ (1 << n)
}
