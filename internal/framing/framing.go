// Package framing decodes the packed frame records that a fiber keeps in its
// primitive stack. Every live frame is introduced by a 64-bit header record
// followed by one word per captured slot; a header with a zero slot count
// marks the end of the live region.
package framing

import (
	"errors"
	"fmt"
)

// ErrCorruptEncoding is returned when the primitive stack or the object stack
// does not match the layout described by its frame records. It indicates a
// version skew between the runtime and this package and is never transient.
var ErrCorruptEncoding = errors.New("corrupt stack encoding")

// Field layout of a frame header record, counted from the most significant
// bit.
const (
	SlotCountOffset = 14
	SlotCountLength = 16

	// MaxSlots is the largest slot count a header can describe.
	MaxSlots = 1<<SlotCountLength - 1
)

// Bits returns the unsigned value held in the length bits of word that start
// offset bits from the most significant end, right-aligned.
//
// offset+length must not exceed 64.
func Bits(word uint64, offset, length uint) uint64 {
	if offset+length > 64 {
		panic(fmt.Sprintf("framing: bit field [%d, %d) exceeds 64 bits", offset, offset+length))
	}
	if length == 0 {
		return 0
	}
	return (word << offset) >> (64 - length)
}

// SetBits returns word with the field described by offset and length replaced
// by the low length bits of value. It is the inverse of Bits.
func SetBits(word uint64, offset, length uint, value uint64) uint64 {
	if offset+length > 64 {
		panic(fmt.Sprintf("framing: bit field [%d, %d) exceeds 64 bits", offset, offset+length))
	}
	if length == 0 {
		return word
	}
	shift := 64 - offset - length
	mask := (^uint64(0) >> (64 - length)) << shift
	return word&^mask | (value<<shift)&mask
}

// Record is a frame header record.
type Record uint64

// SlotCount returns the number of object slots owned by the frame.
func (r Record) SlotCount() int {
	return int(Bits(uint64(r), SlotCountOffset, SlotCountLength))
}

// MakeRecord encodes a frame header for a frame with the given number of
// slots.
func MakeRecord(slots int) Record {
	if slots < 0 || slots > MaxSlots {
		panic(fmt.Sprintf("framing: slot count %d out of range", slots))
	}
	return Record(SetBits(0, SlotCountOffset, SlotCountLength, uint64(slots)))
}
