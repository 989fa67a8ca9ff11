package framing

import "fmt"

// OffsetEntry locates one live frame in the raw stacks. The header record is
// at Offset; the frame's slots follow it.
type OffsetEntry struct {
	Offset    int
	SlotCount int
}

// BuildOffsetTable walks the frame records of a primitive stack, oldest frame
// first, and stops at the first record with no slots.
func BuildOffsetTable(prims []uint64) ([]OffsetEntry, error) {
	var table []OffsetEntry
	idx := 0
	for {
		if idx >= len(prims) {
			return nil, fmt.Errorf(
				"%w: frame record at %d is past the end of a primitive stack of length %d",
				ErrCorruptEncoding, idx, len(prims),
			)
		}
		slots := Record(prims[idx]).SlotCount()
		if slots == 0 {
			return table, nil
		}
		table = append(table, OffsetEntry{Offset: idx, SlotCount: slots})
		// Skip the header as well as its slots.
		idx += slots + 1
	}
}
