// Package tower packs a tile's block stack into a single uint64: sixteen
// 4-bit slots, bottom-first, with 0xF as the empty sentinel.
package tower

const (
	MaxHeight = 16

	slotBits = 4
	slotMask = 0xF

	// Sentinel marks an empty slot. Valid block kinds are small values
	// strictly below the sentinel.
	Sentinel = 0xF
)

type Tower uint64

// Empty is a tower with every slot set to the sentinel.
const Empty Tower = ^Tower(0)

// Unpack returns the raw slot value at index (0 = bottom).
func (t Tower) Unpack(index int) uint8 {
	if index < 0 || index >= MaxHeight {
		return Sentinel
	}
	return uint8((t >> (slotBits * uint(index))) & slotMask)
}

// Height counts filled slots from the bottom up to the first sentinel.
func (t Tower) Height() int {
	for i := 0; i < MaxHeight; i++ {
		if t.Unpack(i) == Sentinel {
			return i
		}
	}
	return MaxHeight
}

// AssignRange overwrites count slots starting at start with values from
// blocks, leaving every other slot untouched. It is a masked bitwise replace
// on the packed representation.
func (t Tower) AssignRange(blocks []uint8, start, count int) Tower {
	if start < 0 || count <= 0 || start+count > MaxHeight || count > len(blocks) {
		return t
	}
	var mask, repl Tower
	for i := 0; i < count; i++ {
		shift := slotBits * uint(start+i)
		mask |= Tower(slotMask) << shift
		repl |= Tower(blocks[i]&slotMask) << shift
	}
	return (t &^ mask) | repl
}

// WellFormed reports whether every filled slot holds a kind below kinds and
// no filled slot appears above an empty one (the "no gaps" rule).
func (t Tower) WellFormed(kinds int) bool {
	sawEmpty := false
	for i := 0; i < MaxHeight; i++ {
		v := t.Unpack(i)
		if v == Sentinel {
			sawEmpty = true
			continue
		}
		if sawEmpty || int(v) >= kinds {
			return false
		}
	}
	return true
}

// ScanBlocks decodes a caller-supplied block fragment. Scanning stops at the
// first sentinel or out-of-range byte; anything after a gap is silently
// ignored. That truncation is intentional behavior, not an error.
func ScanBlocks(raw []byte, kinds int) []uint8 {
	out := make([]uint8, 0, len(raw))
	for _, b := range raw {
		if int(b) >= kinds {
			break
		}
		out = append(out, b)
	}
	return out
}
