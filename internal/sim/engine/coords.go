package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Canonical axial hex adjacency. Exactly one 6-neighbor convention exists in
// this codebase; every neighbor lookup recomputes these offsets rather than
// storing pointers.
var neighborOffsets = [NumNeighbors]Coord{
	{+1, 0}, {-1, 0}, {0, +1}, {0, -1}, {+1, -1}, {-1, +1},
}

func neighborsOf(c Coord) [NumNeighbors]Coord {
	var out [NumNeighbors]Coord
	for i, d := range neighborOffsets {
		out[i] = Coord{c.X + d.X, c.Y + d.Y}
	}
	return out
}

// tileID derives the canonical tile identity from the coordinate and a
// domain separator (the instance identity), so IDs are stable, independent
// of call order, and cannot collide with other hashed data.
func tileID(instanceID string, c Coord) string {
	h := sha256.New()
	h.Write([]byte("hexopolis/tile|"))
	h.Write([]byte(instanceID))
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(int32(c.X)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(int32(c.Y)))
	h.Write(buf[:])
	return hex.EncodeToString(h.Sum(nil))[:16]
}
