package tower

import "testing"

func TestEmptyTower(t *testing.T) {
	if Empty.Height() != 0 {
		t.Fatalf("empty tower height: got %d", Empty.Height())
	}
	if !Empty.WellFormed(3) {
		t.Fatalf("empty tower must be well formed")
	}
}

func TestAssignRangeAndUnpack(t *testing.T) {
	tw := Empty.AssignRange([]uint8{0, 1, 2}, 0, 3)
	for i, want := range []uint8{0, 1, 2} {
		if got := tw.Unpack(i); got != want {
			t.Fatalf("slot %d: got %d want %d", i, got, want)
		}
	}
	if tw.Unpack(3) != Sentinel {
		t.Fatalf("slot above height must stay sentinel")
	}
	if tw.Height() != 3 {
		t.Fatalf("height: got %d want 3", tw.Height())
	}

	// Append on top without disturbing existing slots.
	tw2 := tw.AssignRange([]uint8{2, 2}, 3, 2)
	if tw2.Height() != 5 {
		t.Fatalf("height after append: got %d want 5", tw2.Height())
	}
	if tw2.Unpack(1) != 1 {
		t.Fatalf("existing slot clobbered")
	}
}

func TestAssignRangeBounds(t *testing.T) {
	tw := Empty.AssignRange([]uint8{0}, MaxHeight, 1)
	if tw != Empty {
		t.Fatalf("out-of-range assign must be a no-op")
	}
	tw = Empty.AssignRange([]uint8{0, 1}, 15, 2)
	if tw != Empty {
		t.Fatalf("overflowing assign must be a no-op")
	}
}

func TestWellFormedRejectsGaps(t *testing.T) {
	// Slot 0 empty, slot 1 filled: a gap.
	gap := Empty.AssignRange([]uint8{1}, 1, 1)
	if gap.WellFormed(3) {
		t.Fatalf("gap tower must not be well formed")
	}
	bad := Empty.AssignRange([]uint8{7}, 0, 1)
	if bad.WellFormed(3) {
		t.Fatalf("out-of-range kind must not be well formed")
	}
}

func TestScanBlocksTruncatesAtGap(t *testing.T) {
	got := ScanBlocks([]byte{0, 1, 2, Sentinel, 0, 1, 2}, 3)
	if len(got) != 3 {
		t.Fatalf("scan length: got %d want 3", len(got))
	}
	for i, want := range []uint8{0, 1, 2} {
		if got[i] != want {
			t.Fatalf("scan slot %d: got %d want %d", i, got[i], want)
		}
	}
	if n := len(ScanBlocks([]byte{Sentinel, 0}, 3)); n != 0 {
		t.Fatalf("leading sentinel must truncate everything, got %d", n)
	}
	if n := len(ScanBlocks(nil, 3)); n != 0 {
		t.Fatalf("nil fragment must scan to zero blocks, got %d", n)
	}
}
