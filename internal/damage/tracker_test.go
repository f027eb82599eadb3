package damage

import "testing"

func solidFrame(w, h int, b, g, r byte) []byte {
	pix := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		pix[i*4+0] = b
		pix[i*4+1] = g
		pix[i*4+2] = r
		pix[i*4+3] = 255
	}
	return pix
}

func TestTileTrackerFirstFrameFullyDamaged(t *testing.T) {
	tr := NewTileTracker(32, 32)
	ratio := tr.DamageRatio(solidFrame(32, 32, 0, 0, 0))
	if ratio != 1.0 {
		t.Fatalf("ratio = %v, want 1.0 on first frame", ratio)
	}
	if len(tr.TakeRegions()) != 4 {
		t.Fatalf("expected 4 tiles (2x2 of 16px) damaged, got %d", len(tr.TakeRegions()))
	}
}

func TestTileTrackerUnchangedFrame(t *testing.T) {
	tr := NewTileTracker(32, 32)
	frame := solidFrame(32, 32, 10, 20, 30)
	tr.DamageRatio(frame)
	ratio := tr.DamageRatio(frame)
	if ratio != 0 {
		t.Fatalf("ratio = %v, want 0 for identical frame", ratio)
	}
}

func TestTileTrackerPartialChange(t *testing.T) {
	tr := NewTileTracker(32, 32)
	frame := solidFrame(32, 32, 0, 0, 0)
	tr.DamageRatio(frame)

	// Change only the top-left tile.
	for y := 0; y < TileSize; y++ {
		for x := 0; x < TileSize; x++ {
			off := (y*32 + x) * 4
			frame[off] = 255
		}
	}
	ratio := tr.DamageRatio(frame)
	if ratio != 0.25 {
		t.Fatalf("ratio = %v, want 0.25 (1 of 4 tiles)", ratio)
	}
}

func TestTileTrackerMarkAll(t *testing.T) {
	tr := NewTileTracker(32, 32)
	frame := solidFrame(32, 32, 1, 1, 1)
	tr.DamageRatio(frame)
	if ratio := tr.DamageRatio(frame); ratio != 0 {
		t.Fatalf("ratio = %v, want 0", ratio)
	}
	tr.MarkAll()
	if ratio := tr.DamageRatio(frame); ratio != 1.0 {
		t.Fatalf("ratio after MarkAll = %v, want 1.0", ratio)
	}
}

func TestTileTrackerNonMultipleDimensions(t *testing.T) {
	tr := NewTileTracker(20, 20)
	ratio := tr.DamageRatio(solidFrame(20, 20, 5, 5, 5))
	if ratio != 1.0 {
		t.Fatalf("ratio = %v, want 1.0", ratio)
	}
	regs := tr.TakeRegions()
	for _, r := range regs {
		if r.X+r.W > 20 || r.Y+r.H > 20 {
			t.Fatalf("region %+v exceeds frame bounds", r)
		}
	}
}
