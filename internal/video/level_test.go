package video

import "testing"

func TestMacroblockCount(t *testing.T) {
	cases := []struct {
		w, h int
		want int
	}{
		{1280, 720, 3600},
		{1280, 800, 4000},
		{1920, 1080, 8160},
		{3840, 2160, 32400},
	}
	for _, c := range cases {
		if got := MacroblockCount(c.w, c.h); got != c.want {
			t.Errorf("MacroblockCount(%d,%d) = %d, want %d", c.w, c.h, got, c.want)
		}
	}
}

func TestSelectLevel_720p30fps(t *testing.T) {
	level := SelectLevel(1280, 720, 30)
	if level != L3_1 {
		t.Fatalf("SelectLevel(1280,720,30) = %v, want 3.1", level)
	}
	if maxFPS := MaxFPSForLevel(1280, 720, L3_1); maxFPS != 30.0 {
		t.Fatalf("MaxFPSForLevel(1280,720,L3_1) = %v, want 30.0", maxFPS)
	}
}

func TestSelectLevel_1280x800_30fps(t *testing.T) {
	mbs := MacroblockCount(1280, 800)
	if mbs != 4000 {
		t.Fatalf("MacroblockCount(1280,800) = %d, want 4000", mbs)
	}

	if maxFPS := MaxFPSForLevel(1280, 800, L3_2); maxFPS != 27.0 {
		t.Fatalf("MaxFPSForLevel(1280,800,L3_2) = %v, want 27.0", maxFPS)
	}
	if maxFPS := MaxFPSForLevel(1280, 800, L4_0); maxFPS != 61.44 {
		t.Fatalf("MaxFPSForLevel(1280,800,L4_0) = %v, want 61.44", maxFPS)
	}

	level := SelectLevel(1280, 800, 30)
	if level != L4_0 {
		t.Fatalf("SelectLevel(1280,800,30) = %v, want 4.0 (L3.2 rejects 30fps at this frame size)", level)
	}
}

func TestSelectLevel_1080p30fps(t *testing.T) {
	if mbs := MacroblockCount(1920, 1080); mbs != 8160 {
		t.Fatalf("MacroblockCount(1920,1080) = %d, want 8160", mbs)
	}
	level := SelectLevel(1920, 1080, 30)
	if level != L4_0 {
		t.Fatalf("SelectLevel(1920,1080,30) = %v, want 4.0", level)
	}
}

func TestSelectLevel_4K30fps(t *testing.T) {
	if mbs := MacroblockCount(3840, 2160); mbs != 32400 {
		t.Fatalf("MacroblockCount(3840,2160) = %d, want 32400", mbs)
	}
	level := SelectLevel(3840, 2160, 30)
	if level != L5_1 {
		t.Fatalf("SelectLevel(3840,2160,30) = %v, want 5.1", level)
	}
}

func TestAdjustFPS_ClampsToLevel(t *testing.T) {
	got := AdjustFPS(1280, 800, 30, L3_2)
	if got != 27.0 {
		t.Fatalf("AdjustFPS(1280,800,30,L3_2) = %v, want 27.0", got)
	}
}

func TestAdjustFPS_NoClampWhenWithinLimit(t *testing.T) {
	got := AdjustFPS(1280, 720, 25, L3_1)
	if got != 25.0 {
		t.Fatalf("AdjustFPS(1280,720,25,L3_1) = %v, want 25.0 (unchanged)", got)
	}
}

func TestEffectiveMaxMBsPerSecond_L3_2SpecialCase(t *testing.T) {
	if got := L3_2.EffectiveMaxMBsPerSecond(1620); got != 216_000 {
		t.Errorf("EffectiveMaxMBsPerSecond(1620) = %d, want 216000", got)
	}
	if got := L3_2.EffectiveMaxMBsPerSecond(1621); got != 108_000 {
		t.Errorf("EffectiveMaxMBsPerSecond(1621) = %d, want 108000", got)
	}
}

func TestH264Level_String(t *testing.T) {
	cases := map[H264Level]string{
		L1_0: "1.0", L3_1: "3.1", L3_2: "3.2", L4_0: "4.0", L5_1: "5.1", L5_2: "5.2",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", level, got, want)
		}
	}
}
