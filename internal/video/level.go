package video

// H264Level is an ITU-T H.264 Annex A level identifier, ordered so that
// L1_0 < L1_1 < ... < L5_2.
type H264Level int

const (
	L1_0 H264Level = 10
	L1_1 H264Level = 11
	L1_2 H264Level = 12
	L1_3 H264Level = 13
	L2_0 H264Level = 20
	L2_1 H264Level = 21
	L2_2 H264Level = 22
	L3_0 H264Level = 30
	L3_1 H264Level = 31
	L3_2 H264Level = 32
	L4_0 H264Level = 40
	L4_1 H264Level = 41
	L4_2 H264Level = 42
	L5_0 H264Level = 50
	L5_1 H264Level = 51
	L5_2 H264Level = 52
)

var levelsAscending = []H264Level{
	L1_0, L1_1, L1_2, L1_3, L2_0, L2_1, L2_2, L3_0, L3_1, L3_2,
	L4_0, L4_1, L4_2, L5_0, L5_1, L5_2,
}

var maxMBsPerSecond = map[H264Level]int{
	L1_0: 1_485, L1_1: 3_000, L1_2: 6_000, L1_3: 11_880,
	L2_0: 11_880, L2_1: 19_800, L2_2: 20_250,
	L3_0: 40_500, L3_1: 108_000, L3_2: 108_000,
	L4_0: 245_760, L4_1: 245_760, L4_2: 522_240,
	L5_0: 589_824, L5_1: 983_040, L5_2: 2_073_600,
}

var maxFrameMBs = map[H264Level]int{
	L1_0: 99,
	L1_1: 396, L1_2: 396, L1_3: 396, L2_0: 396, L2_1: 396,
	L2_2: 1_620, L3_0: 1_620,
	L3_1: 3_600,
	L3_2: 5_120,
	L4_0: 8_192, L4_1: 8_192,
	L4_2: 8_704,
	L5_0: 22_080,
	L5_1: 36_864, L5_2: 36_864,
}

var maxBitrateBps = map[H264Level]int{
	L1_0: 64_000, L1_1: 192_000, L1_2: 384_000, L1_3: 768_000,
	L2_0: 2_000_000, L2_1: 4_000_000, L2_2: 4_000_000,
	L3_0: 10_000_000, L3_1: 14_000_000, L3_2: 20_000_000,
	L4_0: 25_000_000, L4_1: 50_000_000, L4_2: 50_000_000,
	L5_0: 135_000_000, L5_1: 240_000_000, L5_2: 240_000_000,
}

// MaxMacroblocksPerSecond returns the level's nominal MB/s ceiling, before
// the Level 3.2 small-frame special case.
func (l H264Level) MaxMacroblocksPerSecond() int { return maxMBsPerSecond[l] }

// MaxFrameMacroblocks returns the level's maximum macroblocks per frame.
func (l H264Level) MaxFrameMacroblocks() int { return maxFrameMBs[l] }

// MaxBitrateBps returns the level's maximum bitrate for Baseline/Main profile.
func (l H264Level) MaxBitrateBps() int { return maxBitrateBps[l] }

// EffectiveMaxMBsPerSecond applies the Level 3.2 special case: levels whose
// frame is small enough (<=1620 MBs) get an elevated MB/s ceiling.
func (l H264Level) EffectiveMaxMBsPerSecond(frameMBs int) int {
	if l == L3_2 && frameMBs <= 1_620 {
		return 216_000
	}
	return l.MaxMacroblocksPerSecond()
}

func (l H264Level) String() string {
	switch l {
	case L1_0:
		return "1.0"
	case L1_1:
		return "1.1"
	case L1_2:
		return "1.2"
	case L1_3:
		return "1.3"
	case L2_0:
		return "2.0"
	case L2_1:
		return "2.1"
	case L2_2:
		return "2.2"
	case L3_0:
		return "3.0"
	case L3_1:
		return "3.1"
	case L3_2:
		return "3.2"
	case L4_0:
		return "4.0"
	case L4_1:
		return "4.1"
	case L4_2:
		return "4.2"
	case L5_0:
		return "5.0"
	case L5_1:
		return "5.1"
	case L5_2:
		return "5.2"
	default:
		return "unknown"
	}
}

// MacroblockCount computes ceil(w/16) * ceil(h/16).
func MacroblockCount(width, height int) int {
	return ((width + 15) / 16) * ((height + 15) / 16)
}

// SelectLevel returns the minimum H.264 level satisfying both the
// frame-macroblock limit and the required macroblocks/second for
// (width, height, fps). If no level fits, the highest level is returned
// and the caller is expected to log a warning.
func SelectLevel(width, height int, fps float64) H264Level {
	mbs := MacroblockCount(width, height)
	required := float64(mbs) * fps

	for _, level := range levelsAscending {
		if mbs > level.MaxFrameMacroblocks() {
			continue
		}
		if required <= float64(level.EffectiveMaxMBsPerSecond(mbs)) {
			return level
		}
	}
	return L5_2
}

// MaxFPSForLevel returns the maximum fps the level supports at this
// resolution's macroblock count.
func MaxFPSForLevel(width, height int, level H264Level) float64 {
	mbs := MacroblockCount(width, height)
	if mbs == 0 {
		return 0
	}
	return float64(level.EffectiveMaxMBsPerSecond(mbs)) / float64(mbs)
}

// AdjustFPS clamps fps to what level supports at this resolution.
func AdjustFPS(width, height int, fps float64, level H264Level) float64 {
	maxFPS := MaxFPSForLevel(width, height, level)
	if fps <= maxFPS {
		return fps
	}
	return maxFPS
}
