package adaptive

import "testing"

func TestParseLatencyMode(t *testing.T) {
	cases := []struct {
		in   string
		want LatencyMode
	}{
		{"interactive", LatencyInteractive},
		{"balanced", LatencyBalanced},
		{"quality", LatencyQuality},
		{"fast", LatencyInteractive},
		{"slow", LatencyQuality},
		{"default", LatencyBalanced},
	}
	for _, c := range cases {
		got, err := ParseLatencyMode(c.in)
		if err != nil {
			t.Fatalf("ParseLatencyMode(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseLatencyMode(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseLatencyMode_Unknown(t *testing.T) {
	if _, err := ParseLatencyMode("bogus"); err == nil {
		t.Fatalf("expected an error for an unknown mode")
	}
}

func TestGovernor_InteractiveImmediateEncode(t *testing.T) {
	g := NewGovernor(LatencyInteractive)
	if decision := g.ShouldEncodeFrame(0.01); decision != EncodeNow {
		t.Fatalf("expected EncodeNow, got %v", decision)
	}
}

func TestGovernor_BalancedThreshold(t *testing.T) {
	g := NewGovernor(LatencyBalanced)

	if decision := g.ShouldEncodeFrame(0.01); decision != Skip {
		t.Fatalf("expected Skip below threshold, got %v", decision)
	}
	if decision := g.ShouldEncodeFrame(0.02); !decision.ShouldEncode() {
		t.Fatalf("expected an encode decision once threshold is met, got %v", decision)
	}
}

func TestGovernor_QualityBatching(t *testing.T) {
	g := NewGovernor(LatencyQuality)

	if decision := g.ShouldEncodeFrame(0.01); decision != WaitForMore {
		t.Fatalf("expected WaitForMore, got %v", decision)
	}
	if decision := g.ShouldEncodeFrame(0.02); decision != WaitForMore {
		t.Fatalf("expected WaitForMore, got %v", decision)
	}
	if decision := g.ShouldEncodeFrame(0.03); decision != EncodeBatch {
		t.Fatalf("expected EncodeBatch once accumulated damage crosses threshold, got %v", decision)
	}
}

func TestEncodingDecision_ShouldEncode(t *testing.T) {
	encode := []EncodingDecision{EncodeNow, EncodeKeepalive, EncodeBatch, EncodeTimeout}
	for _, d := range encode {
		if !d.ShouldEncode() {
			t.Errorf("expected %v.ShouldEncode() == true", d)
		}
	}
	noEncode := []EncodingDecision{Skip, WaitForMore}
	for _, d := range noEncode {
		if d.ShouldEncode() {
			t.Errorf("expected %v.ShouldEncode() == false", d)
		}
	}
}

func TestGovernor_AdaptiveFPSModeSetting(t *testing.T) {
	if NewGovernor(LatencyInteractive).ShouldUseAdaptiveFPS() {
		t.Errorf("expected Interactive mode to disable adaptive FPS")
	}
	if !NewGovernor(LatencyBalanced).ShouldUseAdaptiveFPS() {
		t.Errorf("expected Balanced mode to enable adaptive FPS")
	}
}

func TestGovernor_SetMode_ResetsAccumulator(t *testing.T) {
	g := NewGovernor(LatencyQuality)
	g.ShouldEncodeFrame(0.01)
	g.SetMode(LatencyBalanced)
	if g.accumulator.pendingDamage != 0 {
		t.Fatalf("expected SetMode to reset the accumulator")
	}
}

func TestGovernor_RecordEncodeTiming(t *testing.T) {
	g := NewGovernor(LatencyBalanced)
	g.RecordEncodeTiming(10, 5)
	if g.Metrics().TotalLatencyAvgMs <= 0 {
		t.Fatalf("expected a positive rolling average after recording timing")
	}
}
