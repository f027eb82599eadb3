package clipboard

import (
	"testing"
	"time"
)

func TestNoLoopDifferentFormats(t *testing.T) {
	d := New()
	d.RecordFormats([]string{"text/plain"}, SourceLocal)
	if d.WouldCauseLoop([]string{"text/html"}, SourceRDP) {
		t.Fatalf("different formats must not be flagged as a loop")
	}
}

func TestLoopSameFormats(t *testing.T) {
	d := New()
	d.RecordFormats([]string{"text/plain"}, SourceLocal)
	if !d.WouldCauseLoop([]string{"text/plain"}, SourceRDP) {
		t.Fatalf("same formats echoed from the opposite source must be flagged as a loop")
	}
}

func TestNoLoopSameSource(t *testing.T) {
	d := New()
	d.RecordFormats([]string{"text/plain"}, SourceRDP)
	if d.WouldCauseLoop([]string{"text/plain"}, SourceRDP) {
		t.Fatalf("a source seeing its own recent formats again is not a loop")
	}
}

func TestContentHash(t *testing.T) {
	d := New()
	payload := []byte("hello clipboard")
	d.RecordContent(payload, SourceLocal)
	if !d.WouldCauseContentLoop(payload, SourceRDP) {
		t.Fatalf("identical content from the opposite source must be flagged")
	}
	if d.WouldCauseContentLoop([]byte("different"), SourceRDP) {
		t.Fatalf("different content must not be flagged")
	}
}

func TestClearHistory(t *testing.T) {
	d := New()
	d.RecordFormats([]string{"text/plain"}, SourceLocal)
	d.RecordContent([]byte("payload"), SourceLocal)
	d.Clear()
	if d.WouldCauseLoop([]string{"text/plain"}, SourceRDP) {
		t.Fatalf("expected clear to drop format history")
	}
	if d.WouldCauseContentLoop([]byte("payload"), SourceRDP) {
		t.Fatalf("expected clear to drop content history")
	}
}

func TestComputeHash(t *testing.T) {
	a := ComputeHash([]byte("same"))
	b := ComputeHash([]byte("same"))
	if a != b {
		t.Fatalf("ComputeHash must be deterministic for identical input")
	}
	if a == ComputeHash([]byte("different")) {
		t.Fatalf("ComputeHash must differ for different input")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars for a SHA-256 digest, got %d", len(a))
	}
}

func TestRateLimitDisabledByDefault(t *testing.T) {
	d := New()
	d.RecordSync(SourceRDP)
	if d.IsRateLimited(SourceRDP) {
		t.Fatalf("rate limiting must be off unless configured")
	}
}

func TestRateLimitConfig(t *testing.T) {
	d := WithConfig(WithRateLimit(200))
	d.RecordSync(SourceRDP)
	if !d.IsRateLimited(SourceRDP) {
		t.Fatalf("expected sync immediately after RecordSync to be rate-limited")
	}
	if d.IsRateLimited(SourceLocal) {
		t.Fatalf("rate limiting must be tracked per source")
	}
}

func TestRateLimitClear(t *testing.T) {
	d := WithConfig(WithRateLimit(200))
	d.RecordSync(SourceRDP)
	d.Clear()
	if d.IsRateLimited(SourceRDP) {
		t.Fatalf("expected Clear to reset rate-limit timestamps")
	}
}

func TestShouldSkipSyncCombined(t *testing.T) {
	d := WithConfig(WithRateLimit(10_000))
	// Loop case: RDP recently announced these formats, so Local echoing them
	// back now must be skipped by loop detection, independent of rate limiting.
	d.RecordFormats([]string{"text/plain"}, SourceRDP)
	if !d.ShouldSkipSync([]string{"text/plain"}, SourceLocal) {
		t.Fatalf("expected a loop-causing announcement to be skipped")
	}

	// Rate-limit case: a fresh detector has no format history, so loop
	// detection lets everything through, but a single RecordSync on a source
	// makes the next ShouldSkipSync for that source within the window skip.
	d2 := WithConfig(WithRateLimit(10_000))
	d2.RecordSync(SourceRDP)
	if !d2.ShouldSkipSync([]string{"text/plain"}, SourceRDP) {
		t.Fatalf("expected rate limiting to cause a skip even with no loop")
	}
}

func TestCheckHashCollisionRespectsWindow(t *testing.T) {
	d := WithConfig(Config{WindowMs: 1, MaxHistory: 10, EnableContentHashing: true})
	d.RecordFormats([]string{"text/plain"}, SourceLocal)
	time.Sleep(5 * time.Millisecond)
	if d.WouldCauseLoop([]string{"text/plain"}, SourceRDP) {
		t.Fatalf("expected match outside the detection window to not be flagged")
	}
}

func TestMaxHistoryCap(t *testing.T) {
	d := WithConfig(Config{WindowMs: 60_000, MaxHistory: 3, EnableContentHashing: true})
	for i := 0; i < 10; i++ {
		d.RecordFormats([]string{"text/plain"}, SourceLocal)
	}
	if len(d.formatHistory) != 3 {
		t.Fatalf("expected history capped at MaxHistory=3, got %d", len(d.formatHistory))
	}
}

func TestOppositeSource(t *testing.T) {
	if SourceRDP.Opposite() != SourceLocal {
		t.Errorf("expected SourceRDP.Opposite() == SourceLocal")
	}
	if SourceLocal.Opposite() != SourceRDP {
		t.Errorf("expected SourceLocal.Opposite() == SourceRDP")
	}
}
