package egfx

import (
	"testing"

	"github.com/lamco/wayland-rdp-server/internal/profile"
)

func drain(t *testing.T, ch *Channel, n int) []OutboundPDU {
	t.Helper()
	out := make([]OutboundPDU, 0, n)
	for i := 0; i < n; i++ {
		select {
		case pdu, ok := <-ch.Outbound():
			if !ok {
				t.Fatalf("outbound channel closed early at %d/%d", i, n)
			}
			out = append(out, pdu)
		default:
			t.Fatalf("expected %d PDUs, only got %d", n, i)
		}
	}
	return out
}

func TestCapabilitiesAdvertisePrefersV81AVC420(t *testing.T) {
	c := NewChannel(1, 1920, 1080, profile.DefaultProfile())

	var readyW, readyH uint16
	c.OnReady(func(surfaceID uint16, w, h uint16) { readyW, readyH = w, h })

	sets := []CapabilitySet{
		{Version: CapsVersion104},
		{Version: CapsVersion81, Flags: CapsFlagAVC420Enabled},
	}
	if err := c.HandleCapabilitiesAdvertise(sets); err != nil {
		t.Fatalf("HandleCapabilitiesAdvertise: %v", err)
	}
	if c.State() != StateReady {
		t.Fatalf("state = %v, want Ready", c.State())
	}
	if readyW != 1920 || readyH != 1080 {
		t.Fatalf("onReady dims = %dx%d, want 1920x1080", readyW, readyH)
	}

	pdus := drain(t, c, 3)
	confirm, ok := pdus[0].(CapabilitiesConfirmPDU)
	if !ok || confirm.Selected.Version != CapsVersion81 {
		t.Fatalf("expected CapabilitiesConfirm(V8.1), got %#v", pdus[0])
	}
	if _, ok := pdus[1].(CreateSurfacePDU); !ok {
		t.Fatalf("expected CreateSurface, got %#v", pdus[1])
	}
	if _, ok := pdus[2].(MapSurfaceToOutputPDU); !ok {
		t.Fatalf("expected MapSurfaceToOutput, got %#v", pdus[2])
	}
}

func TestCapabilitiesAdvertiseFallsBackToFirst(t *testing.T) {
	c := NewChannel(1, 640, 480, profile.DefaultProfile())
	sets := []CapabilitySet{{Version: 0x00070000}}
	if err := c.HandleCapabilitiesAdvertise(sets); err != nil {
		t.Fatalf("HandleCapabilitiesAdvertise: %v", err)
	}
	pdus := drain(t, c, 3)
	confirm, ok := pdus[0].(CapabilitiesConfirmPDU)
	if !ok || confirm.Selected.Version != 0x00070000 {
		t.Fatalf("expected CapabilitiesConfirm with the first advertised set, got %#v", pdus[0])
	}
}

func mustReady(t *testing.T, c *Channel) {
	t.Helper()
	if err := c.HandleCapabilitiesAdvertise([]CapabilitySet{{Version: CapsVersion104}}); err != nil {
		t.Fatalf("HandleCapabilitiesAdvertise: %v", err)
	}
	drain(t, c, 3)
}

func TestQueueFrameBackpressure(t *testing.T) {
	c := NewChannel(1, 640, 480, profile.DefaultProfile())
	mustReady(t, c)

	for i := 0; i < MaxFramesInFlight; i++ {
		id, ok := c.QueueFrame([]byte{1, 2, 3}, CodecAvc420, uint64(i*10))
		if !ok {
			t.Fatalf("expected frame %d to queue", i)
		}
		drain(t, c, 3)
		if id != uint32(i+1) {
			t.Fatalf("frame id = %d, want %d", id, i+1)
		}
	}

	if _, ok := c.QueueFrame([]byte{4}, CodecAvc420, 999); ok {
		t.Fatal("expected backpressure once MaxFramesInFlight reached")
	}
}

func TestFrameAcknowledgeDrainsPending(t *testing.T) {
	c := NewChannel(1, 640, 480, profile.DefaultProfile())
	mustReady(t, c)

	for i := 0; i < 3; i++ {
		c.QueueFrame([]byte{1}, CodecAvc420, uint64(i))
		drain(t, c, 3)
	}

	var acked uint32
	c.OnFrameAck(func(frameID uint32) { acked = frameID })
	c.HandleFrameAcknowledge(2)

	if acked != 2 {
		t.Fatalf("onFrameAck called with %d, want 2", acked)
	}
	if _, ok := c.QueueFrame([]byte{9}, CodecAvc420, 100); !ok {
		t.Fatal("expected queue to accept a frame after ack freed capacity")
	}
}

func TestQuirkForcesAVC420(t *testing.T) {
	p := profile.DefaultProfile()
	p.Quirks = append(p.Quirks, profile.QuirkAvc444Unreliable)

	c := NewChannel(1, 640, 480, p)
	mustReady(t, c)

	c.QueueFrame([]byte{1}, CodecAvc444, 0)
	pdus := drain(t, c, 3)
	wire, ok := pdus[1].(WireToSurface1PDU)
	if !ok {
		t.Fatalf("expected WireToSurface1, got %#v", pdus[1])
	}
	if wire.Codec != CodecAvc420 {
		t.Fatalf("codec = %v, want CodecAvc420 (forced by quirk)", wire.Codec)
	}
}

func TestCloseIsIdempotentAndNoOpsQueueFrame(t *testing.T) {
	c := NewChannel(1, 640, 480, profile.DefaultProfile())
	mustReady(t, c)

	var closed bool
	c.OnClose(func() { closed = true })
	c.Close()
	c.Close()

	if !closed {
		t.Fatal("expected onClose to fire")
	}
	if c.State() != StateClosed {
		t.Fatalf("state = %v, want Closed", c.State())
	}
	if _, ok := c.QueueFrame([]byte{1}, CodecAvc420, 0); ok {
		t.Fatal("expected QueueFrame to no-op once closed")
	}
}

func TestEncodeTimestamp(t *testing.T) {
	ts := EncodeTimestamp(3*3600000 + 4*60000 + 5*1000 + 678)
	if ts.Hours != 3 || ts.Minutes != 4 || ts.Seconds != 5 || ts.Milliseconds != 678 {
		t.Fatalf("EncodeTimestamp = %+v, want {3 4 5 678}", ts)
	}
}
