package video

import (
	"bytes"
	"testing"
)

func avcNAL(nal ...byte) []byte {
	var lenPrefix [4]byte
	n := uint32(len(nal))
	lenPrefix[0] = byte(n >> 24)
	lenPrefix[1] = byte(n >> 16)
	lenPrefix[2] = byte(n >> 8)
	lenPrefix[3] = byte(n)
	out := append([]byte{}, lenPrefix[:]...)
	return append(out, nal...)
}

func TestExtractSPSPPS_Present(t *testing.T) {
	sps := avcNAL(0x67, 0x42, 0x00, 0x1e)
	pps := avcNAL(0x68, 0xce, 0x3c, 0x80)
	idr := avcNAL(0x65, 0x88, 0x84)
	data := append(append(append([]byte{}, sps...), pps...), idr...)

	got := extractSPSPPS(data)
	want := append(append([]byte{}, sps...), pps...)
	if !bytes.Equal(got, want) {
		t.Fatalf("extractSPSPPS = %v, want %v", got, want)
	}
}

func TestExtractSPSPPS_Absent(t *testing.T) {
	idr := avcNAL(0x65, 0x88, 0x84, 0x00)
	if got := extractSPSPPS(idr); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestStripSPSPPS_RemovesOnlySPSAndPPS(t *testing.T) {
	sps := avcNAL(0x67, 0x42)
	pps := avcNAL(0x68, 0xce)
	idr := avcNAL(0x65, 0x88, 0x84)
	data := append(append(append([]byte{}, sps...), pps...), idr...)

	got := stripSPSPPS(data)
	if !bytes.Equal(got, idr) {
		t.Fatalf("stripSPSPPS = %v, want %v", got, idr)
	}
}

func TestHandleSPSPPS_CachesOnKeyframeAndPrependsOnPFrame(t *testing.T) {
	sps := avcNAL(0x67, 0x42)
	pps := avcNAL(0x68, 0xce)
	idr := avcNAL(0x65, 0x88, 0x84)
	keyframeData := append(append(append([]byte{}, sps...), pps...), idr...)

	var cache []byte
	out := handleSPSPPS(&cache, keyframeData, true)
	if !bytes.Equal(out, keyframeData) {
		t.Fatalf("keyframe data should pass through unchanged")
	}
	if cache == nil {
		t.Fatalf("expected SPS/PPS to be cached from keyframe")
	}

	pFrame := avcNAL(0x61, 0x9a)
	out = handleSPSPPS(&cache, pFrame, false)
	want := append(append([]byte{}, cache...), pFrame...)
	if !bytes.Equal(out, want) {
		t.Fatalf("P-frame should have cached SPS/PPS prepended")
	}
}

func TestShouldSendAux_AlwaysSendsWhenOmissionDisabled(t *testing.T) {
	e := &Avc444Encoder{enableAuxOmission: false}
	aux := NewYUV420Frame(4, 4)
	if !e.shouldSendAux(aux) {
		t.Fatalf("expected aux send when omission disabled")
	}
}

func TestShouldSendAux_FirstFrameAlwaysSent(t *testing.T) {
	e := &Avc444Encoder{enableAuxOmission: true, maxAuxInterval: 30}
	aux := NewYUV420Frame(4, 4)
	if !e.shouldSendAux(aux) {
		t.Fatalf("expected first aux frame to be sent")
	}
}

func TestShouldSendAux_RateLimitedBelowMinInterval(t *testing.T) {
	aux := NewYUV420Frame(4, 4)
	e := &Avc444Encoder{
		enableAuxOmission: true,
		maxAuxInterval:    30,
		hasAuxHash:        true,
		lastAuxHash:       hashYUV420(aux) + 1, // force a content-changed condition
		framesSinceAux:    minAuxInterval - 1,
	}
	if e.shouldSendAux(aux) {
		t.Fatalf("expected aux to be rate-limited below minAuxInterval")
	}
}

func TestShouldSendAux_ForcedRefreshAtMaxInterval(t *testing.T) {
	aux := NewYUV420Frame(4, 4)
	e := &Avc444Encoder{
		enableAuxOmission: true,
		maxAuxInterval:    30,
		hasAuxHash:        true,
		lastAuxHash:       hashYUV420(aux),
		framesSinceAux:    30,
	}
	if !e.shouldSendAux(aux) {
		t.Fatalf("expected forced aux refresh at max interval")
	}
}

func TestShouldSendAux_SkippedWhenUnchanged(t *testing.T) {
	aux := NewYUV420Frame(4, 4)
	e := &Avc444Encoder{
		enableAuxOmission: true,
		maxAuxInterval:    30,
		hasAuxHash:        true,
		lastAuxHash:       hashYUV420(aux),
		framesSinceAux:    minAuxInterval,
	}
	if e.shouldSendAux(aux) {
		t.Fatalf("expected aux to be omitted when content unchanged")
	}
}

func TestShouldSendAux_SentWhenChanged(t *testing.T) {
	aux := NewYUV420Frame(4, 4)
	e := &Avc444Encoder{
		enableAuxOmission: true,
		maxAuxInterval:    30,
		hasAuxHash:        true,
		lastAuxHash:       hashYUV420(aux) + 1,
		framesSinceAux:    minAuxInterval,
	}
	if !e.shouldSendAux(aux) {
		t.Fatalf("expected aux to be sent when content changed")
	}
}

func TestShouldSendAux_ForcedBypassesAllOmissionLogic(t *testing.T) {
	aux := NewYUV420Frame(4, 4)
	e := &Avc444Encoder{
		enableAuxOmission:   true,
		maxAuxInterval:      30,
		hasAuxHash:          true,
		lastAuxHash:         hashYUV420(aux),
		framesSinceAux:      minAuxInterval,
		forceAuxOnNextFrame: true,
	}
	if !e.shouldSendAux(aux) {
		t.Fatalf("expected forced aux send to bypass omission logic")
	}
	if e.forceAuxOnNextFrame {
		t.Fatalf("expected forceAuxOnNextFrame flag to be consumed")
	}
}

func TestHashYUV420_DeterministicForSameContent(t *testing.T) {
	a := NewYUV420Frame(8, 8)
	b := NewYUV420Frame(8, 8)
	for i := range a.Y {
		a.Y[i] = byte(i)
		b.Y[i] = byte(i)
	}
	if hashYUV420(a) != hashYUV420(b) {
		t.Fatalf("expected identical hashes for identical luma content")
	}
}

func TestHashYUV420_DiffersForDifferentContent(t *testing.T) {
	a := NewYUV420Frame(64, 64)
	b := NewYUV420Frame(64, 64)
	for i := range b.Y {
		b.Y[i] = 255
	}
	if hashYUV420(a) == hashYUV420(b) {
		t.Fatalf("expected different hashes for different luma content")
	}
}

func TestClampUint32(t *testing.T) {
	if got := clampUint32(0, 1, 120); got != 1 {
		t.Errorf("clampUint32(0,1,120) = %d, want 1", got)
	}
	if got := clampUint32(200, 1, 120); got != 120 {
		t.Errorf("clampUint32(200,1,120) = %d, want 120", got)
	}
	if got := clampUint32(50, 1, 120); got != 50 {
		t.Errorf("clampUint32(50,1,120) = %d, want 50", got)
	}
}
