package video

import (
	"bytes"
	"testing"
)

func TestAnnexBToAVC_4ByteStartCode(t *testing.T) {
	annexB := []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00, 0x1e}
	avc := AnnexBToAVC(annexB)

	if len(avc) != 8 {
		t.Fatalf("len = %d, want 8", len(avc))
	}
	if !bytes.Equal(avc[0:4], []byte{0x00, 0x00, 0x00, 0x04}) {
		t.Errorf("length prefix = %v, want [0 0 0 4]", avc[0:4])
	}
	if !bytes.Equal(avc[4:8], []byte{0x67, 0x42, 0x00, 0x1e}) {
		t.Errorf("NAL data = %v, want unchanged", avc[4:8])
	}
}

func TestAnnexBToAVC_3ByteStartCode(t *testing.T) {
	annexB := []byte{0x00, 0x00, 0x01, 0x68, 0xce, 0x3c, 0x80}
	avc := AnnexBToAVC(annexB)

	if len(avc) != 8 {
		t.Fatalf("len = %d, want 8", len(avc))
	}
	if !bytes.Equal(avc[0:4], []byte{0x00, 0x00, 0x00, 0x04}) {
		t.Errorf("length prefix = %v, want [0 0 0 4]", avc[0:4])
	}
	if !bytes.Equal(avc[4:8], []byte{0x68, 0xce, 0x3c, 0x80}) {
		t.Errorf("NAL data = %v, want unchanged", avc[4:8])
	}
}

func TestAnnexBToAVC_MultipleNALs(t *testing.T) {
	annexB := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x1e,
		0x00, 0x00, 0x01, 0x68, 0xce,
	}
	avc := AnnexBToAVC(annexB)

	if !bytes.Equal(avc[0:4], []byte{0x00, 0x00, 0x00, 0x03}) {
		t.Errorf("first length prefix = %v, want [0 0 0 3]", avc[0:4])
	}
	if !bytes.Equal(avc[4:7], []byte{0x67, 0x42, 0x1e}) {
		t.Errorf("first NAL = %v", avc[4:7])
	}
	if !bytes.Equal(avc[7:11], []byte{0x00, 0x00, 0x00, 0x02}) {
		t.Errorf("second length prefix = %v, want [0 0 0 2]", avc[7:11])
	}
	if !bytes.Equal(avc[11:13], []byte{0x68, 0xce}) {
		t.Errorf("second NAL = %v", avc[11:13])
	}
}

func TestAnnexBToAVC_Empty(t *testing.T) {
	if avc := AnnexBToAVC(nil); len(avc) != 0 {
		t.Fatalf("expected empty output, got %v", avc)
	}
}

func TestAnnexBToAVC_NoStartCode(t *testing.T) {
	annexB := []byte{0x67, 0x42, 0x00, 0x1e}
	if avc := AnnexBToAVC(annexB); len(avc) != 0 {
		t.Fatalf("expected empty output for data with no start code, got %v", avc)
	}
}

func TestAlignTo16(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 0}, {1, 16}, {15, 16}, {16, 16}, {17, 32},
		{1920, 1920}, {1080, 1088}, {1921, 1936},
	}
	for _, c := range cases {
		if got := AlignTo16(c.in); got != c.want {
			t.Errorf("AlignTo16(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestAvc420EncoderConfig_Presets(t *testing.T) {
	def := DefaultAvc420EncoderConfig()
	if def.BitrateKbps != 5000 || def.MaxFPS != 30.0 || !def.EnableSkipFrame {
		t.Errorf("unexpected default config: %+v", def)
	}

	hq := HighQualityAvc420EncoderConfig()
	if hq.BitrateKbps != 10000 || hq.EnableSkipFrame {
		t.Errorf("unexpected high-quality config: %+v", hq)
	}

	lb := LowBandwidthAvc420EncoderConfig()
	if lb.BitrateKbps != 1000 || lb.MaxFPS != 15.0 {
		t.Errorf("unexpected low-bandwidth config: %+v", lb)
	}
}

func TestNewAvc420Encoder_RejectsOddDimensions(t *testing.T) {
	_, err := NewAvc420Encoder(63, 64, DefaultAvc420EncoderConfig())
	if err == nil {
		t.Fatalf("expected error for odd width")
	}
}
