package video

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/y9o/go-openh264"
)

// ErrInvalidFrameDimensions is returned when an encoder constructor or
// EncodeBGRA is given zero or odd width/height, or when EncodeBGRA or
// EncodeYUV420 gets a frame whose size differs from the encoder's.
var ErrInvalidFrameDimensions = errors.New("video: invalid frame dimensions")

// Avc420EncoderConfig controls the underlying OpenH264 encoder.
type Avc420EncoderConfig struct {
	BitrateKbps uint32
	MaxFPS      float32
	// EnableSkipFrame is carried with the preset but NewAvc420Encoder and
	// NewAvc444Encoder do not pass it to OpenH264, so it does not change
	// whether rate control skips frames.
	EnableSkipFrame bool
}

// DefaultAvc420EncoderConfig matches the balanced default used when a
// session doesn't request a quality preset.
func DefaultAvc420EncoderConfig() Avc420EncoderConfig {
	return Avc420EncoderConfig{BitrateKbps: 5000, MaxFPS: 30.0, EnableSkipFrame: true}
}

// HighQualityAvc420EncoderConfig clears EnableSkipFrame and raises bitrate
// for sessions that prioritize fidelity over bandwidth.
func HighQualityAvc420EncoderConfig() Avc420EncoderConfig {
	return Avc420EncoderConfig{BitrateKbps: 10000, MaxFPS: 30.0, EnableSkipFrame: false}
}

// LowBandwidthAvc420EncoderConfig trades quality and frame rate for a much
// smaller encoded stream.
func LowBandwidthAvc420EncoderConfig() Avc420EncoderConfig {
	return Avc420EncoderConfig{BitrateKbps: 1000, MaxFPS: 15.0, EnableSkipFrame: true}
}

// H264Frame is one encoded access unit in AVC length-prefixed format.
type H264Frame struct {
	Data        []byte
	IsKeyframe  bool
	TimestampMs uint64
	Size        int
}

// AlignTo16 rounds dimension up to the next multiple of 16, as MS-RDPEGFX
// requires for the encoded bitmap area.
func AlignTo16(dimension int) int {
	return (dimension + 15) &^ 15
}

// Avc420Encoder wraps an OpenH264 SVC encoder producing a single,
// non-scalable H.264 layer per MS-RDPEGFX's AVC420 codec.
type Avc420Encoder struct {
	mu          sync.Mutex
	enc         *openh264.ISVCEncoder
	width       int32
	height      int32
	config      Avc420EncoderConfig
	frameCount  uint64
}

// NewAvc420Encoder creates and initializes an OpenH264 encoder for frames of
// exactly width x height (both must be even; callers align to 16 themselves
// when the wire format requires it).
func NewAvc420Encoder(width, height int, config Avc420EncoderConfig) (*Avc420Encoder, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidFrameDimensions, width, height)
	}

	var enc *openh264.ISVCEncoder
	if ret := openh264.WelsCreateSVCEncoder(&enc); ret != 0 || enc == nil {
		return nil, fmt.Errorf("video: WelsCreateSVCEncoder failed: %d", ret)
	}

	params := openh264.SEncParamBase{
		IUsageType:     openh264.SCREEN_CONTENT_REAL_TIME,
		IPicWidth:      int32(width),
		IPicHeight:     int32(height),
		ITargetBitrate: int32(config.BitrateKbps) * 1000,
		FMaxFrameRate:  config.MaxFPS,
	}
	if ret := enc.Initialize(&params); ret != 0 {
		openh264.WelsDestroySVCEncoder(enc)
		return nil, fmt.Errorf("video: encoder Initialize failed: %d", ret)
	}

	return &Avc420Encoder{
		enc:    enc,
		width:  int32(width),
		height: int32(height),
		config: config,
	}, nil
}

// EncodeYUV420 encodes one planar I420 frame. It returns (nil, nil) when the
// encoder elects to skip the frame under rate control.
func (e *Avc420Encoder) EncodeYUV420(frame *YUV420Frame, timestampMs uint64) (*H264Frame, error) {
	if frame.Width != int(e.width) || frame.Height != int(e.height) {
		return nil, fmt.Errorf("%w: encoder configured for %dx%d, got %dx%d",
			ErrInvalidFrameDimensions, e.width, e.height, frame.Width, frame.Height)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h264Frame, err := encodeYUV420WithEncoder(e.enc, e.width, e.height, frame, timestampMs)
	if err != nil {
		return nil, err
	}
	if h264Frame != nil {
		e.frameCount++
	}
	return h264Frame, nil
}

// encodeYUV420WithEncoder drives a raw OpenH264 encoder handle through one
// EncodeFrame call, converting the result to AVC length-prefixed form. It is
// shared by Avc420Encoder and Avc444Encoder, the latter calling it twice
// (Main then Aux) against the SAME handle to keep one unified DPB timeline,
// as MS-RDPEGFX Section 3.3.8.3.2 requires for the AVC444 codec.
func encodeYUV420WithEncoder(enc *openh264.ISVCEncoder, width, height int32, frame *YUV420Frame, timestampMs uint64) (*H264Frame, error) {
	yStride := int32(frame.Width)
	cStride := int32((frame.Width + 1) / 2)

	src := openh264.SSourcePicture{
		IColorFormat: openh264.VideoFormatI420,
		IStride:      [4]int32{yStride, cStride, cStride, 0},
		IPicWidth:    width,
		IPicHeight:   height,
		UiTimeStamp:  int64(timestampMs),
	}
	src.PData[0] = (*uint8)(unsafe.Pointer(&frame.Y[0]))
	src.PData[1] = (*uint8)(unsafe.Pointer(&frame.U[0]))
	src.PData[2] = (*uint8)(unsafe.Pointer(&frame.V[0]))

	var info openh264.SFrameBSInfo
	if ret := enc.EncodeFrame(&src, &info); ret != openh264.CmResultSuccess {
		return nil, fmt.Errorf("video: EncodeFrame failed: %d", ret)
	}

	if info.EFrameType == openh264.VideoFrameTypeSkip {
		return nil, nil
	}

	annexB := collectNALs(&info)
	if len(annexB) == 0 {
		return nil, nil
	}

	avc := AnnexBToAVC(annexB)
	if len(avc) == 0 {
		return nil, nil
	}

	isKeyframe := info.EFrameType == openh264.VideoFrameTypeIDR || info.EFrameType == openh264.VideoFrameTypeI

	return &H264Frame{
		Data:        avc,
		IsKeyframe:  isKeyframe,
		TimestampMs: timestampMs,
		Size:        len(avc),
	}, nil
}

func collectNALs(info *openh264.SFrameBSInfo) []byte {
	var out []byte
	for i := 0; i < int(info.ILayerNum); i++ {
		layer := &info.SLayerInfo[i]
		var layerSize int32
		nalLens := unsafe.Slice(layer.PNalLengthInByte, layer.INalCount)
		for _, l := range nalLens {
			layerSize += l
		}
		out = append(out, unsafe.Slice(layer.PBsBuf, layerSize)...)
	}
	return out
}

// ForceKeyframe requests an IDR on the next EncodeYUV420 call.
func (e *Avc420Encoder) ForceKeyframe() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enc.ForceIntraFrame(true)
}

// FramesEncoded returns the running count of EncodeYUV420 calls that
// produced output (excludes skipped frames).
func (e *Avc420Encoder) FramesEncoded() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameCount
}

// Close releases the underlying OpenH264 encoder. Safe to call once.
func (e *Avc420Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enc != nil {
		e.enc.Uninitialize()
		openh264.WelsDestroySVCEncoder(e.enc)
		e.enc = nil
	}
}

// AnnexBToAVC rewrites an Annex-B H.264 bitstream (start-code delimited NAL
// units) into ISO/IEC 14496-15 AVC format (4-byte big-endian length prefix
// per NAL unit), as MS-RDPEGFX requires.
func AnnexBToAVC(annexB []byte) []byte {
	out := make([]byte, 0, len(annexB))
	i := 0
	for i < len(annexB) {
		startLen := 0
		switch {
		case i+4 <= len(annexB) && annexB[i] == 0 && annexB[i+1] == 0 && annexB[i+2] == 0 && annexB[i+3] == 1:
			startLen = 4
		case i+3 <= len(annexB) && annexB[i] == 0 && annexB[i+1] == 0 && annexB[i+2] == 1:
			startLen = 3
		default:
			i++
			continue
		}

		nalStart := i + startLen
		nalEnd := len(annexB)
		j := nalStart
		for j+3 <= len(annexB) {
			if annexB[j] == 0 && annexB[j+1] == 0 &&
				(annexB[j+2] == 1 || (j+3 < len(annexB) && annexB[j+2] == 0 && annexB[j+3] == 1)) {
				nalEnd = j
				break
			}
			j++
		}

		nal := annexB[nalStart:nalEnd]
		if len(nal) > 0 {
			var lenPrefix [4]byte
			n := uint32(len(nal))
			lenPrefix[0] = byte(n >> 24)
			lenPrefix[1] = byte(n >> 16)
			lenPrefix[2] = byte(n >> 8)
			lenPrefix[3] = byte(n)
			out = append(out, lenPrefix[:]...)
			out = append(out, nal...)
		}

		i = nalEnd
	}
	return out
}
