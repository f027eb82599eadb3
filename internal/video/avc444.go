package video

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/y9o/go-openh264"
)

// minAuxInterval is the minimum number of frames the encoder must wait
// between two auxiliary-stream sends. Without a floor here, rapid content
// changes would push an aux send on every frame, which pollutes the shared
// DPB and defeats P-frame prediction on the Main stream. Not exposed on
// Avc444EncoderConfig: the aux-omission feedback loop this guards against
// makes it unsafe to tune per-session.
const minAuxInterval = 10

// aux hash sampling bounds: luma is sampled, not hashed in full, to keep
// change detection cheap even at 4K.
const (
	auxHashSampleStride = 16
	auxHashMaxSamples   = 8192
)

// Avc444EncoderConfig configures the dual-view AVC444 encoder.
type Avc444EncoderConfig struct {
	Avc420EncoderConfig
	ColorSpace ColorSpaceConfig
}

// DefaultAvc444EncoderConfig auto-selects a color space for width x height
// and otherwise matches DefaultAvc420EncoderConfig.
func DefaultAvc444EncoderConfig(width, height int) Avc444EncoderConfig {
	return Avc444EncoderConfig{
		Avc420EncoderConfig: DefaultAvc420EncoderConfig(),
		ColorSpace:          DefaultColorSpace(AutoSelectMatrix(width, height)),
	}
}

// Avc444Timing breaks down one encode call for performance monitoring.
type Avc444Timing struct {
	ColorConvertMs float64
	PackingMs      float64
	EncodingMs     float64
	TotalMs        float64
}

// Avc444Frame is one AVC444 encoded access unit. Stream2Data is nil when the
// auxiliary view was omitted to save bandwidth (MS-RDPEGFX LC=1, the client
// reuses its cached auxiliary stream).
type Avc444Frame struct {
	Stream1Data []byte
	Stream2Data []byte
	IsKeyframe  bool
	TimestampMs uint64
	TotalSize   int
	Timing      Avc444Timing
}

// Avc444Stats reports running encoder statistics.
type Avc444Stats struct {
	FramesEncoded   uint64
	BytesEncoded    uint64
	AvgEncodeTimeMs float64
	BitrateKbps     uint32
	ColorMatrix     ColorMatrix
}

// Avc444Encoder encodes BGRA frames into dual YUV420 H.264 bitstreams
// (Main + Auxiliary) using a SINGLE OpenH264 encoder instance, per
// MS-RDPEGFX Section 3.3.8.3.2's requirement that both subframes share one
// encoder so their DPB timelines never diverge.
type Avc444Encoder struct {
	mu sync.Mutex

	enc    *openh264.ISVCEncoder
	width  int32
	height int32

	config     Avc444EncoderConfig
	colorSpace ColorSpaceConfig
	matrix     ColorMatrix
	level      H264Level
	hasLevel   bool

	frameCount      uint64
	bytesEncoded    uint64
	totalEncodeTime time.Duration

	cachedSPSPPS []byte

	hasAuxHash     bool
	lastAuxHash    uint64
	framesSinceAux uint32

	maxAuxInterval      uint32
	auxChangeThreshold  float32
	forceAuxIDROnReturn bool
	enableAuxOmission   bool

	lastIDRTime             time.Time
	periodicIDRIntervalSecs uint32
	forceNextIDR            bool
	forceAuxOnNextFrame     bool
}

// NewAvc444Encoder creates the single shared OpenH264 encoder and precomputes
// the H.264 level implied by width/height/MaxFPS.
func NewAvc444Encoder(width, height int, config Avc444EncoderConfig) (*Avc444Encoder, error) {
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

	level := SelectLevel(width, height, float64(config.MaxFPS))

	return &Avc444Encoder{
		enc:                 enc,
		width:               int32(width),
		height:              int32(height),
		config:              config,
		colorSpace:          config.ColorSpace,
		matrix:              config.ColorSpace.Matrix,
		level:               level,
		hasLevel:            true,
		maxAuxInterval:      30,
		auxChangeThreshold:  0.05,
		forceAuxIDROnReturn: false,
		enableAuxOmission:   false,
		lastIDRTime:         time.Now(),
		periodicIDRIntervalSecs: 5,
	}, nil
}

// ConfigureAuxOmission applies the Phase 1 bandwidth-optimization policy:
// skip encoding the Aux view when its content hasn't meaningfully changed.
func (e *Avc444Encoder) ConfigureAuxOmission(enable bool, maxIntervalFrames uint32, changeThreshold float32, forceIDROnReturn bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.enableAuxOmission = enable
	e.maxAuxInterval = clampUint32(maxIntervalFrames, 1, 120)
	e.auxChangeThreshold = clampFloat32(changeThreshold, 0, 1)
	e.forceAuxIDROnReturn = forceIDROnReturn
}

// ConfigurePeriodicIDR forces a full IDR at a regular interval to clear
// accumulated compression artifacts. intervalSecs == 0 disables it.
func (e *Avc444Encoder) ConfigurePeriodicIDR(intervalSecs uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.periodicIDRIntervalSecs = intervalSecs
	e.lastIDRTime = time.Now()
}

// RequestIDR asks for a full IDR on the next EncodeBGRA call, e.g. in
// response to a client picture-loss indication.
func (e *Avc444Encoder) RequestIDR() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.forceNextIDR = true
}

// IsPeriodicIDRDue reports whether the next encode will trigger a forced IDR,
// without consuming the pending request. Callers use this to force full-frame
// damage ahead of the refresh.
func (e *Avc444Encoder) IsPeriodicIDRDue() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.forceNextIDR {
		return true
	}
	if e.periodicIDRIntervalSecs == 0 {
		return false
	}
	return time.Since(e.lastIDRTime) >= time.Duration(e.periodicIDRIntervalSecs)*time.Second
}

// shouldForceIDR consumes any pending PLI/periodic IDR request. When it
// fires, it also arms forceAuxOnNextFrame so Main and Aux refresh together;
// IDR-ing Main alone while Aux stays cached would leave stale aux artifacts.
func (e *Avc444Encoder) shouldForceIDR() bool {
	if e.forceNextIDR {
		e.forceNextIDR = false
		e.forceAuxOnNextFrame = true
		e.lastIDRTime = time.Now()
		return true
	}
	if e.periodicIDRIntervalSecs > 0 && time.Since(e.lastIDRTime) >= time.Duration(e.periodicIDRIntervalSecs)*time.Second {
		e.lastIDRTime = time.Now()
		e.forceAuxOnNextFrame = true
		return true
	}
	return false
}

// EncodeBGRA converts a BGRA frame to dual YUV420 views and encodes both
// with the shared encoder, Main first then (conditionally) Aux. Returns
// (nil, nil) when the encoder elects to skip the frame entirely.
func (e *Avc444Encoder) EncodeBGRA(bgra []byte, width, height int, timestampMs uint64) (*Avc444Frame, error) {
	start := time.Now()

	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidFrameDimensions, width, height)
	}
	if len(bgra) < 4*width*height {
		return nil, fmt.Errorf("video: bgra buffer too small: %d < %d", len(bgra), 4*width*height)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if int32(width) != e.width || int32(height) != e.height {
		return nil, fmt.Errorf("%w: encoder configured for %dx%d, got %dx%d",
			ErrInvalidFrameDimensions, e.width, e.height, width, height)
	}

	yuv444, err := BGRAToYUV444(bgra, width, height, e.matrix)
	if err != nil {
		return nil, err
	}
	colorConvertTime := time.Since(start)

	main, aux, err := PackDualView(yuv444)
	if err != nil {
		return nil, err
	}
	packingTime := time.Since(start) - colorConvertTime

	if e.shouldForceIDR() {
		e.enc.ForceIntraFrame(true)
	}

	mainFrame, err := encodeYUV420WithEncoder(e.enc, e.width, e.height, main, timestampMs)
	if err != nil {
		return nil, fmt.Errorf("video: main subframe encode failed: %w", err)
	}
	if mainFrame == nil {
		return nil, nil
	}

	sendAux := e.shouldSendAux(aux)

	var auxFrame *H264Frame
	if sendAux {
		if mainFrame.IsKeyframe {
			e.enc.ForceIntraFrame(true)
		} else if e.forceAuxIDROnReturn && e.framesSinceAux > 0 {
			e.enc.ForceIntraFrame(true)
		}

		auxFrame, err = encodeYUV420WithEncoder(e.enc, e.width, e.height, aux, timestampMs)
		if err != nil {
			return nil, fmt.Errorf("video: aux subframe encode failed: %w", err)
		}
		if auxFrame == nil {
			// Rate control skipped the aux encode; treat as omitted so the
			// encoder and decoder DPBs stay in lockstep.
			e.framesSinceAux++
		} else {
			e.lastAuxHash = hashYUV420(aux)
			e.hasAuxHash = true
			e.framesSinceAux = 0
		}
	} else {
		e.framesSinceAux++
	}

	encodingTime := time.Since(start) - colorConvertTime - packingTime

	stream1 := handleSPSPPS(&e.cachedSPSPPS, mainFrame.Data, mainFrame.IsKeyframe)
	var stream2 []byte
	if auxFrame != nil {
		stream2 = stripSPSPPS(auxFrame.Data)
	}

	e.frameCount++
	totalSize := len(stream1) + len(stream2)
	e.bytesEncoded += uint64(totalSize)
	totalTime := time.Since(start)
	e.totalEncodeTime += totalTime

	return &Avc444Frame{
		Stream1Data: stream1,
		Stream2Data: stream2,
		IsKeyframe:  mainFrame.IsKeyframe,
		TimestampMs: timestampMs,
		TotalSize:   totalSize,
		Timing: Avc444Timing{
			ColorConvertMs: colorConvertTime.Seconds() * 1000,
			PackingMs:      packingTime.Seconds() * 1000,
			EncodingMs:     encodingTime.Seconds() * 1000,
			TotalMs:        totalTime.Seconds() * 1000,
		},
	}, nil
}

// shouldSendAux decides whether the auxiliary view is worth encoding and
// sending this frame. Main being a keyframe deliberately does NOT force an
// aux send: doing so created a feedback loop where every aux send forced
// the next Main frame back to IDR, starving P-frame prediction entirely.
func (e *Avc444Encoder) shouldSendAux(aux *YUV420Frame) bool {
	if e.forceAuxOnNextFrame {
		e.forceAuxOnNextFrame = false
		return true
	}
	if !e.enableAuxOmission {
		return true
	}
	if !e.hasAuxHash {
		return true
	}
	if e.framesSinceAux >= e.maxAuxInterval {
		return true
	}
	if e.framesSinceAux < minAuxInterval {
		return false
	}
	return hashYUV420(aux) != e.lastAuxHash
}

// hashYUV420 samples the luma plane at a fixed stride (luma carries most of
// the visually relevant signal) to cheaply detect whether Aux content
// changed, capping total samples so cost stays bounded at 4K.
func hashYUV420(frame *YUV420Frame) uint64 {
	h := fnv.New64a()
	n := len(frame.Y) / auxHashSampleStride
	if n > auxHashMaxSamples {
		n = auxHashMaxSamples
	}
	var b [1]byte
	for i := 0; i < n; i++ {
		idx := i * auxHashSampleStride
		if idx >= len(frame.Y) {
			break
		}
		b[0] = frame.Y[idx]
		h.Write(b[:])
	}
	return h.Sum64()
}

// ForceKeyframe requests an IDR for both subframes on the next EncodeBGRA
// call (they share one encoder, so forcing once covers Main and Aux).
func (e *Avc444Encoder) ForceKeyframe() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enc.ForceIntraFrame(true)
}

// Stats returns running encoder statistics. BitrateKbps is doubled to
// reflect that two subframes share the configured per-stream bitrate.
func (e *Avc444Encoder) Stats() Avc444Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	var avg float64
	if e.frameCount > 0 {
		avg = e.totalEncodeTime.Seconds() * 1000 / float64(e.frameCount)
	}
	return Avc444Stats{
		FramesEncoded:   e.frameCount,
		BytesEncoded:    e.bytesEncoded,
		AvgEncodeTimeMs: avg,
		BitrateKbps:     e.config.BitrateKbps * 2,
		ColorMatrix:     e.matrix,
	}
}

// ColorMatrix returns the RGB->YUV matrix in use.
func (e *Avc444Encoder) ColorMatrix() ColorMatrix { return e.matrix }

// ColorSpace returns the full color space configuration in use.
func (e *Avc444Encoder) ColorSpace() ColorSpaceConfig { return e.colorSpace }

// Level returns the H.264 level selected for this encoder's resolution/fps.
func (e *Avc444Encoder) Level() (H264Level, bool) { return e.level, e.hasLevel }

// Close releases the underlying OpenH264 encoder. Safe to call once.
func (e *Avc444Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enc != nil {
		e.enc.Uninitialize()
		openh264.WelsDestroySVCEncoder(e.enc)
		e.enc = nil
	}
}

// handleSPSPPS caches SPS/PPS from IDR access units and prepends the cache
// to P-frames. With a single shared encoder, SPS/PPS emitted on Main IDRs
// covers both subframes, so Aux never needs its own copy.
func handleSPSPPS(cache *[]byte, data []byte, isKeyframe bool) []byte {
	if isKeyframe {
		if spsPPS := extractSPSPPS(data); spsPPS != nil {
			*cache = spsPPS
		}
		return data
	}
	if *cache == nil {
		return data
	}
	combined := make([]byte, 0, len(*cache)+len(data))
	combined = append(combined, *cache...)
	combined = append(combined, data...)
	return combined
}

// nalUnit describes one NAL unit's byte range within an AVC length-prefixed
// buffer (prefix included), plus its decoded nal_unit_type.
type nalUnit struct {
	start, end int
	nalType    byte
}

// walkAVCNALs iterates the length-prefixed NAL units produced by
// AnnexBToAVC. By the time SPS/PPS handling runs, encodeYUV420WithEncoder
// has already converted the bitstream to AVC format, so this walks 4-byte
// big-endian length prefixes rather than Annex-B start codes.
func walkAVCNALs(data []byte, fn func(nalUnit)) {
	i := 0
	for i+4 <= len(data) {
		nalLen := int(data[i])<<24 | int(data[i+1])<<16 | int(data[i+2])<<8 | int(data[i+3])
		nalStart := i + 4
		nalEnd := nalStart + nalLen
		if nalLen <= 0 || nalEnd > len(data) {
			break
		}
		fn(nalUnit{start: i, end: nalEnd, nalType: data[nalStart] & 0x1F})
		i = nalEnd
	}
}

// extractSPSPPS pulls SPS (type 7) and PPS (type 8) NAL units, length
// prefixes included, out of an AVC buffer. Returns nil if neither is present.
func extractSPSPPS(data []byte) []byte {
	var out []byte
	walkAVCNALs(data, func(n nalUnit) {
		if n.nalType == 7 || n.nalType == 8 {
			out = append(out, data[n.start:n.end]...)
		}
	})
	return out
}

// stripSPSPPS removes SPS/PPS NAL units from an AVC buffer; the Aux stream
// never needs its own copy since Main's IDR already carries it.
func stripSPSPPS(data []byte) []byte {
	var out []byte
	walkAVCNALs(data, func(n nalUnit) {
		if n.nalType != 7 && n.nalType != 8 {
			out = append(out, data[n.start:n.end]...)
		}
	})
	return out
}

func clampUint32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
