// Package video implements the color/chroma pipeline and H.264 encoding
// wrappers that sit between a captured BGRA frame and an MS-RDPEGFX
// bitstream: BGRA->YUV444 conversion, YUV444->YUV420 dual-view packing,
// level selection, and the AVC420/AVC444 encoder wrappers.
package video

import (
	"fmt"
	"sync"

	"github.com/lamco/wayland-rdp-server/internal/workerpool"
)

// ColorMatrix selects the RGB->YUV coefficient set.
type ColorMatrix int

const (
	BT601 ColorMatrix = iota
	BT709
	OpenH264Matrix
)

func (m ColorMatrix) String() string {
	switch m {
	case BT601:
		return "BT601"
	case BT709:
		return "BT709"
	case OpenH264Matrix:
		return "OpenH264"
	default:
		return "unknown"
	}
}

// ColorRange is Full (0-255) or Limited (16-235/16-240) range signaling.
type ColorRange int

const (
	RangeFull ColorRange = iota
	RangeLimited
)

// ColorSpaceConfig pairs a matrix with its range and the VUI signaling
// triple mirrored into the H.264 SPS.
type ColorSpaceConfig struct {
	Matrix            ColorMatrix
	Range             ColorRange
	VUIPrimaries      int
	VUITransfer       int
	VUIMatrixCoeffs   int
}

// DefaultColorSpace returns the color space config implied by matrix alone,
// with the range and VUI triple this implementation always pairs it with.
func DefaultColorSpace(matrix ColorMatrix) ColorSpaceConfig {
	cfg := ColorSpaceConfig{Matrix: matrix}
	switch matrix {
	case BT709:
		cfg.Range = RangeFull
		cfg.VUIPrimaries, cfg.VUITransfer, cfg.VUIMatrixCoeffs = 1, 1, 1
	case OpenH264Matrix:
		cfg.Range = RangeLimited
		cfg.VUIPrimaries, cfg.VUITransfer, cfg.VUIMatrixCoeffs = 1, 1, 6
	default: // BT601
		cfg.Range = RangeFull
		cfg.VUIPrimaries, cfg.VUITransfer, cfg.VUIMatrixCoeffs = 5, 1, 6
	}
	return cfg
}

// coeffs holds Q16.16 fixed-point Kr/Kg/Kb triples for Y, U, and V.
type coeffs struct {
	y, u, v [3]int64
}

const q16 = 1 << 16

func fx(v float64) int64 { return int64(v * q16) }

var matrixCoeffs = map[ColorMatrix]coeffs{
	BT601: {
		y: [3]int64{fx(0.299), fx(0.587), fx(0.114)},
		u: [3]int64{fx(-0.168736), fx(-0.331264), fx(0.5)},
		v: [3]int64{fx(0.5), fx(-0.418688), fx(-0.081312)},
	},
	BT709: {
		y: [3]int64{fx(0.2126), fx(0.7152), fx(0.0722)},
		u: [3]int64{fx(-0.114572), fx(-0.385428), fx(0.5)},
		v: [3]int64{fx(0.5), fx(-0.454153), fx(-0.045847)},
	},
	// Matches the lineage's integer BT.601 limited-range NV12 kernel
	// (66/129/25, -38/-74/112, 112/-94/-18 over 256) expressed in Q16.16.
	OpenH264Matrix: {
		y: [3]int64{fx(66.0 / 256), fx(129.0 / 256), fx(25.0 / 256)},
		u: [3]int64{fx(-38.0 / 256), fx(-74.0 / 256), fx(112.0 / 256)},
		v: [3]int64{fx(112.0 / 256), fx(-94.0 / 256), fx(-18.0 / 256)},
	},
}

const fxRound = 1 << 15

func clampByte(v int64, lo, hi int64) byte {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return byte(v)
}

// YUV444Frame holds three equal-sized Y/U/V planes.
type YUV444Frame struct {
	Width, Height int
	Y, U, V       []byte
}

// NewYUV444Frame allocates a frame with chroma initialized to neutral (128).
func NewYUV444Frame(w, h int) *YUV444Frame {
	f := &YUV444Frame{
		Width:  w,
		Height: h,
		Y:      make([]byte, w*h),
		U:      make([]byte, w*h),
		V:      make([]byte, w*h),
	}
	for i := range f.U {
		f.U[i] = 128
		f.V[i] = 128
	}
	return f
}

// ErrInvalidDimensions is returned when a caller supplies zero or odd
// width/height to a component that requires even, positive dimensions.
type ErrInvalidDimensions struct {
	Width, Height int
}

func (e *ErrInvalidDimensions) Error() string {
	return fmt.Sprintf("invalid dimensions: %dx%d (must be positive and even)", e.Width, e.Height)
}

func validateEvenDimensions(w, h int) error {
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return &ErrInvalidDimensions{Width: w, Height: h}
	}
	return nil
}

// AutoSelectMatrix picks BT709 for HD-and-above frames, BT601 otherwise.
func AutoSelectMatrix(w, h int) ColorMatrix {
	if w >= 1280 && h >= 720 {
		return BT709
	}
	return BT601
}

// BGRAToYUV444 converts a tightly-packed BGRA buffer (4*w*h bytes, BGRA8888
// byte order) to a YUV444Frame using the given matrix. Rows are partitioned
// across a shared pool of rowWorkers goroutines when the frame has at least
// minRowsForPool rows (the CPU count is not consulted); the
// per-pixel kernel is identical either way, so the output is byte-for-byte
// the same as the single-threaded path.
func BGRAToYUV444(pixels []byte, w, h int, matrix ColorMatrix) (*YUV444Frame, error) {
	if err := validateEvenDimensions(w, h); err != nil {
		return nil, err
	}
	if len(pixels) != 4*w*h {
		return nil, fmt.Errorf("video: bgra buffer size %d does not match %dx%d", len(pixels), w, h)
	}

	frame := NewYUV444Frame(w, h)
	c := matrixCoeffs[matrix]
	limited := matrix == OpenH264Matrix

	convertRows := func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			rowOff := y * w * 4
			lineOff := y * w
			for x := 0; x < w; x++ {
				pi := rowOff + x*4
				b := int64(pixels[pi+0])
				g := int64(pixels[pi+1])
				r := int64(pixels[pi+2])

				yVal := (c.y[0]*r + c.y[1]*g + c.y[2]*b + fxRound) >> 16
				uVal := ((c.u[0]*r + c.u[1]*g + c.u[2]*b + fxRound) >> 16) + 128
				vVal := ((c.v[0]*r + c.v[1]*g + c.v[2]*b + fxRound) >> 16) + 128

				if limited {
					yVal += 16
					frame.Y[lineOff+x] = clampByte(yVal, 16, 235)
					frame.U[lineOff+x] = clampByte(uVal, 16, 240)
					frame.V[lineOff+x] = clampByte(vVal, 16, 240)
				} else {
					frame.Y[lineOff+x] = clampByte(yVal, 0, 255)
					frame.U[lineOff+x] = clampByte(uVal, 0, 255)
					frame.V[lineOff+x] = clampByte(vVal, 0, 255)
				}
			}
		}
	}

	if pool := rowPool(); pool != nil && h >= minRowsForPool {
		var wg sync.WaitGroup
		chunk := (h + rowWorkers - 1) / rowWorkers
		for y0 := 0; y0 < h; y0 += chunk {
			y1 := y0 + chunk
			if y1 > h {
				y1 = h
			}
			wg.Add(1)
			submitted := pool.Submit(func() {
				defer wg.Done()
				convertRows(y0, y1)
			})
			if !submitted {
				wg.Done()
				convertRows(y0, y1)
			}
		}
		wg.Wait()
	} else {
		convertRows(0, h)
	}

	return frame, nil
}

const (
	minRowsForPool = 64
	rowWorkers     = 4
)

var (
	sharedRowPool     *workerpool.Pool
	sharedRowPoolOnce sync.Once
)

// rowPool lazily creates a small worker pool for row-parallel color
// conversion; it is process-wide because the kernel holds no state.
func rowPool() *workerpool.Pool {
	sharedRowPoolOnce.Do(func() {
		if rowWorkers > 1 {
			sharedRowPool = workerpool.New(rowWorkers, rowWorkers*2)
		}
	})
	return sharedRowPool
}

// SubsampleChroma420 box-filters a full-resolution chroma plane down to
// 4:2:0. Both dimensions must be even.
func SubsampleChroma420(plane []byte, w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return nil, &ErrInvalidDimensions{Width: w, Height: h}
	}
	if len(plane) != w*h {
		return nil, fmt.Errorf("video: chroma plane size %d does not match %dx%d", len(plane), w, h)
	}

	outW, outH := w/2, h/2
	out := make([]byte, outW*outH)
	for j := 0; j < outH; j++ {
		row0 := (2 * j) * w
		row1 := (2*j + 1) * w
		outRow := j * outW
		for i := 0; i < outW; i++ {
			a := int(plane[row0+2*i])
			b := int(plane[row0+2*i+1])
			c := int(plane[row1+2*i])
			d := int(plane[row1+2*i+1])
			out[outRow+i] = byte((a + b + c + d + 2) / 4)
		}
	}
	return out, nil
}
