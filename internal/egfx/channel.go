// Package egfx implements the MS-RDPEGFX Dynamic Virtual Channel
// ("Microsoft::Windows::RDS::Graphics") state machine: capability
// negotiation, surface setup, and the frame queue/backpressure/ack
// protocol (§4.L).
package egfx

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/lamco/wayland-rdp-server/internal/logging"
	"github.com/lamco/wayland-rdp-server/internal/profile"
)

// State is one of the channel's three lifecycle states.
type State int

const (
	StateWaitingCapabilities State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateWaitingCapabilities:
		return "WaitingCapabilities"
	case StateReady:
		return "Ready"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// MaxFramesInFlight bounds the pending-frame queue; queue_frame
// returns false (backpressure) once it is reached.
const MaxFramesInFlight = 3

const defaultSurfaceID = uint16(1)

// pendingFrame tracks one frame awaiting acknowledgement.
type pendingFrame struct {
	id uint32
}

// OnReadyFunc is invoked once the channel transitions to Ready, with
// the negotiated surface id and dimensions.
type OnReadyFunc func(surfaceID uint16, width, height uint16)

// OnFrameAckFunc is invoked for every FrameAcknowledge, with the
// acknowledged frame id.
type OnFrameAckFunc func(frameID uint32)

// OnCloseFunc is invoked when the channel transitions to Closed.
type OnCloseFunc func()

// Channel is one connection's EGFX Dynamic Virtual Channel: one
// goroutine owns the pending-frame queue (not shared), and a single
// writer goroutine owns the outbound PDU queue, matching §5's
// concurrency model.
type Channel struct {
	channelID uint32
	width     uint16
	height    uint16
	quirks    profile.CompositorProfile

	mu             sync.Mutex
	state          State
	surfaceID      uint16
	selected       CapabilitySet
	pending        []pendingFrame
	lastAckFrameID uint32
	nextFrameID    uint32
	forcedAvc420   bool

	onReady    OnReadyFunc
	onFrameAck OnFrameAckFunc
	onClose    OnCloseFunc

	out     chan OutboundPDU
	metrics channelMetrics
	log     *slog.Logger
}

// NewChannel creates a channel for the given Dynamic Virtual Channel
// id, surface dimensions, and compositor quirks (used to force AVC420
// when Avc444Unreliable is set).
func NewChannel(channelID uint32, width, height uint16, quirks profile.CompositorProfile) *Channel {
	return &Channel{
		channelID: channelID,
		width:     width,
		height:    height,
		quirks:    quirks,
		state:     StateWaitingCapabilities,
		out:       make(chan OutboundPDU, 64),
		log:       logging.L("egfx"),
	}
}

// Outbound returns the channel's outbound PDU stream for the
// connection's single writer goroutine to drain, in order.
func (c *Channel) Outbound() <-chan OutboundPDU { return c.out }

func (c *Channel) OnReady(fn OnReadyFunc)       { c.mu.Lock(); c.onReady = fn; c.mu.Unlock() }
func (c *Channel) OnFrameAck(fn OnFrameAckFunc) { c.mu.Lock(); c.onFrameAck = fn; c.mu.Unlock() }
func (c *Channel) OnClose(fn OnCloseFunc)       { c.mu.Lock(); c.onClose = fn; c.mu.Unlock() }

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HandleCapabilitiesAdvertise selects the best capability set, emits
// CapabilitiesConfirm/CreateSurface/MapSurfaceToOutput, and
// transitions WaitingCapabilities -> Ready.
func (c *Channel) HandleCapabilitiesAdvertise(sets []CapabilitySet) error {
	c.mu.Lock()
	if c.state != StateWaitingCapabilities {
		c.mu.Unlock()
		return fmt.Errorf("egfx: CapabilitiesAdvertise received in state %s", c.state)
	}

	selected, ok := SelectCapabilities(sets)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("egfx: no capability sets advertised")
	}
	if c.quirks.HasQuirk(profile.QuirkAvc444Unreliable) {
		c.forcedAvc420 = true
		c.log.Info("forcing AVC420 negotiation down due to compositor quirk", "channelId", c.channelID)
	}

	c.selected = selected
	c.surfaceID = defaultSurfaceID
	c.state = StateReady
	width, height := c.width, c.height
	surfaceID := c.surfaceID
	onReady := c.onReady
	c.mu.Unlock()

	c.out <- CapabilitiesConfirmPDU{Selected: selected}
	c.out <- CreateSurfacePDU{SurfaceID: surfaceID, Width: width, Height: height, PixelFormat: PixelFormatXRGB}
	c.out <- MapSurfaceToOutputPDU{SurfaceID: surfaceID, OutputOriginX: 0, OutputOriginY: 0}

	if onReady != nil {
		onReady(surfaceID, width, height)
	}
	return nil
}

// HandleFrameAcknowledge pops all pending frames with id <= V in
// order, raises last_ack_frame_id to V (it never moves backwards), and
// notifies onFrameAck.
func (c *Channel) HandleFrameAcknowledge(frameID uint32) {
	c.mu.Lock()
	kept := c.pending[:0]
	for _, p := range c.pending {
		if p.id > frameID {
			kept = append(kept, p)
		}
	}
	c.pending = kept
	if frameID > c.lastAckFrameID {
		c.lastAckFrameID = frameID
	}
	c.metrics.recordAck()
	c.metrics.setBacklog(len(c.pending))
	onAck := c.onFrameAck
	c.mu.Unlock()

	if onAck != nil {
		onAck(frameID)
	}
}

// effectiveCodec returns AVC420 if the AVC444-unreliable quirk forced
// it down, regardless of what the caller requested.
func (c *Channel) effectiveCodec(requested Codec) Codec {
	if c.forcedAvc420 {
		return CodecAvc420
	}
	return requested
}

// QueueFrame enqueues a frame for transmission: only when Ready and
// pending < MaxFramesInFlight. Returns ok=false (backpressure) if the
// queue is full, so the upstream pipeline skips the frame.
func (c *Channel) QueueFrame(data []byte, codec Codec, timestampMs uint64) (frameID uint32, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReady {
		return 0, false
	}
	if len(c.pending) >= MaxFramesInFlight {
		c.metrics.recordDrop()
		return 0, false
	}

	c.nextFrameID++
	id := c.nextFrameID
	c.pending = append(c.pending, pendingFrame{id: id})
	c.metrics.setBacklog(len(c.pending))

	ts := EncodeTimestamp(timestampMs)
	surfaceID := c.surfaceID
	width, height := c.width, c.height

	c.out <- StartFramePDU{Timestamp: ts, FrameID: id}
	c.out <- WireToSurface1PDU{
		SurfaceID:   surfaceID,
		Codec:       c.effectiveCodec(codec),
		PixelFormat: PixelFormatXRGB,
		DestRect:    Rect{Left: 0, Top: 0, Right: width, Bottom: height},
		BitmapData:  data,
	}
	c.out <- EndFramePDU{FrameID: id}

	c.metrics.recordSent(len(data))
	return id, true
}

// Close transitions to Closed; any further QueueFrame is a no-op.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.pending = nil
	onClose := c.onClose
	c.mu.Unlock()

	close(c.out)
	if onClose != nil {
		onClose()
	}
}

// Snapshot returns the channel's current metrics.
func (c *Channel) Snapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}
