package egfx

import "sync"

// channelMetrics tracks per-connection EGFX traffic, mirroring the
// lineage's mutex-guarded snapshot-struct style (stream_metrics.go)
// instead of a WebRTC stream's capture/encode timings.
type channelMetrics struct {
	mu sync.RWMutex

	framesSent    uint64
	bytesSent     uint64
	acksReceived  uint64
	framesDropped uint64
	backlog       int
}

// MetricsSnapshot is a point-in-time copy for logging/diagnostics.
type MetricsSnapshot struct {
	FramesSent    uint64
	BytesSent     uint64
	AcksReceived  uint64
	FramesDropped uint64
	Backlog       int
}

func (m *channelMetrics) recordSent(size int) {
	m.mu.Lock()
	m.framesSent++
	m.bytesSent += uint64(size)
	m.mu.Unlock()
}

func (m *channelMetrics) recordAck() {
	m.mu.Lock()
	m.acksReceived++
	m.mu.Unlock()
}

func (m *channelMetrics) recordDrop() {
	m.mu.Lock()
	m.framesDropped++
	m.mu.Unlock()
}

func (m *channelMetrics) setBacklog(n int) {
	m.mu.Lock()
	m.backlog = n
	m.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the channel's metrics.
func (m *channelMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		FramesSent:    m.framesSent,
		BytesSent:     m.bytesSent,
		AcksReceived:  m.acksReceived,
		FramesDropped: m.framesDropped,
		Backlog:       m.backlog,
	}
}
