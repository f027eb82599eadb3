// Package session implements the priority-ordered session strategy
// fabric (§4.K): PortalToken, Libei/EIS, WlrDirect, HeadlessLocal, each
// producing a uniform SessionHandle for video/input/clipboard access.
package session

import (
	"context"
	"sync"
)

// Type identifies which strategy produced a SessionHandle.
type Type int

const (
	TypePortal Type = iota
	TypeLibei
	TypeWlrDirect
	TypeHeadlessLocal
)

func (t Type) String() string {
	switch t {
	case TypePortal:
		return "Portal"
	case TypeLibei:
		return "Libei"
	case TypeWlrDirect:
		return "WlrDirect"
	case TypeHeadlessLocal:
		return "HeadlessLocal"
	default:
		return "Unknown"
	}
}

// StreamInfo describes one capturable monitor/virtual output as
// reported by ScreenCast.Start.
type StreamInfo struct {
	NodeID   uint32
	Width    int32
	Height   int32
	X        int32
	Y        int32
}

// PipeWireAccess is how the caller can reach the video stream: Portal
// strategies hand back a duplicated fd; input-only strategies have none.
type PipeWireAccess struct {
	FD        int
	Available bool
}

// ClipboardComponents exposes the shared portal session needed to
// drive the clipboard bridge (§4.M). Only the Portal strategy
// populates this.
type ClipboardComponents struct {
	SessionPath string
}

// Handle is the uniform surface every strategy produces: video access
// (if any), the stream list, and input injection. Keycodes passed to
// NotifyKeyboardKeycode are Linux evdev keycodes; strategies convert to
// their backend's native numbering internally (e.g. libei subtracts 8).
type Handle interface {
	Type() Type
	PipeWireAccess() PipeWireAccess
	Streams() []StreamInfo
	ClipboardComponents() (ClipboardComponents, bool)

	NotifyKeyboardKeycode(ctx context.Context, keycode int32, pressed bool) error
	NotifyPointerMotionAbsolute(ctx context.Context, streamID uint32, x, y float64) error
	NotifyPointerButton(ctx context.Context, button int32, pressed bool) error
	NotifyPointerAxis(ctx context.Context, dx, dy float64) error

	Close() error
}

// Strategy is one candidate mechanism for establishing a session.
type Strategy interface {
	Name() string
	// Available reports whether this strategy's preconditions hold on
	// this host (cheap, synchronous; no permission dialogs).
	Available(ctx context.Context) bool
	CreateSession(ctx context.Context) (Handle, error)
}

// Fabric tries strategies in priority order and returns the first
// successful session.
type Fabric struct {
	mu         sync.Mutex
	strategies []Strategy
}

// NewFabric builds a fabric that tries strategies in the order they
// are passed, dropping nil entries. It does not reorder them.
func NewFabric(strategies ...Strategy) *Fabric {
	f := &Fabric{}
	for _, s := range strategies {
		if s != nil {
			f.strategies = append(f.strategies, s)
		}
	}
	return f
}

// ErrNoStrategyAvailable is returned when every strategy's
// precondition fails or every CreateSession call errors.
type ErrNoStrategyAvailable struct {
	Attempts []error
}

func (e *ErrNoStrategyAvailable) Error() string {
	return "session: no strategy produced a usable session"
}

// CreateSession walks the strategies in order, skipping unavailable
// ones, and returns the first handle a strategy successfully creates.
func (f *Fabric) CreateSession(ctx context.Context) (Handle, error) {
	f.mu.Lock()
	strategies := append([]Strategy(nil), f.strategies...)
	f.mu.Unlock()

	var errs []error
	for _, s := range strategies {
		if !s.Available(ctx) {
			continue
		}
		handle, err := s.CreateSession(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return handle, nil
	}
	return nil, &ErrNoStrategyAvailable{Attempts: errs}
}
