package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/bnema/wayland-virtual-input-go/virtualkeyboard"
	"github.com/bnema/wayland-virtual-input-go/virtualpointer"

	"github.com/lamco/wayland-rdp-server/internal/logging"
)

// WlrDirectStrategy provides input-only injection via the native
// wlroots virtual-keyboard/virtual-pointer protocols, bypassing the
// Portal entirely (§4.K, "WlrDirect wiring"). Video must come from
// elsewhere (e.g. a parallel ScreenCast-only Portal session); this
// strategy never populates PipeWireAccess.
type WlrDirectStrategy struct{}

func NewWlrDirectStrategy() *WlrDirectStrategy { return &WlrDirectStrategy{} }

func (w *WlrDirectStrategy) Name() string { return "wlr-direct" }

func (w *WlrDirectStrategy) Available(ctx context.Context) bool {
	if os.Getenv("WAYLAND_DISPLAY") == "" {
		return false
	}
	kb, err := virtualkeyboard.New()
	if err != nil {
		return false
	}
	kb.Close()
	ptr, err := virtualpointer.New()
	if err != nil {
		return false
	}
	ptr.Close()
	return true
}

func (w *WlrDirectStrategy) CreateSession(ctx context.Context) (Handle, error) {
	log := logging.L("session.wlrdirect")

	kb, err := virtualkeyboard.New()
	if err != nil {
		return nil, fmt.Errorf("session: wlr-direct virtual keyboard: %w", err)
	}
	ptr, err := virtualpointer.New()
	if err != nil {
		kb.Close()
		return nil, fmt.Errorf("session: wlr-direct virtual pointer: %w", err)
	}

	log.Info("wlr-direct session established")
	return &wlrHandle{keyboard: kb, pointer: ptr, kind: TypeWlrDirect}, nil
}

// wlrHandle tracks the pointer's absolute position locally because
// zwlr_virtual_pointer_v1 only exposes relative motion: each absolute
// RDP target is converted to a delta from the last known position,
// re-synchronized from (0,0) on first use.
type wlrHandle struct {
	keyboard *virtualkeyboard.VirtualKeyboard
	pointer  *virtualpointer.VirtualPointer
	kind     Type

	mu           sync.Mutex
	haveLast     bool
	lastX, lastY float64
	closed       bool
}

func (h *wlrHandle) Type() Type { return h.kind }
func (h *wlrHandle) Streams() []StreamInfo                          { return nil }
func (h *wlrHandle) PipeWireAccess() PipeWireAccess                 { return PipeWireAccess{} }
func (h *wlrHandle) ClipboardComponents() (ClipboardComponents, bool) { return ClipboardComponents{}, false }

func (h *wlrHandle) NotifyKeyboardKeycode(ctx context.Context, keycode int32, pressed bool) error {
	if pressed {
		return h.keyboard.KeyDown(uint32(keycode))
	}
	return h.keyboard.KeyUp(uint32(keycode))
}

func (h *wlrHandle) NotifyPointerMotionAbsolute(ctx context.Context, streamID uint32, x, y float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.haveLast {
		h.lastX, h.lastY = 0, 0
		h.haveLast = true
	}
	dx, dy := x-h.lastX, y-h.lastY
	h.lastX, h.lastY = x, y
	return h.pointer.MotionRelative(dx, dy)
}

func (h *wlrHandle) NotifyPointerButton(ctx context.Context, button int32, pressed bool) error {
	if pressed {
		return h.pointer.ButtonDown(uint32(button))
	}
	return h.pointer.ButtonUp(uint32(button))
}

func (h *wlrHandle) NotifyPointerAxis(ctx context.Context, dx, dy float64) error {
	return h.pointer.Axis(dx, dy)
}

func (h *wlrHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.keyboard.Close()
	h.pointer.Close()
	return nil
}
