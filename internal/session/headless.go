package session

import (
	"context"
	"os"

	"github.com/bnema/wayland-virtual-input-go/virtualkeyboard"
	"github.com/bnema/wayland-virtual-input-go/virtualpointer"

	"github.com/lamco/wayland-rdp-server/internal/logging"
)

// HeadlessLocalStrategy is the lowest-priority fallback. It does not
// start a compositor of its own: CreateSession binds virtual-keyboard
// and virtual-pointer devices against the Wayland display already
// present in the environment, the same way WlrDirect does.
type HeadlessLocalStrategy struct {
	enabled bool
}

func NewHeadlessLocalStrategy(enabled bool) *HeadlessLocalStrategy {
	return &HeadlessLocalStrategy{enabled: enabled}
}

func (h *HeadlessLocalStrategy) Name() string { return "HeadlessLocal" }

func (h *HeadlessLocalStrategy) Available(ctx context.Context) bool {
	return h.enabled && os.Geteuid() == 0
}

func (h *HeadlessLocalStrategy) CreateSession(ctx context.Context) (Handle, error) {
	log := logging.L("session.headless")
	log.Info("binding headless virtual input devices")

	kb, err := virtualkeyboard.New()
	if err != nil {
		return nil, err
	}
	ptr, err := virtualpointer.New()
	if err != nil {
		kb.Close()
		return nil, err
	}

	return &wlrHandle{keyboard: kb, pointer: ptr, kind: TypeHeadlessLocal}, nil
}
