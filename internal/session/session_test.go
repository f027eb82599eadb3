package session

import (
	"context"
	"errors"
	"testing"
)

type fakeStrategy struct {
	name      string
	available bool
	handle    Handle
	err       error
	called    bool
}

func (f *fakeStrategy) Name() string                     { return f.name }
func (f *fakeStrategy) Available(ctx context.Context) bool { return f.available }
func (f *fakeStrategy) CreateSession(ctx context.Context) (Handle, error) {
	f.called = true
	return f.handle, f.err
}

type fakeHandle struct{ kind Type }

func (h *fakeHandle) Type() Type                                     { return h.kind }
func (h *fakeHandle) PipeWireAccess() PipeWireAccess                 { return PipeWireAccess{} }
func (h *fakeHandle) Streams() []StreamInfo                          { return nil }
func (h *fakeHandle) ClipboardComponents() (ClipboardComponents, bool) { return ClipboardComponents{}, false }
func (h *fakeHandle) NotifyKeyboardKeycode(ctx context.Context, keycode int32, pressed bool) error {
	return nil
}
func (h *fakeHandle) NotifyPointerMotionAbsolute(ctx context.Context, streamID uint32, x, y float64) error {
	return nil
}
func (h *fakeHandle) NotifyPointerButton(ctx context.Context, button int32, pressed bool) error {
	return nil
}
func (h *fakeHandle) NotifyPointerAxis(ctx context.Context, dx, dy float64) error { return nil }
func (h *fakeHandle) Close() error                                                { return nil }

func TestFabricSkipsUnavailable(t *testing.T) {
	first := &fakeStrategy{name: "first", available: false}
	second := &fakeStrategy{name: "second", available: true, handle: &fakeHandle{kind: TypeWlrDirect}}

	f := NewFabric(first, second)
	handle, err := f.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if first.called {
		t.Fatal("unavailable strategy should not be tried")
	}
	if handle.Type() != TypeWlrDirect {
		t.Fatalf("Type() = %v, want TypeWlrDirect", handle.Type())
	}
}

func TestFabricFallsThroughOnError(t *testing.T) {
	failing := &fakeStrategy{name: "failing", available: true, err: errors.New("boom")}
	working := &fakeStrategy{name: "working", available: true, handle: &fakeHandle{kind: TypeHeadlessLocal}}

	f := NewFabric(failing, working)
	handle, err := f.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !failing.called {
		t.Fatal("failing strategy should have been tried")
	}
	if handle.Type() != TypeHeadlessLocal {
		t.Fatalf("Type() = %v, want TypeHeadlessLocal", handle.Type())
	}
}

func TestFabricAllUnavailable(t *testing.T) {
	f := NewFabric(&fakeStrategy{name: "a"}, &fakeStrategy{name: "b"})
	_, err := f.CreateSession(context.Background())
	if err == nil {
		t.Fatal("expected ErrNoStrategyAvailable")
	}
	var target *ErrNoStrategyAvailable
	if !errors.As(err, &target) {
		t.Fatalf("err type = %T, want *ErrNoStrategyAvailable", err)
	}
}

func TestTypeString(t *testing.T) {
	cases := map[Type]string{
		TypePortal:       "Portal",
		TypeLibei:        "Libei",
		TypeWlrDirect:    "WlrDirect",
		TypeHeadlessLocal: "HeadlessLocal",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", typ, got, want)
		}
	}
}
