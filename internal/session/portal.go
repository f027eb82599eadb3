package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/lamco/wayland-rdp-server/internal/logging"
	"github.com/lamco/wayland-rdp-server/internal/secmem"
	"github.com/lamco/wayland-rdp-server/internal/tokenstore"
)

const (
	portalBus            = "org.freedesktop.portal.Desktop"
	portalPath           = dbus.ObjectPath("/org/freedesktop/portal/desktop")
	requestIface         = "org.freedesktop.portal.Request"
	remoteDesktopIface   = "org.freedesktop.portal.RemoteDesktop"
	screenCastIface      = "org.freedesktop.portal.ScreenCast"
	restoreTokenKey      = "default"
	deviceKeyboard       = uint32(1)
	devicePointer        = uint32(2)
)

// PortalTokenStrategy creates a session via XDG Desktop Portal
// RemoteDesktop + ScreenCast, persisting the restore token through a
// tokenstore.Store so subsequent runs skip the permission dialog
// (§4.K, "Portal D-Bus wiring").
type PortalTokenStrategy struct {
	conn  *dbus.Conn
	store tokenstore.Store
}

func NewPortalTokenStrategy(conn *dbus.Conn, store tokenstore.Store) *PortalTokenStrategy {
	return &PortalTokenStrategy{conn: conn, store: store}
}

func (p *PortalTokenStrategy) Name() string { return "Portal + Restore Token" }

func (p *PortalTokenStrategy) Available(ctx context.Context) bool {
	if p.conn == nil {
		return false
	}
	var has bool
	call := p.conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, portalBus)
	if call.Err != nil {
		return false
	}
	_ = call.Store(&has)
	return has
}

// CreateSession walks the Portal flow: CreateSession, SelectDevices,
// SelectSources, Start, OpenPipeWireRemote. If the portal rejects
// persistence, it retries once without it.
func (p *PortalTokenStrategy) CreateSession(ctx context.Context) (Handle, error) {
	log := logging.L("session.portal")

	restoreToken, hadToken, err := p.store.Get(restoreTokenKey)
	if err != nil {
		log.Warn("failed to load restore token, proceeding without", "error", err)
	}

	handle, newToken, err := p.runFlow(ctx, restoreToken, true)
	if err != nil && isPersistenceRejection(err) {
		log.Warn("portal rejected persistence, retrying without it")
		handle, newToken, err = p.runFlow(ctx, nil, false)
	}
	if err != nil {
		return nil, err
	}

	if newToken != "" {
		if err := p.store.Set(restoreTokenKey, secmem.NewSecureString(newToken)); err != nil {
			log.Warn("failed to persist new restore token", "error", err)
		}
	} else if !hadToken {
		log.Warn("portal did not return a restore token (portal v3 or below?)")
	}

	return handle, nil
}

func isPersistenceRejection(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return contains(msg, "cannot persist") || contains(msg, "InvalidArgument")
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func (p *PortalTokenStrategy) runFlow(ctx context.Context, restoreToken *secmem.SecureString, persist bool) (Handle, string, error) {
	sessionHandleToken := sanitizeToken("s" + uuid.NewString())

	sessionPath, err := p.createPortalSession(sessionHandleToken)
	if err != nil {
		return nil, "", fmt.Errorf("session: createPortalSession: %w", err)
	}

	if err := p.selectDevices(sessionPath); err != nil {
		return nil, "", fmt.Errorf("session: SelectDevices: %w", err)
	}

	var tokenArg string
	if restoreToken != nil {
		tokenArg = restoreToken.String()
	}
	if err := p.selectPortalSources(sessionPath, tokenArg, persist); err != nil {
		return nil, "", fmt.Errorf("session: SelectSources: %w", err)
	}

	streams, newToken, err := p.startPortalSession(sessionPath)
	if err != nil {
		return nil, "", fmt.Errorf("session: Start: %w", err)
	}

	fd, err := p.openPipeWireRemote(sessionPath)
	if err != nil {
		return nil, "", fmt.Errorf("session: OpenPipeWireRemote: %w", err)
	}

	h := &portalHandle{
		conn:        p.conn,
		sessionPath: sessionPath,
		pipewireFD:  fd,
		streams:     streams,
	}
	return h, newToken, nil
}

// awaitResponse subscribes to org.freedesktop.portal.Request.Response
// on requestPath and blocks until it fires or 60 seconds elapse.
func (p *PortalTokenStrategy) awaitResponse(requestPath dbus.ObjectPath) (map[string]dbus.Variant, error) {
	if err := p.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(requestPath),
		dbus.WithMatchInterface(requestIface),
		dbus.WithMatchMember("Response"),
	); err != nil {
		return nil, err
	}
	defer p.conn.RemoveMatchSignal(
		dbus.WithMatchObjectPath(requestPath),
		dbus.WithMatchInterface(requestIface),
		dbus.WithMatchMember("Response"),
	)

	ch := make(chan *dbus.Signal, 1)
	p.conn.Signal(ch)
	defer p.conn.RemoveSignal(ch)

	select {
	case sig := <-ch:
		if len(sig.Body) < 2 {
			return nil, fmt.Errorf("session: malformed Response signal")
		}
		code, _ := sig.Body[0].(uint32)
		if code != 0 {
			return nil, fmt.Errorf("session: portal request denied (code=%d)", code)
		}
		results, _ := sig.Body[1].(map[string]dbus.Variant)
		return results, nil
	case <-time.After(60 * time.Second):
		return nil, fmt.Errorf("session: timed out waiting for portal response")
	}
}

func (p *PortalTokenStrategy) createPortalSession(handleToken string) (dbus.ObjectPath, error) {
	obj := p.conn.Object(portalBus, portalPath)
	options := map[string]dbus.Variant{
		"session_handle_token": dbus.MakeVariant(handleToken),
		"handle_token":          dbus.MakeVariant(handleToken),
	}

	var requestPath dbus.ObjectPath
	call := obj.Call(remoteDesktopIface+".CreateSession", 0, options)
	if call.Err != nil {
		return "", call.Err
	}
	if err := call.Store(&requestPath); err != nil {
		return "", err
	}

	results, err := p.awaitResponse(requestPath)
	if err != nil {
		return "", err
	}
	v, ok := results["session_handle"]
	if !ok {
		return "", fmt.Errorf("session: CreateSession response missing session_handle")
	}
	sessionHandle, _ := v.Value().(string)
	return dbus.ObjectPath(sessionHandle), nil
}

func (p *PortalTokenStrategy) selectDevices(sessionPath dbus.ObjectPath) error {
	obj := p.conn.Object(portalBus, portalPath)
	options := map[string]dbus.Variant{
		"types": dbus.MakeVariant(deviceKeyboard | devicePointer),
	}
	var requestPath dbus.ObjectPath
	call := obj.Call(remoteDesktopIface+".SelectDevices", 0, sessionPath, options)
	if call.Err != nil {
		return call.Err
	}
	if err := call.Store(&requestPath); err != nil {
		return err
	}
	_, err := p.awaitResponse(requestPath)
	return err
}

func (p *PortalTokenStrategy) selectPortalSources(sessionPath dbus.ObjectPath, restoreToken string, persist bool) error {
	obj := p.conn.Object(portalBus, portalPath)
	options := map[string]dbus.Variant{
		"types":       dbus.MakeVariant(uint32(1 | 2)), // monitor|virtual
		"cursor_mode": dbus.MakeVariant(uint32(2)),     // embedded
		"multiple":    dbus.MakeVariant(true),
	}
	if persist {
		options["persist_mode"] = dbus.MakeVariant(uint32(2)) // persistent until revoked
	} else {
		options["persist_mode"] = dbus.MakeVariant(uint32(0)) // do not persist
	}
	if restoreToken != "" {
		options["restore_token"] = dbus.MakeVariant(restoreToken)
	}

	var requestPath dbus.ObjectPath
	call := obj.Call(screenCastIface+".SelectSources", 0, sessionPath, options)
	if call.Err != nil {
		return call.Err
	}
	if err := call.Store(&requestPath); err != nil {
		return err
	}
	_, err := p.awaitResponse(requestPath)
	return err
}

func (p *PortalTokenStrategy) startPortalSession(sessionPath dbus.ObjectPath) ([]StreamInfo, string, error) {
	obj := p.conn.Object(portalBus, portalPath)
	options := map[string]dbus.Variant{}

	var requestPath dbus.ObjectPath
	call := obj.Call(remoteDesktopIface+".Start", 0, sessionPath, "", options)
	if call.Err != nil {
		return nil, "", call.Err
	}
	if err := call.Store(&requestPath); err != nil {
		return nil, "", err
	}

	results, err := p.awaitResponse(requestPath)
	if err != nil {
		return nil, "", err
	}

	var restoreToken string
	if v, ok := results["restore_token"]; ok {
		restoreToken, _ = v.Value().(string)
	}

	streams := parseStreams(results["streams"])
	if len(streams) == 0 {
		return nil, "", fmt.Errorf("session: no streams available (permission denied or no monitors)")
	}
	return streams, restoreToken, nil
}

// parseStreams decodes the `streams` a(ua{sv}) array from Start's results.
func parseStreams(v dbus.Variant) []StreamInfo {
	raw, ok := v.Value().([][]interface{})
	if !ok {
		return nil
	}
	out := make([]StreamInfo, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			continue
		}
		nodeID, _ := entry[0].(uint32)
		props, _ := entry[1].(map[string]dbus.Variant)
		stream := StreamInfo{NodeID: nodeID}
		if size, ok := props["size"]; ok {
			if dims, ok := size.Value().([]int32); ok && len(dims) == 2 {
				stream.Width, stream.Height = dims[0], dims[1]
			}
		}
		if pos, ok := props["position"]; ok {
			if xy, ok := pos.Value().([]int32); ok && len(xy) == 2 {
				stream.X, stream.Y = xy[0], xy[1]
			}
		}
		out = append(out, stream)
	}
	return out
}

func (p *PortalTokenStrategy) openPipeWireRemote(sessionPath dbus.ObjectPath) (int, error) {
	obj := p.conn.Object(portalBus, portalPath)
	options := map[string]dbus.Variant{}

	call := obj.Call(screenCastIface+".OpenPipeWireRemote", 0, sessionPath, options)
	if call.Err != nil {
		return -1, call.Err
	}
	if len(call.Body) == 0 {
		return -1, fmt.Errorf("session: OpenPipeWireRemote returned no fd")
	}
	fd, ok := call.Body[0].(dbus.UnixFD)
	if !ok {
		return -1, fmt.Errorf("session: OpenPipeWireRemote reply not a UnixFD")
	}

	// The fd in the D-Bus reply is only valid until the reply message is
	// freed; dup it so it outlives that boundary.
	dup, err := unix.Dup(int(fd))
	if err != nil {
		return -1, fmt.Errorf("session: dup pipewire fd: %w", err)
	}
	return dup, nil
}

func sanitizeToken(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// portalHandle is the SessionHandle produced by PortalTokenStrategy.
type portalHandle struct {
	conn        *dbus.Conn
	sessionPath dbus.ObjectPath
	pipewireFD  int
	streams     []StreamInfo

	mu     sync.Mutex
	closed bool
}

func (h *portalHandle) Type() Type                { return TypePortal }
func (h *portalHandle) Streams() []StreamInfo      { return h.streams }
func (h *portalHandle) PipeWireAccess() PipeWireAccess {
	return PipeWireAccess{FD: h.pipewireFD, Available: true}
}
func (h *portalHandle) ClipboardComponents() (ClipboardComponents, bool) {
	return ClipboardComponents{SessionPath: string(h.sessionPath)}, true
}

func (h *portalHandle) notify(method string, args ...interface{}) error {
	obj := h.conn.Object(portalBus, portalPath)
	call := obj.Call(remoteDesktopIface+"."+method, 0, append([]interface{}{h.sessionPath, map[string]dbus.Variant{}}, args...)...)
	return call.Err
}

func (h *portalHandle) NotifyKeyboardKeycode(ctx context.Context, keycode int32, pressed bool) error {
	state := uint32(0)
	if pressed {
		state = 1
	}
	return h.notify("NotifyKeyboardKeycode", keycode, state)
}

func (h *portalHandle) NotifyPointerMotionAbsolute(ctx context.Context, streamID uint32, x, y float64) error {
	return h.notify("NotifyPointerMotionAbsolute", streamID, x, y)
}

func (h *portalHandle) NotifyPointerButton(ctx context.Context, button int32, pressed bool) error {
	state := uint32(0)
	if pressed {
		state = 1
	}
	return h.notify("NotifyPointerButton", button, state)
}

func (h *portalHandle) NotifyPointerAxis(ctx context.Context, dx, dy float64) error {
	return h.notify("NotifyPointerAxis", dx, dy)
}

func (h *portalHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.pipewireFD >= 0 {
		unix.Close(h.pipewireFD)
	}
	obj := h.conn.Object(portalBus, h.sessionPath)
	obj.Call("org.freedesktop.portal.Session.Close", 0)
	return nil
}
