package clipboard

import (
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	remoteDesktopSessionIface = "org.freedesktop.portal.RemoteDesktop.Session"
	clipboardSessionIface     = remoteDesktopSessionIface

	selectionTransferSignal     = remoteDesktopSessionIface + ".SelectionTransfer"
	selectionOwnerChangedSignal = remoteDesktopSessionIface + ".SelectionOwnerChanged"
)

// formatMapping is a two-way RDP clipboard format <-> portal MIME type
// entry. RDP format names are the conventional CF_* / registered-name
// strings used on the wire; file transfer (CF_HDROP) is intentionally
// absent — it has no MIME counterpart here and is dropped silently by
// RDPFormatToMime/MimeToRDPFormat rather than erroring.
type formatMapping struct {
	rdpFormat string
	mimeType  string
}

var formatTable = []formatMapping{
	{"CF_UNICODETEXT", "text/plain;charset=utf-8"},
	{"CF_TEXT", "text/plain"},
	{"CF_DIB", "image/bmp"},
	{"PNG", "image/png"},
}

// RDPFormatToMime maps an RDP clipboard format name to its portal MIME
// type. Returns "", false for formats with no mapping (e.g. CF_HDROP).
func RDPFormatToMime(rdpFormat string) (string, bool) {
	for _, m := range formatTable {
		if m.rdpFormat == rdpFormat {
			return m.mimeType, true
		}
	}
	return "", false
}

// MimeToRDPFormat maps a portal MIME type to its RDP clipboard format
// name. Returns "", false for MIME types with no mapping.
func MimeToRDPFormat(mimeType string) (string, bool) {
	for _, m := range formatTable {
		if m.mimeType == mimeType {
			return m.rdpFormat, true
		}
	}
	return "", false
}

// rdpFormatsToMimeTypes maps a list of RDP format names to portal MIME
// types, dropping unmapped formats silently.
func rdpFormatsToMimeTypes(rdpFormats []string) []string {
	out := make([]string, 0, len(rdpFormats))
	for _, f := range rdpFormats {
		if mime, ok := RDPFormatToMime(f); ok {
			out = append(out, mime)
		}
	}
	return out
}

// mimeTypesToRDPFormats maps a list of portal MIME types to RDP format
// names, dropping unmapped types silently.
func mimeTypesToRDPFormats(mimeTypes []string) []string {
	out := make([]string, 0, len(mimeTypes))
	for _, m := range mimeTypes {
		if rdp, ok := MimeToRDPFormat(m); ok {
			out = append(out, rdp)
		}
	}
	return out
}

// RDPPasteFunc fetches the actual clipboard payload from the RDP
// client for the given RDP format name, in response to a portal paste
// request (SelectionTransfer).
type RDPPasteFunc func(rdpFormat string) ([]byte, error)

// LocalFormatListFunc is invoked with the RDP format names to announce
// to the client whenever the local/portal clipboard owner changes.
type LocalFormatListFunc func(rdpFormats []string)

// Bridge implements delayed-rendering clipboard redirection between
// the RDP client and the XDG Desktop Portal RemoteDesktop session's
// clipboard interface: formats are announced on copy, payloads are
// only fetched and transferred on paste.
type Bridge struct {
	conn        *dbus.Conn
	sessionPath dbus.ObjectPath
	detector    *Detector

	pasteFromRDP    RDPPasteFunc
	announceToRDP   LocalFormatListFunc

	mu               sync.Mutex
	lastLocalMime    []string
	signalCh         chan *dbus.Signal
	stop             chan struct{}
	started          bool
}

// NewBridge creates a clipboard bridge bound to an already-established
// RemoteDesktop portal session, using detector for RDP<->local loop
// suppression (DefaultConfig's 500ms window unless the caller
// configures otherwise).
func NewBridge(conn *dbus.Conn, sessionPath dbus.ObjectPath, detector *Detector, pasteFromRDP RDPPasteFunc, announceToRDP LocalFormatListFunc) *Bridge {
	if detector == nil {
		detector = New()
	}
	return &Bridge{
		conn:          conn,
		sessionPath:   sessionPath,
		detector:      detector,
		pasteFromRDP:  pasteFromRDP,
		announceToRDP: announceToRDP,
		stop:          make(chan struct{}),
	}
}

// Start subscribes to SelectionTransfer and SelectionOwnerChanged and
// begins dispatching them on a background goroutine. Safe to call once.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	if err := b.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(b.sessionPath),
		dbus.WithMatchInterface(remoteDesktopSessionIface),
		dbus.WithMatchMember("SelectionTransfer"),
	); err != nil {
		return fmt.Errorf("clipboard: subscribe SelectionTransfer: %w", err)
	}
	if err := b.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(b.sessionPath),
		dbus.WithMatchInterface(remoteDesktopSessionIface),
		dbus.WithMatchMember("SelectionOwnerChanged"),
	); err != nil {
		return fmt.Errorf("clipboard: subscribe SelectionOwnerChanged: %w", err)
	}

	b.signalCh = make(chan *dbus.Signal, 16)
	b.conn.Signal(b.signalCh)
	b.started = true

	go b.dispatchLoop()
	return nil
}

// Stop ends signal dispatch. Safe to call once.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return
	}
	close(b.stop)
	b.started = false
}

func (b *Bridge) dispatchLoop() {
	for {
		select {
		case sig, ok := <-b.signalCh:
			if !ok {
				return
			}
			switch sig.Name {
			case selectionTransferSignal:
				b.handleSelectionTransfer(sig)
			case selectionOwnerChangedSignal:
				b.handleSelectionOwnerChanged(sig)
			}
		case <-b.stop:
			return
		}
	}
}

// OnRDPFormatList is the RDP->local half: the RDP client announced
// these format names via FormatList. It maps them to portal MIME
// types and calls SetSelection, unless the loop detector recognizes
// this as an echo of what Local just announced.
func (b *Bridge) OnRDPFormatList(rdpFormats []string) error {
	mimeTypes := rdpFormatsToMimeTypes(rdpFormats)
	if len(mimeTypes) == 0 {
		return nil
	}

	if b.detector.ShouldSkipSyncMime(mimeTypes, SourceRDP) {
		return nil
	}
	b.detector.RecordMimeTypes(mimeTypes, SourceRDP)
	b.detector.RecordSync(SourceRDP)

	session := b.conn.Object("org.freedesktop.portal.Desktop", b.sessionPath)
	opts := map[string]dbus.Variant{"mime-types": dbus.MakeVariant(mimeTypes)}
	if call := session.Call(clipboardSessionIface+".SetSelection", 0, opts); call.Err != nil {
		return fmt.Errorf("clipboard: SetSelection: %w", call.Err)
	}
	return nil
}

// handleSelectionTransfer answers a portal paste request: it asks the
// RDP client for the payload in that format, then writes it through
// the fd the portal hands back.
func (b *Bridge) handleSelectionTransfer(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	mimeType, ok := sig.Body[0].(string)
	if !ok {
		return
	}
	serial, ok := sig.Body[1].(uint32)
	if !ok {
		return
	}

	session := b.conn.Object("org.freedesktop.portal.Desktop", b.sessionPath)
	rdpFormat, ok := MimeToRDPFormat(mimeType)
	if !ok || b.pasteFromRDP == nil {
		session.Call(clipboardSessionIface+".SelectionWriteDone", 0, serial, false)
		return
	}

	data, err := b.pasteFromRDP(rdpFormat)
	if err != nil || len(data) == 0 {
		session.Call(clipboardSessionIface+".SelectionWriteDone", 0, serial, false)
		return
	}

	b.detector.RecordContent(data, SourceRDP)

	call := session.Call(clipboardSessionIface+".SelectionWrite", 0, serial)
	if call.Err != nil || len(call.Body) == 0 {
		session.Call(clipboardSessionIface+".SelectionWriteDone", 0, serial, false)
		return
	}
	fd, ok := call.Body[0].(dbus.UnixFD)
	if !ok {
		session.Call(clipboardSessionIface+".SelectionWriteDone", 0, serial, false)
		return
	}

	file := os.NewFile(uintptr(fd), "clipboard-write")
	success := false
	if file != nil {
		_, writeErr := file.Write(data)
		file.Close()
		success = writeErr == nil
	}
	session.Call(clipboardSessionIface+".SelectionWriteDone", 0, serial, success)
}

// handleSelectionOwnerChanged is the local->RDP half: a non-RDP
// application became the clipboard owner. It maps the new MIME types
// to RDP format names and announces them, unless they're an echo of
// what RDP itself last sent, or the session is still the owner (our
// own SetSelection echoing back).
func (b *Bridge) handleSelectionOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) < 1 {
		return
	}
	props, ok := sig.Body[len(sig.Body)-1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	if isOwner, ok := props["session-is-owner"].Value().(bool); ok && isOwner {
		return
	}
	rawMime, ok := props["mime-types"].Value().([]string)
	if !ok {
		return
	}

	b.mu.Lock()
	if stringSlicesEqual(b.lastLocalMime, rawMime) {
		b.mu.Unlock()
		return
	}
	b.lastLocalMime = append([]string{}, rawMime...)
	b.mu.Unlock()

	if b.detector.ShouldSkipSyncMime(rawMime, SourceLocal) {
		return
	}
	b.detector.RecordMimeTypes(rawMime, SourceLocal)
	b.detector.RecordSync(SourceLocal)

	rdpFormats := mimeTypesToRDPFormats(rawMime)
	if len(rdpFormats) == 0 || b.announceToRDP == nil {
		return
	}
	b.announceToRDP(rdpFormats)
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
