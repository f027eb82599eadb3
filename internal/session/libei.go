package session

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/lamco/wayland-rdp-server/internal/logging"
)

// EI opcodes relevant to the event loop contract (§4.K). Object id 0
// is the implicit ei_handshake object every connection starts on,
// following the libwayland-compatible wire convention.
const (
	eiOpHandshakeVersion  = 0
	eiOpHandshakeHello    = 1
	eiOpConnectionPing    = 1
	eiOpConnectionSeat    = 2
	eiOpSeatCapability    = 1
	eiOpSeatDone          = 2
	eiOpDeviceCapability  = 1
	eiOpDeviceDone        = 5
	eiOpDeviceResumed     = 6
	eiOpDevicePong        = 2
	eiOpKeyboardKey       = 1
	eiOpPointerMotionRel  = 1
	eiOpButtonButton      = 1
	eiOpScrollAxis        = 1
	eiOpDeviceFrame       = 7
)

const (
	capKeyboard        = uint64(1 << 1)
	capPointer         = uint64(1 << 2)
	capPointerAbsolute = uint64(1 << 3)
)

// LibeiStrategy provides input-only injection via the Portal
// RemoteDesktop.ConnectToEIS() socket and the EI wire protocol
// (§4.K, "libei event loop contract"). Video, when needed, comes from
// a parallel ScreenCast-only Portal session.
type LibeiStrategy struct {
	conn *dbus.Conn
}

func NewLibeiStrategy(conn *dbus.Conn) *LibeiStrategy {
	return &LibeiStrategy{conn: conn}
}

func (l *LibeiStrategy) Name() string { return "libei/EIS" }

func (l *LibeiStrategy) Available(ctx context.Context) bool {
	if l.conn == nil {
		return false
	}
	var has bool
	call := l.conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, portalBus)
	if call.Err != nil {
		return false
	}
	_ = call.Store(&has)
	return has
}

func (l *LibeiStrategy) CreateSession(ctx context.Context) (Handle, error) {
	log := logging.L("session.libei")

	fd, err := l.connectToEIS()
	if err != nil {
		return nil, fmt.Errorf("session: ConnectToEIS: %w", err)
	}

	file := fdToFile(fd)
	rawConn, err := net.FileConn(file)
	file.Close()
	if err != nil {
		return nil, fmt.Errorf("session: wrap EIS fd: %w", err)
	}

	h := &libeiHandle{
		conn:    newEIConn(rawConn),
		seats:   make(map[uint32]*eiSeat),
		devices: make(map[uint32]*eiDevice),
	}
	if err := h.handshake(); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("session: EIS handshake: %w", err)
	}

	h.wg.Add(1)
	go h.eventLoop()

	log.Info("libei session established")
	return h, nil
}

func (l *LibeiStrategy) connectToEIS() (int, error) {
	obj := l.conn.Object(portalBus, portalPath)
	call := obj.Call(remoteDesktopIface+".ConnectToEIS", 0, dbus.ObjectPath(""), map[string]dbus.Variant{})
	if call.Err != nil {
		return -1, call.Err
	}
	if len(call.Body) == 0 {
		return -1, fmt.Errorf("ConnectToEIS returned no fd")
	}
	fd, ok := call.Body[0].(dbus.UnixFD)
	if !ok {
		return -1, fmt.Errorf("ConnectToEIS reply not a UnixFD")
	}
	return int(fd), nil
}

type eiSeat struct {
	id           uint32
	capabilities uint64
}

type eiDevice struct {
	id           uint32
	seat         uint32
	capabilities uint64
	isKeyboard   bool
	isPointer    bool
	serial       uint32
}

// libeiHandle drives the background event loop task: it owns the EIS
// connection and the seat/device maps, protected by mu per §5's
// concurrency model ("modifies shared maps ... protected by a mutex").
type libeiHandle struct {
	conn *eiConn

	mu              sync.Mutex
	seats           map[uint32]*eiSeat
	devices         map[uint32]*eiDevice
	keyboardDevice  uint32
	pointerDevice   uint32
	haveKeyboard    bool
	havePointer     bool

	wg     sync.WaitGroup
	closed bool
}

func (h *libeiHandle) Type() Type                { return TypeLibei }
func (h *libeiHandle) Streams() []StreamInfo      { return nil }
func (h *libeiHandle) PipeWireAccess() PipeWireAccess { return PipeWireAccess{} }
func (h *libeiHandle) ClipboardComponents() (ClipboardComponents, bool) {
	return ClipboardComponents{}, false
}

// handshake completes step 1 of the event loop contract: sender
// context type, named "lamco-rdp-server".
func (h *libeiHandle) handshake() error {
	name := []byte("lamco-rdp-server")
	args := appendUint32(nil, uint32(len(name)))
	args = append(args, name...)
	args = appendUint32(args, 1) // context type: sender
	return h.conn.writeMessage(0, eiOpHandshakeHello, args)
}

// eventLoop implements steps 2-5 of the event loop contract: bind
// capabilities after Seat.Done, classify devices on Device.Done, ack
// Connection.Ping, and record Device.Resumed.serial.
func (h *libeiHandle) eventLoop() {
	defer h.wg.Done()
	log := logging.L("session.libei")

	for {
		msg, err := h.conn.readMessage()
		if err != nil {
			log.Info("libei event loop exiting", "error", err)
			return
		}

		h.mu.Lock()
		switch msg.Opcode {
		case eiOpSeatCapability:
			if seat, ok := h.seats[msg.ObjectID]; ok {
				seat.capabilities |= decodeUint64(msg.Args)
			} else {
				h.seats[msg.ObjectID] = &eiSeat{id: msg.ObjectID, capabilities: decodeUint64(msg.Args)}
			}
		case eiOpSeatDone:
			// capabilities settled; nothing further to bind explicitly here,
			// binding happens implicitly as devices for the seat arrive.
		case eiOpDeviceDone:
			if dev, ok := h.devices[msg.ObjectID]; ok {
				if dev.capabilities&capKeyboard != 0 {
					dev.isKeyboard = true
					h.keyboardDevice = dev.id
					h.haveKeyboard = true
				}
				if dev.capabilities&(capPointer|capPointerAbsolute) != 0 {
					dev.isPointer = true
					h.pointerDevice = dev.id
					h.havePointer = true
				}
			}
		case eiOpDeviceResumed:
			if dev, ok := h.devices[msg.ObjectID]; ok {
				dev.serial = decodeUint32(msg.Args)
			}
		case eiOpConnectionPing:
			h.mu.Unlock()
			_ = h.conn.writeMessage(msg.ObjectID, eiOpDevicePong, appendUint32(nil, 0))
			h.conn.writeMessage(msg.ObjectID, eiOpDeviceFrame, nil)
			continue
		}
		h.mu.Unlock()
	}
}

func decodeUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func decodeUint64(b []byte) uint64 {
	if len(b) < 8 {
		return uint64(decodeUint32(b))
	}
	lo := uint64(decodeUint32(b[0:4]))
	hi := uint64(decodeUint32(b[4:8]))
	return lo | hi<<32
}

// send emits a device event followed by the mandatory frame(serial,
// time_us) + flush pair, per the event loop contract's input send path.
func (h *libeiHandle) send(deviceID uint32, opcode uint16, args []byte) error {
	h.mu.Lock()
	var serial uint32
	if dev, ok := h.devices[deviceID]; ok {
		serial = dev.serial
	}
	h.mu.Unlock()

	if err := h.conn.writeMessage(deviceID, opcode, args); err != nil {
		return err
	}
	frameArgs := appendUint32(nil, serial)
	frameArgs = appendUint32(frameArgs, uint32(time.Now().UnixMicro()))
	return h.conn.writeMessage(deviceID, eiOpDeviceFrame, frameArgs)
}

func (h *libeiHandle) NotifyKeyboardKeycode(ctx context.Context, keycode int32, pressed bool) error {
	h.mu.Lock()
	dev, ok := h.haveKeyboard, h.keyboardDevice
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: no keyboard device bound")
	}
	state := uint32(0)
	if pressed {
		state = 1
	}
	// evdev keycode crossing into libei is keycode - 8.
	args := appendUint32(nil, uint32(keycode-8))
	args = appendUint32(args, state)
	return h.send(dev, eiOpKeyboardKey, args)
}

func (h *libeiHandle) NotifyPointerMotionAbsolute(ctx context.Context, streamID uint32, x, y float64) error {
	h.mu.Lock()
	dev, ok := h.havePointer, h.pointerDevice
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: no pointer device bound")
	}
	args := appendFixed(nil, x)
	args = appendFixed(args, y)
	return h.send(dev, eiOpPointerMotionRel, args)
}

func (h *libeiHandle) NotifyPointerButton(ctx context.Context, button int32, pressed bool) error {
	h.mu.Lock()
	dev, ok := h.havePointer, h.pointerDevice
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: no pointer device bound")
	}
	state := uint32(0)
	if pressed {
		state = 1
	}
	args := appendUint32(nil, uint32(button))
	args = appendUint32(args, state)
	return h.send(dev, eiOpButtonButton, args)
}

func (h *libeiHandle) NotifyPointerAxis(ctx context.Context, dx, dy float64) error {
	h.mu.Lock()
	dev, ok := h.havePointer, h.pointerDevice
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: no pointer device bound")
	}
	args := appendFixed(nil, dx)
	args = appendFixed(args, dy)
	return h.send(dev, eiOpScrollAxis, args)
}

func (h *libeiHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	err := h.conn.Close()
	h.wg.Wait()
	return err
}
