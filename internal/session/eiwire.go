package session

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
)

// fdToFile wraps a raw fd as an *os.File so it can be turned into a
// net.Conn via net.FileConn.
func fdToFile(fd int) *os.File {
	return os.NewFile(uintptr(fd), "eis-socket")
}

// eiMessage is one decoded EI protocol message: the wire format is
// wire-compatible with libwayland (the EI/EIS protocol deliberately
// reuses it) — a uint32 object id, a uint32 packing (opcode<<16|size),
// followed by size-8 bytes of arguments.
type eiMessage struct {
	ObjectID uint32
	Opcode   uint16
	Args     []byte
}

// eiConn is a minimal reader/writer over the EIS Unix socket handed
// back by Portal RemoteDesktop.ConnectToEIS. It owns no protocol
// object/interface tables beyond what the libei event loop contract
// (§4.K) requires: handshake, seat/device capability tracking, ping,
// and frame/flush on the input send path.
type eiConn struct {
	conn net.Conn
}

func newEIConn(conn net.Conn) *eiConn {
	return &eiConn{conn: conn}
}

func (c *eiConn) readMessage() (*eiMessage, error) {
	var header [8]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return nil, err
	}
	objectID := binary.LittleEndian.Uint32(header[0:4])
	packed := binary.LittleEndian.Uint32(header[4:8])
	size := packed & 0xffff
	opcode := uint16(packed >> 16)

	if size < 8 {
		return nil, fmt.Errorf("eiwire: invalid message size %d", size)
	}
	args := make([]byte, size-8)
	if len(args) > 0 {
		if _, err := io.ReadFull(c.conn, args); err != nil {
			return nil, err
		}
	}
	return &eiMessage{ObjectID: objectID, Opcode: opcode, Args: args}, nil
}

func (c *eiConn) writeMessage(objectID uint32, opcode uint16, args []byte) error {
	size := uint32(8 + len(args))
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], objectID)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(opcode)<<16|size)
	copy(buf[8:], args)
	_, err := c.conn.Write(buf)
	return err
}

func (c *eiConn) Close() error {
	return c.conn.Close()
}

// appendUint32 and appendFixed are small helpers for building argument
// payloads for outbound messages (motion deltas, button codes, etc.),
// matching the fixed-point encoding libei inherits from Wayland.
func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendFixed(buf []byte, v float64) []byte {
	return appendUint32(buf, uint32(int32(v*256.0)))
}
