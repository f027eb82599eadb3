package egfx

// Codec identifies the H.264 coding used for one surface's bitstream.
type Codec int

const (
	CodecAvc420 Codec = iota
	CodecAvc444
)

// PixelFormat is always XRGB for this implementation; other formats
// from MS-RDPEGFX are out of scope.
type PixelFormat int

const PixelFormatXRGB PixelFormat = 0

// CapabilitySet is one entry from a client's CapabilitiesAdvertise PDU.
type CapabilitySet struct {
	Version uint32 // e.g. 0x00080105 for V8.1, 0x000A0404 for V10.4
	Flags   uint32
}

// Capability version constants (MS-RDPEGFX 2.2.1.6).
const (
	CapsVersion81  uint32 = 0x00080105
	CapsVersion104 uint32 = 0x000A0404
	CapsVersion105 uint32 = 0x000A0405
	CapsVersion106 uint32 = 0x000A0406
	CapsVersion107 uint32 = 0x000A0407

	CapsFlagAVC420Enabled uint32 = 0x1
)

// SelectCapabilities picks the best entry per §4.L's preference order:
// a V8.1 entry with AVC420_ENABLED, else any V10.4-10.7 entry, else the
// first entry.
func SelectCapabilities(sets []CapabilitySet) (CapabilitySet, bool) {
	if len(sets) == 0 {
		return CapabilitySet{}, false
	}
	for _, s := range sets {
		if s.Version == CapsVersion81 && s.Flags&CapsFlagAVC420Enabled != 0 {
			return s, true
		}
	}
	for _, s := range sets {
		switch s.Version {
		case CapsVersion104, CapsVersion105, CapsVersion106, CapsVersion107:
			return s, true
		}
	}
	return sets[0], true
}

// Rect is a pixel rectangle as used by RDPGFX_RECT16, with Right and
// Bottom exclusive: a full surface is {0, 0, width, height}.
type Rect struct {
	Left, Top, Right, Bottom uint16
}

// Timestamp is the four-tuple encoding used by RDPGFX_START_FRAME_PDU's
// timestamp field (§4.L).
type Timestamp struct {
	Hours        uint8
	Minutes      uint8
	Seconds      uint8
	Milliseconds uint16
}

// EncodeTimestamp converts a millisecond counter into the PDU's
// {ms, s, m, h} tuple: ms%1000, (ts/1000)%60, (ts/60000)%60, (ts/3600000)%24.
func EncodeTimestamp(ts uint64) Timestamp {
	return Timestamp{
		Milliseconds: uint16(ts % 1000),
		Seconds:      uint8((ts / 1000) % 60),
		Minutes:      uint8((ts / 60000) % 60),
		Hours:        uint8((ts / 3600000) % 24),
	}
}

// StartFramePDU begins a frame on the EGFX channel.
type StartFramePDU struct {
	Timestamp Timestamp
	FrameID   uint32
}

// WireToSurface1PDU carries one surface's encoded bitstream.
type WireToSurface1PDU struct {
	SurfaceID   uint16
	Codec       Codec
	PixelFormat PixelFormat
	DestRect    Rect
	BitmapData  []byte
}

// EndFramePDU closes the frame begun by the matching StartFramePDU.
type EndFramePDU struct {
	FrameID uint32
}

// CapabilitiesConfirmPDU is the server's reply to CapabilitiesAdvertise.
type CapabilitiesConfirmPDU struct {
	Selected CapabilitySet
}

// CreateSurfacePDU allocates a server-side surface the client must mirror.
type CreateSurfacePDU struct {
	SurfaceID   uint16
	Width       uint16
	Height      uint16
	PixelFormat PixelFormat
}

// MapSurfaceToOutputPDU binds a surface to a monitor output origin.
type MapSurfaceToOutputPDU struct {
	SurfaceID uint16
	OutputOriginX uint32
	OutputOriginY uint32
}

// FrameAcknowledgePDU is received from the client, not sent.
type FrameAcknowledgePDU struct {
	FrameID          uint32
	TotalFramesDecoded uint32
}

// OutboundPDU is any PDU the channel writer transmits to the client, in
// the order the channel state machine produced them.
type OutboundPDU interface {
	isOutboundPDU()
}

func (CapabilitiesConfirmPDU) isOutboundPDU()  {}
func (CreateSurfacePDU) isOutboundPDU()        {}
func (MapSurfaceToOutputPDU) isOutboundPDU()   {}
func (StartFramePDU) isOutboundPDU()           {}
func (WireToSurface1PDU) isOutboundPDU()       {}
func (EndFramePDU) isOutboundPDU()             {}
