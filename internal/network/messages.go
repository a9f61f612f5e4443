package network

// Message types
const (
	// Client -> Server
	MsgTypeInput   uint8 = 0x01
	MsgTypeGesture uint8 = 0x02
	MsgTypePing    uint8 = 0x04

	// Server -> Client
	MsgTypeFrame       uint8 = 0x10
	MsgTypeSessionInfo uint8 = 0x14
	MsgTypePong        uint8 = 0x15
	MsgTypeError       uint8 = 0xFF
)

// Message sizes
const (
	InputMessageSize   = 6
	GestureMessageSize = 10
	PingMessageSize    = 9

	transformSize   = 7 * 4
	frameHeaderSize = 1 + 4 + 1 + 1 + 4
	frameFixedSize  = frameHeaderSize + transformSize + 6*4 + 2*4
)

// Frame flags
const (
	FlagFaulting   uint8 = 1 << 0
	FlagRecovering uint8 = 1 << 1
	FlagDetached   uint8 = 1 << 2
	FlagFocus      uint8 = 1 << 3
)

// Key flags (bit field)
const (
	KeyUp    uint8 = 1 << 0
	KeyDown  uint8 = 1 << 1
	KeyLeft  uint8 = 1 << 2
	KeyRight uint8 = 1 << 3
)

// Input flags
const (
	InputFlagRespawn uint8 = 1 << 0
)

// InputMessage from client (6 bytes)
type InputMessage struct {
	MsgType  uint8
	Sequence uint8
	Keys     uint8
	AxisX    int8 // -127 to 127 -> -1.0 (left) to 1.0 (right)
	AxisY    int8 // -127 to 127 -> -1.0 (reverse) to 1.0 (forward)
	Flags    uint8
}

// GestureMessage from client (10 bytes). Scroll and pinch carry their
// delta in X.
type GestureMessage struct {
	MsgType uint8
	Kind    uint8
	X       float32
	Y       float32
}

// PingMessage from client (9 bytes)
type PingMessage struct {
	MsgType   uint8
	Timestamp uint64
}

// TransformData is a pose on the wire (28 bytes): position xyz, then
// orientation w, x, y, z.
type TransformData struct {
	Position    [3]float32
	Orientation [4]float32
}

// FrameMessage to client (71 bytes + 28 per wheel)
type FrameMessage struct {
	MsgType      uint8
	Tick         uint32
	Flags        uint8
	Speed        float32
	Chassis      TransformData
	Wheels       []TransformData
	CameraPos    [3]float32
	CameraLookAt [3]float32
	Focus        float32
	Aperture     float32
}

// SessionInfoMessage to client
type SessionInfoMessage struct {
	MsgType       uint8
	SessionID     string
	ViewerCount   uint8
	MaxViewers    uint8
	TickRate      uint8
	BroadcastRate uint8
	WheelCount    uint8
}

// PongMessage to client
type PongMessage struct {
	MsgType   uint8
	Timestamp uint64
}

// ErrorMessage to client
type ErrorMessage struct {
	MsgType uint8
	Code    uint8
	Message string
}

// Error codes
const (
	ErrorCodeInvalidMessage uint8 = 1
	ErrorCodeSessionFull    uint8 = 2
	ErrorCodeServerError    uint8 = 4
)
