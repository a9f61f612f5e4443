// Package network implements the little-endian binary protocol spoken over
// the viewer websocket.
package network

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/race/drive/internal/input"
	"github.com/race/drive/internal/physics"
	"github.com/race/drive/internal/render"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrBufferTooSmall = errors.New("buffer too small")
)

// Protocol handles binary encoding/decoding
type Protocol struct{}

// NewProtocol creates a new protocol handler
func NewProtocol() *Protocol {
	return &Protocol{}
}

// MessageType returns the type byte of a message
func (p *Protocol) MessageType(data []byte) (uint8, error) {
	if len(data) == 0 {
		return 0, ErrBufferTooSmall
	}
	return data[0], nil
}

// DecodeInput decodes a client input message (6 bytes)
func (p *Protocol) DecodeInput(data []byte) (*InputMessage, error) {
	if len(data) < InputMessageSize {
		return nil, ErrBufferTooSmall
	}

	if data[0] != MsgTypeInput {
		return nil, ErrInvalidMessage
	}

	return &InputMessage{
		MsgType:  data[0],
		Sequence: data[1],
		Keys:     data[2],
		AxisX:    int8(data[3]),
		AxisY:    int8(data[4]),
		Flags:    data[5],
	}, nil
}

// DecodeGesture decodes a client gesture message (10 bytes)
func (p *Protocol) DecodeGesture(data []byte) (*GestureMessage, error) {
	if len(data) < GestureMessageSize {
		return nil, ErrBufferTooSmall
	}

	if data[0] != MsgTypeGesture {
		return nil, ErrInvalidMessage
	}

	msg := &GestureMessage{
		MsgType: data[0],
		Kind:    data[1],
		X:       math.Float32frombits(binary.LittleEndian.Uint32(data[2:6])),
		Y:       math.Float32frombits(binary.LittleEndian.Uint32(data[6:10])),
	}
	if !msg.Gesture().Valid() {
		return nil, ErrInvalidMessage
	}
	return msg, nil
}

// DecodePing decodes a client ping message (9 bytes)
func (p *Protocol) DecodePing(data []byte) (*PingMessage, error) {
	if len(data) < PingMessageSize {
		return nil, ErrBufferTooSmall
	}

	if data[0] != MsgTypePing {
		return nil, ErrInvalidMessage
	}

	return &PingMessage{
		MsgType:   data[0],
		Timestamp: binary.LittleEndian.Uint64(data[1:9]),
	}, nil
}

// EncodeFrame encodes a frame message
func (p *Protocol) EncodeFrame(f FrameMessage) []byte {
	wheelCount := len(f.Wheels)
	if wheelCount > 255 {
		wheelCount = 255
	}

	buf := make([]byte, frameFixedSize+wheelCount*transformSize)

	buf[0] = MsgTypeFrame
	binary.LittleEndian.PutUint32(buf[1:5], f.Tick)
	buf[5] = f.Flags
	buf[6] = uint8(wheelCount)
	putFloat(buf[7:], f.Speed)

	offset := frameHeaderSize
	offset += putTransform(buf[offset:], f.Chassis)
	for i := 0; i < wheelCount; i++ {
		offset += putTransform(buf[offset:], f.Wheels[i])
	}
	offset += putFloats(buf[offset:], f.CameraPos[:])
	offset += putFloats(buf[offset:], f.CameraLookAt[:])
	putFloat(buf[offset:], f.Focus)
	putFloat(buf[offset+4:], f.Aperture)

	return buf
}

// DecodeFrame decodes a frame message
func (p *Protocol) DecodeFrame(data []byte) (*FrameMessage, error) {
	if len(data) < frameFixedSize {
		return nil, ErrBufferTooSmall
	}

	if data[0] != MsgTypeFrame {
		return nil, ErrInvalidMessage
	}

	wheelCount := int(data[6])
	if len(data) < frameFixedSize+wheelCount*transformSize {
		return nil, ErrBufferTooSmall
	}

	f := &FrameMessage{
		MsgType: data[0],
		Tick:    binary.LittleEndian.Uint32(data[1:5]),
		Flags:   data[5],
		Speed:   getFloat(data[7:]),
		Wheels:  make([]TransformData, wheelCount),
	}

	offset := frameHeaderSize
	f.Chassis, offset = getTransform(data, offset)
	for i := range f.Wheels {
		f.Wheels[i], offset = getTransform(data, offset)
	}
	offset = getFloats(data, offset, f.CameraPos[:])
	offset = getFloats(data, offset, f.CameraLookAt[:])
	f.Focus = getFloat(data[offset:])
	f.Aperture = getFloat(data[offset+4:])

	return f, nil
}

// EncodeSessionInfo encodes session info message
func (p *Protocol) EncodeSessionInfo(info SessionInfoMessage) []byte {
	idBytes := []byte(info.SessionID)
	if len(idBytes) > 255 {
		idBytes = idBytes[:255]
	}

	buf := make([]byte, 7+len(idBytes))
	buf[0] = MsgTypeSessionInfo
	buf[1] = uint8(len(idBytes))
	copy(buf[2:], idBytes)
	offset := 2 + len(idBytes)
	buf[offset] = info.ViewerCount
	buf[offset+1] = info.MaxViewers
	buf[offset+2] = info.TickRate
	buf[offset+3] = info.BroadcastRate
	buf[offset+4] = info.WheelCount

	return buf
}

// EncodePong encodes a pong message
func (p *Protocol) EncodePong(timestamp uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = MsgTypePong
	binary.LittleEndian.PutUint64(buf[1:9], timestamp)
	return buf
}

// EncodeError encodes an error message
func (p *Protocol) EncodeError(code uint8, message string) []byte {
	msgBytes := []byte(message)
	if len(msgBytes) > 255 {
		msgBytes = msgBytes[:255]
	}

	buf := make([]byte, 3+len(msgBytes))
	buf[0] = MsgTypeError
	buf[1] = code
	buf[2] = uint8(len(msgBytes))
	copy(buf[3:], msgBytes)

	return buf
}

// Snapshot converts the message to the simulation's input snapshot
func (m *InputMessage) Snapshot() input.Snapshot {
	return input.Snapshot{
		Accelerate: m.Keys&KeyUp != 0,
		Brake:      m.Keys&KeyDown != 0,
		SteerLeft:  m.Keys&KeyLeft != 0,
		SteerRight: m.Keys&KeyRight != 0,
		AxisX:      DecodeAxis(m.AxisX),
		AxisY:      DecodeAxis(m.AxisY),
		Respawn:    m.Flags&InputFlagRespawn != 0,
	}
}

// Gesture converts the message to a camera gesture
func (m *GestureMessage) Gesture() input.Gesture {
	g := input.Gesture{Kind: input.GestureKind(m.Kind)}
	switch g.Kind {
	case input.GestureScroll, input.GesturePinch:
		g.Delta = float64(m.X)
	default:
		g.X, g.Y = float64(m.X), float64(m.Y)
	}
	return g
}

// ConvertFrame converts a rendered scene to network format
func ConvertFrame(tick uint64, flags uint8, speed float64, f render.Frame) FrameMessage {
	msg := FrameMessage{
		MsgType:      MsgTypeFrame,
		Tick:         uint32(tick),
		Flags:        flags,
		Speed:        float32(speed),
		Chassis:      ConvertTransform(f.Chassis),
		Wheels:       make([]TransformData, len(f.Wheels)),
		CameraPos:    vec32(f.CameraPos),
		CameraLookAt: vec32(f.CameraLookAt),
	}
	for i, w := range f.Wheels {
		msg.Wheels[i] = ConvertTransform(w)
	}
	if f.HasFocus {
		msg.Flags |= FlagFocus
		msg.Focus = float32(f.Focus)
		msg.Aperture = float32(f.Aperture)
	}
	return msg
}

// ConvertTransform narrows a pose to float32
func ConvertTransform(t physics.Transform) TransformData {
	q := t.Orientation
	return TransformData{
		Position:    vec32(t.Position),
		Orientation: [4]float32{float32(q.W), float32(q.V.X()), float32(q.V.Y()), float32(q.V.Z())},
	}
}

// DecodeAxis converts an int8 axis to float64
func DecodeAxis(v int8) float64 {
	return math.Max(-1, float64(v)/127.0)
}

// EncodeAxis converts a float64 axis in [-1, 1] to int8
func EncodeAxis(v float64) int8 {
	return int8(math.Round(input.ClampAxis(v) * 127))
}

func vec32(v mgl64.Vec3) [3]float32 {
	return [3]float32{float32(v.X()), float32(v.Y()), float32(v.Z())}
}

func putFloat(buf []byte, v float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
}

func getFloat(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}

func putFloats(buf []byte, vs []float32) int {
	for i, v := range vs {
		putFloat(buf[i*4:], v)
	}
	return len(vs) * 4
}

func getFloats(data []byte, offset int, out []float32) int {
	for i := range out {
		out[i] = getFloat(data[offset+i*4:])
	}
	return offset + len(out)*4
}

func putTransform(buf []byte, t TransformData) int {
	n := putFloats(buf, t.Position[:])
	return n + putFloats(buf[n:], t.Orientation[:])
}

func getTransform(data []byte, offset int) (TransformData, int) {
	var t TransformData
	offset = getFloats(data, offset, t.Position[:])
	offset = getFloats(data, offset, t.Orientation[:])
	return t, offset
}
