package network

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/race/drive/internal/input"
	"github.com/race/drive/internal/physics"
	"github.com/race/drive/internal/render"
)

func TestDecodeInput(t *testing.T) {
	p := NewProtocol()

	msg, err := p.DecodeInput([]byte{MsgTypeInput, 7, KeyUp | KeyRight, 0x81, 64, InputFlagRespawn})
	require.NoError(t, err)
	assert.Equal(t, uint8(7), msg.Sequence)

	s := msg.Snapshot()
	assert.True(t, s.Accelerate)
	assert.False(t, s.Brake)
	assert.False(t, s.SteerLeft)
	assert.True(t, s.SteerRight)
	assert.InDelta(t, -1, s.AxisX, 1e-9)
	assert.InDelta(t, 64.0/127, s.AxisY, 1e-9)
	assert.True(t, s.Respawn)
}

func TestDecodeInput_Rejects(t *testing.T) {
	p := NewProtocol()

	_, err := p.DecodeInput([]byte{MsgTypeInput, 0, 0})
	assert.ErrorIs(t, err, ErrBufferTooSmall)

	_, err = p.DecodeInput([]byte{MsgTypePing, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func gestureBytes(kind uint8, x, y float32) []byte {
	buf := make([]byte, GestureMessageSize)
	buf[0] = MsgTypeGesture
	buf[1] = kind
	binary.LittleEndian.PutUint32(buf[2:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(buf[6:], math.Float32bits(y))
	return buf
}

func TestDecodeGesture(t *testing.T) {
	p := NewProtocol()

	tests := []struct {
		name string
		data []byte
		want input.Gesture
	}{
		{
			name: "drag start",
			data: gestureBytes(uint8(input.GestureDragStart), 120, 340),
			want: input.Gesture{Kind: input.GestureDragStart, X: 120, Y: 340},
		},
		{
			name: "drag end",
			data: gestureBytes(uint8(input.GestureDragEnd), 0, 0),
			want: input.Gesture{Kind: input.GestureDragEnd},
		},
		{
			name: "scroll carries delta",
			data: gestureBytes(uint8(input.GestureScroll), -100, 0),
			want: input.Gesture{Kind: input.GestureScroll, Delta: -100},
		},
		{
			name: "pinch carries delta",
			data: gestureBytes(uint8(input.GesturePinch), 2.5, 0),
			want: input.Gesture{Kind: input.GesturePinch, Delta: 2.5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := p.DecodeGesture(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Gesture())
		})
	}
}

func TestDecodeGesture_Rejects(t *testing.T) {
	p := NewProtocol()

	_, err := p.DecodeGesture(gestureBytes(0, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidMessage, "unknown kind")

	_, err = p.DecodeGesture(gestureBytes(99, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidMessage, "unknown kind")

	_, err = p.DecodeGesture([]byte{MsgTypeGesture, 1, 0})
	assert.ErrorIs(t, err, ErrBufferTooSmall)

	data := gestureBytes(1, 0, 0)
	data[0] = MsgTypeInput
	_, err = p.DecodeGesture(data)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestPingPong(t *testing.T) {
	p := NewProtocol()

	ping := make([]byte, PingMessageSize)
	ping[0] = MsgTypePing
	binary.LittleEndian.PutUint64(ping[1:], 123456789)

	msg, err := p.DecodePing(ping)
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789), msg.Timestamp)

	pong := p.EncodePong(msg.Timestamp)
	require.Len(t, pong, 9)
	assert.Equal(t, MsgTypePong, pong[0])
	assert.Equal(t, uint64(123456789), binary.LittleEndian.Uint64(pong[1:]))

	_, err = p.DecodePing(ping[:4])
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestEncodeFrame_Layout(t *testing.T) {
	p := NewProtocol()
	frame := render.Frame{
		Chassis: physics.Transform{Position: mgl64.Vec3{1, 2, 3}, Orientation: mgl64.QuatIdent()},
		Wheels: []physics.Transform{
			{Position: mgl64.Vec3{4, 5, 6}, Orientation: mgl64.QuatIdent()},
			{Position: mgl64.Vec3{7, 8, 9}, Orientation: mgl64.QuatIdent()},
		},
		CameraPos:    mgl64.Vec3{14, 14, 14},
		CameraLookAt: mgl64.Vec3{0, 0.5, 0},
		HasFocus:     true,
		Focus:        24,
		Aperture:     0.01,
	}

	buf := p.EncodeFrame(ConvertFrame(42, FlagRecovering, 12.5, frame))

	require.Len(t, buf, 71+2*28)
	assert.Equal(t, MsgTypeFrame, buf[0])
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(buf[1:5]))
	assert.Equal(t, FlagRecovering|FlagFocus, buf[5])
	assert.Equal(t, uint8(2), buf[6])
	assert.Equal(t, float32(12.5), getFloat(buf[7:]))
	// chassis position, then identity orientation w
	assert.Equal(t, float32(1), getFloat(buf[11:]))
	assert.Equal(t, float32(1), getFloat(buf[23:]))
	// second wheel x
	assert.Equal(t, float32(7), getFloat(buf[11+28+28:]))

	decoded, err := p.DecodeFrame(buf)
	require.NoError(t, err)
	require.Len(t, decoded.Wheels, 2)
	assert.Equal(t, [3]float32{4, 5, 6}, decoded.Wheels[0].Position)
	assert.Equal(t, [3]float32{14, 14, 14}, decoded.CameraPos)
	assert.Equal(t, [3]float32{0, 0.5, 0}, decoded.CameraLookAt)
	assert.Equal(t, float32(24), decoded.Focus)
	assert.Equal(t, float32(0.01), decoded.Aperture)
}

func TestDecodeFrame_Truncated(t *testing.T) {
	p := NewProtocol()
	buf := p.EncodeFrame(ConvertFrame(1, 0, 0, render.Frame{
		Wheels: make([]physics.Transform, 4),
	}))

	_, err := p.DecodeFrame(buf[:len(buf)-1])
	assert.ErrorIs(t, err, ErrBufferTooSmall)

	_, err = p.DecodeFrame(buf[:10])
	assert.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestConvertFrame_NoFocus(t *testing.T) {
	msg := ConvertFrame(1, FlagDetached, 0, render.Frame{Focus: 5, Aperture: 1})

	assert.Equal(t, FlagDetached, msg.Flags)
	assert.Zero(t, msg.Focus)
	assert.Zero(t, msg.Aperture)
}

func TestEncodeSessionInfo(t *testing.T) {
	p := NewProtocol()

	buf := p.EncodeSessionInfo(SessionInfoMessage{
		SessionID:     "abc",
		ViewerCount:   2,
		MaxViewers:    16,
		TickRate:      60,
		BroadcastRate: 20,
		WheelCount:    4,
	})

	assert.Equal(t, []byte{MsgTypeSessionInfo, 3, 'a', 'b', 'c', 2, 16, 60, 20, 4}, buf)
}

func TestEncodeError_Truncates(t *testing.T) {
	p := NewProtocol()
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}

	buf := p.EncodeError(ErrorCodeSessionFull, string(long))

	assert.Equal(t, MsgTypeError, buf[0])
	assert.Equal(t, ErrorCodeSessionFull, buf[1])
	assert.Equal(t, uint8(255), buf[2])
	assert.Len(t, buf, 3+255)
}

func TestAxisEncoding(t *testing.T) {
	assert.Equal(t, int8(127), EncodeAxis(1))
	assert.Equal(t, int8(-127), EncodeAxis(-5))
	assert.Equal(t, int8(0), EncodeAxis(math.NaN()))
	assert.InDelta(t, 0.5, DecodeAxis(EncodeAxis(0.5)), 0.01)
	assert.Equal(t, -1.0, DecodeAxis(-128))
}

func TestMessageType(t *testing.T) {
	p := NewProtocol()

	_, err := p.MessageType(nil)
	assert.ErrorIs(t, err, ErrBufferTooSmall)

	typ, err := p.MessageType([]byte{MsgTypeGesture})
	require.NoError(t, err)
	assert.Equal(t, MsgTypeGesture, typ)
}
