package input

// GestureKind identifies a pointer or touch gesture event.
type GestureKind uint8

const (
	GestureDragStart GestureKind = iota + 1
	GestureDragMove
	GestureDragEnd
	GestureScroll
	GesturePinch
)

func (k GestureKind) String() string {
	switch k {
	case GestureDragStart:
		return "drag_start"
	case GestureDragMove:
		return "drag_move"
	case GestureDragEnd:
		return "drag_end"
	case GestureScroll:
		return "scroll"
	case GesturePinch:
		return "pinch"
	default:
		return "unknown"
	}
}

// Gesture is a discrete camera gesture. X and Y are screen coordinates for
// drags; Delta carries the wheel or pinch amount.
type Gesture struct {
	Kind  GestureKind
	X, Y  float64
	Delta float64
}

// Valid reports whether the kind is known.
func (g Gesture) Valid() bool {
	return g.Kind >= GestureDragStart && g.Kind <= GesturePinch
}
