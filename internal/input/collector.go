package input

import (
	"sync"
	"time"
)

// MaxQueuedGestures bounds the gesture queue between two ticks.
const MaxQueuedGestures = 64

// Collector holds the latest input written by transport goroutines. The
// simulation loop reads it once per tick; nothing else in the core touches
// host input state.
type Collector struct {
	mu sync.Mutex

	current  Snapshot
	respawn  bool
	gestures []Gesture
	dropped  int

	lastInputTime time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		gestures: make([]Gesture, 0, 8),
	}
}

// Apply replaces the held input state. A respawn request is latched until
// the next Snapshot call.
func (c *Collector) Apply(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s.AxisX = ClampAxis(s.AxisX)
	s.AxisY = ClampAxis(s.AxisY)
	if s.Respawn {
		c.respawn = true
	}
	s.Respawn = false
	c.current = s
	c.lastInputTime = time.Now()
}

// QueueGesture appends a gesture; it is dropped when the queue is full or
// the kind is unknown.
func (c *Collector) QueueGesture(g Gesture) bool {
	if !g.Valid() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.gestures) >= MaxQueuedGestures {
		c.dropped++
		return false
	}
	c.gestures = append(c.gestures, g)
	return true
}

// Snapshot returns the input state for this tick and consumes a pending
// respawn request.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.current
	s.Respawn = c.respawn
	c.respawn = false
	return s
}

// DrainGestures returns the queued gestures in arrival order and empties the
// queue.
func (c *Collector) DrainGestures() []Gesture {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.gestures) == 0 {
		return nil
	}
	out := make([]Gesture, len(c.gestures))
	copy(out, c.gestures)
	c.gestures = c.gestures[:0]
	return out
}

// Reset clears held input, e.g. when the controlling viewer disconnects.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = Snapshot{}
	c.respawn = false
	c.gestures = c.gestures[:0]
}

// Dropped returns how many gestures were discarded because the queue was full.
func (c *Collector) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// LastInputTime returns when Apply was last called.
func (c *Collector) LastInputTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastInputTime
}
