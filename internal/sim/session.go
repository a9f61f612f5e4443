// Package sim runs the fixed-timestep simulation: input, physics, vehicle
// control, camera and frame broadcast, in that order, on one goroutine.
package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/race/drive/config"
	"github.com/race/drive/internal/camera"
	"github.com/race/drive/internal/input"
	"github.com/race/drive/internal/network"
	"github.com/race/drive/internal/physics"
	"github.com/race/drive/internal/render"
	"github.com/race/drive/internal/telemetry"
	"github.com/race/drive/internal/vehicle"
)

// Stats is a snapshot of the session for monitoring.
type Stats struct {
	SessionID       string       `json:"sessionId"`
	Ticks           uint64       `json:"ticks"`
	Viewers         int          `json:"viewers"`
	Spawned         bool         `json:"spawned"`
	Recovery        string       `json:"recovery"`
	Camera          string       `json:"camera"`
	Speed           float64      `json:"speed"`
	Position        [3]float64   `json:"position"`
	DroppedGestures int          `json:"droppedGestures"`
	LastInputAt     time.Time    `json:"lastInputAt"`
	ViewerList      []ViewerInfo `json:"viewerList,omitempty"`
}

// Session owns one vehicle, its chase camera and the viewers watching it.
//
// The loop goroutine is the only caller of Tick and the only user of the
// vehicle and camera controllers. Transport goroutines reach the session
// through HandleInput/HandleGesture, which only write the input collector.
type Session struct {
	mu sync.RWMutex // Protects viewers

	ID           string
	viewers      map[uint16]*Viewer
	nextViewerID uint16 // Never 0; wraps past 65535

	cfg      *config.Config
	world    physics.Stepper // Stepped only from Tick
	vehicle  *vehicle.Controller
	camera   *camera.Controller
	inputs   *input.Collector // Written by transport goroutines
	scene    *render.Scene    // Proxies and camera sinks frames are built from
	protocol *network.Protocol

	step        float64 // Fixed step length in seconds
	accumulator float64 // Wall time not yet simulated
	wheels      int     // Wheel count of the spawned vehicle

	tickCount atomic.Uint64
	running   atomic.Bool
	stopChan  chan struct{} // Closed by Stop
	done      chan struct{} // Closed when the loop goroutine exits

	statsMu sync.RWMutex
	stats   Stats // Refreshed at the end of every Tick

	log     zerolog.Logger
	metrics *telemetry.Metrics // May be nil
}

// NewSession creates a session around a physics world. Call Spawn to attach
// the vehicle and Start to run the loop.
func NewSession(id string, cfg *config.Config, world physics.Stepper, log zerolog.Logger, metrics *telemetry.Metrics) *Session {
	scene := render.NewScene()
	log = log.With().Str("session", id).Logger()

	s := &Session{
		ID:           id,
		viewers:      make(map[uint16]*Viewer),
		nextViewerID: 1,
		cfg:          cfg,
		world:        world,
		vehicle:      vehicle.NewController(cfg.Vehicle, cfg.Recovery, log, metrics),
		camera:       camera.New(cfg.Camera, scene, scene),
		inputs:       input.NewCollector(),
		scene:        scene,
		protocol:     network.NewProtocol(),
		step:         cfg.StepSeconds(),
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
		log:          log,
		metrics:      metrics,
	}
	s.stats.SessionID = id
	return s
}

// Spawn attaches the vehicle. It must be called before the world is first
// stepped with the vehicle in it.
func (s *Session) Spawn(v physics.RaycastVehicle) error {
	if s.vehicle.Spawned() {
		return vehicle.ErrAlreadySpawned
	}
	if v == nil {
		return vehicle.ErrNilVehicle
	}
	if err := s.vehicle.Spawn(v, s.scene.ChassisProxy(), s.scene.WheelProxies(v.NumWheels())); err != nil {
		return err
	}
	s.wheels = v.NumWheels()
	return nil
}

// Scene returns the render scene frames are built from.
func (s *Session) Scene() *render.Scene {
	return s.scene
}

// Start begins the session loop in a separate goroutine.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Session) Start() {
	if s.running.Swap(true) {
		return
	}

	go s.loop()
	s.log.Info().
		Int("tickRate", s.cfg.Loop.TickRate).
		Int("broadcastRate", s.cfg.Loop.BroadcastRate).
		Msg("session started")
}

// Stop stops the loop and waits for it to exit.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Session) Stop() {
	if !s.running.Swap(false) {
		return
	}

	close(s.stopChan)
	<-s.done
	s.log.Info().Uint64("ticks", s.tickCount.Load()).Msg("session stopped")
}

// Running reports whether the loop is running.
func (s *Session) Running() bool {
	return s.running.Load()
}

// AddViewer registers a connection and sends it the session info.
func (s *Session) AddViewer(connID string, conn ViewerConnection) (*Viewer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.viewers) >= config.MaxViewersPerSession {
		return nil, ErrSessionFull
	}

	id := s.nextViewerID
	s.nextViewerID++
	if s.nextViewerID == 0 {
		s.nextViewerID = 1
	}

	v := NewViewer(id, connID, conn)
	s.viewers[id] = v

	info := s.protocol.EncodeSessionInfo(network.SessionInfoMessage{
		SessionID:     s.ID,
		ViewerCount:   uint8(len(s.viewers)),
		MaxViewers:    config.MaxViewersPerSession,
		TickRate:      uint8(s.cfg.Loop.TickRate),
		BroadcastRate: uint8(s.cfg.Loop.BroadcastRate),
		WheelCount:    uint8(s.wheels),
	})
	if err := conn.Send(info); err != nil {
		s.log.Warn().Err(err).Uint16("viewer", id).Msg("failed to send session info")
	}

	s.metrics.ViewerDelta(1)
	s.log.Info().
		Uint16("viewer", id).
		Str("conn", connID).
		Str("remote", conn.RemoteAddr()).
		Msg("viewer joined")
	return v, nil
}

// RemoveViewer removes a viewer and closes its connection. When the last
// viewer leaves, held input is cleared so the vehicle coasts to a stop.
// Safe to call with unknown IDs.
func (s *Session) RemoveViewer(id uint16) {
	s.mu.Lock()
	v, exists := s.viewers[id]
	if exists {
		delete(s.viewers, id)
	}
	empty := len(s.viewers) == 0
	s.mu.Unlock()

	if !exists {
		return
	}

	v.Connection.Close()
	if empty {
		s.inputs.Reset()
	}
	s.metrics.ViewerDelta(-1)
	s.log.Info().Uint16("viewer", id).Msg("viewer left")
}

// ViewerCount returns the number of connected viewers.
func (s *Session) ViewerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.viewers)
}

func (s *Session) viewer(id uint16) (*Viewer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.viewers[id]
	return v, ok
}

// HandleInput applies a viewer's control input. Clients only send input
// when it changes, so the newest message always replaces the held state,
// even past the per-tick budget; over-budget messages are only counted.
func (s *Session) HandleInput(viewerID uint16, msg *network.InputMessage) {
	v, ok := s.viewer(viewerID)
	if !ok {
		return
	}
	if !v.CountInput() {
		s.log.Debug().Uint16("viewer", viewerID).Uint8("seq", msg.Sequence).Msg("input over budget")
	}
	s.inputs.Apply(msg.Snapshot())
}

// HandleGesture queues a camera gesture for the next tick.
func (s *Session) HandleGesture(viewerID uint16, msg *network.GestureMessage) {
	if _, ok := s.viewer(viewerID); !ok {
		return
	}
	if !s.inputs.QueueGesture(msg.Gesture()) {
		s.log.Debug().Uint16("viewer", viewerID).Msg("gesture dropped")
	}
}

// Tick runs one fixed step of length dt.
func (s *Session) Tick(dt float64) {
	start := time.Now()

	s.mu.RLock()
	for _, v := range s.viewers {
		v.ResetInputCount()
	}
	s.mu.RUnlock()

	in := s.inputs.Snapshot()
	gestures := s.inputs.DrainGestures()

	if in.Respawn && s.vehicle.Respawn() {
		s.camera.ResetToVehicle()
	}

	s.world.Step(dt)
	s.vehicle.Update(dt, in)

	for _, g := range gestures {
		s.camera.Apply(g)
	}
	pos, spawned := s.vehicle.ChassisPosition()
	if spawned {
		s.camera.Update(dt, pos, in)
	}

	tick := s.tickCount.Add(1)
	s.updateStats(tick, pos, spawned)
	s.metrics.Tick(time.Since(start))
}

// Advance feeds elapsed wall time into the fixed-step accumulator and runs
// as many steps as fit, at most Loop.MaxSubSteps. Time beyond that is
// dropped. It returns the number of steps run.
func (s *Session) Advance(elapsed float64) int {
	if !(elapsed > 0) {
		return 0
	}
	s.accumulator += elapsed

	steps := 0
	for s.accumulator >= s.step && steps < s.cfg.Loop.MaxSubSteps {
		s.Tick(s.step)
		s.accumulator -= s.step
		steps++
	}
	if s.accumulator >= s.step {
		s.log.Debug().
			Float64("dropped", s.accumulator).
			Msg("simulation behind, dropping time")
		s.accumulator = 0
	}
	return steps
}

func (s *Session) loop() {
	defer close(s.done)

	physicsTicker := time.NewTicker(time.Second / time.Duration(s.cfg.Loop.TickRate))
	broadcastTicker := time.NewTicker(time.Second / time.Duration(s.cfg.Loop.BroadcastRate))
	defer physicsTicker.Stop()
	defer broadcastTicker.Stop()

	last := time.Now()

	for {
		select {
		case <-s.stopChan:
			return

		case now := <-physicsTicker.C:
			elapsed := now.Sub(last).Seconds()
			last = now
			s.Advance(elapsed)

		case <-broadcastTicker.C:
			s.BroadcastFrame()
		}
	}
}

// frameFlags reports recovery and camera state. Must run on the loop
// goroutine.
func (s *Session) frameFlags() uint8 {
	var flags uint8
	switch s.vehicle.RecoveryState() {
	case vehicle.Faulting:
		flags |= network.FlagFaulting
	case vehicle.Recovering:
		flags |= network.FlagRecovering
	}
	if s.camera.Mode() == camera.Detached {
		flags |= network.FlagDetached
	}
	return flags
}

// BroadcastFrame sends the current frame to every viewer. Must run on the
// loop goroutine.
func (s *Session) BroadcastFrame() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.viewers) == 0 {
		return
	}

	msg := s.protocol.EncodeFrame(network.ConvertFrame(
		s.tickCount.Load(),
		s.frameFlags(),
		s.vehicle.Command().Speed,
		s.scene.Frame(),
	))

	for _, v := range s.viewers {
		if err := v.Connection.Send(msg); err != nil {
			// connection cleanup handles removal
			s.log.Debug().Err(err).Uint16("viewer", v.ID).Msg("failed to send frame")
		}
	}
	s.metrics.Frame(len(s.viewers))
}

func (s *Session) updateStats(tick uint64, pos mgl64.Vec3, spawned bool) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.stats.Ticks = tick
	s.stats.Spawned = spawned
	s.stats.Recovery = s.vehicle.RecoveryState().String()
	s.stats.Camera = s.camera.Mode().String()
	s.stats.Speed = s.vehicle.Command().Speed
	s.stats.Position = [3]float64(pos)
	s.stats.DroppedGestures = s.inputs.Dropped()
	s.stats.LastInputAt = s.inputs.LastInputTime()
}

// Stats returns a snapshot of the session (thread-safe).
func (s *Session) Stats() Stats {
	s.statsMu.RLock()
	st := s.stats
	s.statsMu.RUnlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	st.Viewers = len(s.viewers)
	for _, v := range s.viewers {
		st.ViewerList = append(st.ViewerList, v.Info())
	}
	return st
}

// Error definitions
var (
	ErrSessionFull = &SessionError{message: "session is full"}
)

// SessionError represents an error related to session operations.
type SessionError struct {
	message string
}

func (e *SessionError) Error() string {
	return e.message
}
