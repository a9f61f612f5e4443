package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/race/drive/config"
	"github.com/race/drive/internal/interp"
	"github.com/race/drive/internal/physics"
	"github.com/race/drive/internal/telemetry"
)

// RecoveryState is the state of the recovery machine.
type RecoveryState uint8

const (
	Normal RecoveryState = iota
	Faulting
	Recovering
)

func (s RecoveryState) String() string {
	switch s {
	case Normal:
		return "normal"
	case Faulting:
		return "faulting"
	case Recovering:
		return "recovering"
	default:
		return "unknown"
	}
}

const (
	upsideDownY        = -0.5
	onSideY            = 0.3
	velocityDamping    = 0.95
	completionDistance = 0.1
	completionDot      = 0.99

	// rightedY is the up.y at which a recovering chassis is handed back
	// to physics. Below it a released chassis can tip back onto its side.
	rightedY = 0.9
)

// Record is the chassis pose captured at spawn. It is the target of every
// recovery and respawn.
type Record struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// Faulted reports whether an orientation is upside down or on its side.
func Faulted(q mgl64.Quat) bool {
	y := physics.UpVector(q).Y()
	return y < upsideDownY || math.Abs(y) < onSideY
}

// Righted reports whether a recovering chassis is upright enough to be
// released. It is stricter than !Faulted so that the on-side band and the
// -0.5..-0.3 band both keep the override running.
func Righted(q mgl64.Quat) bool {
	return physics.UpVector(q).Y() >= rightedY
}

// Recovery watches the chassis orientation and, after the fault has been
// held with input for the configured delay, eases the chassis back to the
// spawn record. It is the only writer of chassis pose and velocity.
type Recovery struct {
	delay         float64
	speed         float64
	signInvariant bool

	record   Record
	captured bool

	state RecoveryState
	timer float64

	log     zerolog.Logger
	metrics *telemetry.Metrics
}

// NewRecovery creates a machine in the Normal state with no record.
func NewRecovery(cfg config.RecoveryConfig, log zerolog.Logger, metrics *telemetry.Metrics) *Recovery {
	return &Recovery{
		delay:         cfg.Delay,
		speed:         cfg.Speed,
		signInvariant: cfg.SignInvariant,
		log:           log,
		metrics:       metrics,
	}
}

// Capture stores the restoration target. Only the first call has an effect.
func (r *Recovery) Capture(body physics.BodyView) bool {
	if r.captured {
		return false
	}
	r.record = Record{Position: body.Position(), Orientation: body.Orientation()}
	r.captured = true
	return true
}

// Record returns the captured spawn pose.
func (r *Recovery) Record() (Record, bool) {
	return r.record, r.captured
}

// State returns the current state.
func (r *Recovery) State() RecoveryState {
	return r.state
}

// Timer returns the seconds the current fault has been held.
func (r *Recovery) Timer() float64 {
	return r.timer
}

// Update advances the machine by dt. Recovering ends when input is
// released, when the chassis is righted, or when the pose reaches the record.
func (r *Recovery) Update(dt float64, body physics.Body, hasInput bool) {
	if !r.captured {
		return
	}

	if r.state == Recovering {
		switch {
		case !hasInput:
			r.reset("input released")
			r.metrics.Recovery("aborted")
		case Righted(body.Orientation()):
			r.reset("fault cleared")
			r.metrics.Recovery("cleared")
		default:
			r.step(dt, body)
		}
		return
	}

	if !hasInput || !Faulted(body.Orientation()) {
		if r.state == Faulting {
			r.reset("fault cleared")
		}
		return
	}

	if r.state == Normal {
		r.state = Faulting
		r.timer = 0
		r.log.Debug().Msg("chassis faulted")
	}
	r.timer += dt
	if r.timer < r.delay {
		return
	}

	r.state = Recovering
	r.metrics.Recovery("started")
	r.log.Info().
		Float64("timer", r.timer).
		Msg("recovering chassis")
	r.step(dt, body)
}

// step moves the chassis one tick toward the record and damps its motion.
func (r *Recovery) step(dt float64, body physics.Body) {
	t := interp.Factor(r.speed, dt)

	pos := interp.Vec3(body.Position(), r.record.Position, t)
	rot := mgl64.QuatSlerp(body.Orientation(), r.record.Orientation, t)
	body.SetPosition(pos)
	body.SetOrientation(rot)
	body.SetVelocity(body.Velocity().Mul(velocityDamping))
	body.SetAngularVelocity(body.AngularVelocity().Mul(velocityDamping))

	dot := rot.Dot(r.record.Orientation)
	if r.signInvariant {
		dot = math.Abs(dot)
	}
	if pos.Sub(r.record.Position).Len() < completionDistance && dot > completionDot {
		r.state = Normal
		r.timer = 0
		r.metrics.Recovery("completed")
		r.log.Info().Msg("chassis recovered")
	}
}

// Respawn places the chassis on the record with zero velocity and returns
// the machine to Normal. It reports false when no record was captured.
func (r *Recovery) Respawn(body physics.Body) bool {
	if !r.captured {
		return false
	}
	body.SetPosition(r.record.Position)
	body.SetOrientation(r.record.Orientation)
	body.SetVelocity(mgl64.Vec3{})
	body.SetAngularVelocity(mgl64.Vec3{})

	r.state = Normal
	r.timer = 0
	r.metrics.Respawn()
	r.log.Info().Msg("chassis respawned")
	return true
}

func (r *Recovery) reset(reason string) {
	r.log.Debug().
		Str("from", r.state.String()).
		Str("reason", reason).
		Msg("recovery reset")
	r.state = Normal
	r.timer = 0
}
