// Package replan implements the replanning orchestrator: a state machine
// over {Idle, Exploring, AwaitingTarget} that consumes odometry, decides
// when the current exploration target must be abandoned, and requests a new
// one from the target selector.
package replan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/explore/internal/explore"
	"github.com/banshee-data/explore/internal/monitoring"
	"github.com/banshee-data/explore/internal/timeutil"
	"github.com/banshee-data/explore/internal/units"
)

// State is the orchestrator lifecycle state.
type State string

const (
	StateIdle           State = "idle"
	StateExploring      State = "exploring"
	StateAwaitingTarget State = "awaiting_target"
)

// TriggerReason records which condition forced a replan.
type TriggerReason string

const (
	TriggerStart    TriggerReason = "start"
	TriggerPosition TriggerReason = "position"
	TriggerYaw      TriggerReason = "yaw"
	TriggerTimeout  TriggerReason = "timeout"
)

// ErrNoTarget is returned by a selector when no viable exploration target
// exists, e.g. the active frontier set is empty. The orchestrator stays in
// AwaitingTarget and retries on later odometry ticks.
var ErrNoTarget = errors.New("replan: no exploration target available")

// TargetPose is a commanded pose: a mission-frame position plus yaw.
type TargetPose struct {
	Position explore.Point
	Yaw      float64 // radians
}

// Odometry is one periodic pose input from the state estimator.
type Odometry struct {
	Position    explore.Point
	Orientation quat.Number // unit quaternion, Real = w
	Stamp       time.Time
}

// TargetSelector chooses the next exploration target. Implementations are
// external collaborators (global frontier selection, local planning).
type TargetSelector interface {
	SelectTarget(ctx context.Context, from TargetPose) (TargetPose, error)
}

// ReplanEvent describes one accepted or attempted replan, for telemetry.
type ReplanEvent struct {
	Reason            TriggerReason
	Previous          TargetPose
	Next              TargetPose
	PositionDeviation float64
	YawDeviationDeg   float64
	Elapsed           time.Duration
	At                time.Time
}

// Orchestrator owns the robot pose state and the replanning decision loop.
// A single control loop feeds it odometry; the target-selection call is the
// loop's only suspension point, and odometry arriving while a selection is
// outstanding is still recorded.
type Orchestrator struct {
	cfg      Config
	selector TargetSelector
	publish  func(TargetPose)
	onReplan func(ReplanEvent)
	logf     func(format string, v ...interface{})
	limiter  *rate.Limiter
	clock    timeutil.Clock

	mu       sync.Mutex
	state    State
	current  TargetPose
	hasOdom  bool
	target   TargetPose
	issuedAt time.Time
	// traveled accumulates path length since the target was issued; it
	// scales the timeout allowance.
	traveled      float64
	pendingReason TriggerReason
	selecting     bool
}

// New validates the configuration and returns an idle orchestrator.
// publish is called exactly once per accepted target; it must not be nil.
func New(cfg Config, selector TargetSelector, publish func(TargetPose)) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid replan config: %w", err)
	}
	if selector == nil {
		return nil, errors.New("replan: selector must not be nil")
	}
	if publish == nil {
		return nil, errors.New("replan: publish must not be nil")
	}
	o := &Orchestrator{
		cfg:      cfg,
		selector: selector,
		publish:  publish,
		logf:     monitoring.Prefixed("[replan]"),
		state:    StateIdle,
		clock:    timeutil.RealClock{},
	}
	if cfg.RetryInterval > 0 {
		o.limiter = rate.NewLimiter(rate.Every(cfg.RetryInterval), 1)
	}
	return o, nil
}

// OnReplan installs a hook invoked after every accepted replan, e.g. the
// mission log recorder.
func (o *Orchestrator) OnReplan(f func(ReplanEvent)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onReplan = f
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Target returns the currently commanded target pose.
func (o *Orchestrator) Target() TargetPose {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.target
}

// CurrentPose returns the last recorded robot pose. ok is false before the
// first odometry message.
func (o *Orchestrator) CurrentPose() (TargetPose, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current, o.hasOdom
}

// Start begins exploration: the current pose becomes the initial target and
// its issue time is reset. Fails when no odometry has been received yet or
// exploration is already running.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return fmt.Errorf("cannot start exploration from state %q", o.state)
	}
	if !o.hasOdom {
		o.mu.Unlock()
		return errors.New("cannot start exploration before the first odometry message")
	}
	o.state = StateExploring
	o.target = o.current
	o.issuedAt = o.clock.Now()
	o.traveled = 0
	initial := o.target
	hook := o.onReplan
	at := o.issuedAt
	o.mu.Unlock()

	o.logf("exploration started at %+v", initial.Position)
	o.publish(initial)
	if hook != nil {
		hook(ReplanEvent{Reason: TriggerStart, Previous: initial, Next: initial, At: at})
	}
	return nil
}

// Stop halts exploration from any state. A selection still outstanding has
// its result discarded.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
	o.logf("exploration stopped")
}

// HandleOdometry records the robot pose and runs one iteration of the
// replanning decision. Safe to call while a previous selection is
// outstanding; pose state is always updated, and no second selection is
// issued concurrently.
func (o *Orchestrator) HandleOdometry(ctx context.Context, odo Odometry) {
	o.mu.Lock()
	prev := o.current.Position
	had := o.hasOdom
	o.current = TargetPose{Position: odo.Position, Yaw: YawFromQuaternion(odo.Orientation)}
	o.hasOdom = true
	if had && o.state != StateIdle {
		o.traveled += prev.Dist(odo.Position)
	}

	switch o.state {
	case StateIdle:
		o.mu.Unlock()
		return
	case StateExploring:
		reason, trigger := o.shouldReplanLocked()
		if !trigger {
			o.mu.Unlock()
			return
		}
		o.state = StateAwaitingTarget
		o.pendingReason = reason
	case StateAwaitingTarget:
		// retry below
	}

	if o.selecting {
		o.mu.Unlock()
		return
	}
	if o.limiter != nil && !o.limiter.Allow() {
		o.mu.Unlock()
		return
	}
	o.selecting = true
	from := o.current
	previous := o.target
	reason := o.pendingReason
	posDev := o.current.Position.Dist(o.target.Position)
	yawDev := yawDeviationDeg(o.current.Yaw, o.target.Yaw)
	elapsed := o.clock.Since(o.issuedAt)
	o.mu.Unlock()

	next, err := o.selector.SelectTarget(ctx, from)

	o.mu.Lock()
	o.selecting = false
	if o.state != StateAwaitingTarget {
		// Stopped while selecting; discard the result.
		o.mu.Unlock()
		return
	}
	if err != nil {
		o.mu.Unlock()
		if !errors.Is(err, ErrNoTarget) {
			o.logf("target selection failed: %v", err)
		}
		return
	}
	o.target = next
	o.issuedAt = o.clock.Now()
	o.traveled = 0
	o.state = StateExploring
	hook := o.onReplan
	at := o.issuedAt
	o.mu.Unlock()

	o.logf("replan (%s): new target %+v yaw %.2f", reason, next.Position, next.Yaw)
	o.publish(next)
	if hook != nil {
		hook(ReplanEvent{
			Reason:            reason,
			Previous:          previous,
			Next:              next,
			PositionDeviation: posDev,
			YawDeviationDeg:   yawDev,
			Elapsed:           elapsed,
			At:                at,
		})
	}
}

// shouldReplanLocked evaluates the three trigger conditions against the
// current pose. Caller holds o.mu.
func (o *Orchestrator) shouldReplanLocked() (TriggerReason, bool) {
	if o.current.Position.Dist(o.target.Position) >= o.cfg.PositionThreshold {
		return TriggerPosition, true
	}
	if yawDeviationDeg(o.current.Yaw, o.target.Yaw) >= o.cfg.YawThresholdDeg {
		return TriggerYaw, true
	}
	allowance := o.cfg.TimeoutConstant +
		time.Duration(o.cfg.TimeoutVelocity*o.traveled*float64(time.Second))
	if o.clock.Since(o.issuedAt) >= allowance {
		return TriggerTimeout, true
	}
	return "", false
}

// YawFromQuaternion extracts the yaw angle (rotation about Z, radians) from
// a unit quaternion.
func YawFromQuaternion(q quat.Number) float64 {
	return math.Atan2(2*(q.Real*q.Kmag+q.Imag*q.Jmag), 1-2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag))
}

// YawQuaternion builds the unit quaternion for a pure yaw rotation.
func YawQuaternion(yaw float64) quat.Number {
	return quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
}

// yawDeviationDeg returns |a-b| wrapped to [0, 180] degrees.
func yawDeviationDeg(a, b float64) float64 {
	return units.RadToDeg(units.AngleDiff(a, b))
}
