package replan

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/explore/internal/explore"
	"github.com/banshee-data/explore/internal/timeutil"
)

// fakeSelector returns canned targets or errors, and counts calls.
type fakeSelector struct {
	mu      sync.Mutex
	next    TargetPose
	err     error
	calls   int
	onCall  func()
	history []TargetPose
}

func (s *fakeSelector) SelectTarget(ctx context.Context, from TargetPose) (TargetPose, error) {
	s.mu.Lock()
	s.calls++
	s.history = append(s.history, from)
	next, err, hook := s.next, s.err, s.onCall
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return TargetPose{}, err
	}
	return next, nil
}

func (s *fakeSelector) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// publishRecorder captures published targets.
type publishRecorder struct {
	mu      sync.Mutex
	targets []TargetPose
}

func (p *publishRecorder) publish(t TargetPose) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets = append(p.targets, t)
}

func (p *publishRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.targets)
}

func testConfig() Config {
	return Config{
		PositionThreshold: 0.2,
		YawThresholdDeg:   10.0,
		TimeoutConstant:   time.Hour,
		TimeoutVelocity:   0,
		RetryInterval:     0,
	}
}

func newTestOrchestrator(t *testing.T, cfg Config, sel TargetSelector) (*Orchestrator, *publishRecorder, *timeutil.MockClock) {
	t.Helper()
	rec := &publishRecorder{}
	o, err := New(cfg, sel, rec.publish)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clk := timeutil.NewMockClock(time.Unix(1000, 0))
	o.clock = clk
	return o, rec, clk
}

func odom(clk *timeutil.MockClock, x, y, z, yaw float64) Odometry {
	return Odometry{
		Position:    explore.Point{X: x, Y: y, Z: z},
		Orientation: YawQuaternion(yaw),
		Stamp:       clk.Now(),
	}
}

func TestNewValidatesArguments(t *testing.T) {
	sel := &fakeSelector{}
	rec := &publishRecorder{}
	if _, err := New(Config{}, sel, rec.publish); err == nil {
		t.Error("zero config should fail validation")
	}
	if _, err := New(testConfig(), nil, rec.publish); err == nil {
		t.Error("nil selector should fail")
	}
	if _, err := New(testConfig(), sel, nil); err == nil {
		t.Error("nil publish should fail")
	}
}

func TestStartRequiresOdometry(t *testing.T) {
	o, rec, _ := newTestOrchestrator(t, testConfig(), &fakeSelector{})

	if err := o.Start(); err == nil {
		t.Error("Start before any odometry should fail")
	}
	if rec.count() != 0 {
		t.Errorf("nothing should be published, got %d targets", rec.count())
	}
	if o.State() != StateIdle {
		t.Errorf("state should stay idle, got %s", o.State())
	}
}

func TestStartPublishesInitialTarget(t *testing.T) {
	o, rec, clk := newTestOrchestrator(t, testConfig(), &fakeSelector{})
	ctx := context.Background()

	o.HandleOdometry(ctx, odom(clk, 1, 2, 0, 0.5))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if o.State() != StateExploring {
		t.Errorf("state after Start: got %s want %s", o.State(), StateExploring)
	}
	if rec.count() != 1 {
		t.Fatalf("expected exactly one published target, got %d", rec.count())
	}
	got := o.Target()
	if got.Position.X != 1 || got.Position.Y != 2 {
		t.Errorf("initial target should be the current pose, got %+v", got)
	}
	if math.Abs(got.Yaw-0.5) > 1e-9 {
		t.Errorf("initial yaw: got %f want 0.5", got.Yaw)
	}

	if err := o.Start(); err == nil {
		t.Error("double Start should fail")
	}
}

func TestPositionDeviationTriggersReplan(t *testing.T) {
	sel := &fakeSelector{next: TargetPose{Position: explore.Point{X: 0.25}}}
	o, rec, clk := newTestOrchestrator(t, testConfig(), sel)
	ctx := context.Background()

	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 0))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Deviation below the 0.2 m threshold: no replan.
	o.HandleOdometry(ctx, odom(clk, 0.1, 0, 0, 0))
	if sel.callCount() != 0 {
		t.Fatalf("no replan expected at 0.1 m deviation, selector called %d times", sel.callCount())
	}

	// 0.25 m away, yaw unchanged, no time elapsed: position trigger fires.
	o.HandleOdometry(ctx, odom(clk, 0.25, 0.1, 0, 0))
	if sel.callCount() != 1 {
		t.Fatalf("expected one selection at 0.25 m deviation, got %d", sel.callCount())
	}
	if o.State() != StateExploring {
		t.Errorf("state after accepted replan: got %s want %s", o.State(), StateExploring)
	}
	if rec.count() != 2 {
		t.Errorf("expected initial target plus one replan, got %d publishes", rec.count())
	}
}

func TestYawDeviationTriggersReplan(t *testing.T) {
	sel := &fakeSelector{next: TargetPose{}}
	o, _, clk := newTestOrchestrator(t, testConfig(), sel)
	ctx := context.Background()

	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 0))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// 8 degrees of yaw deviation, below the 10 degree threshold.
	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 8*math.Pi/180))
	if sel.callCount() != 0 {
		t.Fatalf("no replan expected at 8 degrees, selector called %d times", sel.callCount())
	}

	// Position at target, yaw off by 12 degrees: yaw trigger fires.
	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 12*math.Pi/180))
	if sel.callCount() != 1 {
		t.Fatalf("expected one selection at 12 degrees deviation, got %d", sel.callCount())
	}
}

func TestYawDeviationWraps(t *testing.T) {
	// 359 vs 1 degree is a 2 degree deviation, not 358.
	a, b := 359*math.Pi/180, 1*math.Pi/180
	if d := yawDeviationDeg(a, b); math.Abs(d-2) > 1e-9 {
		t.Errorf("wrapped deviation: got %f want 2", d)
	}
	if d := yawDeviationDeg(0, math.Pi); math.Abs(d-180) > 1e-9 {
		t.Errorf("opposite yaw deviation: got %f want 180", d)
	}
}

func TestTimeoutTriggersReplan(t *testing.T) {
	cfg := testConfig()
	cfg.TimeoutConstant = 5 * time.Second
	cfg.TimeoutVelocity = 0
	sel := &fakeSelector{next: TargetPose{}}
	o, _, clk := newTestOrchestrator(t, cfg, sel)
	ctx := context.Background()

	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 0))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Stationary at the target for 4 s: within the allowance.
	clk.Advance(4 * time.Second)
	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 0))
	if sel.callCount() != 0 {
		t.Fatalf("no replan expected at 4 s, selector called %d times", sel.callCount())
	}

	// 6 s total, still exactly at the target: timeout fires.
	clk.Advance(2 * time.Second)
	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 0))
	if sel.callCount() != 1 {
		t.Fatalf("expected a pure timeout replan at 6 s, got %d selections", sel.callCount())
	}
}

func TestTimeoutScalesWithDistanceTraveled(t *testing.T) {
	cfg := testConfig()
	cfg.PositionThreshold = 100 // keep the position trigger out of the way
	cfg.TimeoutConstant = 5 * time.Second
	cfg.TimeoutVelocity = 2 // two extra seconds per meter traveled
	sel := &fakeSelector{next: TargetPose{}}
	o, _, clk := newTestOrchestrator(t, cfg, sel)
	ctx := context.Background()

	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 0))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Travel 3 m: the allowance grows to 5 + 2*3 = 11 s.
	clk.Advance(2 * time.Second)
	o.HandleOdometry(ctx, odom(clk, 3, 0, 0, 0))
	clk.Advance(6 * time.Second)
	o.HandleOdometry(ctx, odom(clk, 3, 0, 0, 0))
	if sel.callCount() != 0 {
		t.Fatalf("8 s elapsed with 11 s allowance should not replan, got %d selections", sel.callCount())
	}

	clk.Advance(4 * time.Second)
	o.HandleOdometry(ctx, odom(clk, 3, 0, 0, 0))
	if sel.callCount() != 1 {
		t.Fatalf("12 s elapsed with 11 s allowance should replan, got %d selections", sel.callCount())
	}
}

func TestPublishOncePerAcceptedTarget(t *testing.T) {
	sel := &fakeSelector{next: TargetPose{Position: explore.Point{X: 0.25}}}
	o, rec, clk := newTestOrchestrator(t, testConfig(), sel)
	ctx := context.Background()

	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 0))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	o.HandleOdometry(ctx, odom(clk, 0.25, 0, 0, 0))

	// The robot now sits on the replacement target: further odometry at the
	// same pose must publish nothing.
	for i := 0; i < 5; i++ {
		o.HandleOdometry(ctx, odom(clk, 0.25, 0, 0, 0))
	}
	if rec.count() != 2 {
		t.Errorf("expected 2 publishes (start + one replan), got %d", rec.count())
	}
	if sel.callCount() != 1 {
		t.Errorf("expected 1 selection, got %d", sel.callCount())
	}
}

func TestNoTargetKeepsAwaitingAndRetries(t *testing.T) {
	sel := &fakeSelector{err: ErrNoTarget}
	o, rec, clk := newTestOrchestrator(t, testConfig(), sel)
	ctx := context.Background()

	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 0))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	o.HandleOdometry(ctx, odom(clk, 0.5, 0, 0, 0))
	if o.State() != StateAwaitingTarget {
		t.Fatalf("state after ErrNoTarget: got %s want %s", o.State(), StateAwaitingTarget)
	}
	if sel.callCount() != 1 {
		t.Fatalf("expected 1 selection attempt, got %d", sel.callCount())
	}

	// Retries continue on later ticks until a target appears.
	o.HandleOdometry(ctx, odom(clk, 0.5, 0, 0, 0))
	if sel.callCount() != 2 {
		t.Fatalf("expected a retry on the next tick, got %d attempts", sel.callCount())
	}

	sel.mu.Lock()
	sel.err = nil
	sel.next = TargetPose{Position: explore.Point{X: 5}}
	sel.mu.Unlock()

	o.HandleOdometry(ctx, odom(clk, 0.5, 0, 0, 0))
	if o.State() != StateExploring {
		t.Errorf("state after successful retry: got %s want %s", o.State(), StateExploring)
	}
	if rec.count() != 2 {
		t.Errorf("expected start + one accepted target, got %d publishes", rec.count())
	}
	if got := o.Target(); got.Position.X != 5 {
		t.Errorf("target after retry: got %+v", got)
	}
}

func TestRetryIntervalPacesSelection(t *testing.T) {
	cfg := testConfig()
	cfg.RetryInterval = time.Hour
	sel := &fakeSelector{err: ErrNoTarget}
	o, _, clk := newTestOrchestrator(t, cfg, sel)
	ctx := context.Background()

	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 0))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	o.HandleOdometry(ctx, odom(clk, 0.5, 0, 0, 0))
	if sel.callCount() != 1 {
		t.Fatalf("first attempt should pass the limiter, got %d", sel.callCount())
	}
	// Immediate follow-up ticks are rate limited.
	o.HandleOdometry(ctx, odom(clk, 0.5, 0, 0, 0))
	o.HandleOdometry(ctx, odom(clk, 0.5, 0, 0, 0))
	if sel.callCount() != 1 {
		t.Errorf("retries within the interval should be suppressed, got %d attempts", sel.callCount())
	}
}

func TestStopDiscardsOutstandingSelection(t *testing.T) {
	sel := &fakeSelector{next: TargetPose{Position: explore.Point{X: 9}}}
	o, rec, clk := newTestOrchestrator(t, testConfig(), sel)
	sel.onCall = o.Stop // exploration halts while the selector is running
	ctx := context.Background()

	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 0))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	published := rec.count()

	o.HandleOdometry(ctx, odom(clk, 0.5, 0, 0, 0))

	if o.State() != StateIdle {
		t.Errorf("state after Stop: got %s want %s", o.State(), StateIdle)
	}
	if rec.count() != published {
		t.Errorf("discarded selection must not publish: %d -> %d", published, rec.count())
	}
	if got := o.Target(); got.Position.X == 9 {
		t.Error("discarded selection must not replace the target")
	}

	// Idle ignores odometry triggers entirely.
	o.HandleOdometry(ctx, odom(clk, 50, 0, 0, 0))
	if sel.callCount() != 1 {
		t.Errorf("idle orchestrator should not select, got %d attempts", sel.callCount())
	}
}

func TestOdometryRecordedDuringSelection(t *testing.T) {
	sel := &fakeSelector{next: TargetPose{Position: explore.Point{X: 1}}}
	o, _, clk := newTestOrchestrator(t, testConfig(), sel)
	ctx := context.Background()

	// While the first selection runs, a second odometry message arrives.
	var once sync.Once
	sel.onCall = func() {
		once.Do(func() {
			o.HandleOdometry(ctx, odom(clk, 0.7, 0.3, 0, 0))
		})
	}

	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 0))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	o.HandleOdometry(ctx, odom(clk, 0.5, 0, 0, 0))

	if sel.callCount() != 1 {
		t.Fatalf("nested odometry must not issue a second selection, got %d", sel.callCount())
	}
	o.mu.Lock()
	pos := o.current.Position
	o.mu.Unlock()
	if pos.X != 0.7 || pos.Y != 0.3 {
		t.Errorf("pose from nested odometry lost: got %+v", pos)
	}
}

func TestCurrentPoseTracksOdometry(t *testing.T) {
	o, _, clk := newTestOrchestrator(t, testConfig(), &fakeSelector{})
	ctx := context.Background()

	if _, ok := o.CurrentPose(); ok {
		t.Error("CurrentPose before any odometry should report ok=false")
	}

	o.HandleOdometry(ctx, odom(clk, 1, 2, 3, 0.4))
	pose, ok := o.CurrentPose()
	if !ok {
		t.Fatal("CurrentPose after odometry should report ok=true")
	}
	if pose.Position.X != 1 || pose.Position.Y != 2 || pose.Position.Z != 3 {
		t.Errorf("pose position: got %+v", pose.Position)
	}
	if math.Abs(pose.Yaw-0.4) > 1e-9 {
		t.Errorf("pose yaw: got %f want 0.4", pose.Yaw)
	}
}

func TestOnReplanHookReceivesEvents(t *testing.T) {
	sel := &fakeSelector{next: TargetPose{Position: explore.Point{X: 0.25}}}
	o, _, clk := newTestOrchestrator(t, testConfig(), sel)
	ctx := context.Background()

	var mu sync.Mutex
	var events []ReplanEvent
	o.OnReplan(func(ev ReplanEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	o.HandleOdometry(ctx, odom(clk, 0, 0, 0, 0))
	if err := o.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	o.HandleOdometry(ctx, odom(clk, 0.25, 0, 0, 0))

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("expected start + replan events, got %d", len(events))
	}
	if events[0].Reason != TriggerStart {
		t.Errorf("first event reason: got %s want %s", events[0].Reason, TriggerStart)
	}
	if events[1].Reason != TriggerPosition {
		t.Errorf("second event reason: got %s want %s", events[1].Reason, TriggerPosition)
	}
	if math.Abs(events[1].PositionDeviation-0.25) > 1e-9 {
		t.Errorf("position deviation: got %f want 0.25", events[1].PositionDeviation)
	}
	if events[1].Next.Position.X != 0.25 {
		t.Errorf("event next target: got %+v", events[1].Next)
	}
}

func TestYawQuaternionRoundTrip(t *testing.T) {
	for _, yaw := range []float64{0, 0.3, -0.3, 1.5, math.Pi - 0.01, -math.Pi + 0.01} {
		got := YawFromQuaternion(YawQuaternion(yaw))
		if math.Abs(got-yaw) > 1e-9 {
			t.Errorf("yaw %f round-tripped to %f", yaw, got)
		}
	}
}
