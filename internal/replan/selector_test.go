package replan

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/explore/internal/explore"
)

// corridorFixture builds a 1 m corridor along X in submap 1 with two unknown
// gaps in the far wall, yielding frontier clusters of size 2 (x=0..1) and
// size 3 (x=4..6), then registers both with the registry.
func corridorFixture(t *testing.T) (*explore.VoxelMap, *explore.Registry) {
	t.Helper()
	m, err := explore.NewVoxelMap(1.0)
	if err != nil {
		t.Fatalf("NewVoxelMap: %v", err)
	}
	if err := m.AddSubmap(1, explore.IdentityTransform); err != nil {
		t.Fatalf("AddSubmap: %v", err)
	}
	set := func(k explore.VoxelKey, s explore.VoxelState) {
		if err := m.SetVoxel(1, k.Center(1.0), s); err != nil {
			t.Fatalf("SetVoxel %+v: %v", k, err)
		}
	}
	for x := int32(0); x <= 6; x++ {
		set(explore.VoxelKey{X: x, Y: 0, Z: 0}, explore.VoxelFree)
		set(explore.VoxelKey{X: x, Y: 0, Z: 1}, explore.VoxelOccupied)
		set(explore.VoxelKey{X: x, Y: 0, Z: -1}, explore.VoxelOccupied)
		set(explore.VoxelKey{X: x, Y: -1, Z: 0}, explore.VoxelOccupied)
	}
	set(explore.VoxelKey{X: 2, Y: 1, Z: 0}, explore.VoxelOccupied)
	set(explore.VoxelKey{X: 3, Y: 1, Z: 0}, explore.VoxelOccupied)
	set(explore.VoxelKey{X: -1, Y: 0, Z: 0}, explore.VoxelOccupied)
	set(explore.VoxelKey{X: 7, Y: 0, Z: 0}, explore.VoxelOccupied)

	r, err := explore.NewRegistry(explore.RegistryConfig{MinFrontierSize: 1, SubmapsAreFrozen: true})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	data, ok := m.SubmapData(1)
	if !ok {
		t.Fatal("submap 1 missing")
	}
	seed := explore.VoxelKey{X: 3, Y: 0, Z: 0}.Center(1.0)
	if err := r.ComputeFrontiersForSubmap(data, seed); err != nil {
		t.Fatalf("ComputeFrontiersForSubmap: %v", err)
	}
	return m, r
}

func TestSelectorConfigValidate(t *testing.T) {
	if err := DefaultSelectorConfig().Validate(); err != nil {
		t.Errorf("default selector config should validate: %v", err)
	}
	if _, err := NewFrontierTargetSelector(SelectorConfig{}, nil, nil); err == nil {
		t.Error("zero config should fail construction")
	}
}

func TestSelectorPicksNearestTraversableFrontier(t *testing.T) {
	m, r := corridorFixture(t)
	sel, err := NewFrontierTargetSelector(SelectorConfig{TraversabilityRadius: 0.3}, r, m)
	if err != nil {
		t.Fatalf("NewFrontierTargetSelector: %v", err)
	}
	ctx := context.Background()

	views := r.ActiveFrontiers()
	if len(views) != 2 {
		t.Fatalf("fixture should yield 2 frontiers, got %d", len(views))
	}

	for _, from := range []TargetPose{
		{Position: explore.Point{X: 0, Y: 0, Z: 0.5}},
		{Position: explore.Point{X: 6.9, Y: 0, Z: 0.5}},
	} {
		got, err := sel.SelectTarget(ctx, from)
		if err != nil {
			t.Fatalf("SelectTarget from %+v: %v", from.Position, err)
		}

		// The result must be the closest representative among the views.
		bestDist := math.Inf(1)
		var want explore.Point
		for _, v := range views {
			if d := from.Position.Dist(v.Representative); d < bestDist {
				bestDist = d
				want = v.Representative
			}
		}
		if got.Position != want {
			t.Errorf("from %+v: got %+v want nearest representative %+v",
				from.Position, got.Position, want)
		}
		wantYaw := math.Atan2(want.Y-from.Position.Y, want.X-from.Position.X)
		if math.Abs(got.Yaw-wantYaw) > 1e-9 {
			t.Errorf("yaw should face the target: got %f want %f", got.Yaw, wantYaw)
		}
	}
}

func TestSelectorNoFrontiersReturnsErrNoTarget(t *testing.T) {
	m, err := explore.NewVoxelMap(1.0)
	if err != nil {
		t.Fatalf("NewVoxelMap: %v", err)
	}
	r, err := explore.NewRegistry(explore.DefaultRegistryConfig())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	sel, err := NewFrontierTargetSelector(DefaultSelectorConfig(), r, m)
	if err != nil {
		t.Fatalf("NewFrontierTargetSelector: %v", err)
	}

	_, err = sel.SelectTarget(context.Background(), TargetPose{})
	if !errors.Is(err, ErrNoTarget) {
		t.Errorf("empty registry: got %v want ErrNoTarget", err)
	}
}

func TestSelectorSkipsUntraversableCandidates(t *testing.T) {
	_, r := corridorFixture(t)
	// An unrelated empty map makes every candidate untraversable.
	empty, err := explore.NewVoxelMap(1.0)
	if err != nil {
		t.Fatalf("NewVoxelMap: %v", err)
	}
	sel, err := NewFrontierTargetSelector(DefaultSelectorConfig(), r, empty)
	if err != nil {
		t.Fatalf("NewFrontierTargetSelector: %v", err)
	}

	_, err = sel.SelectTarget(context.Background(), TargetPose{})
	if !errors.Is(err, ErrNoTarget) {
		t.Errorf("all candidates blocked: got %v want ErrNoTarget", err)
	}
}

func TestSelectorWithLocalPlanner(t *testing.T) {
	m, r := corridorFixture(t)
	sel, err := NewFrontierTargetSelector(SelectorConfig{TraversabilityRadius: 0.3}, r, m)
	if err != nil {
		t.Fatalf("NewFrontierTargetSelector: %v", err)
	}
	sel.SetLocalPlanner(&LineOfSightPlanner{Map: m, Radius: 0.3})
	ctx := context.Background()

	// Inside the corridor every frontier is line-reachable.
	from := TargetPose{Position: explore.VoxelKey{X: 3, Y: 0, Z: 0}.Center(1.0)}
	if _, err := sel.SelectTarget(ctx, from); err != nil {
		t.Errorf("reachable candidate rejected: %v", err)
	}

	// From unobserved space no candidate has a traversable line to it.
	outside := TargetPose{Position: explore.Point{X: 50, Y: 50, Z: 50}}
	if _, err := sel.SelectTarget(ctx, outside); !errors.Is(err, ErrNoTarget) {
		t.Errorf("unreachable candidates: got %v want ErrNoTarget", err)
	}
}

func TestSelectorHonorsContextCancellation(t *testing.T) {
	m, r := corridorFixture(t)
	sel, err := NewFrontierTargetSelector(DefaultSelectorConfig(), r, m)
	if err != nil {
		t.Fatalf("NewFrontierTargetSelector: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sel.SelectTarget(ctx, TargetPose{}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: got %v want context.Canceled", err)
	}
}
