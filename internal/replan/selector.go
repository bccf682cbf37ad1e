package replan

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/explore/internal/explore"
)

// SelectorConfig tunes frontier-based target selection.
type SelectorConfig struct {
	// TraversabilityRadius is the clearance required around a candidate
	// target, meters.
	TraversabilityRadius float64
}

// DefaultSelectorConfig returns production defaults.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{TraversabilityRadius: 0.3}
}

// Validate checks the configuration.
func (c SelectorConfig) Validate() error {
	if c.TraversabilityRadius <= 0 {
		return fmt.Errorf("TraversabilityRadius must be positive, got %f", c.TraversabilityRadius)
	}
	return nil
}

// LocalPlanner checks whether a local plan from one point to another is
// feasible. The selector consults it, when configured, to reject targets the
// robot could not actually reach from its current position.
type LocalPlanner interface {
	Reachable(from, to explore.Point) bool
}

// LineOfSightPlanner is a LocalPlanner that accepts a target when the
// straight segment to it stays traversable at the configured clearance.
type LineOfSightPlanner struct {
	Map    explore.MapService
	Radius float64
}

// Reachable implements LocalPlanner.
func (p *LineOfSightPlanner) Reachable(from, to explore.Point) bool {
	_, ok := p.Map.IsLineTraversable(from, to, p.Radius)
	return ok
}

// FrontierTargetSelector picks the nearest traversable active frontier as
// the next exploration target. The commanded yaw faces the frontier from
// the robot's current position.
type FrontierTargetSelector struct {
	cfg      SelectorConfig
	registry *explore.Registry
	mapsvc   explore.MapService
	planner  LocalPlanner
}

// NewFrontierTargetSelector validates the configuration and wires the
// selector to the registry and map service.
func NewFrontierTargetSelector(cfg SelectorConfig, registry *explore.Registry, mapsvc explore.MapService) (*FrontierTargetSelector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid selector config: %w", err)
	}
	if registry == nil || mapsvc == nil {
		return nil, fmt.Errorf("selector requires a registry and a map service")
	}
	return &FrontierTargetSelector{cfg: cfg, registry: registry, mapsvc: mapsvc}, nil
}

// SetLocalPlanner installs an optional reachability check applied to every
// candidate in addition to point traversability.
func (s *FrontierTargetSelector) SetLocalPlanner(p LocalPlanner) {
	s.planner = p
}

// SelectTarget implements TargetSelector. Candidates are the mission-frame
// representative points of the active frontier set; the nearest one that is
// traversable wins. Returns ErrNoTarget when no candidate qualifies.
func (s *FrontierTargetSelector) SelectTarget(ctx context.Context, from TargetPose) (TargetPose, error) {
	views := s.registry.ActiveFrontiers()
	best := TargetPose{}
	bestDist := math.Inf(1)
	found := false

	for _, v := range views {
		if err := ctx.Err(); err != nil {
			return TargetPose{}, err
		}
		candidate := v.Representative
		if !s.mapsvc.IsTraversable(candidate, s.cfg.TraversabilityRadius) {
			continue
		}
		if s.planner != nil && !s.planner.Reachable(from.Position, candidate) {
			continue
		}
		d := from.Position.Dist(candidate)
		if d < bestDist {
			bestDist = d
			best = TargetPose{
				Position: candidate,
				Yaw:      math.Atan2(candidate.Y-from.Position.Y, candidate.X-from.Position.X),
			}
			found = true
		}
	}
	if !found {
		return TargetPose{}, ErrNoTarget
	}
	return best, nil
}
