package replan

import (
	"fmt"
	"time"
)

// Config tunes the replanning decision logic.
type Config struct {
	// PositionThreshold triggers a replan once the robot has deviated this
	// far (meters) from the commanded target position.
	PositionThreshold float64
	// YawThresholdDeg triggers a replan once the yaw deviation from the
	// commanded target, wrapped to [0, 180], exceeds this many degrees.
	YawThresholdDeg float64
	// TimeoutConstant is the base time allowance per target.
	TimeoutConstant time.Duration
	// TimeoutVelocity extends the allowance by this many seconds per meter
	// of path traveled since the target was issued. Keeps the planner from
	// stalling when the robot is nearly stationary at its target.
	TimeoutVelocity float64
	// RetryInterval paces target-selection retries while no target is
	// available. Zero disables pacing.
	RetryInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		PositionThreshold: 0.2,
		YawThresholdDeg:   10.0,
		TimeoutConstant:   30 * time.Second,
		TimeoutVelocity:   0,
		RetryInterval:     time.Second,
	}
}

// Validate checks the configuration. Invalid values abort construction.
func (c Config) Validate() error {
	if c.PositionThreshold <= 0 {
		return fmt.Errorf("PositionThreshold must be positive, got %f", c.PositionThreshold)
	}
	if c.YawThresholdDeg <= 0 {
		return fmt.Errorf("YawThresholdDeg must be positive, got %f", c.YawThresholdDeg)
	}
	if c.TimeoutConstant < 0 {
		return fmt.Errorf("TimeoutConstant must be non-negative, got %v", c.TimeoutConstant)
	}
	if c.TimeoutVelocity < 0 {
		return fmt.Errorf("TimeoutVelocity must be non-negative, got %f", c.TimeoutVelocity)
	}
	if c.RetryInterval < 0 {
		return fmt.Errorf("RetryInterval must be non-negative, got %v", c.RetryInterval)
	}
	return nil
}
