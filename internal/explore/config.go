package explore

import "fmt"

// RegistryConfig tunes the submap frontier registry.
type RegistryConfig struct {
	// MinFrontierSize discards clusters with fewer member voxels.
	MinFrontierSize int
	// SubmapsAreFrozen computes each submap's frontiers exactly once, on
	// first sight. When false, recomputes overwrite the prior collection.
	SubmapsAreFrozen bool
}

// DefaultRegistryConfig returns production defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		MinFrontierSize:  1,
		SubmapsAreFrozen: true,
	}
}

// Validate checks the configuration. Invalid values abort construction.
func (c RegistryConfig) Validate() error {
	if c.MinFrontierSize < 1 {
		return fmt.Errorf("MinFrontierSize must be >= 1, got %d", c.MinFrontierSize)
	}
	return nil
}
