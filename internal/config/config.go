// Package config loads daemon configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/banshee-data/explore/internal/explore"
	"github.com/banshee-data/explore/internal/replan"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig
	Map      MapConfig
	Frontier FrontierConfig
	Replan   ReplanConfig
	Mission  MissionConfig
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Address string
}

// MapConfig holds voxel map settings.
type MapConfig struct {
	VoxelSize float64 `mapstructure:"voxel_size"`
}

// FrontierConfig holds frontier registry settings.
type FrontierConfig struct {
	MinFrontierSize      int     `mapstructure:"min_frontier_size"`
	SubmapsAreFrozen     bool    `mapstructure:"submaps_are_frozen"`
	TraversabilityRadius float64 `mapstructure:"traversability_radius"`
}

// ReplanConfig holds replanning trigger settings.
type ReplanConfig struct {
	PositionThreshold float64       `mapstructure:"position_threshold"`
	YawThresholdDeg   float64       `mapstructure:"yaw_threshold_deg"`
	TimeoutConstant   time.Duration `mapstructure:"timeout_constant"`
	TimeoutVelocity   float64       `mapstructure:"timeout_velocity"`
	RetryInterval     time.Duration `mapstructure:"retry_interval"`
}

// MissionConfig holds mission log settings.
type MissionConfig struct {
	DBPath string `mapstructure:"db_path"`
	Label  string
}

// Load reads configuration from file and env. Env var overrides use prefix
// EXPLORE_ (e.g. EXPLORE_REPLAN_POSITION_THRESHOLD).
func Load() (Config, error) {
	v := viper.New()

	defaults := replan.DefaultConfig()
	frontier := explore.DefaultRegistryConfig()
	selector := replan.DefaultSelectorConfig()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("map.voxel_size", 0.2)
	v.SetDefault("frontier.min_frontier_size", frontier.MinFrontierSize)
	v.SetDefault("frontier.submaps_are_frozen", frontier.SubmapsAreFrozen)
	v.SetDefault("frontier.traversability_radius", selector.TraversabilityRadius)
	v.SetDefault("replan.position_threshold", defaults.PositionThreshold)
	v.SetDefault("replan.yaw_threshold_deg", defaults.YawThresholdDeg)
	v.SetDefault("replan.timeout_constant", defaults.TimeoutConstant)
	v.SetDefault("replan.timeout_velocity", defaults.TimeoutVelocity)
	v.SetDefault("replan.retry_interval", defaults.RetryInterval)
	v.SetDefault("mission.db_path", "mission.db")
	v.SetDefault("mission.label", "")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("EXPLORE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "explore"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("EXPLORE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// RegistryConfig converts the frontier section to its typed form.
func (c Config) RegistryConfig() explore.RegistryConfig {
	return explore.RegistryConfig{
		MinFrontierSize:  c.Frontier.MinFrontierSize,
		SubmapsAreFrozen: c.Frontier.SubmapsAreFrozen,
	}
}

// SelectorConfig converts the frontier section to its typed form.
func (c Config) SelectorConfig() replan.SelectorConfig {
	return replan.SelectorConfig{
		TraversabilityRadius: c.Frontier.TraversabilityRadius,
	}
}

// ReplanningConfig converts the replan section to its typed form.
func (c Config) ReplanningConfig() replan.Config {
	return replan.Config{
		PositionThreshold: c.Replan.PositionThreshold,
		YawThresholdDeg:   c.Replan.YawThresholdDeg,
		TimeoutConstant:   c.Replan.TimeoutConstant,
		TimeoutVelocity:   c.Replan.TimeoutVelocity,
		RetryInterval:     c.Replan.RetryInterval,
	}
}
