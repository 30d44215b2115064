package config

import (
	"log/slog"
	"os"
	"strconv"
)

// SoundTrackingConfig represents playback tracking configuration
type SoundTrackingConfig struct {
	Enabled      bool   `json:"enabled"`       // Whether voice events are recorded
	DatabasePath string `json:"database_path"` // Custom database path (empty = XDG cache path)
}

// GetDefaultSoundTrackingConfig returns the default tracking configuration
func GetDefaultSoundTrackingConfig() *SoundTrackingConfig {
	return &SoundTrackingConfig{
		Enabled:      true, // Default enabled to track missing sounds
		DatabasePath: "",
	}
}

// ApplySoundTrackingEnvironmentOverrides applies VOICEBUS_TRACKING to a copy of config
func ApplySoundTrackingEnvironmentOverrides(config *SoundTrackingConfig) *SoundTrackingConfig {
	result := *config

	if trackingStr := os.Getenv("VOICEBUS_TRACKING"); trackingStr != "" {
		if enabled, err := strconv.ParseBool(trackingStr); err == nil {
			result.Enabled = enabled
			slog.Debug("applied tracking override from environment", "value", enabled)
		} else {
			slog.Warn("invalid VOICEBUS_TRACKING environment variable", "value", trackingStr, "error", err)
		}
	}

	return &result
}
