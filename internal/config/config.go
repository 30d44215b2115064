package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// ConfigFileName is the file searched for in the XDG config paths
const ConfigFileName = "config.json"

// FileLoggingConfig represents file-based logging configuration
type FileLoggingConfig struct {
	Enabled    bool   `json:"enabled"`      // Whether file logging is enabled
	Filename   string `json:"filename"`     // Log file path (empty = XDG cache path)
	MaxSizeMB  int    `json:"max_size_mb"`  // Max file size in MB before rotation
	MaxBackups int    `json:"max_backups"`  // Max number of backup files to keep
	MaxAgeDays int    `json:"max_age_days"` // Max age in days before deletion
	Compress   bool   `json:"compress"`     // Whether to compress rotated files
}

// BusConfig configures the bounded sound-effect bus
type BusConfig struct {
	MaxVoices int     `json:"max_voices"` // Concurrent voice cap, oldest evicted first
	Volume    float64 `json:"volume"`     // Bus gain in percent
}

// SkipSEConfig is the sound effect played on the bus when a voice line is
// skipped or stopped, at most once per line
type SkipSEConfig struct {
	Name   string   `json:"name"`             // Sound name, empty disables
	Volume *float64 `json:"volume,omitempty"` // 0-100, absent follows se_volume
	Pitch  float64  `json:"pitch"`            // Percent, 50-150
	Pan    float64  `json:"pan"`              // -100..100
}

// VoiceConfig configures the single voice channel
type VoiceConfig struct {
	FadeFrames      int          `json:"fade_frames"`       // Fade length on skip, in frames
	FramesPerSecond int          `json:"frames_per_second"` // Frame rate the fade length is measured in
	SkipSE          SkipSEConfig `json:"skip_se"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"` // Listen address for /metrics
}

// Config represents voicebus configuration
type Config struct {
	Enabled        bool                 `json:"enabled"`          // Whether playback is enabled
	LogLevel       string               `json:"log_level"`        // Log level (debug, info, warn, error)
	AudioBackend   string               `json:"audio_backend"`    // Audio backend (auto, malgo, oto, null)
	SampleRate     int                  `json:"sample_rate"`      // Output sample rate in Hz
	SEVolume       float64              `json:"se_volume"`        // Volume used when a request omits one, 0-100
	AudioDir       string               `json:"audio_dir"`        // Directory searched for sound files
	Extensions     []string             `json:"extensions"`       // Candidate extensions, in preference order
	Soundpack      string               `json:"soundpack"`        // Soundpack ID or manifest path
	FetchTimeoutMS int                  `json:"fetch_timeout_ms"` // Per-candidate load timeout, 0 disables
	Bus            BusConfig            `json:"bus"`
	Voice          VoiceConfig          `json:"voice"`
	FileLogging    *FileLoggingConfig   `json:"file_logging,omitempty"`
	Tracking       *SoundTrackingConfig `json:"tracking,omitempty"`
	Metrics        *MetricsConfig       `json:"metrics,omitempty"`
}

// XDGInterface defines the interface for XDG directory operations
type XDGInterface interface {
	GetConfigPaths(filename string) []string
	GetSoundpackPaths(soundpackID string) []string
	GetCachePath(purpose string) string
	CreateCacheDir(purpose string) error
}

// ConfigManager handles loading, saving, and validating configuration
type ConfigManager struct {
	xdg XDGInterface
	fs  afero.Fs
}

// NewConfigManager creates a configuration manager backed by the OS filesystem
func NewConfigManager() *ConfigManager {
	return NewConfigManagerWithFilesystem(afero.NewOsFs())
}

// NewConfigManagerWithFilesystem creates a configuration manager on the given filesystem
func NewConfigManagerWithFilesystem(fs afero.Fs) *ConfigManager {
	slog.Debug("creating new config manager")
	return &ConfigManager{
		xdg: NewXDGDirs(),
		fs:  fs,
	}
}

// NewConfigManagerWithDependencies is used by tests to swap the XDG lookup
func NewConfigManagerWithDependencies(fs afero.Fs, xdg XDGInterface) *ConfigManager {
	return &ConfigManager{xdg: xdg, fs: fs}
}

// XDG returns the directory lookup used by this manager
func (cm *ConfigManager) XDG() XDGInterface {
	return cm.xdg
}

// GetDefaultConfig returns the default configuration
func (cm *ConfigManager) GetDefaultConfig() *Config {
	defaultConfig := &Config{
		Enabled:        true,
		LogLevel:       "warn",
		AudioBackend:   "auto",
		SampleRate:     44100,
		SEVolume:       100,
		AudioDir:       "audio/se",
		Extensions:     []string{".ogg", ".m4a"},
		Soundpack:      "",
		FetchTimeoutMS: 0,
		Bus: BusConfig{
			MaxVoices: 4,
			Volume:    100,
		},
		Voice: VoiceConfig{
			FadeFrames:      20,
			FramesPerSecond: 60,
			SkipSE: SkipSEConfig{
				Name:  "Cursor1",
				Pitch: 100,
			},
		},
		FileLogging: &FileLoggingConfig{
			Enabled:    false,
			Filename:   "", // Empty = XDG cache path
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Tracking: GetDefaultSoundTrackingConfig(),
		Metrics: &MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9464",
		},
	}

	slog.Debug("generated default config",
		"enabled", defaultConfig.Enabled,
		"log_level", defaultConfig.LogLevel,
		"audio_backend", defaultConfig.AudioBackend,
		"max_voices", defaultConfig.Bus.MaxVoices,
		"audio_dir", defaultConfig.AudioDir)

	return defaultConfig
}

// LoadFromFile loads configuration from a specific file. Keys absent from
// the file keep their default values.
func (cm *ConfigManager) LoadFromFile(filePath string) (*Config, error) {
	slog.Debug("loading config from file", "file_path", filePath)

	data, err := afero.ReadFile(cm.fs, filePath)
	if err != nil {
		slog.Error("failed to read config file", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := cm.GetDefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		slog.Error("failed to parse config JSON", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cm.ValidateConfig(config); err != nil {
		slog.Error("config validation failed", "file_path", filePath, "error", err)
		return nil, err
	}

	slog.Debug("config loaded successfully",
		"file_path", filePath,
		"enabled", config.Enabled,
		"audio_backend", config.AudioBackend,
		"soundpack", config.Soundpack)

	return config, nil
}

// SaveToFile saves configuration to a specific file
func (cm *ConfigManager) SaveToFile(config *Config, filePath string) error {
	slog.Debug("saving config to file", "file_path", filePath)

	if err := cm.ValidateConfig(config); err != nil {
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(filePath)
	if err := cm.fs.MkdirAll(dir, 0755); err != nil {
		slog.Error("failed to create config directory", "directory", dir, "error", err)
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(cm.fs, filePath, data, 0644); err != nil {
		slog.Error("failed to write config file", "file_path", filePath, "error", err)
		return fmt.Errorf("failed to write config file: %w", err)
	}

	slog.Info("config saved successfully", "file_path", filePath)
	return nil
}

// LoadConfig loads configuration using XDG path discovery
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	configPaths := cm.xdg.GetConfigPaths(ConfigFileName)

	slog.Debug("searching for config file", "paths", configPaths)

	for i, configPath := range configPaths {
		if _, err := cm.fs.Stat(configPath); err == nil {
			slog.Debug("found config file", "path_index", i, "path", configPath)
			return cm.LoadFromFile(configPath)
		}
	}

	slog.Debug("no config file found, using defaults")
	return cm.GetDefaultConfig(), nil
}

// ValidateConfig validates configuration values, reporting every problem at once
func (cm *ConfigManager) ValidateConfig(config *Config) error {
	var problems []string

	if _, err := ParseLogLevel(config.LogLevel); config.LogLevel != "" && err != nil {
		problems = append(problems, err.Error())
	}

	if !cm.IsValidAudioBackend(config.AudioBackend) {
		problems = append(problems, fmt.Sprintf("invalid audio backend '%s', must be one of: %s",
			config.AudioBackend, strings.Join(cm.GetSupportedAudioBackends(), ", ")))
	}

	if config.SampleRate <= 0 {
		problems = append(problems, fmt.Sprintf("sample_rate must be > 0, got %d", config.SampleRate))
	}

	if config.SEVolume < 0 || config.SEVolume > 100 {
		problems = append(problems, fmt.Sprintf("se_volume must be between 0 and 100, got %g", config.SEVolume))
	}

	if len(config.Extensions) == 0 {
		problems = append(problems, "extensions cannot be empty")
	}
	for _, ext := range config.Extensions {
		if strings.TrimPrefix(ext, ".") == "" {
			problems = append(problems, fmt.Sprintf("invalid extension '%s'", ext))
		}
	}

	if config.FetchTimeoutMS < 0 {
		problems = append(problems, fmt.Sprintf("fetch_timeout_ms must be >= 0, got %d", config.FetchTimeoutMS))
	}

	if config.Bus.MaxVoices < 1 {
		problems = append(problems, fmt.Sprintf("bus max_voices must be >= 1, got %d", config.Bus.MaxVoices))
	}

	if config.Bus.Volume < 0 || config.Bus.Volume > 100 {
		problems = append(problems, fmt.Sprintf("bus volume must be between 0 and 100, got %g", config.Bus.Volume))
	}

	if config.Voice.FadeFrames < 0 {
		problems = append(problems, fmt.Sprintf("voice fade_frames must be >= 0, got %d", config.Voice.FadeFrames))
	}

	if config.Voice.FramesPerSecond < 0 {
		problems = append(problems, fmt.Sprintf("voice frames_per_second must be >= 0, got %d", config.Voice.FramesPerSecond))
	}

	if se := config.Voice.SkipSE; se.Name != "" {
		if se.Volume != nil && (*se.Volume < 0 || *se.Volume > 100) {
			problems = append(problems, fmt.Sprintf("voice skip_se volume must be between 0 and 100, got %g", *se.Volume))
		}
		if se.Pitch < 50 || se.Pitch > 150 {
			problems = append(problems, fmt.Sprintf("voice skip_se pitch must be between 50 and 150, got %g", se.Pitch))
		}
		if se.Pan < -100 || se.Pan > 100 {
			problems = append(problems, fmt.Sprintf("voice skip_se pan must be between -100 and 100, got %g", se.Pan))
		}
	}

	if fileLogging := config.FileLogging; fileLogging != nil {
		if fileLogging.MaxSizeMB < 0 {
			problems = append(problems, fmt.Sprintf("file logging max_size_mb must be >= 0, got %d", fileLogging.MaxSizeMB))
		}
		if fileLogging.MaxBackups < 0 {
			problems = append(problems, fmt.Sprintf("file logging max_backups must be >= 0, got %d", fileLogging.MaxBackups))
		}
		if fileLogging.MaxAgeDays < 0 {
			problems = append(problems, fmt.Sprintf("file logging max_age_days must be >= 0, got %d", fileLogging.MaxAgeDays))
		}
	}

	if config.Metrics != nil && config.Metrics.Enabled && config.Metrics.Address == "" {
		problems = append(problems, "metrics address cannot be empty when metrics are enabled")
	}

	if len(problems) > 0 {
		errMsg := strings.Join(problems, "; ")
		slog.Debug("config validation failed", "errors", errMsg)
		return fmt.Errorf("config validation failed: %s", errMsg)
	}

	return nil
}

// ApplyEnvironmentOverrides applies VOICEBUS_* environment overrides to a copy of config
func (cm *ConfigManager) ApplyEnvironmentOverrides(config *Config) *Config {
	slog.Debug("applying environment variable overrides")

	result := *config

	if volStr := os.Getenv("VOICEBUS_VOLUME"); volStr != "" {
		if vol, err := strconv.ParseFloat(volStr, 64); err == nil && vol >= 0 && vol <= 100 {
			result.SEVolume = vol
			slog.Debug("applied volume override from environment", "value", vol)
		} else {
			slog.Warn("invalid VOICEBUS_VOLUME environment variable", "value", volStr)
		}
	}

	if maxStr := os.Getenv("VOICEBUS_MAX_VOICES"); maxStr != "" {
		if maxVoices, err := strconv.Atoi(maxStr); err == nil && maxVoices >= 1 {
			result.Bus.MaxVoices = maxVoices
			slog.Debug("applied max voices override from environment", "value", maxVoices)
		} else {
			slog.Warn("invalid VOICEBUS_MAX_VOICES environment variable", "value", maxStr)
		}
	}

	if enabledStr := os.Getenv("VOICEBUS_ENABLED"); enabledStr != "" {
		if enabled, err := strconv.ParseBool(enabledStr); err == nil {
			result.Enabled = enabled
			slog.Debug("applied enabled override from environment", "value", enabled)
		} else {
			slog.Warn("invalid VOICEBUS_ENABLED environment variable", "value", enabledStr, "error", err)
		}
	}

	if logLevel := os.Getenv("VOICEBUS_LOG_LEVEL"); logLevel != "" {
		if _, err := ParseLogLevel(logLevel); err == nil {
			result.LogLevel = logLevel
			slog.Debug("applied log level override from environment", "value", logLevel)
		} else {
			slog.Warn("invalid VOICEBUS_LOG_LEVEL environment variable", "value", logLevel)
		}
	}

	if audioBackend := os.Getenv("VOICEBUS_AUDIO_BACKEND"); audioBackend != "" {
		if cm.IsValidAudioBackend(audioBackend) {
			result.AudioBackend = audioBackend
			slog.Debug("applied audio backend override from environment", "value", audioBackend)
		} else {
			slog.Warn("invalid VOICEBUS_AUDIO_BACKEND environment variable", "value", audioBackend)
		}
	}

	if audioDir := os.Getenv("VOICEBUS_AUDIO_DIR"); audioDir != "" {
		result.AudioDir = audioDir
		slog.Debug("applied audio dir override from environment", "value", audioDir)
	}

	if result.Tracking != nil {
		result.Tracking = ApplySoundTrackingEnvironmentOverrides(result.Tracking)
	}

	return &result
}

// ParseLogLevel maps a config log level to a slog level
func ParseLogLevel(logLevel string) (slog.Level, error) {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", logLevel)
	}
}

// ResolveLogFilePath resolves the log file path using XDG cache directory when filename is empty
func (cm *ConfigManager) ResolveLogFilePath(filename string) string {
	if filename != "" {
		return filename
	}
	return filepath.Join(cm.xdg.GetCachePath("logs"), "voicebus.log")
}

// GetSupportedAudioBackends returns a list of all supported audio backend types
func (cm *ConfigManager) GetSupportedAudioBackends() []string {
	return []string{"auto", "malgo", "oto", "null"}
}

// IsValidAudioBackend checks if an audio backend type is supported
func (cm *ConfigManager) IsValidAudioBackend(backend string) bool {
	// Empty string is valid (defaults to auto)
	if backend == "" {
		return true
	}
	for _, supported := range cm.GetSupportedAudioBackends() {
		if backend == supported {
			return true
		}
	}
	return false
}

// ErrNoConfigFile is returned when an explicit --config path does not exist
var ErrNoConfigFile = errors.New("config file not found")

// Load resolves the effective configuration: an explicit path when given,
// otherwise XDG discovery, then environment overrides.
func (cm *ConfigManager) Load(explicitPath string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if explicitPath != "" {
		if _, statErr := cm.fs.Stat(explicitPath); statErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrNoConfigFile, explicitPath)
		}
		cfg, err = cm.LoadFromFile(explicitPath)
	} else {
		cfg, err = cm.LoadConfig()
	}
	if err != nil {
		return nil, err
	}
	return cm.ApplyEnvironmentOverrides(cfg), nil
}
