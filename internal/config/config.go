// Package config provides application configuration management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultPort          = 8000
	DefaultSampleRate    = 16000 // rate the wakeword model expects
	DefaultChannels      = 1
	DefaultBufferSeconds = 60
	DefaultOutputDir     = "captures"
)

// accessKeyEnv is the environment fallback for the Picovoice access key.
const accessKeyEnv = "PICOVOICE_ACCESS_KEY"

// validate is the shared validator instance; JSON struct tags drive the rules.
var validate = validator.New(validator.WithRequiredStructEnabled())

// SystemConfig holds process-level settings.
type SystemConfig struct {
	Port     int    `json:"port" validate:"min=0,max=65535"`
	LogLevel string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// AudioConfig holds audio input and history buffer settings.
type AudioConfig struct {
	SampleRate    int    `json:"sample_rate" validate:"min=0"`
	Channels      int    `json:"channels" validate:"min=0,max=2"`
	BufferSeconds int    `json:"buffer_seconds" validate:"min=0,max=3600"`
	OutputDir     string `json:"output_dir"`
}

// WakewordConfig holds the detector credentials and keyword selection.
// The access key falls back to the PICOVOICE_ACCESS_KEY environment variable.
type WakewordConfig struct {
	AccessKey     string    `json:"access_key"`
	ModelPath     string    `json:"model_path"`
	Keywords      []string  `json:"keywords"`
	KeywordPaths  []string  `json:"keyword_paths"`
	Sensitivities []float32 `json:"sensitivities" validate:"dive,min=0,max=1"`
}

// WebhookConfig holds detection webhook settings.
type WebhookConfig struct {
	URL string `json:"url" validate:"omitempty,url"`
}

// EmailConfig holds Microsoft Graph email notification settings.
type EmailConfig struct {
	TenantID     string `json:"tenant_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	FromAddress  string `json:"from_address" validate:"omitempty,email"`
	Recipients   string `json:"recipients"` // comma-separated
}

// NotificationsConfig holds all detection notification channels.
type NotificationsConfig struct {
	Webhook         WebhookConfig `json:"webhook"`
	Email           EmailConfig   `json:"email"`
	EventLogPath    string        `json:"event_log_path"`
	CooldownSeconds int           `json:"cooldown_seconds" validate:"min=0"`
}

// S3Config holds optional object storage settings for saved captures.
type S3Config struct {
	Endpoint        string `json:"endpoint" validate:"omitempty,url"`
	Bucket          string `json:"bucket"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// StorageConfig holds capture retention and upload settings.
type StorageConfig struct {
	S3            S3Config `json:"s3"`
	RetentionDays int      `json:"retention_days" validate:"min=0,max=3650"` // 0 = keep forever
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System        SystemConfig        `json:"system"`
	Audio         AudioConfig         `json:"audio"`
	Wakeword      WakewordConfig      `json:"wakeword"`
	Notifications NotificationsConfig `json:"notifications"`
	Storage       StorageConfig       `json:"storage"`

	mu       sync.RWMutex
	filePath string
}

// New creates a Config with default values, backed by the given file path.
func New(filePath string) *Config {
	return &Config{
		System: SystemConfig{Port: DefaultPort, LogLevel: "info"},
		Audio: AudioConfig{
			SampleRate:    DefaultSampleRate,
			Channels:      DefaultChannels,
			BufferSeconds: DefaultBufferSeconds,
			OutputDir:     DefaultOutputDir,
		},
		Wakeword: WakewordConfig{Keywords: []string{"porcupine"}},
		filePath: filePath,
	}
}

// Load reads config from file, creating a default file if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		// Write the default file first, then resolve environment fallbacks
		// in memory only; secrets never land in the created file.
		if err := c.saveLocked(); err != nil {
			return err
		}
		c.applyDefaultsLocked()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaultsLocked()

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyDefaultsLocked sets default values for zero-value fields.
// The access key falls back to the environment when unset in the file.
func (c *Config) applyDefaultsLocked() {
	if c.System.Port == 0 {
		c.System.Port = DefaultPort
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = "info"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = DefaultSampleRate
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = DefaultChannels
	}
	if c.Audio.BufferSeconds == 0 {
		c.Audio.BufferSeconds = DefaultBufferSeconds
	}
	if c.Audio.OutputDir == "" {
		c.Audio.OutputDir = DefaultOutputDir
	}
	if c.Wakeword.AccessKey == "" {
		c.Wakeword.AccessKey = os.Getenv(accessKeyEnv)
	}
	if len(c.Wakeword.Keywords) == 0 && len(c.Wakeword.KeywordPaths) == 0 {
		c.Wakeword.Keywords = []string{"porcupine"}
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.filePath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	Port     int
	LogLevel string

	SampleRate    int
	Channels      int
	BufferSeconds int
	OutputDir     string

	Wakeword WakewordConfig

	WebhookURL      string
	Email           EmailConfig
	EventLogPath    string
	CooldownSeconds int

	S3            S3Config
	RetentionDays int
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Port:     c.System.Port,
		LogLevel: c.System.LogLevel,

		SampleRate:    c.Audio.SampleRate,
		Channels:      c.Audio.Channels,
		BufferSeconds: c.Audio.BufferSeconds,
		OutputDir:     c.Audio.OutputDir,

		Wakeword: c.Wakeword,

		WebhookURL:      c.Notifications.Webhook.URL,
		Email:           c.Notifications.Email,
		EventLogPath:    c.Notifications.EventLogPath,
		CooldownSeconds: c.Notifications.CooldownSeconds,

		S3:            c.Storage.S3,
		RetentionDays: c.Storage.RetentionDays,
	}
}

// HasWebhook reports whether a detection webhook is configured.
func (s *Snapshot) HasWebhook() bool {
	return s.WebhookURL != ""
}

// HasEmail reports whether Graph email notifications are configured.
func (s *Snapshot) HasEmail() bool {
	e := s.Email
	return e.TenantID != "" && e.ClientID != "" && e.ClientSecret != "" &&
		e.FromAddress != "" && e.Recipients != ""
}

// HasS3 reports whether capture uploads are configured.
func (s *Snapshot) HasS3() bool {
	return s.S3.Bucket != "" && s.S3.AccessKeyID != "" && s.S3.SecretAccessKey != ""
}

// BufferCapacity returns the history capacity in samples.
func (s *Snapshot) BufferCapacity() int {
	return s.SampleRate * s.BufferSeconds
}
