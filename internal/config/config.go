package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	CameraSourceWebview = "webview"
	CameraSourceCommand = "command"
)

// Config stores runtime configuration for the session client.
type Config struct {
	API     APIConfig
	Session SessionConfig
	Camera  CameraConfig
	Metrics MetricsConfig
	Log     LogConfig

	// File is the YAML file that was applied, if any.
	File string
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
	PushURL string
}

type SessionConfig struct {
	PollInterval     time.Duration
	SampleInterval   time.Duration
	VoiceDelay       time.Duration
	FullscreenSettle time.Duration
	FullscreenAck    time.Duration
	CompletionDelay  time.Duration

	StimulusSeconds int
	VoiceOnLow      bool
	VoiceThreshold  float64
}

type CameraConfig struct {
	Source          string
	DetectorCommand string
	Device          string
	Width           int
	Height          int
}

type MetricsConfig struct {
	Addr string
}

type LogConfig struct {
	Level string
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 8 * time.Second,
		},
		Session: SessionConfig{
			PollInterval:     700 * time.Millisecond,
			SampleInterval:   120 * time.Millisecond,
			VoiceDelay:       500 * time.Millisecond,
			FullscreenSettle: 500 * time.Millisecond,
			FullscreenAck:    400 * time.Millisecond,
			CompletionDelay:  time.Second,
			StimulusSeconds:  30,
			VoiceOnLow:       true,
			VoiceThreshold:   0.4,
		},
		Camera: CameraConfig{
			Source: CameraSourceWebview,
			Device: "/dev/video0",
			Width:  640,
			Height: 480,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load resolves configuration from defaults, an optional YAML file and the
// environment, in that order. A .env file in the working directory is loaded
// first without overriding variables already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()

	path, err := configPath()
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
		fileCfg.apply(&cfg)
		cfg.File = path
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("GAZECUE_API_BASE must not be empty"))
	} else if parsed, err := url.Parse(c.API.BaseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("GAZECUE_API_BASE %q is not an absolute URL", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("GAZECUE_API_TIMEOUT_MS must be positive"))
	}

	intervals := []struct {
		name  string
		value time.Duration
	}{
		{"GAZECUE_POLL_INTERVAL_MS", c.Session.PollInterval},
		{"GAZECUE_SAMPLE_INTERVAL_MS", c.Session.SampleInterval},
		{"GAZECUE_VOICE_DELAY_MS", c.Session.VoiceDelay},
		{"GAZECUE_FULLSCREEN_SETTLE_MS", c.Session.FullscreenSettle},
		{"GAZECUE_FULLSCREEN_ACK_MS", c.Session.FullscreenAck},
		{"GAZECUE_COMPLETION_DELAY_MS", c.Session.CompletionDelay},
	}
	for _, interval := range intervals {
		if interval.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", interval.name))
		}
	}

	if c.Session.StimulusSeconds < 5 {
		errs = append(errs, errors.New("GAZECUE_STIMULUS_SECONDS must be at least 5"))
	}
	if math.IsNaN(c.Session.VoiceThreshold) || c.Session.VoiceThreshold < 0 || c.Session.VoiceThreshold > 1 {
		errs = append(errs, errors.New("GAZECUE_VOICE_THRESHOLD must be between 0 and 1"))
	}

	switch c.Camera.Source {
	case CameraSourceWebview:
	case CameraSourceCommand:
		if strings.TrimSpace(c.Camera.DetectorCommand) == "" {
			errs = append(errs, errors.New("GAZECUE_DETECTOR_COMMAND is required for the command camera source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GAZECUE_CAMERA_SOURCE %q", c.Camera.Source))
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		errs = append(errs, errors.New("camera width and height must be positive"))
	}

	return errors.Join(errs...)
}

func configPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("GAZECUE_CONFIG_FILE")); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("GAZECUE_CONFIG_FILE: %w", err)
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	return firstExisting(filepath.Join(home, ".config", "gazecue", "config.yaml")), nil
}

func applyEnv(cfg *Config) {
	cfg.API.BaseURL = envOrDefault("GAZECUE_API_BASE", cfg.API.BaseURL)
	cfg.API.Timeout = envOrDefaultMillis("GAZECUE_API_TIMEOUT_MS", cfg.API.Timeout)
	cfg.API.PushURL = envOrDefault("GAZECUE_PUSH_URL", cfg.API.PushURL)

	cfg.Session.PollInterval = envOrDefaultMillis("GAZECUE_POLL_INTERVAL_MS", cfg.Session.PollInterval)
	cfg.Session.SampleInterval = envOrDefaultMillis("GAZECUE_SAMPLE_INTERVAL_MS", cfg.Session.SampleInterval)
	cfg.Session.VoiceDelay = envOrDefaultMillis("GAZECUE_VOICE_DELAY_MS", cfg.Session.VoiceDelay)
	cfg.Session.FullscreenSettle = envOrDefaultMillis("GAZECUE_FULLSCREEN_SETTLE_MS", cfg.Session.FullscreenSettle)
	cfg.Session.FullscreenAck = envOrDefaultMillis("GAZECUE_FULLSCREEN_ACK_MS", cfg.Session.FullscreenAck)
	cfg.Session.CompletionDelay = envOrDefaultMillis("GAZECUE_COMPLETION_DELAY_MS", cfg.Session.CompletionDelay)
	cfg.Session.StimulusSeconds = envOrDefaultInt("GAZECUE_STIMULUS_SECONDS", cfg.Session.StimulusSeconds)
	cfg.Session.VoiceOnLow = envOrDefaultBool("GAZECUE_VOICE_ON_LOW", cfg.Session.VoiceOnLow)
	cfg.Session.VoiceThreshold = envOrDefaultFloat("GAZECUE_VOICE_THRESHOLD", cfg.Session.VoiceThreshold)

	cfg.Camera.Source = strings.ToLower(envOrDefault("GAZECUE_CAMERA_SOURCE", cfg.Camera.Source))
	cfg.Camera.DetectorCommand = envOrDefault("GAZECUE_DETECTOR_COMMAND", cfg.Camera.DetectorCommand)
	cfg.Camera.Device = envOrDefault("GAZECUE_CAMERA_DEVICE", cfg.Camera.Device)
	cfg.Camera.Width = envOrDefaultInt("GAZECUE_CAMERA_WIDTH", cfg.Camera.Width)
	cfg.Camera.Height = envOrDefaultInt("GAZECUE_CAMERA_HEIGHT", cfg.Camera.Height)

	cfg.Metrics.Addr = envOrDefault("GAZECUE_METRICS_ADDR", cfg.Metrics.Addr)
	cfg.Log.Level = firstNonEmpty(os.Getenv("GAZECUE_LOG_LEVEL"), os.Getenv("LOG_LEVEL"), cfg.Log.Level)
}

// FileConfig mirrors Config for YAML files. Absent keys keep lower-precedence
// values.
type FileConfig struct {
	API struct {
		BaseURL   *string `yaml:"base_url"`
		TimeoutMS *int    `yaml:"timeout_ms"`
		PushURL   *string `yaml:"push_url"`
	} `yaml:"api"`
	Session struct {
		PollIntervalMS     *int     `yaml:"poll_interval_ms"`
		SampleIntervalMS   *int     `yaml:"sample_interval_ms"`
		VoiceDelayMS       *int     `yaml:"voice_delay_ms"`
		FullscreenSettleMS *int     `yaml:"fullscreen_settle_ms"`
		FullscreenAckMS    *int     `yaml:"fullscreen_ack_ms"`
		CompletionDelayMS  *int     `yaml:"completion_delay_ms"`
		StimulusSeconds    *int     `yaml:"stimulus_seconds"`
		VoiceOnLow         *bool    `yaml:"voice_on_low"`
		VoiceThreshold     *float64 `yaml:"voice_threshold"`
	} `yaml:"session"`
	Camera struct {
		Source          *string `yaml:"source"`
		DetectorCommand *string `yaml:"detector_command"`
		Device          *string `yaml:"device"`
		Width           *int    `yaml:"width"`
		Height          *int    `yaml:"height"`
	} `yaml:"camera"`
	Metrics struct {
		Addr *string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level *string `yaml:"level"`
	} `yaml:"log"`
}

func loadFile(path string) (FileConfig, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return FileConfig{}, fmt.Errorf("unsupported config format %q (only YAML supported)", ext)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return FileConfig{}, err
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("strict config parse error: %w", err)
	}
	return fileCfg, nil
}

func (f FileConfig) apply(cfg *Config) {
	setString(&cfg.API.BaseURL, f.API.BaseURL)
	setMillis(&cfg.API.Timeout, f.API.TimeoutMS)
	setString(&cfg.API.PushURL, f.API.PushURL)

	setMillis(&cfg.Session.PollInterval, f.Session.PollIntervalMS)
	setMillis(&cfg.Session.SampleInterval, f.Session.SampleIntervalMS)
	setMillis(&cfg.Session.VoiceDelay, f.Session.VoiceDelayMS)
	setMillis(&cfg.Session.FullscreenSettle, f.Session.FullscreenSettleMS)
	setMillis(&cfg.Session.FullscreenAck, f.Session.FullscreenAckMS)
	setMillis(&cfg.Session.CompletionDelay, f.Session.CompletionDelayMS)
	if f.Session.StimulusSeconds != nil {
		cfg.Session.StimulusSeconds = *f.Session.StimulusSeconds
	}
	if f.Session.VoiceOnLow != nil {
		cfg.Session.VoiceOnLow = *f.Session.VoiceOnLow
	}
	if f.Session.VoiceThreshold != nil {
		cfg.Session.VoiceThreshold = *f.Session.VoiceThreshold
	}

	setString(&cfg.Camera.Source, f.Camera.Source)
	setString(&cfg.Camera.DetectorCommand, f.Camera.DetectorCommand)
	setString(&cfg.Camera.Device, f.Camera.Device)
	if f.Camera.Width != nil {
		cfg.Camera.Width = *f.Camera.Width
	}
	if f.Camera.Height != nil {
		cfg.Camera.Height = *f.Camera.Height
	}

	setString(&cfg.Metrics.Addr, f.Metrics.Addr)
	setString(&cfg.Log.Level, f.Log.Level)
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

func setMillis(dst *time.Duration, value *int) {
	if value != nil {
		*dst = time.Duration(*value) * time.Millisecond
	}
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
