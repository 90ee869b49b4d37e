package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Audio sources.
const (
	SourceMicrophone = "microphone"
	SourceFile       = "file"
)

// Segmentation policies.
const (
	PolicySilence = "silence"
	PolicyTime    = "time"
	PolicyNone    = "none"
)

// Whisper backends.
const (
	BackendNative = "native"
	BackendServer = "server"
)

type Config struct {
	LogLevel     string             `json:"log_level"`
	Audio        AudioConfig        `json:"audio"`
	Segmentation SegmentationConfig `json:"segmentation"`
	Capture      CaptureConfig      `json:"capture"`
	Whisper      WhisperConfig      `json:"whisper"`
	Output       OutputConfig       `json:"output"`
	Metrics      MetricsConfig      `json:"metrics"`
}

type AudioConfig struct {
	Source   string `json:"source"` // "microphone" or "file"
	FilePath string `json:"file_path"`
	// DeviceIndex selects an input device; null uses the system default.
	DeviceIndex *int `json:"device_index"`
	ChunkFrames int  `json:"chunk_frames"`
}

type SegmentationConfig struct {
	Policy              string   `json:"policy"` // "silence", "time" or "none"
	SilenceThresholdRMS float64  `json:"silence_threshold_rms"`
	TotalDuration       Duration `json:"total_duration"`
}

type CaptureConfig struct {
	StopTimeout Duration `json:"stop_timeout"`
}

type WhisperConfig struct {
	Backend             string   `json:"backend"` // "native" or "server"
	ModelPath           string   `json:"model_path"`
	ServerURL           string   `json:"server_url"`
	Language            string   `json:"language"` // "auto", "en", etc.
	Threads             int      `json:"threads"`
	Temperature         float32  `json:"temperature"`
	Vocabulary          []string `json:"vocabulary"`
	IncludeUnrecognized bool     `json:"include_unrecognized"`
}

type OutputConfig struct {
	Clipboard       bool `json:"clipboard"`
	AppendClipboard bool `json:"append_clipboard"`
}

type MetricsConfig struct {
	// ListenAddr serves /metrics when set, e.g. "127.0.0.1:9090".
	ListenAddr string `json:"listen_addr"`
}

// Duration is a time.Duration that reads and writes as a string like "2s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Source:      SourceMicrophone,
			ChunkFrames: 16384,
		},
		Segmentation: SegmentationConfig{
			Policy:              PolicySilence,
			SilenceThresholdRMS: 500,
			TotalDuration:       Duration{5 * time.Second},
		},
		Capture: CaptureConfig{
			StopTimeout: Duration{2 * time.Second},
		},
		Whisper: WhisperConfig{
			Backend:   BackendNative,
			ModelPath: filepath.Join(dataPath(), "models", "ggml-base.en.bin"),
			ServerURL: "http://127.0.0.1:8080",
			Language:  "auto",
			Threads:   0, // Auto-detect
		},
		Output: OutputConfig{
			Clipboard: true,
		},
	}
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config at path over the defaults. A missing file is not
// an error.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate reports every problem with the config at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Audio.Source {
	case SourceMicrophone:
		if c.Audio.DeviceIndex != nil && *c.Audio.DeviceIndex < 0 {
			errs = append(errs, fmt.Errorf("audio.device_index must not be negative, got %d", *c.Audio.DeviceIndex))
		}
	case SourceFile:
		if c.Audio.FilePath == "" {
			errs = append(errs, errors.New("audio.file_path is required for the file source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown audio.source %q", c.Audio.Source))
	}
	if c.Audio.ChunkFrames <= 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_frames must be positive, got %d", c.Audio.ChunkFrames))
	}

	switch c.Segmentation.Policy {
	case PolicySilence:
		if c.Segmentation.SilenceThresholdRMS <= 0 {
			errs = append(errs, fmt.Errorf("segmentation.silence_threshold_rms must be positive, got %v", c.Segmentation.SilenceThresholdRMS))
		}
	case PolicyTime:
		if c.Segmentation.TotalDuration.Duration <= 0 {
			errs = append(errs, fmt.Errorf("segmentation.total_duration must be positive, got %v", c.Segmentation.TotalDuration))
		}
	case PolicyNone:
	default:
		errs = append(errs, fmt.Errorf("unknown segmentation.policy %q", c.Segmentation.Policy))
	}

	if c.Capture.StopTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("capture.stop_timeout must not be negative, got %v", c.Capture.StopTimeout))
	}

	switch c.Whisper.Backend {
	case BackendNative:
		if c.Whisper.ModelPath == "" {
			errs = append(errs, errors.New("whisper.model_path is required for the native backend"))
		}
	case BackendServer:
		if !strings.HasPrefix(c.Whisper.ServerURL, "http://") && !strings.HasPrefix(c.Whisper.ServerURL, "https://") {
			errs = append(errs, fmt.Errorf("whisper.server_url must be an http(s) URL, got %q", c.Whisper.ServerURL))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown whisper.backend %q", c.Whisper.Backend))
	}
	if c.Whisper.Threads < 0 {
		errs = append(errs, fmt.Errorf("whisper.threads must not be negative, got %d", c.Whisper.Threads))
	}
	if c.Whisper.Temperature < 0 {
		errs = append(errs, fmt.Errorf("whisper.temperature must not be negative, got %v", c.Whisper.Temperature))
	}

	return errors.Join(errs...)
}

// Path returns the platform-specific config file path
func Path() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "earshot", "config.json")
}

// dataPath returns the platform-specific data directory, where the default
// model path points.
func dataPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/share"
		}
	}

	return filepath.Join(base, "earshot")
}
