package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top-level application configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Logging    LoggingConfig    `toml:"logging"`
	OpenAI     OpenAIConfig     `toml:"openai"`
	Session    SessionConfig    `toml:"session"`
	Segmenter  SegmenterConfig  `toml:"segmenter"`
	Storage    StorageConfig    `toml:"storage"`
	Simulation SimulationConfig `toml:"simulation"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	StaticFilesDir     string   `toml:"static_files_dir"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// OpenAIConfig represents configuration for the external OpenAI services
type OpenAIConfig struct {
	APIKey             string `toml:"api_key"`
	TranscriptionModel string `toml:"transcription_model"`
	SummaryModel       string `toml:"summary_model"`
	BaseURL            string `toml:"base_url"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
}

// SessionConfig holds the per-session defaults applied until (or in place
// of) a handshake from the audio source.
type SessionConfig struct {
	SampleRate        int    `toml:"sample_rate"`
	Channels          int    `toml:"channels"`
	Format            string `toml:"format"`
	ClientChunkMs     int    `toml:"client_chunk_ms"`
	SummaryWords      int    `toml:"summary_words"`
	SegmentSeconds    int    `toml:"segment_seconds"`
	ProcessIntervalMs int    `toml:"process_interval_ms"`
	SummaryIntervalMs int    `toml:"summary_interval_ms"`
}

// SegmenterConfig represents configuration for the ffmpeg segmenter
type SegmenterConfig struct {
	FFmpegPath string `toml:"ffmpeg_path"`
	WorkDir    string `toml:"work_dir"`
}

// StorageConfig represents transcript storage configuration
type StorageConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// SimulationConfig represents file-playback simulation defaults
type SimulationConfig struct {
	ChunkSeconds int     `toml:"chunk_seconds"`
	HoldSeconds  int     `toml:"hold_seconds"`
	Speed        float64 `toml:"speed"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			StaticFilesDir: "web",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		OpenAI: OpenAIConfig{
			TranscriptionModel: "whisper-1",
			SummaryModel:       "gpt-4o-mini",
			BaseURL:            "https://api.openai.com/v1",
			TimeoutSeconds:     30,
		},
		Session: SessionConfig{
			SampleRate:        16000,
			Channels:          1,
			Format:            "s16le",
			ClientChunkMs:     250,
			SummaryWords:      40,
			SegmentSeconds:    15,
			ProcessIntervalMs: 10000,
			SummaryIntervalMs: 10000,
		},
		Segmenter: SegmenterConfig{
			FFmpegPath: "ffmpeg",
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    "liveblog.db",
		},
		Simulation: SimulationConfig{
			ChunkSeconds: 15,
			HoldSeconds:  1,
			Speed:        1.0,
		},
	}
}

// Load reads configuration from the given TOML file, applying defaults for
// missing values. The OpenAI API key falls back to OPENAI_API_KEY.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Session.SegmentSeconds <= 0 {
		return fmt.Errorf("segment_seconds must be positive, got %d", c.Session.SegmentSeconds)
	}
	if c.Session.SummaryWords <= 0 {
		return fmt.Errorf("summary_words must be positive, got %d", c.Session.SummaryWords)
	}
	if c.Session.ProcessIntervalMs <= 0 || c.Session.SummaryIntervalMs <= 0 {
		return fmt.Errorf("process and summary intervals must be positive")
	}
	if c.Simulation.Speed <= 0 {
		return fmt.Errorf("simulation speed must be positive, got %f", c.Simulation.Speed)
	}
	return nil
}
