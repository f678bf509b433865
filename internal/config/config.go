package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/keagan/scenesplit/internal/scene"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	TempDir string `yaml:"temp_dir" env:"SCENESPLIT_TEMP_DIR"`
	Workers int    `yaml:"workers" env:"SCENESPLIT_WORKERS"`

	Log       LogConfig       `yaml:"log"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Detection DetectionConfig `yaml:"detection"`
	Export    ExportConfig    `yaml:"export"`
	Server    ServerConfig    `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"SCENESPLIT_LOG_LEVEL"`
	Format string `yaml:"format"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path" env:"SCENESPLIT_FFMPEG"`
	ProbePath  string `yaml:"probe_path" env:"SCENESPLIT_FFPROBE"`
	Threads    int    `yaml:"threads"`
}

type DetectionConfig struct {
	DefaultSensitivity int     `yaml:"default_sensitivity"`
	MinSceneLength     float64 `yaml:"min_scene_length"`
}

type ExportConfig struct {
	Preset           string `yaml:"preset"`
	CRF              int    `yaml:"crf"`
	IncludeAudio     bool   `yaml:"include_audio"`
	GIFFPS           int    `yaml:"gif_fps"`
	GIFWidth         int    `yaml:"gif_width"`
	ThumbnailQuality int    `yaml:"thumbnail_quality"`
	ThumbnailWidth   uint   `yaml:"thumbnail_width"`
	MinArtifactBytes int64  `yaml:"min_artifact_bytes"`
}

type ServerConfig struct {
	Addr          string        `yaml:"addr" env:"SCENESPLIT_ADDR"`
	MaxUploadMB   int64         `yaml:"max_upload_mb"`
	BatchTTL      time.Duration `yaml:"batch_ttl"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

// Load reads configuration from file or returns defaults. A .env file in the
// working directory is loaded first; environment variables win over the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SCENESPLIT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SCENESPLIT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SCENESPLIT_FFMPEG"); v != "" {
		c.FFmpeg.BinaryPath = v
	}
	if v := os.Getenv("SCENESPLIT_FFPROBE"); v != "" {
		c.FFmpeg.ProbePath = v
	}
	if v := os.Getenv("SCENESPLIT_TEMP_DIR"); v != "" {
		c.TempDir = v
	}
	if v := os.Getenv("SCENESPLIT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCENESPLIT_WORKERS: %q is not an integer", v)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks value ranges that would otherwise fail deep inside a batch
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if err := scene.ValidateSensitivity(c.Detection.DefaultSensitivity); err != nil {
		return fmt.Errorf("detection.default_sensitivity: %w", err)
	}
	if c.Detection.MinSceneLength < 0 {
		return fmt.Errorf("detection.min_scene_length must not be negative")
	}
	if c.Export.CRF < 0 || c.Export.CRF > 51 {
		return fmt.Errorf("export.crf must be between 0 and 51, got %d", c.Export.CRF)
	}
	if c.Export.GIFFPS < 1 || c.Export.GIFWidth < 1 {
		return fmt.Errorf("export.gif_fps and export.gif_width must be positive")
	}
	if c.Export.ThumbnailQuality < 1 || c.Export.ThumbnailQuality > 31 {
		return fmt.Errorf("export.thumbnail_quality must be between 1 and 31, got %d", c.Export.ThumbnailQuality)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ExportDefaults returns the per-scene encoder settings implied by the config
func (c *Config) ExportDefaults() scene.ExportOptions {
	crf := c.Export.CRF
	return scene.ExportOptions{
		IncludeAudio: c.Export.IncludeAudio,
		Preset:       c.Export.Preset,
		CRF:          &crf,
		FPS:          c.Export.GIFFPS,
		Width:        c.Export.GIFWidth,
	}
}

func defaultConfig() *Config {
	return &Config{
		TempDir: os.TempDir(),
		Workers: 4,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
		},
		Detection: DetectionConfig{
			DefaultSensitivity: scene.DefaultSensitivity,
			MinSceneLength:     0.5,
		},
		Export: ExportConfig{
			Preset:           "veryfast",
			CRF:              23,
			IncludeAudio:     true,
			GIFFPS:           10,
			GIFWidth:         480,
			ThumbnailQuality: 2,
			ThumbnailWidth:   320,
			MinArtifactBytes: 1024,
		},
		Server: ServerConfig{
			Addr:          "127.0.0.1:8501",
			MaxUploadMB:   2048,
			BatchTTL:      2 * time.Hour,
			SweepSchedule: "@every 10m",
		},
	}
}

// Default returns the built-in configuration
func Default() *Config {
	return defaultConfig()
}

func findConfigFile() string {
	candidates := []string{
		"./scenesplit.yaml",
		"./config.yaml",
		filepath.Join(os.Getenv("HOME"), ".scenesplit", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
