package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/text/unicode/norm"

	"mediawatermark/pkg/watermark"
)

// ErrInvalid wraps every field validation failure.
var ErrInvalid = errors.New("invalid configuration")

// RGB is a color given as exactly three 0-255 integers.
type RGB [3]uint8

func (c *RGB) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var vals []int
	if err := json.Unmarshal(data, &vals); err != nil {
		return fmt.Errorf("color must be [r, g, b]: %w", err)
	}
	if len(vals) != 3 {
		return fmt.Errorf("color needs 3 channels, got %d", len(vals))
	}
	for i, v := range vals {
		if v < 0 || v > 255 {
			return fmt.Errorf("color channel %d out of range: %d", i, v)
		}
		c[i] = uint8(v)
	}
	return nil
}

func (c RGB) NRGBA() color.NRGBA {
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: 255}
}

// Config is the run configuration. JSON keys follow the config file; the
// fields tagged "-" only come from the environment.
type Config struct {
	WatermarkText string             `json:"watermark_text"`
	Position      watermark.Position `json:"position"`
	FontPath      string             `json:"font_path"`
	FontSizeRatio float64            `json:"font_size_ratio"`
	InputFolder   string             `json:"input_folder"`
	OutputFolder  string             `json:"output_folder"`
	Transparency  int                `json:"transparency"`
	TextColor     RGB                `json:"text_color"`
	BGColor       RGB                `json:"bg_color"`

	Workers     int    `json:"workers"`
	JPEGQuality int    `json:"jpeg_quality"`
	VideoCodec  string `json:"video_codec"`
	AudioCodec  string `json:"audio_codec"`
	VideoCRF    int    `json:"video_crf"`

	FFmpegPath  string `json:"-"`
	FFprobePath string `json:"-"`
	LogLevel    string `json:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		WatermarkText: "Sample Watermark",
		Position:      watermark.Corner(watermark.BottomRight),
		FontSizeRatio: 0.05,
		InputFolder:   "images",
		OutputFolder:  "watermarked_images",
		Transparency:  128,
		TextColor:     RGB{255, 255, 255},
		BGColor:       RGB{0, 0, 0},
		Workers:       1,
		JPEGQuality:   95,
		VideoCodec:    "libx264",
		AudioCodec:    "aac",
		VideoCRF:      23,
		FFmpegPath:    "ffmpeg",
		FFprobePath:   "ffprobe",
		LogLevel:      "info",
	}
}

// Load reads the JSON file at path over the defaults and then applies
// environment overrides (a .env file is loaded first if present).
//
// Load always returns a usable Config. If the file cannot be read, parsed or
// validated, the returned Config holds the defaults plus environment
// overrides, and the error describes what went wrong. A malformed .env is
// reported the same way but does not discard the file's settings.
func Load(path string) (*Config, error) {
	envErr := loadDotenv(".env")

	cfg, err := loadFile(path)
	if err != nil {
		cfg = Default()
	}
	cfg.applyEnv()
	return cfg, errors.Join(envErr, err)
}

// loadDotenv loads KEY=VALUE lines from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func loadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges the JSON types alone cannot express.
func (c *Config) Validate() error {
	switch {
	case c.Transparency < 0 || c.Transparency > 255:
		return fmt.Errorf("%w: transparency %d not in 0..255", ErrInvalid, c.Transparency)
	case c.FontSizeRatio <= 0:
		return fmt.Errorf("%w: font_size_ratio must be positive, got %v", ErrInvalid, c.FontSizeRatio)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalid, c.Workers)
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return fmt.Errorf("%w: jpeg_quality %d not in 1..100", ErrInvalid, c.JPEGQuality)
	case strings.TrimSpace(c.InputFolder) == "" || strings.TrimSpace(c.OutputFolder) == "":
		return fmt.Errorf("%w: input_folder and output_folder must not be empty", ErrInvalid)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = envOr("WATERMARK_LOG_LEVEL", c.LogLevel)
	c.FFmpegPath = envOr("WATERMARK_FFMPEG", c.FFmpegPath)
	c.FFprobePath = envOr("WATERMARK_FFPROBE", c.FFprobePath)
	if n := envIntOr("WATERMARK_WORKERS", c.Workers); n >= 1 {
		c.Workers = n
	}
}

// Watermark converts the configuration into watermark options.
func (c *Config) Watermark() watermark.Options {
	return watermark.Options{
		Text:            norm.NFC.String(c.WatermarkText),
		Position:        c.Position,
		FontPath:        c.FontPath,
		FontSizeRatio:   c.FontSizeRatio,
		Transparency:    uint8(c.Transparency),
		TextColor:       c.TextColor.NRGBA(),
		BackgroundColor: c.BGColor.NRGBA(),
		JPEGQuality:     c.JPEGQuality,
	}
}

// Video returns the ffmpeg settings for video jobs.
func (c *Config) Video() watermark.VideoSettings {
	return watermark.VideoSettings{
		FFmpeg:     c.FFmpegPath,
		FFprobe:    c.FFprobePath,
		VideoCodec: c.VideoCodec,
		AudioCodec: c.AudioCodec,
		CRF:        c.VideoCRF,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
