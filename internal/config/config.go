// Package config resolves map-core settings from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"crave/map-core/internal/camera"
	"crave/map-core/internal/candidates"
	"crave/map-core/internal/catalog"
	"crave/map-core/internal/fader"
	"crave/map-core/internal/lod"
	"crave/map-core/internal/tier"
	"crave/map-core/internal/transition"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

const (
	SourceNone     = "none"
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceRedis    = "redis"
)

type Config struct {
	HTTPAddr    string  `yaml:"http_addr" env:"HTTP_ADDR"`
	LogLevel    string  `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat   string  `yaml:"log_format" env:"LOG_FORMAT"`
	DatabaseURL string  `yaml:"database_url" env:"DATABASE_URL"`
	DeviceClass string  `yaml:"device_class" env:"DEVICE_CLASS"`
	LOD         LOD     `yaml:"lod" envPrefix:"LOD_"`
	Catalog     Catalog `yaml:"catalog" envPrefix:"CATALOG_"`
	Redis       Redis   `yaml:"redis" envPrefix:"REDIS_"`
}

// LOD holds the tuning parameters of the marker pipeline.
type LOD struct {
	FrameInterval      time.Duration `yaml:"frame_interval" env:"FRAME_INTERVAL"`
	ThrottleInterval   time.Duration `yaml:"throttle_interval" env:"THROTTLE_INTERVAL"`
	QuietPeriod        time.Duration `yaml:"quiet_period" env:"QUIET_PERIOD"`
	PadPx              float64       `yaml:"pad_px" env:"PAD_PX"`
	HoldDuration       time.Duration `yaml:"hold_duration" env:"HOLD_DURATION"`
	MaxFull            int           `yaml:"max_full" env:"MAX_FULL"`
	DotHeavyMaxFull    int           `yaml:"dot_heavy_max_full" env:"DOT_HEAVY_MAX_FULL"`
	ZoomEnter          float64       `yaml:"zoom_enter" env:"ZOOM_ENTER"`
	ZoomExit           float64       `yaml:"zoom_exit" env:"ZOOM_EXIT"`
	CountEnter         int           `yaml:"count_enter" env:"COUNT_ENTER"`
	CountExit          int           `yaml:"count_exit" env:"COUNT_EXIT"`
	TransitionDuration time.Duration `yaml:"transition_duration" env:"TRANSITION_DURATION"`
	LabelRevealAt      float64       `yaml:"label_reveal_at" env:"LABEL_REVEAL_AT"`
	MinScale           float64       `yaml:"min_scale" env:"MIN_SCALE"`
	FadeDuration       time.Duration `yaml:"fade_duration" env:"FADE_DURATION"`
	ArtWidthPx         float64       `yaml:"art_width_px" env:"ART_WIDTH_PX"`
	ArtHeightPx        float64       `yaml:"art_height_px" env:"ART_HEIGHT_PX"`
}

type Catalog struct {
	Source       string        `yaml:"source" env:"SOURCE"`
	Path         string        `yaml:"path" env:"PATH"`
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	Key      string `yaml:"key" env:"KEY"`
}

func Default() Config {
	return Config{
		HTTPAddr:    ":8081",
		LogLevel:    "info",
		LogFormat:   "json",
		DeviceClass: DeviceClassStandard,
		LOD: LOD{
			FrameInterval:      lod.DefaultFrame,
			ThrottleInterval:   camera.DefaultThrottle,
			QuietPeriod:        camera.DefaultQuietPeriod,
			PadPx:              candidates.DefaultPadPx,
			HoldDuration:       candidates.DefaultHold,
			MaxFull:            tier.DefaultMaxFull,
			DotHeavyMaxFull:    0,
			ZoomEnter:          tier.DefaultZoomEnter,
			ZoomExit:           tier.DefaultZoomExit,
			CountEnter:         tier.DefaultCountEnter,
			CountExit:          tier.DefaultCountExit,
			TransitionDuration: transition.DefaultDuration,
			LabelRevealAt:      transition.DefaultLabelRevealAt,
			MinScale:           transition.DefaultMinScale,
			FadeDuration:       fader.DefaultFade,
			ArtWidthPx:         fader.DefaultArtWidthPx,
			ArtHeightPx:        fader.DefaultArtHeightPx,
		},
		Catalog: Catalog{
			Source:       SourceNone,
			PollInterval: catalog.DefaultPollInterval,
		},
		Redis: Redis{
			Addr: "localhost:6379",
			Key:  "map-core:results",
		},
	}
}

// Load builds the effective config. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	cfg.Catalog.Source = strings.ToLower(strings.TrimSpace(cfg.Catalog.Source))
	if cfg.Catalog.Source == "" {
		cfg.Catalog.Source = SourceNone
	}
	cfg.ApplyDeviceClass()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables on top of target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	l := c.LOD
	if l.ZoomExit <= l.ZoomEnter {
		invalid("lod.zoom_exit (%v) must be greater than lod.zoom_enter (%v)", l.ZoomExit, l.ZoomEnter)
	}
	if l.CountExit >= l.CountEnter {
		invalid("lod.count_exit (%d) must be less than lod.count_enter (%d)", l.CountExit, l.CountEnter)
	}
	if l.MaxFull < 0 {
		invalid("lod.max_full must not be negative")
	}
	if l.DotHeavyMaxFull < 0 {
		invalid("lod.dot_heavy_max_full must not be negative")
	}
	if l.PadPx < 0 {
		invalid("lod.pad_px must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"lod.frame_interval":      l.FrameInterval,
		"lod.throttle_interval":   l.ThrottleInterval,
		"lod.quiet_period":        l.QuietPeriod,
		"lod.hold_duration":       l.HoldDuration,
		"lod.transition_duration": l.TransitionDuration,
		"lod.fade_duration":       l.FadeDuration,
		"catalog.poll_interval":   c.Catalog.PollInterval,
	} {
		if d < 0 {
			invalid("%s must not be negative", name)
		}
	}
	if l.LabelRevealAt <= 0 || l.LabelRevealAt > 1 {
		invalid("lod.label_reveal_at must be in (0, 1]")
	}
	if l.MinScale <= 0 || l.MinScale >= 1 {
		invalid("lod.min_scale must be in (0, 1)")
	}

	switch c.Catalog.Source {
	case SourceNone:
	case SourceFile:
		if strings.TrimSpace(c.Catalog.Path) == "" {
			invalid("catalog.path is required for the file source")
		}
	case SourcePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			invalid("database_url is required for the postgres source")
		}
	case SourceRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" || strings.TrimSpace(c.Redis.Key) == "" {
			invalid("redis.addr and redis.key are required for the redis source")
		}
	default:
		invalid("unknown catalog.source %q", c.Catalog.Source)
	}

	switch c.DeviceClass {
	case DeviceClassLow, DeviceClassStandard, DeviceClassHigh:
	default:
		invalid("unknown device_class %q", c.DeviceClass)
	}

	return errors.Join(errs...)
}

// EngineOptions maps the tuning parameters onto the pipeline components.
// Logger, metrics and the selection callback are left for the caller.
func (l LOD) EngineOptions() lod.Options {
	return lod.Options{
		Camera: camera.Options{
			Throttle:    l.ThrottleInterval,
			QuietPeriod: l.QuietPeriod,
		},
		Candidates: candidates.Options{
			PadPx: l.PadPx,
			Hold:  l.HoldDuration,
		},
		Tier: tier.Options{
			MaxFull:         l.MaxFull,
			DotHeavyMaxFull: l.DotHeavyMaxFull,
			ZoomEnter:       l.ZoomEnter,
			ZoomExit:        l.ZoomExit,
			CountEnter:      l.CountEnter,
			CountExit:       l.CountExit,
		},
		Transition: transition.Options{
			Duration:      l.TransitionDuration,
			LabelRevealAt: l.LabelRevealAt,
			MinScale:      l.MinScale,
			ArtHeightPx:   l.ArtHeightPx,
		},
		Fader: fader.Options{
			Fade:        l.FadeDuration,
			ArtWidthPx:  l.ArtWidthPx,
			ArtHeightPx: l.ArtHeightPx,
		},
	}
}
