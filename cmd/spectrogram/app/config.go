package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/live-spectrogram/internal/colormap"
	"github.com/roman-kulish/live-spectrogram/internal/normalize"
)

const (
	SourceSynthetic SourceType = "synthetic"
	SourceCommand   SourceType = "command"
	SourceReplay    SourceType = "replay"
	SourceArchive   SourceType = "archive"

	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"

	InterpolationNearest    Interpolation = "nearest"
	InterpolationApprox     Interpolation = "approx-bilinear"
	InterpolationBiLinear   Interpolation = "bilinear"
	InterpolationCatmullRom Interpolation = "catmull-rom"

	defaultSessionLogPath = "log.txt"
	defaultArchivePath    = "spectrogram.sqlite"
	defaultWindowWidth    = 1024
	defaultWindowHeight   = 512
	defaultWindowTitle    = "Spectrogram"
	defaultTPS            = 60
	defaultJPEGQuality    = 95
)

type SourceType string

type ImageFormat string

type Interpolation string

var (
	validSourceTypes = map[SourceType]struct{}{
		SourceSynthetic: {},
		SourceCommand:   {},
		SourceReplay:    {},
		SourceArchive:   {},
	}

	validImageFormats = map[ImageFormat]struct{}{
		ImagePNG:  {},
		ImageJPEG: {},
	}

	validInterpolations = map[Interpolation]struct{}{
		InterpolationNearest:    {},
		InterpolationApprox:     {},
		InterpolationBiLinear:   {},
		InterpolationCatmullRom: {},
	}
)

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}
	if duration < 0 {
		return fmt.Errorf("app.Duration: must not be negative: %s", duration)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config represents the main application configuration
type Config struct {
	Settings   Settings         `yaml:"settings"`
	Source     SourceConfig     `yaml:"source"`
	Render     RenderConfig     `yaml:"render"`
	Window     WindowConfig     `yaml:"window"`
	SessionLog SessionLogConfig `yaml:"sessionLog"`
	Storage    StorageConfig    `yaml:"storage"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// SourceConfig selects and configures the magnitude source
type SourceConfig struct {
	Type      SourceType      `yaml:"type"`
	Command   CommandConfig   `yaml:"command"`
	Replay    ReplayConfig    `yaml:"replay"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
	Archive   ArchiveConfig   `yaml:"archive"`
}

// CommandConfig runs an external program printing one vector per line
type CommandConfig struct {
	Program              string   `yaml:"program"`
	Args                 []string `yaml:"args"`
	ParseErrorsThreshold uint8    `yaml:"parseErrorsThreshold"`
}

// ReplayConfig reads a session log back
type ReplayConfig struct {
	Path     string   `yaml:"path"`
	Interval Duration `yaml:"interval"`
	Loop     bool     `yaml:"loop"`
}

// SyntheticConfig generates a test spectrum
type SyntheticConfig struct {
	Bins       int      `yaml:"bins"`
	Reflectors int      `yaml:"reflectors"`
	NoiseFloor float64  `yaml:"noiseFloor"`
	Seed       uint64   `yaml:"seed"`
	Interval   Duration `yaml:"interval"`
}

// ArchiveConfig replays a session from the archive database
type ArchiveConfig struct {
	SessionID      int64    `yaml:"sessionId"`
	Interval       Duration `yaml:"interval"`
	RecordedTiming bool     `yaml:"recordedTiming"`
}

// RenderConfig controls how vectors become pixels
type RenderConfig struct {
	Theme          colormap.Theme `yaml:"theme"`
	ColorMapSize   int            `yaml:"colorMapSize"`
	Normalization  normalize.Mode `yaml:"normalization"`
	Columns        int            `yaml:"columns"`
	LeftMargin     *int           `yaml:"leftMargin"`
	Background     string         `yaml:"background"`
	Interpolation  Interpolation  `yaml:"interpolation"`
	AcquireTimeout Duration       `yaml:"acquireTimeout"`
	Overlay        OverlayConfig  `yaml:"overlay"`
}

// OverlayConfig controls the distance labels
type OverlayConfig struct {
	Enabled     bool    `yaml:"enabled"`
	RangeMeters float64 `yaml:"rangeMeters"`
	Steps       int     `yaml:"steps"`
	Gridlines   bool    `yaml:"gridlines"`
}

// WindowConfig represents the viewer window, or the offscreen surface size
// in headless mode
type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
	TPS    int    `yaml:"tps"`
}

// SessionLogConfig represents the raw vector log
type SessionLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// StorageConfig represents the session archive
type StorageConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Path          string   `yaml:"path"`
	MaxBatchSize  int      `yaml:"maxBatchSize"`
	QueueSize     int      `yaml:"queueSize"`
	FlushInterval Duration `yaml:"flushInterval"`
}

// SnapshotConfig represents periodic image dumps of the presented frame
type SnapshotConfig struct {
	Path     string      `yaml:"path"`
	Format   ImageFormat `yaml:"format"`
	Interval Duration    `yaml:"interval"`
	Quality  int         `yaml:"quality"`
}

// TelemetryConfig represents periodic statistics logging
type TelemetryConfig struct {
	Interval Duration `yaml:"interval"`
}

// NewConfig returns the configuration used when no file is given.
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Source: SourceConfig{
			Type: SourceSynthetic,
			Synthetic: SyntheticConfig{
				Interval: Duration(20 * time.Millisecond),
			},
		},
		Render: RenderConfig{
			Theme:         colormap.DefaultTheme,
			ColorMapSize:  colormap.DefaultColorMapSize,
			Normalization: normalize.Global,
			Background:    "#000000",
			Interpolation: InterpolationNearest,
			Overlay: OverlayConfig{
				Enabled: true,
			},
		},
		Window: WindowConfig{
			Width:  defaultWindowWidth,
			Height: defaultWindowHeight,
			Title:  defaultWindowTitle,
			TPS:    defaultTPS,
		},
		SessionLog: SessionLogConfig{
			Enabled: true,
			Path:    defaultSessionLogPath,
		},
		Storage: StorageConfig{
			Path: defaultArchivePath,
		},
		Snapshot: SnapshotConfig{
			Format:  ImagePNG,
			Quality: defaultJPEGQuality,
		},
		Telemetry: TelemetryConfig{
			Interval: Duration(10 * time.Second),
		},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns
// the defaults.
func LoadConfig(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, c.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err = c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// Validate checks the configuration and normalizes enumerations.
func (c *Config) Validate() error {
	var errs []error

	if _, err := parseLogLevel(c.Settings.LogLevel); err != nil {
		errs = append(errs, err)
	}

	c.Source.Type = SourceType(strings.ToLower(string(c.Source.Type)))
	if _, ok := validSourceTypes[c.Source.Type]; !ok {
		errs = append(errs, fmt.Errorf("source.type: unknown source '%s'", c.Source.Type))
	}
	switch c.Source.Type {
	case SourceCommand:
		if c.Source.Command.Program == "" {
			errs = append(errs, errors.New("source.command.program is required"))
		}
	case SourceReplay:
		if c.Source.Replay.Path == "" {
			errs = append(errs, errors.New("source.replay.path is required"))
		}
	case SourceArchive:
		if c.Source.Archive.SessionID <= 0 {
			errs = append(errs, errors.New("source.archive.sessionId is required"))
		}
		if c.Storage.Enabled {
			errs = append(errs, errors.New("storage cannot be enabled while replaying the archive"))
		}
	}
	if c.Source.Synthetic.Bins < 0 {
		errs = append(errs, fmt.Errorf("source.synthetic.bins: must not be negative: %d", c.Source.Synthetic.Bins))
	}

	if theme, err := colormap.ParseTheme(string(c.Render.Theme)); err != nil {
		errs = append(errs, fmt.Errorf("render.theme: %w", err))
	} else {
		c.Render.Theme = theme
	}
	if mode, err := normalize.ParseMode(string(c.Render.Normalization)); err != nil {
		errs = append(errs, fmt.Errorf("render.normalization: %w", err))
	} else {
		c.Render.Normalization = mode
	}
	if c.Render.ColorMapSize != 0 && c.Render.ColorMapSize < 2 {
		errs = append(errs, fmt.Errorf("render.colorMapSize: must be at least 2: %d", c.Render.ColorMapSize))
	}
	if c.Render.Columns < 0 {
		errs = append(errs, fmt.Errorf("render.columns: must not be negative: %d", c.Render.Columns))
	}
	if c.Render.LeftMargin != nil && *c.Render.LeftMargin < 0 {
		errs = append(errs, fmt.Errorf("render.leftMargin: must not be negative: %d", *c.Render.LeftMargin))
	}
	if _, err := c.Render.BackgroundColor(); err != nil {
		errs = append(errs, fmt.Errorf("render.background: %w", err))
	}
	c.Render.Interpolation = Interpolation(strings.ToLower(string(c.Render.Interpolation)))
	if _, ok := validInterpolations[c.Render.Interpolation]; !ok {
		errs = append(errs, fmt.Errorf("render.interpolation: unknown interpolation '%s'", c.Render.Interpolation))
	}

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window: invalid size %dx%d", c.Window.Width, c.Window.Height))
	}

	if c.SessionLog.Enabled && c.SessionLog.Path == "" {
		errs = append(errs, errors.New("sessionLog.path is required"))
	}

	if (c.Storage.Enabled || c.Source.Type == SourceArchive) && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}

	if c.Snapshot.Path != "" {
		c.Snapshot.Format = ImageFormat(strings.ToLower(string(c.Snapshot.Format)))
		if _, ok := validImageFormats[c.Snapshot.Format]; !ok {
			errs = append(errs, fmt.Errorf("snapshot.format: invalid image format '%s'", c.Snapshot.Format))
		}
		if c.Snapshot.Quality < 1 || c.Snapshot.Quality > 100 {
			errs = append(errs, fmt.Errorf("snapshot.quality: must be in [1, 100]: %d", c.Snapshot.Quality))
		}
	}

	return errors.Join(errs...)
}

// BackgroundColor parses the background hex color.
func (r *RenderConfig) BackgroundColor() (colorful.Color, error) {
	return colorful.Hex(r.Background)
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("settings.logLevel: %w", err)
	}
	return level, nil
}
