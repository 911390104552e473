// Package config loads Mudra's settings from an INI file and MUDRA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/ini.v1"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MUDRA_"

// Config holds every tunable of the application. Each field is read from
// MUDRA_<NAME>; the INI file supplies the same names as [section] key pairs,
// so [camera] width sets CAMERA_WIDTH.
type Config struct {
	CameraID     int  `env:"CAMERA_ID" envDefault:"0"`
	CameraWidth  int  `env:"CAMERA_WIDTH" envDefault:"1280"`
	CameraHeight int  `env:"CAMERA_HEIGHT" envDefault:"720"`
	Mirror       bool `env:"CAMERA_MIRROR" envDefault:"true"`

	DataDir   string `env:"DATA_DIR"`
	PluginDir string `env:"PLUGIN_DIR"`
	StaticDir string `env:"STATIC_DIR"`

	Addr      string `env:"SERVER_ADDR" envDefault:"127.0.0.1:8080"`
	Advertise bool   `env:"SERVER_ADVERTISE" envDefault:"false"`

	HistoryDepth int `env:"HISTORY_DEPTH" envDefault:"10"`

	HoldFrames     int     `env:"GESTURE_HOLD_FRAMES" envDefault:"3"`
	ExtensionRatio float64 `env:"GESTURE_EXTENSION_RATIO" envDefault:"1.0"`
	LenientThumb   bool    `env:"GESTURE_LENIENT_THUMB" envDefault:"false"`
	Smoothing      int     `env:"GESTURE_SMOOTHING" envDefault:"1"`
	MinConfidence  float64 `env:"GESTURE_MIN_CONFIDENCE" envDefault:"0.7"`

	Color      int     `env:"DRAW_COLOR" envDefault:"1"`
	Brush      int     `env:"DRAW_BRUSH" envDefault:"1"`
	EraserSize float64 `env:"DRAW_ERASER_SIZE" envDefault:"50"`
	ShapeExit  string  `env:"DRAW_SHAPE_EXIT" envDefault:"abandon"`
	Trail      bool    `env:"DRAW_TRAIL" envDefault:"true"`

	SaveFormat       string        `env:"SAVE_FORMAT" envDefault:"png"`
	AutoSaveInterval time.Duration `env:"AUTOSAVE_INTERVAL" envDefault:"30s"`
	AutoSaveMaxFiles int           `env:"AUTOSAVE_MAX_FILES" envDefault:"10"`
	AutoSaveFormat   string        `env:"AUTOSAVE_FORMAT" envDefault:"jpg"`

	BlendAlpha float64 `env:"DISPLAY_BLEND_ALPHA" envDefault:"0.7"`
	Window     bool    `env:"DISPLAY_WINDOW" envDefault:"true"`
	Tray       bool    `env:"DISPLAY_TRAY" envDefault:"false"`

	PluginTimeout time.Duration `env:"PLUGIN_TIMEOUT" envDefault:"5s"`

	Verbose bool `env:"VERBOSE" envDefault:"false"`
}

// DefaultHome returns ~/.mudra.
func DefaultHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".mudra"), nil
}

// DefaultFile returns the default INI path, ~/.mudra/mudra.ini.
func DefaultFile() (string, error) {
	home, err := DefaultHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "mudra.ini"), nil
}

// Load reads iniPath (a missing file is not an error; an empty path skips it),
// then the process environment, which wins over the file.
func Load(iniPath string) (*Config, error) {
	vars, err := readINI(iniPath)
	if err != nil {
		return nil, err
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			vars[k] = v
		}
	}
	return parse(vars)
}

func parse(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{
		Prefix:      EnvPrefix,
		Environment: vars,
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.fillPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readINI flattens an INI file into MUDRA_* variable names.
func readINI(path string) (map[string]string, error) {
	vars := make(map[string]string)
	if path == "" {
		return vars, nil
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return vars, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	for _, sec := range f.Sections() {
		prefix := ""
		if sec.Name() != ini.DefaultSection {
			prefix = sec.Name() + "_"
		}
		for _, key := range sec.Keys() {
			name := EnvPrefix + strings.ToUpper(prefix+key.Name())
			name = strings.NewReplacer(".", "_", "-", "_").Replace(name)
			vars[name] = key.String()
		}
	}
	return vars, nil
}

func (c *Config) fillPaths() error {
	if c.DataDir == "" {
		home, err := DefaultHome()
		if err != nil {
			return err
		}
		c.DataDir = home
	}
	if c.PluginDir == "" {
		c.PluginDir = filepath.Join(c.DataDir, "plugins")
	}
	return nil
}

// Validate rejects values the rest of the application cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.CameraWidth <= 0 || c.CameraHeight <= 0 {
		errs = append(errs, fmt.Errorf("camera size %dx%d must be positive", c.CameraWidth, c.CameraHeight))
	}
	if c.HistoryDepth <= 0 {
		errs = append(errs, fmt.Errorf("history depth %d must be positive", c.HistoryDepth))
	}
	if c.HoldFrames < 0 {
		errs = append(errs, fmt.Errorf("hold frames %d must not be negative", c.HoldFrames))
	}
	if c.ExtensionRatio <= 0 {
		errs = append(errs, fmt.Errorf("extension ratio %v must be positive", c.ExtensionRatio))
	}
	if c.BlendAlpha < 0 || c.BlendAlpha > 1 {
		errs = append(errs, fmt.Errorf("blend alpha %v must be within [0,1]", c.BlendAlpha))
	}
	if c.AutoSaveInterval < 0 {
		errs = append(errs, fmt.Errorf("auto-save interval %v must not be negative", c.AutoSaveInterval))
	}
	for _, f := range []string{c.SaveFormat, c.AutoSaveFormat} {
		if f != "png" && f != "jpg" {
			errs = append(errs, fmt.Errorf("image format %q must be png or jpg", f))
		}
	}
	switch c.ShapeExit {
	case "abandon", "commit":
	default:
		errs = append(errs, fmt.Errorf("shape exit policy %q must be abandon or commit", c.ShapeExit))
	}
	return errors.Join(errs...)
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "mudra.db")
}

// DrawingsDir returns where manual saves are written.
func (c *Config) DrawingsDir() string {
	return filepath.Join(c.DataDir, "drawings")
}

// AutoSaveDir returns where periodic saves are written.
func (c *Config) AutoSaveDir() string {
	return filepath.Join(c.DataDir, "auto_saves")
}
