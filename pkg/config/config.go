// Package config handles the scenevm.toml game configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/zurustar/scenevm/pkg/script"
)

// FileName is the name of the game configuration file.
const FileName = "scenevm.toml"

// Defaults
const (
	DefaultTicksPerSecond = 60
	DefaultWidth          = 640
	DefaultHeight         = 480
	DefaultScale          = 1.0
	DefaultSaveDir        = "saves"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config represents a scenevm.toml game configuration.
type Config struct {
	Game   Game   `toml:"game"`
	Audio  Audio  `toml:"audio"`
	Window Window `toml:"window"`
	Save   Save   `toml:"save"`

	// Dir is the directory containing the configuration file (set at load time).
	Dir string `toml:"-"`
}

// Game describes the scripts and the assets they use.
type Game struct {
	Title          string   `toml:"title"`
	Start          string   `toml:"start"`
	Scripts        []string `toml:"scripts"`
	Encoding       string   `toml:"encoding"`
	Assets         string   `toml:"assets"`
	TicksPerSecond int      `toml:"ticks_per_second"`
	Seed           int64    `toml:"seed"`
}

// Audio configures sound playback.
type Audio struct {
	Enabled   bool   `toml:"enabled"`
	SoundFont string `toml:"soundfont"`
}

// Window configures the interactive front-end.
type Window struct {
	Width     int     `toml:"width"`
	Height    int     `toml:"height"`
	Scale     float64 `toml:"scale"`
	ShowExits bool    `toml:"show_exits"`
}

// Save configures where save games are written.
type Save struct {
	Dir string `toml:"dir"`
}

// Default returns the configuration used when a game has no scenevm.toml.
func Default(dir string) *Config {
	c := &Config{Dir: dir}
	c.Audio.Enabled = true
	c.applyDefaults()
	return c
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	c, err := Parse(string(data), dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a configuration, applies defaults and validates the result.
// Relative paths in it are resolved against dir.
func Parse(data, dir string) (*Config, error) {
	var c Config
	md, err := toml.Decode(data, &c)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}

	// 省略された場合は音を鳴らす
	if !md.IsDefined("audio", "enabled") {
		c.Audio.Enabled = true
	}
	c.Dir = dir
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a scenevm.toml file, then loads
// and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		p := filepath.Join(dir, FileName)
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults() {
	if len(c.Game.Scripts) == 0 {
		c.Game.Scripts = slices.Clone(script.DefaultPatterns)
	}
	if c.Game.Encoding == "" {
		c.Game.Encoding = script.DefaultEncoding
	}
	if c.Game.Assets == "" {
		c.Game.Assets = "."
	}
	if c.Game.TicksPerSecond == 0 {
		c.Game.TicksPerSecond = DefaultTicksPerSecond
	}
	if c.Window.Width == 0 {
		c.Window.Width = DefaultWidth
	}
	if c.Window.Height == 0 {
		c.Window.Height = DefaultHeight
	}
	if c.Window.Scale == 0 {
		c.Window.Scale = DefaultScale
	}
	if c.Save.Dir == "" {
		c.Save.Dir = DefaultSaveDir
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if c.Game.TicksPerSecond < 1 || c.Game.TicksPerSecond > 1000 {
		errs = append(errs, fmt.Errorf("game.ticks_per_second must be between 1 and 1000, got %d", c.Game.TicksPerSecond))
	}
	for _, pattern := range c.Game.Scripts {
		if _, err := path.Match(pattern, ""); err != nil {
			errs = append(errs, fmt.Errorf("game.scripts: bad pattern %q", pattern))
		}
	}
	if err := script.ValidateEncoding(c.Game.Encoding); err != nil {
		errs = append(errs, fmt.Errorf("game.encoding: %w", err))
	}
	if c.Window.Width < 0 || c.Window.Height < 0 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.Window.Scale < 0 {
		errs = append(errs, fmt.Errorf("window.scale must be positive, got %g", c.Window.Scale))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// AssetDir returns the directory scripts, images and sounds are read from.
func (c *Config) AssetDir() string {
	return c.resolve(c.Game.Assets)
}

// SaveDir returns the directory save games are written to.
func (c *Config) SaveDir() string {
	return c.resolve(c.Save.Dir)
}

// SoundFontPath returns the SoundFont path relative to the asset directory,
// or "" when MIDI is not configured.
func (c *Config) SoundFontPath() string {
	return filepath.ToSlash(c.Audio.SoundFont)
}
