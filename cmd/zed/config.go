package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"zed/internal/input"
	"zed/internal/settings"
)

// Config is the top-level YAML configuration for the zed daemon.
//
// The file is the primary configuration surface; flags are small overrides
// applied on top of it. Defaults and validation live here so the rest of the
// program can assume a well-formed config.
type Config struct {
	Display  DisplayConfig  `yaml:"display"`
	Frame    FrameConfig    `yaml:"frame"`
	Input    InputConfig    `yaml:"input"`
	Settings SettingsConfig `yaml:"settings"`
	IPC      IPCConfig      `yaml:"ipc"`
	Status   StatusConfig   `yaml:"status"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Intro plays the intro animation before the main menu.
	Intro bool `yaml:"intro"`
	// Debug enables debug mode in the runtime settings.
	Debug bool `yaml:"debug"`
}

type DisplayConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// Presenter is "terminal" (ANSI half blocks on stdout) or "none".
	Presenter string `yaml:"presenter"`
}

type FrameConfig struct {
	TargetFPS int  `yaml:"target_fps"`
	Lock      bool `yaml:"lock"`
	ShowFPS   bool `yaml:"show_fps"`
}

type InputConfig struct {
	// PathTemplate is formatted with the joystick index 0..3.
	PathTemplate   string `yaml:"path_template"`
	ScanIntervalMS int    `yaml:"scan_interval_ms"`
	Keyboard       bool   `yaml:"keyboard"`
	TTY            string `yaml:"tty"`

	// Buttons and Axes override the default gamepad bindings per raw
	// address, e.g. {0: a, 1: b}.
	Buttons map[uint8]input.Button `yaml:"buttons,omitempty"`
	Axes    map[uint8]input.Axis   `yaml:"axes,omitempty"`
}

type SettingsConfig struct {
	Brightness float64 `yaml:"brightness"`
	Persist    bool    `yaml:"persist"`
	AppName    string  `yaml:"app_name"`
}

type IPCConfig struct {
	// SocketPath is the unix socket for remote input. Empty disables IPC.
	SocketPath string `yaml:"socket_path"`
}

type StatusConfig struct {
	// Listen is the status HTTP address. Empty disables the server.
	Listen string `yaml:"listen"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// File receives the log; "-" means stderr.
	File string `yaml:"file"`
}

const (
	presenterTerminal = "terminal"
	presenterNone     = "none"
)

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Display: DisplayConfig{
			Width:     192,
			Height:    64,
			Presenter: presenterTerminal,
		},
		Frame: FrameConfig{
			TargetFPS: 60,
			Lock:      true,
		},
		Input: InputConfig{
			PathTemplate:   input.DefaultPathTemplate,
			ScanIntervalMS: int(input.DefaultScanInterval / time.Millisecond),
			Keyboard:       true,
			TTY:            "/dev/tty",
		},
		Settings: SettingsConfig{
			Brightness: settings.MaxBrightness,
			Persist:    true,
			AppName:    "zed",
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/zed.sock",
		},
		Status: StatusConfig{
			Listen: "127.0.0.1:3002",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(os.TempDir(), "zed.log"),
		},
		Intro: true,
	}
}

// LoadConfigFile reads and parses a YAML config file over the defaults.
// Unknown fields and trailing documents are rejected.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries the flags that were set on the command line. A nil
// pointer means "not set"; a non-nil pointer is applied even when it holds a
// zero value.
type FlagOverrides struct {
	Width     *int
	Height    *int
	Presenter *string

	TargetFPS *int
	LockFPS   *bool
	ShowFPS   *bool

	PathTemplate *string
	Keyboard     *bool

	Brightness *float64
	Persist    *bool

	IPCSocketPath *string
	StatusListen  *string

	LogLevel *string
	LogFile  *string

	Intro *bool
	Debug *bool
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Width != nil {
		cfg.Display.Width = *o.Width
	}
	if o.Height != nil {
		cfg.Display.Height = *o.Height
	}
	if o.Presenter != nil {
		cfg.Display.Presenter = *o.Presenter
	}

	if o.TargetFPS != nil {
		cfg.Frame.TargetFPS = *o.TargetFPS
	}
	if o.LockFPS != nil {
		cfg.Frame.Lock = *o.LockFPS
	}
	if o.ShowFPS != nil {
		cfg.Frame.ShowFPS = *o.ShowFPS
	}

	if o.PathTemplate != nil {
		cfg.Input.PathTemplate = *o.PathTemplate
	}
	if o.Keyboard != nil {
		cfg.Input.Keyboard = *o.Keyboard
	}

	if o.Brightness != nil {
		cfg.Settings.Brightness = *o.Brightness
	}
	if o.Persist != nil {
		cfg.Settings.Persist = *o.Persist
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.StatusListen != nil {
		cfg.Status.Listen = *o.StatusListen
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFile != nil {
		cfg.Logging.File = *o.LogFile
	}

	if o.Intro != nil {
		cfg.Intro = *o.Intro
	}
	if o.Debug != nil {
		cfg.Debug = *o.Debug
	}
}

// Validate checks config invariants and returns a user-friendly error. Call
// it after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	// Display
	if c.Display.Width <= 0 || c.Display.Width > 1024 {
		return errors.New("display.width must be between 1 and 1024")
	}
	if c.Display.Height <= 0 || c.Display.Height > 1024 {
		return errors.New("display.height must be between 1 and 1024")
	}
	switch c.Display.Presenter {
	case presenterTerminal, presenterNone:
	default:
		return fmt.Errorf("display.presenter must be %q or %q", presenterTerminal, presenterNone)
	}

	// Frame
	if c.Frame.TargetFPS <= 0 || c.Frame.TargetFPS > 1000 {
		return errors.New("frame.target_fps must be between 1 and 1000")
	}

	// Input
	if strings.Count(c.Input.PathTemplate, "%d") != 1 {
		return errors.New("input.path_template must contain exactly one %d")
	}
	if c.Input.ScanIntervalMS <= 0 {
		return errors.New("input.scan_interval_ms must be > 0")
	}
	if c.Input.Keyboard && c.Input.TTY == "" {
		return errors.New("input.tty must not be empty when input.keyboard is true")
	}
	for addr, b := range c.Input.Buttons {
		if b == input.ButtonUndefined {
			return fmt.Errorf("input.buttons[%d] must name a button", addr)
		}
	}
	for addr, a := range c.Input.Axes {
		if a == input.AxisUndefined {
			return fmt.Errorf("input.axes[%d] must name an axis", addr)
		}
	}

	// Settings
	if c.Settings.Brightness < settings.MinBrightness || c.Settings.Brightness > settings.MaxBrightness {
		return fmt.Errorf("settings.brightness must be between %.2f and %.2f", settings.MinBrightness, settings.MaxBrightness)
	}
	if c.Settings.Persist && c.Settings.AppName == "" {
		return errors.New("settings.app_name must not be empty when settings.persist is true")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.File == "" {
		return errors.New(`logging.file must not be empty (use "-" for stderr)`)
	}

	return nil
}

// ScanInterval returns the discovery interval as a duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Input.ScanIntervalMS) * time.Millisecond
}

// GamepadBindings returns the default bindings with the configured overrides
// applied.
func (c *Config) GamepadBindings() input.GamepadBindings {
	b := input.DefaultGamepadBindings()
	for addr, btn := range c.Input.Buttons {
		b.Buttons[addr] = btn
	}
	for addr, ax := range c.Input.Axes {
		b.Axes[addr] = ax
	}
	return b
}

// SettingsDefaults returns the runtime settings the config starts with.
func (c *Config) SettingsDefaults() settings.Values {
	return settings.Values{
		DebugMode:  c.Debug,
		Brightness: c.Settings.Brightness,
		TargetFPS:  c.Frame.TargetFPS,
		LockFPS:    c.Frame.Lock,
		ShowFPS:    c.Frame.ShowFPS,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
