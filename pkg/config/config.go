// Package config provides configuration file and flag support for the lock screen.
package config

import (
	"fmt"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultFont       = "-*-droid sans-*-*-*-*-20-*-100-100-*-*-iso8859-1"
	DefaultPassChar   = "*"
	DefaultBackground = "#C3BFB0"
	DefaultForeground = "#423638"
	DefaultWrong      = "#F80009"
	DefaultPAMService = "lockscreen"
	DefaultConsole    = "/dev/console"
	DefaultCapacity   = 256
)

// Config is the lock screen configuration.
type Config struct {
	Display string `yaml:"display"`
	Font    string `yaml:"font"`

	// FontFallback is opened when Font is unavailable. Empty makes a missing font fatal.
	FontFallback string `yaml:"font_fallback"`

	Username string `yaml:"username"`
	PassChar string `yaml:"passchar"`

	Background string `yaml:"background"`
	Foreground string `yaml:"foreground"`
	Wrong      string `yaml:"wrong"`

	HideLength bool `yaml:"hide_length"`

	DPMS        bool          `yaml:"dpms"`
	DPMSTimeout time.Duration `yaml:"dpms_timeout"`

	PAMService string `yaml:"pam_service"`

	GrabAttempts int           `yaml:"grab_attempts"`
	GrabBackoff  time.Duration `yaml:"grab_backoff"`

	Capacity int `yaml:"capacity"`

	LockConsole bool   `yaml:"lock_console"`
	Console     string `yaml:"console"`

	// Layouts overrides the keyboard layout names read from the X server.
	Layouts []string `yaml:"layouts"`

	// Keyrings are Secret Service collections locked together with the screen.
	Keyrings []string `yaml:"keyrings"`

	LockedHint bool `yaml:"locked_hint"`

	IdleTimeout time.Duration `yaml:"idle_timeout"`
	LockOnSleep bool          `yaml:"lock_on_sleep"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Display:      os.Getenv("DISPLAY"),
		Font:         DefaultFont,
		Username:     os.Getenv("USER"),
		PassChar:     DefaultPassChar,
		Background:   DefaultBackground,
		Foreground:   DefaultForeground,
		Wrong:        DefaultWrong,
		DPMS:         true,
		DPMSTimeout:  10 * time.Second,
		PAMService:   DefaultPAMService,
		GrabAttempts: 1000,
		GrabBackoff:  50 * time.Microsecond,
		Capacity:     DefaultCapacity,
		LockConsole:  true,
		Console:      DefaultConsole,
		LockedHint:   true,
		LockOnSleep:  true,
		LogLevel:     "info",
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/lockscreen/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to find config directory: %w", err)
	}

	return filepath.Join(dir, "lockscreen", "config.yaml"), nil
}

// Load reads the configuration at path over the defaults.
// Returns the default config if the file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// BindFlags registers the lock flags on fs. Flags write into c, so bind after Load to let the
// command line override the file.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Display, "display", c.Display, "X display to lock")
	fs.StringVarP(&c.Font, "font", "f", c.Font, "X logical font description of the text font")
	fs.StringVar(&c.FontFallback, "font-fallback", c.FontFallback, "font used when the text font is unavailable")
	fs.StringVarP(&c.Username, "username", "u", c.Username, "user name to show")
	fs.StringVarP(&c.PassChar, "passchar", "p", c.PassChar, "characters used to obfuscate the password")
	fs.StringVarP(&c.Background, "background", "b", c.Background, "background color")
	fs.StringVarP(&c.Foreground, "foreground", "o", c.Foreground, "foreground color")
	fs.StringVarP(&c.Wrong, "wrong", "w", c.Wrong, "color of warnings")
	fs.BoolVarP(&c.HideLength, "hidelength", "l", c.HideLength, "obfuscate the length of the password")
	fs.VarPF(&invertedBool{target: &c.DPMS}, "nodpms", "d", "do not turn off the display while locked").
		NoOptDefVal = "true"
	fs.DurationVar(&c.DPMSTimeout, "dpms-timeout", c.DPMSTimeout, "time before the display is turned off")
	fs.StringVar(&c.PAMService, "pam-service", c.PAMService, "PAM service used to verify the password")
	fs.IntVar(&c.GrabAttempts, "grab-attempts", c.GrabAttempts, "attempts to grab the pointer and keyboard")
	fs.DurationVar(&c.GrabBackoff, "grab-backoff", c.GrabBackoff, "wait between grab attempts")
	fs.VarPF(&invertedBool{target: &c.LockConsole}, "no-console-lock", "", "allow switching virtual consoles while locked").
		NoOptDefVal = "true"
	fs.StringVar(&c.Console, "console", c.Console, "console device used to lock console switching")
	fs.StringSliceVar(&c.Layouts, "layout", c.Layouts, "keyboard layout names, in group order")
	fs.StringSliceVar(&c.Keyrings, "keyring", c.Keyrings, "Secret Service collection to lock, such as default")
	fs.VarPF(&invertedBool{target: &c.LockedHint}, "no-locked-hint", "", "do not set the LockedHint of the login session").
		NoOptDefVal = "true"
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
}

// BindWatchFlags registers the flags of the resident mode on fs.
func (c *Config) BindWatchFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&c.IdleTimeout, "idle", c.IdleTimeout, "lock after this much inactivity, 0 disables")
	fs.VarPF(&invertedBool{target: &c.LockOnSleep}, "no-sleep-lock", "", "do not lock before the system sleeps").
		NoOptDefVal = "true"
}

// Normalize replaces unusable values with their defaults and logs a warning for each.
func (c *Config) Normalize(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if c.PassChar == "" {
		logger.Warn("passchar must be at least one character, using default", slog.String("default", DefaultPassChar))
		c.PassChar = DefaultPassChar
	}
	if c.Capacity < 2 {
		logger.Warn("capacity too small, using default", slog.Int("capacity", c.Capacity), slog.Int("default", DefaultCapacity))
		c.Capacity = DefaultCapacity
	}
	if c.GrabAttempts < 1 {
		logger.Warn("grab_attempts must be positive, using default", slog.Int("grab_attempts", c.GrabAttempts))
		c.GrabAttempts = 1000
	}
	if c.GrabBackoff < 0 {
		c.GrabBackoff = 0
	}
	if c.DPMSTimeout < time.Second {
		logger.Warn("dpms_timeout below one second, using default", slog.Duration("dpms_timeout", c.DPMSTimeout))
		c.DPMSTimeout = 10 * time.Second
	}
	if c.Console == "" {
		c.Console = DefaultConsole
	}
	if c.PAMService == "" {
		c.PAMService = DefaultPAMService
	}
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// invertedBool is a boolean flag that stores the negation of its value, for --no-* flags.
type invertedBool struct {
	target *bool
}

func (b *invertedBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b.target = !v
	return nil
}

func (b *invertedBool) String() string {
	if b.target == nil {
		return "false"
	}
	return strconv.FormatBool(!*b.target)
}

func (b *invertedBool) Type() string {
	return "bool"
}
