package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/deskvm/internal/logging"
	"github.com/Iron-Ham/deskvm/internal/rdp"
	"github.com/Iron-Ham/deskvm/internal/schedule"
	"github.com/Iron-Ham/deskvm/internal/vbox"
	"github.com/spf13/viper"
)

// Config represents the complete deskvm configuration
type Config struct {
	VirtualBox  VirtualBoxConfig  `mapstructure:"virtualbox" yaml:"virtualbox"`
	RDP         RDPConfig         `mapstructure:"rdp" yaml:"rdp"`
	SaveTimeout SaveTimeoutConfig `mapstructure:"save_timeout" yaml:"save_timeout"`
	Locks       LocksConfig       `mapstructure:"locks" yaml:"locks"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// VirtualBoxConfig selects the VM and how VBoxManage is invoked
type VirtualBoxConfig struct {
	// VMName is the VirtualBox VM name or UUID (required)
	VMName string `mapstructure:"vmname" yaml:"vmname"`
	// Command is the VBoxManage executable (default: "VBoxManage")
	Command string `mapstructure:"command" yaml:"command"`
	// StartType is passed to "startvm --type"
	// Options: "headless", "gui", "sdl", "separate"
	StartType string `mapstructure:"start_type" yaml:"start_type"`
}

// RDPConfig controls the remote desktop client
type RDPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	// Password is passed on the client command line. When empty deskvm
	// prompts for it on a terminal.
	Password string `mapstructure:"password" yaml:"password"`
	// Options are extra xfreerdp arguments, split like a shell would
	Options string `mapstructure:"options" yaml:"options"`
	// Command is the client executable (default: "xfreerdp")
	Command string `mapstructure:"command" yaml:"command"`
}

// SaveTimeoutConfig controls the deferred suspend after a session closes
type SaveTimeoutConfig struct {
	// Timeout is the idle period in minutes before the VM is saved
	Timeout int `mapstructure:"timeout" yaml:"timeout"`
	// Days lists the active weekdays, 1=Monday through 7=Sunday
	Days string `mapstructure:"days" yaml:"days"`
	// HoursStart and HoursEnd bound the active window, "HH:MM", inclusive
	HoursStart string `mapstructure:"hours_start" yaml:"hours_start"`
	HoursEnd   string `mapstructure:"hours_end" yaml:"hours_end"`
	// PollIntervalSeconds is how often control ownership is re-checked
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`
}

// LocksConfig locates the lock files shared by all deskvm processes
type LocksConfig struct {
	// Dir holds the lock files (default: the system temp directory)
	Dir     string `mapstructure:"dir" yaml:"dir"`
	Session string `mapstructure:"session" yaml:"session"`
	Control string `mapstructure:"control" yaml:"control"`
}

// LoggingConfig controls logging output
type LoggingConfig struct {
	// Level is the minimum level logged: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "text" or "json"
	Format string `mapstructure:"format" yaml:"format"`
	// File, when set, receives logs instead of stdout
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		VirtualBox: VirtualBoxConfig{
			Command:   "VBoxManage",
			StartType: "headless",
		},
		RDP: RDPConfig{
			Port:    rdp.DefaultPort,
			Command: "xfreerdp",
		},
		SaveTimeout: SaveTimeoutConfig{
			Timeout:             30,
			Days:                "1,2,3,4,5",
			HoursStart:          "09:00",
			HoursEnd:            "18:00",
			PollIntervalSeconds: int(schedule.DefaultPollInterval / time.Second),
		},
		Locks: LocksConfig{
			Session: "deskvm.rdp.lock",
			Control: "deskvm.con.lock",
		},
		Logging: LoggingConfig{
			Level:      logging.LevelInfo,
			Format:     logging.FormatText,
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// VirtualBox defaults
	viper.SetDefault("virtualbox.vmname", defaults.VirtualBox.VMName)
	viper.SetDefault("virtualbox.command", defaults.VirtualBox.Command)
	viper.SetDefault("virtualbox.start_type", defaults.VirtualBox.StartType)

	// RDP defaults
	viper.SetDefault("rdp.host", defaults.RDP.Host)
	viper.SetDefault("rdp.port", defaults.RDP.Port)
	viper.SetDefault("rdp.username", defaults.RDP.Username)
	viper.SetDefault("rdp.password", defaults.RDP.Password)
	viper.SetDefault("rdp.options", defaults.RDP.Options)
	viper.SetDefault("rdp.command", defaults.RDP.Command)

	// Save timeout defaults
	viper.SetDefault("save_timeout.timeout", defaults.SaveTimeout.Timeout)
	viper.SetDefault("save_timeout.days", defaults.SaveTimeout.Days)
	viper.SetDefault("save_timeout.hours_start", defaults.SaveTimeout.HoursStart)
	viper.SetDefault("save_timeout.hours_end", defaults.SaveTimeout.HoursEnd)
	viper.SetDefault("save_timeout.poll_interval_seconds", defaults.SaveTimeout.PollIntervalSeconds)

	// Lock defaults
	viper.SetDefault("locks.dir", defaults.Locks.Dir)
	viper.SetDefault("locks.session", defaults.Locks.Session)
	viper.SetDefault("locks.control", defaults.Locks.Control)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	cfg, err := Decode()
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return cfg, nil
}

// Decode reads the configuration from viper without validating it.
func Decode() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

// normalize folds values that legacy INI files spell differently.
func (c *Config) normalize() {
	level := strings.ToUpper(strings.TrimSpace(c.Logging.Level))
	if level == "WARNING" || slices.Contains(logging.ValidLevels(), level) {
		level = logging.ParseLevel(level)
	}
	c.Logging.Level = level
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.VirtualBox.StartType = strings.ToLower(strings.TrimSpace(c.VirtualBox.StartType))
}

// IdleTimeout returns the save timeout as a time.Duration
func (c *SaveTimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Minute
}

// PollInterval returns the poll interval as a time.Duration
func (c *SaveTimeoutConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Window parses the active window.
func (c *SaveTimeoutConfig) Window() (schedule.Window, error) {
	days, err := schedule.ParseDays(c.Days)
	if err != nil {
		return schedule.Window{}, err
	}
	start, err := schedule.ParseTimeOfDay(c.HoursStart)
	if err != nil {
		return schedule.Window{}, err
	}
	end, err := schedule.ParseTimeOfDay(c.HoursEnd)
	if err != nil {
		return schedule.Window{}, err
	}
	return schedule.Window{Days: days, Start: start, End: end}, nil
}

// Driver returns the VirtualBox driver configuration.
func (c *VirtualBoxConfig) Driver() vbox.Config {
	return vbox.Config{VM: c.VMName, Command: c.Command, StartType: c.StartType}
}

// Params returns the session parameters for the remote desktop client.
func (c *RDPConfig) Params() rdp.Params {
	return rdp.Params{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		Options:  c.Options,
	}
}

// ResolveDir returns the lock directory. An empty Dir means the system temp
// directory; a leading ~ expands to the user's home directory.
func (c *LocksConfig) ResolveDir() string {
	if c.Dir == "" {
		return os.TempDir()
	}
	return expandHome(c.Dir)
}

// SessionPath returns the session lock file path
func (c *LocksConfig) SessionPath() string {
	return filepath.Join(c.ResolveDir(), c.Session)
}

// ControlPath returns the control lock file path
func (c *LocksConfig) ControlPath() string {
	return filepath.Join(c.ResolveDir(), c.Control)
}

// Options returns logger options for this configuration.
func (c *LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:  c.Level,
		Format: c.Format,
		File:   expandHome(c.File),
		Rotation: logging.RotationConfig{
			MaxSizeMB:  c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
		},
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "deskvm")
	}
	// Fall back to ~/.config/deskvm
	home, err := os.UserHomeDir()
	if err != nil {
		return ".deskvm"
	}
	return filepath.Join(home, ".config", "deskvm")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidStartTypes returns the accepted "startvm --type" values
func ValidStartTypes() []string {
	return []string{"headless", "gui", "sdl", "separate"}
}

// ValidLogFormats returns the accepted log formats
func ValidLogFormats() []string {
	return []string{logging.FormatText, logging.FormatJSON}
}
