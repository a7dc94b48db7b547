// Package config provides CLI commands for managing deskvm configuration.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	appconfig "github.com/Iron-Ham/deskvm/internal/config"
	"github.com/Iron-Ham/deskvm/internal/logging"
	"github.com/Iron-Ham/deskvm/internal/schedule"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Wrapper functions for exec to allow testing
var execLookPath = exec.LookPath
var execCommand = exec.Command

const redacted = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify deskvm configuration",
	Long: `View or modify deskvm configuration.

Use 'config show' to display the effective configuration.
Use subcommands to modify settings or create a config file.`,
}

var showPassword bool

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration as YAML",
	Long: `Show the effective configuration: defaults, the config file and DESKVM_*
environment variables merged. The RDP password is masked unless
--show-password is given.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  deskvm config set virtualbox.vmname office
  deskvm config set save_timeout.timeout 45
  deskvm config set save_timeout.days 1,2,3,4,5
  deskvm config set rdp.options "-wallpaper +clipboard"

Flags go before the key; everything after it is taken literally, so values
may start with a dash.

Valid keys:
  virtualbox.vmname           - VM name or UUID
  virtualbox.start_type       - startvm --type: headless, gui, sdl, separate
  rdp.host                    - RDP host
  rdp.port                    - RDP port
  rdp.username                - RDP user
  rdp.options                 - Extra xfreerdp arguments
  save_timeout.timeout        - Minutes to wait before saving the VM
  save_timeout.days           - Active weekdays, 1=Monday ... 7=Sunday
  save_timeout.hours_start    - Start of working hours (HH:MM)
  save_timeout.hours_end      - End of working hours (HH:MM)
  locks.dir                   - Directory for lock files
  logging.level               - debug, info, warn, error
  logging.format              - text, json
  logging.file                - Log file (empty logs to stdout)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/deskvm/config.yaml with all available options.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in your editor",
	Long: `Open the config file in your preferred editor.

Uses $EDITOR environment variable, or falls back to common editors (vim, nano, vi).
If no config file exists, creates one with default values first.`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

func init() {
	configShowCmd.Flags().BoolVar(&showPassword, "show-password", false, "print the RDP password in clear text")
	configSetCmd.Flags().SetInterspersed(false)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
}

// Register adds all config-related commands to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := appconfig.Decode()
	if err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	if cfg.RDP.Password != "" && !showPassword {
		cfg.RDP.Password = redacted
	}

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "# Config file: (none - using defaults)\n")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)

	// Show, but do not fail on, problems that would stop other commands
	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%s\n", appconfig.ValidationErrors(errs).Error())
	}
	return err
}

// settableKeys maps each key accepted by "config set" to its value kind.
var settableKeys = map[string]string{
	"virtualbox.vmname":        "string",
	"virtualbox.start_type":    "start_type",
	"rdp.host":                 "string",
	"rdp.port":                 "port",
	"rdp.username":             "string",
	"rdp.options":              "string",
	"save_timeout.timeout":     "int",
	"save_timeout.days":        "days",
	"save_timeout.hours_start": "time",
	"save_timeout.hours_end":   "time",
	"locks.dir":                "string",
	"logging.level":            "level",
	"logging.format":           "format",
	"logging.file":             "string",
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	keyType, ok := settableKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'deskvm config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue any
	switch keyType {
	case "string":
		typedValue = value
	case "start_type":
		if !slices.Contains(appconfig.ValidStartTypes(), value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidStartTypes(), ", "))
		}
		typedValue = value
	case "format":
		if !slices.Contains(appconfig.ValidLogFormats(), value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidLogFormats(), ", "))
		}
		typedValue = value
	case "level":
		level := strings.ToUpper(value)
		if !slices.Contains(logging.ValidLevels(), level) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(logging.ValidLevels(), ", "))
		}
		typedValue = strings.ToLower(level)
	case "days":
		if _, err := schedule.ParseDays(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		typedValue = value
	case "time":
		if _, err := schedule.ParseTimeOfDay(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		typedValue = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid value for %s: expected a port number 1-65535", key)
		}
		typedValue = port
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = intVal
	}

	// Ensure config directory exists
	configDir := appconfig.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := appconfig.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)

	return nil
}

// defaultConfigContent is written by "config init".
const defaultConfigContent = `# deskvm configuration

# VirtualBox VM to start and save
virtualbox:
  # VM name or UUID (required)
  vmname: ""
  # VBoxManage executable
  command: VBoxManage
  # startvm --type: headless, gui, sdl, separate
  start_type: headless

# Remote desktop session
rdp:
  # Host and port of the VM's RDP server (host is required)
  host: ""
  port: 3389
  username: ""
  # Leave empty to be prompted on the terminal
  password: ""
  # Extra xfreerdp arguments, e.g. "/f +clipboard"
  options: ""
  command: xfreerdp

# When to save the VM after the session closes
save_timeout:
  # Minutes to wait before saving the VM
  timeout: 30
  # Working days, 1=Monday ... 7=Sunday
  days: "1,2,3,4,5"
  # Working hours (inclusive); outside them the VM is saved immediately
  hours_start: "09:00"
  hours_end: "18:00"
  # How often a waiting deskvm checks whether another one took over
  poll_interval_seconds: 60

# Lock files shared by all deskvm processes
locks:
  # Empty uses the system temp directory
  dir: ""
  session: deskvm.rdp.lock
  control: deskvm.con.lock

logging:
  # debug, info, warn, error
  level: info
  # text or json
  format: text
  # Log file; empty logs to stdout
  file: ""
  max_size_mb: 10
  max_backups: 3
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := appconfig.ConfigDir()
	configFile := appconfig.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'deskvm config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold the RDP password
	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Set virtualbox.vmname and rdp.host before connecting.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := appconfig.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(appconfig.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. $HOME/.config/deskvm/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nLegacy INI files (.conf, .ini) can be passed with --config.")
	fmt.Fprintln(out, "Environment variables: DESKVM_* (e.g., DESKVM_RDP_HOST)")

	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := appconfig.ConfigFile()

	// Check if config file exists, if not create it
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		fmt.Fprintf(out, "Config file doesn't exist, creating with defaults...\n")
		if err := runConfigInit(cmd, args); err != nil {
			return err
		}
	}

	// Find an editor
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		// Try common editors
		for _, e := range []string{"vim", "nano", "vi"} {
			if _, err := execLookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set $EDITOR environment variable")
	}

	// Open the editor
	editorCmd := execCommand(editor, configFile)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}

	fmt.Fprintf(out, "Config file saved: %s\n", configFile)
	return nil
}
