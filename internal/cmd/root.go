package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/Iron-Ham/deskvm/internal/cmd/config"
	appconfig "github.com/Iron-Ham/deskvm/internal/config"
	"github.com/Iron-Ham/deskvm/internal/desk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	strictExit bool

	// configErr holds a config file read failure; it is reported by the
	// first command that needs the configuration.
	configErr error
)

var rootCmd = &cobra.Command{
	Use:   "deskvm",
	Short: "Open a remote desktop session to a VirtualBox VM",
	Long: `deskvm starts a VirtualBox VM, opens an RDP session to it and, once the
session closes, saves the VM after an idle period during working hours.

Running deskvm without a subcommand is the same as "deskvm connect".
Several invocations coordinate through lock files: only one RDP session
is open at a time, and the most recent invocation decides when the VM
is saved.`,
	Args:          cobra.NoArgs,
	RunE:          runConnect,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// SIGINT or SIGTERM.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version reported by --version.
func SetVersionInfo(version, commit, date string) {
	rootCmd.Version = version + " (" + commit + ", " + date + ")"
}

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	return desk.ExitCode(err, strictExit)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.config/deskvm/config.yaml; .conf/.ini files are read as INI)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&strictExit, "strict-exit", false, "exit with code 4 when another session took control")

	config.Register(rootCmd)
}

func initConfig() {
	configErr = nil

	// Set defaults first so they're available even without a config file
	appconfig.SetDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("DESKVM")
	// Replace dots with underscores for nested keys in env vars
	// e.g., DESKVM_RDP_HOST for rdp.host
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flag := rootCmd.PersistentFlags().Lookup("log-level"); flag != nil {
		_ = viper.BindPFlag("logging.level", flag)
	}

	switch {
	case cfgFile != "" && appconfig.IsINI(cfgFile):
		values, err := appconfig.ReadINI(cfgFile)
		if err != nil {
			configErr = err
			return
		}
		viper.SetConfigFile(cfgFile)
		configErr = viper.MergeConfigMap(values)
		return
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	default:
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(appconfig.ConfigDir())
		viper.AddConfigPath("$HOME/.config/deskvm")
		viper.AddConfigPath(".")
	}

	// A missing file in the search paths is fine; an explicit one must exist
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			configErr = err
		}
	}
}
