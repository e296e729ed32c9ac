package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "attendctl",
		Short: "Operate the attendance service",
		Long: `attendctl triggers the reconciliation jobs of a running attendance
service, reads their counters and generates signing keys.

Settings come from flags, ATTENDCTL_* environment variables or
$HOME/.attendctl.yaml.`,
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v, cmd)
		},
	}

	root.PersistentFlags().String("config", "", "config file (default $HOME/.attendctl.yaml)")
	root.PersistentFlags().String("server", "http://localhost:8000", "attendance service base URL")
	root.PersistentFlags().String("secret", "", "internal cron secret (falls back to INTERNAL_CRON_SECRET)")
	root.PersistentFlags().Duration("timeout", 0, "request timeout (default 2m)")

	root.AddCommand(newJobsCmd(v), newMetricsCmd(v), newKeysCmd())
	return root
}

func loadConfig(v *viper.Viper, cmd *cobra.Command) error {
	v.SetEnvPrefix("ATTENDCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("timeout", "2m")

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(".attendctl")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && v.GetString("config") != "" {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if v.GetString("secret") == "" {
		v.Set("secret", os.Getenv("INTERNAL_CRON_SECRET"))
	}
	return nil
}
