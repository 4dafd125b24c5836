package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"live-quiz-service/internal/config"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quiz-service",
		Short:         "Live quiz rooms over WebSocket",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVar(&port, "port", "", "port to listen on, overrides server.port (env: QUIZ_PORT)")
	fs.StringVar(&configPath, "config", "config/config.yaml", "path to YAML config (env: QUIZ_CONFIG)")

	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewTokenCmd(&configPath))

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		bindEnv(cmd.Flags())
		return nil
	}
	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// bindEnv lets QUIZ_<FLAG> environment variables fill flags that were not set explicitly.
// Config file keys have their own QUIZ_<SECTION>_<KEY> overrides in config.Load.
func bindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
