package cmd

import (
	"github.com/joeydtaylor/tbmux/pkg/serverfx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the front-end server",
	Long: `Start the tbmux front-end server.

The registry is seeded from the manifest's [[instance]] tables. When
[tensorboard] enabled = false, or seeding fails, instance routes answer 503
and the server still starts.

Examples:
  tbmux serve --manifest manifest.toml
  tbmux serve --manifest manifest.toml --adapter-mode pool --workers 8`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	app := fx.New(
		serverfx.Module(serverfx.Options{Service: "tbmux", Config: cfg}),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}
