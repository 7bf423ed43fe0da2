// Package cmd provides the tbmux command line.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeydtaylor/tbmux/pkg/manifest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "tbmux",
	Short: "tbmux - TensorBoard instance multiplexer",
	Long: `tbmux serves many named TensorBoard instances behind one front-end.

Requests to /tensorboard/<name>/... are dispatched to the instance registered
under <name>. Instances are declared in a TOML manifest.

Configuration:
  Every flag can also be set with a TBMUX_ environment variable.
  Example: TBMUX_LISTEN=:9000 TBMUX_MANIFEST=/etc/tbmux/manifest.toml

Commands:
  serve       Start the front-end server
  check       Validate a manifest and print the resolved instances
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("manifest", "", "path to the TOML manifest")
	pf.String("listen", "", "listen address (overrides server.listen)")
	pf.String("base-url", "", "URL prefix for every instance route (overrides server.base_url)")
	pf.String("log-dir", "", "directory for rotated log files (overrides server.log_dir)")
	pf.String("adapter-mode", "", "inline or pool (overrides adapter.mode)")
	pf.Int("workers", 0, "pool size when adapter-mode is pool (overrides adapter.workers)")
	pf.String("token", "", "static API token (overrides auth.token)")

	_ = viper.BindPFlags(pf)
}

func initConfig() {
	viper.SetEnvPrefix("TBMUX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the manifest (if any) and applies flag and env overrides.
func loadConfig(v *viper.Viper) (manifest.Config, error) {
	var cfg manifest.Config
	if path := v.GetString("manifest"); path != "" {
		loaded, err := manifest.Load(path)
		if err != nil {
			return manifest.Config{}, fmt.Errorf("load manifest %s: %w", path, err)
		}
		cfg = loaded
	}

	if s := v.GetString("listen"); s != "" {
		cfg.Server.Listen = s
	}
	if s := v.GetString("base-url"); s != "" {
		cfg.Server.BaseURL = s
	}
	if s := v.GetString("log-dir"); s != "" {
		cfg.Server.LogDir = s
	}
	if s := v.GetString("adapter-mode"); s != "" {
		cfg.Adapter.Mode = s
	}
	if n := v.GetInt("workers"); n > 0 {
		cfg.Adapter.Workers = n
	}
	if s := v.GetString("token"); s != "" {
		cfg.Auth.Token = s
	}

	if err := cfg.Validate(); err != nil {
		return manifest.Config{}, err
	}
	return cfg, nil
}
