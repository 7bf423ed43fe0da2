package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a manifest and print the resolved instances",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "listen:     %s\n", cfg.Server.Listen)
	fmt.Fprintf(out, "base url:   %s/\n", cfg.Server.BaseURL)
	fmt.Fprintf(out, "adapter:    %s (workers %d)\n", cfg.Adapter.Mode, cfg.Adapter.Workers)
	fmt.Fprintf(out, "threshold:  %s\n", cfg.XSRF.VersionThreshold)
	fmt.Fprintf(out, "tensorboard enabled: %t\n\n", cfg.TensorBoard.IsEnabled())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tVERSION\tTARGET")
	for _, in := range cfg.Instances {
		target := in.Upstream
		switch {
		case in.Dir != "":
			target = in.Dir
		case in.Handler != "":
			target = in.Handler
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", in.Name, in.Kind, in.Version, target)
	}
	return tw.Flush()
}
