// Package cli implements the laneexec command line.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand builds the laneexec command tree. Each call returns an
// independent tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "laneexec",
		Short: "Two-lane cooperative task executor",
		Long: `laneexec runs computations on two worker lanes, high and low.
Idle workers of either lane pick up work from the other lane.

Lane sizing comes from the config file, LANEEXEC_* environment
variables, or the HIGH_NUM / LOW_NUM variables.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (YAML)")
	root.PersistentFlags().String("log-level", "", "log level (debug/info/warn/error)")
	_ = v.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newRunCommand(v))
	root.AddCommand(newConfigCommand(v))
	return root
}
