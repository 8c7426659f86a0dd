package cli

import (
	"fmt"
	"sort"

	"github.com/Swind/go-lane-executor/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newConfigCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("config")
			if _, err := config.Load(v, file); err != nil {
				return err
			}

			keys := v.AllKeys()
			sort.Strings(keys)
			out := cmd.OutOrStdout()
			for _, key := range keys {
				fmt.Fprintf(out, "%s = %v\n", key, v.Get(key))
			}
			return nil
		},
	}
}
