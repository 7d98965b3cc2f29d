package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goEventQ/internal/config"
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write an example configuration file",
	Long:  `Write a TOML configuration file holding every default value (eventq.toml unless a path is given).`,
	Args:  cobra.MaximumNArgs(1),
	// Writing the defaults must not depend on an existing configuration
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "eventq.toml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.SaveExampleConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Example configuration written to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initConfigCmd)
}
