package main

import (
	"fmt"

	"github.com/marmos91/dittobrowse/pkg/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		Long: `Write a commented sample configuration.

By default the file is written to $XDG_CONFIG_HOME/dittobrowse/config.yaml
(~/.config/dittobrowse/config.yaml). An existing file is kept unless
--force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := path
			if target == "" {
				target = config.GetDefaultConfigPath()
			}
			if err := config.InitConfigToPath(target, force); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", target)
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")
	cmd.Flags().StringVarP(&path, "path", "p", "", "Write to this path instead of the default location")
	return cmd
}
