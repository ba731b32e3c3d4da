package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/formula-resolver/internal/service/installer"
)

func newUninstallCommand(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:     "uninstall <name>",
		Aliases: []string{"rm", "remove"},
		Short:   "Remove an installed formula's binaries",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options := &installer.UninstallOptions{
				Name:     args[0],
				StateDir: a.settings.ResolvedStateDir(),
			}

			if dir != "" {
				binDir, err := a.settings.ResolveLocation(dir)
				if err != nil {
					return err
				}

				options.BinDir = binDir
			}

			removed, err := installer.Uninstall(cmd.Context(), options)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Uninstalled %s %s from %s\n", removed.Name, removed.Version, removed.Dir)

			return err
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to remove binaries from (default: the one recorded at install time)")

	return cmd
}
