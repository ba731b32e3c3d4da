package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/formula-resolver/internal/config"
	"github.com/oshokin/formula-resolver/internal/service/installer"
)

func newListCommand(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed formulas",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			receipts, err := installer.Installed(cmd.Context(), a.settings.ResolvedStateDir())
			if err != nil {
				return err
			}

			filter := ""
			if dir != "" {
				if filter, err = a.settings.ResolveLocation(dir); err != nil {
					return err
				}
			}

			rows := make([][]string, 0, len(receipts))

			for _, r := range receipts {
				if filter != "" && r.Dir != filter {
					continue
				}

				rows = append(rows, []string{
					r.Name,
					r.Version,
					r.Platform,
					config.CompressHome(r.Dir),
					joinNames(r.BinaryNames()),
					humanSize(r.TotalSize()),
					r.InstalledAt.Local().Format(time.DateTime),
				})
			}

			if len(rows) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No formulas installed.")
				return err
			}

			return renderTable(cmd.OutOrStdout(),
				[]string{"Name", "Version", "Platform", "Directory", "Binaries", "Size", "Installed"}, rows)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "only list installs in this directory or configured location")

	return cmd
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
