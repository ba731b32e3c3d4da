package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newInfoCommand(a *app) *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "info <name[@version]>",
		Short: "Show formula metadata and artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := platformFlag(platform)
			if err != nil {
				return err
			}

			cat, err := a.catalog(cmd.Context(), cmd)
			if err != nil {
				return err
			}

			f, err := cat.Lookup(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			fields := [][2]string{
				{"Name", f.Name},
				{"Version", f.Version},
				{"Description", f.Description},
				{"Homepage", f.Homepage},
				{"License", f.License},
				{"Requires", joinNames(f.Requirements)},
				{"Depends on", joinNames(f.Dependencies)},
				{"Source", f.Source},
			}

			for _, field := range fields {
				if field[1] == "" {
					continue
				}

				if _, err = fmt.Fprintf(out, "%-12s %s\n", field[0]+":", field[1]); err != nil {
					return err
				}
			}

			selected, _ := f.Select(p)

			rows := make([][]string, 0, len(f.Artifacts))

			for _, artifact := range f.Artifacts {
				marker := ""
				if artifact == selected {
					marker = "*"
				}

				system := artifact.OS
				if system == "" {
					system = "any"
				}

				condition := artifact.Condition()
				if condition == "" {
					condition = "always"
				}

				rows = append(rows, []string{
					marker,
					system,
					condition,
					artifact.URL,
					shortChecksum(artifact.SHA256),
					installActions(artifact.Install),
				})
			}

			_, _ = fmt.Fprintf(out, "\nArtifacts (* selected for %s):\n", p)

			return renderTable(out, []string{"", "OS", "Condition", "URL", "SHA256", "Install"}, rows)
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "platform to mark the selected artifact for (default: this machine)")

	return cmd
}

func shortChecksum(sum string) string {
	const visible = 12

	if len(sum) <= visible {
		return sum
	}

	return strings.ToLower(sum[:visible]) + "…"
}
