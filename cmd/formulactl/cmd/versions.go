package cmd

import (
	"errors"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/oshokin/formula-resolver/internal/repository/catalog"
	"github.com/oshokin/formula-resolver/internal/service/installer"
)

var errNegativeLimit = errors.New("limit must not be negative")

func newVersionsCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "versions <name>",
		Aliases: []string{"releases"},
		Short:   "List available versions of a formula, newest first",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errNegativeLimit
			}

			cat, err := a.catalog(cmd.Context(), cmd)
			if err != nil {
				return err
			}

			name, _ := catalog.ParseRef(args[0])

			versions, err := cat.Versions(name)
			if err != nil {
				return err
			}

			if limit > 0 && len(versions) > limit {
				versions = versions[:limit]
			}

			installed := ""

			receipts, err := installer.Installed(cmd.Context(), a.settings.ResolvedStateDir())
			if err != nil {
				return err
			}

			for _, r := range receipts {
				if r.Name == name {
					installed = r.Version
				}
			}

			latest := ""
			if f, err := cat.Latest(name); err == nil {
				latest = f.Version
			}

			rows := make([][]string, 0, len(versions))

			for _, v := range versions {
				var notes []string

				if v == latest {
					notes = append(notes, "latest")
				}

				if parsed, err := semver.NewVersion(v); err == nil && parsed.Prerelease() != "" {
					notes = append(notes, "pre-release")
				}

				if installed != "" && catalog.SameVersion(v, installed) {
					notes = append(notes, "installed")
				}

				rows = append(rows, []string{v, joinNames(notes)})
			}

			return renderTable(cmd.OutOrStdout(), []string{"Version", "Notes"}, rows)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many versions (0 shows all)")

	return cmd
}
