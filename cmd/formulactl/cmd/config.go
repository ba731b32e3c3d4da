package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/formula-resolver/internal/config"
)

// skipLoad replaces the root hook for commands that must work with a broken settings file.
func skipLoad(_ *cobra.Command, _ []string) error {
	return nil
}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit the settings file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				data, err := yaml.Marshal(a.settings)
				if err != nil {
					return err
				}

				_, err = cmd.OutOrStdout().Write(data)

				return err
			},
		},
		&cobra.Command{
			Use:               "path",
			Short:             "Print the settings file location",
			Args:              cobra.NoArgs,
			PersistentPreRunE: skipLoad,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), a.configPath)
				return err
			},
		},
		&cobra.Command{
			Use:               "reset",
			Short:             "Delete the settings file so defaults apply",
			Args:              cobra.NoArgs,
			PersistentPreRunE: skipLoad,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := config.Reset(a.configPath); err != nil {
					return err
				}

				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", a.configPath)

				return err
			},
		},
		newConfigSourcesCommand(a),
		newConfigLocationsCommand(a),
	)

	return cmd
}

func newConfigSourcesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage formula sources",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <dir|file|url>",
			Short: "Add a formula source",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.settings.AddSource(args[0]); err != nil {
					return err
				}

				return a.save(cmd, "Added source "+args[0])
			},
		},
		&cobra.Command{
			Use:     "del <dir|file|url>",
			Aliases: []string{"rm", "remove"},
			Short:   "Remove a formula source",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.settings.RemoveSource(args[0]); err != nil {
					return err
				}

				return a.save(cmd, "Removed source "+args[0])
			},
		},
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List formula sources",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				for _, source := range a.settings.Sources {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), source); err != nil {
						return err
					}
				}

				return nil
			},
		},
	)

	return cmd
}

func newConfigLocationsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Manage named install directories",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <name> <dir>",
			Short: "Name an install directory for use with --dir",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.settings.AddLocation(args[0], args[1]); err != nil {
					return err
				}

				return a.save(cmd, fmt.Sprintf("Added location %s -> %s", args[0], a.settings.Locations[args[0]]))
			},
		},
		&cobra.Command{
			Use:     "del <name>",
			Aliases: []string{"rm", "remove"},
			Short:   "Remove a named install directory",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.settings.RemoveLocation(args[0]); err != nil {
					return err
				}

				return a.save(cmd, "Removed location "+args[0])
			},
		},
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List named install directories",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				names := a.settings.LocationNames()
				if len(names) == 0 {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "No locations configured.")
					return err
				}

				rows := make([][]string, 0, len(names))
				for _, name := range names {
					rows = append(rows, []string{name, a.settings.Locations[name]})
				}

				return renderTable(cmd.OutOrStdout(), []string{"Name", "Directory"}, rows)
			},
		},
	)

	return cmd
}

// save persists the settings and prints message.
func (a *app) save(cmd *cobra.Command, message string) error {
	if err := config.Save(a.configPath, a.settings); err != nil {
		return err
	}

	_, err := fmt.Fprintln(cmd.OutOrStdout(), message)

	return err
}
