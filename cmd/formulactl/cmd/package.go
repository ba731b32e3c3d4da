package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/formula-resolver/internal/service/packager"
)

func newPackageCommand(_ *app) *cobra.Command {
	options := new(packager.Options)

	cmd := &cobra.Command{
		Use:   "package <dir>",
		Short: "Generate a formula from a directory of release archives",
		Long: "Package scans release archives named like proto_1.1.2_linux_arm64.zip, computes their checksums " +
			"and writes a Ruby formula and/or YAML descriptor that passes validation.",
		Example: "  formulactl package dist --name proto --version 1.1.2 --license GPL-3.0-only \\\n" +
			"    --homepage https://github.com/Blooym/proto \\\n" +
			"    --url-template 'https://github.com/Blooym/proto/releases/download/v{{.Version}}/{{.Artifact}}'",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Dir = args[0]

			result, err := packager.Run(cmd.Context(), options)
			if err != nil {
				return err
			}

			for _, file := range result.Files {
				if _, err = fmt.Fprintln(cmd.OutOrStdout(), file); err != nil {
					return err
				}
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&options.Name, "name", "", "formula name")
	flags.StringVar(&options.Version, "version", "", "release version")
	flags.StringVar(&options.Description, "desc", "", "one-line description")
	flags.StringVar(&options.Homepage, "homepage", "", "project homepage")
	flags.StringVar(&options.License, "license", "", "SPDX license identifier")
	flags.StringVar(&options.URLTemplate, "url-template", "",
		"download URL template using {{.Name}}, {{.Version}}, {{.Artifact}}, {{.OS}} and {{.Arch}}")
	flags.StringArrayVar(&options.Binaries, "bin", nil, "binary to install as source or source:target (repeatable, default: the formula name)")
	flags.StringArrayVar(&options.Requirements, "requires", nil, "symbolic requirement such as linux (repeatable)")
	flags.StringArrayVar(&options.Dependencies, "depends-on", nil, "formula dependency (repeatable)")
	flags.StringArrayVar(&options.Formats, "format", nil, "output format: ruby or yaml (repeatable, default: ruby)")
	flags.StringVarP(&options.OutputDir, "output", "o", "", "directory for the generated files (default: the archive directory)")

	for _, name := range []string{"name", "version", "url-template"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}
