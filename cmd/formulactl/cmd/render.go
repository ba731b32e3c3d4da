package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/formula-resolver/internal/codec/descriptor"
	"github.com/oshokin/formula-resolver/internal/codec/rubyformula"
	"github.com/oshokin/formula-resolver/internal/domain/formula"
	"github.com/oshokin/formula-resolver/internal/repository/catalog"
	"github.com/oshokin/formula-resolver/internal/service/packager"
)

func newRenderCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "render <name[@version]|file>",
		Short: "Convert a formula between the Ruby and YAML forms",
		Long:  "Render prints a formula from the sources, or a local file, as a Ruby formula or a YAML descriptor.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				f   *formula.Formula
				err error
			)

			if info, statErr := os.Stat(args[0]); statErr == nil && !info.IsDir() {
				f, err = catalog.ReadFile(args[0])
			} else {
				var cat *catalog.Catalog

				if cat, err = a.catalog(cmd.Context(), cmd); err != nil {
					return err
				}

				f, err = cat.Lookup(args[0])
			}

			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			switch format {
			case packager.FormatRuby:
				return rubyformula.Render(out, f)
			case packager.FormatYAML:
				data, err := descriptor.Encode(f)
				if err != nil {
					return err
				}

				_, err = out.Write(data)

				return err
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", packager.FormatYAML, "output format: ruby or yaml")

	return cmd
}
