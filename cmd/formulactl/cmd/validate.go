package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/formula-resolver/internal/repository/catalog"
	"github.com/oshokin/formula-resolver/internal/validate"
)

var errValidationFailed = errors.New("validation failed")

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [paths...]",
		Short: "Check formula files for coverage, checksums, URLs and history",
		Long: "Validate every formula found in the given files, directories or URLs " +
			"(the configured sources when none are given). Exits with status 1 when an error is found; " +
			"findings marked review are reported only.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := args
			if len(sources) == 0 {
				sources = a.formulaSources()
			}

			formulas, err := catalog.Collect(cmd.Context(), sources, a.client(cmd))
			if err != nil {
				return err
			}

			report := validate.Run(formulas)

			out := cmd.OutOrStdout()
			for _, finding := range report.Findings {
				_, _ = fmt.Fprintln(out, finding.String())
			}

			_, _ = fmt.Fprintf(out, "checked %d formulas: %d errors, %d for review\n",
				report.Checked, report.Count(validate.SeverityError), report.Count(validate.SeverityReview))

			if report.HasErrors() {
				return errValidationFailed
			}

			return nil
		},
	}
}
