package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/inhies/go-bytesize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/oshokin/formula-resolver/internal/config"
	"github.com/oshokin/formula-resolver/internal/domain/formula"
	"github.com/oshokin/formula-resolver/internal/repository/catalog"
	"github.com/oshokin/formula-resolver/internal/service/common"
	"github.com/oshokin/formula-resolver/internal/version"
)

// client builds the HTTP client from the settings. Progress bars go to stderr.
func (a *app) client(cmd *cobra.Command) *common.Client {
	return common.NewClient(
		common.WithTimeout(a.settings.Timeout),
		common.WithRetries(a.settings.Retries),
		common.WithProgress(cmd.ErrOrStderr()),
		common.WithUserAgent(config.AppName+"/"+version.Short()),
	)
}

// catalog loads every formula from the active sources.
func (a *app) catalog(ctx context.Context, cmd *cobra.Command) (*catalog.Catalog, error) {
	return catalog.Load(ctx, a.formulaSources(), a.client(cmd))
}

// platformFlag parses the --platform value, or detects the running platform.
func platformFlag(value string) (formula.Platform, error) {
	if value == "" {
		return formula.Detect(), nil
	}

	return formula.ParsePlatform(value)
}

// renderTable writes a boxed table with a header row.
func renderTable(w io.Writer, headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	data = append(data, rows...)

	rendered, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed(true).
		WithData(data).
		Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}

	_, err = fmt.Fprintln(w, rendered)

	return err
}

// humanSize formats a byte count such as 12.50MB.
func humanSize(n int64) string {
	return bytesize.New(float64(n)).String()
}

// installActions renders install actions as "proto, proto-cli -> pcli".
func installActions(installs []formula.BinaryInstall) string {
	parts := make([]string, 0, len(installs))

	for _, in := range installs {
		if in.TargetName() != in.Source {
			parts = append(parts, in.Source+" -> "+in.TargetName())
			continue
		}

		parts = append(parts, in.Source)
	}

	return strings.Join(parts, ", ")
}
