package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/formula-resolver/internal/service/installer"
)

func newInstallCommand(a *app) *cobra.Command {
	var (
		dir         string
		platform    string
		force       bool
		killRunning bool
	)

	cmd := &cobra.Command{
		Use:   "install <name[@version]>",
		Short: "Download, verify and install a formula's binaries",
		Long: "Install resolves the artifact for this platform, checks its SHA-256, extracts the binaries " +
			"and swaps them into the install directory. A failed install restores the previous binaries.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			binDir, err := a.settings.ResolveLocation(dir)
			if err != nil {
				return err
			}

			options := &installer.Options{
				Ref:         args[0],
				Sources:     a.formulaSources(),
				BinDir:      binDir,
				StateDir:    a.settings.ResolvedStateDir(),
				TempDir:     a.settings.TempDir,
				Force:       force,
				KillRunning: killRunning,
				Client:      a.client(cmd),
			}

			if platform != "" {
				p, err := platformFlag(platform)
				if err != nil {
					return err
				}

				options.Platform = &p
			}

			result, err := installer.Install(cmd.Context(), options)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			r := result.Receipt

			if result.Skipped {
				_, err = fmt.Fprintf(out, "%s %s is already installed in %s (use --force to reinstall)\n", r.Name, r.Version, r.Dir)
				return err
			}

			_, err = fmt.Fprintf(out, "Installed %s %s into %s: %s\n", r.Name, r.Version, r.Dir, joinNames(r.BinaryNames()))
			if err != nil {
				return err
			}

			if len(result.Dependencies) > 0 {
				_, err = fmt.Fprintf(out, "Also required, install separately: %s\n", joinNames(result.Dependencies))
			}

			return err
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "install directory or configured location name (default: bin_dir)")
	cmd.Flags().StringVarP(&platform, "platform", "p", "", "target platform as os/arch (default: this machine)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "reinstall even if the same version is installed")
	cmd.Flags().BoolVar(&killRunning, "kill-running", false, "terminate running copies of the binaries before replacing them")

	return cmd
}
