package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/formula-resolver/internal/domain/formula"
)

const (
	outputText = "text"
	outputYAML = "yaml"
)

// resolution is the machine-readable form of a resolve result.
type resolution struct {
	Name     string                  `yaml:"name"`
	Version  string                  `yaml:"version"`
	Platform string                  `yaml:"platform"`
	URL      string                  `yaml:"url"`
	SHA256   string                  `yaml:"sha256"`
	Install  []installAction `yaml:"install"`
}

type installAction struct {
	Source string `yaml:"source"`
	Target string `yaml:"target,omitempty"`
}

func newResolveCommand(a *app) *cobra.Command {
	var (
		platform string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "resolve <name[@version]>",
		Short: "Print the download selected for a platform",
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

			resolved, err := cat.Resolve(args[0], p)
			if err != nil {
				return err
			}

			installs := resolved.Artifact.Install
			if len(installs) == 0 {
				installs = []formula.BinaryInstall{{Source: resolved.Formula.Name}}
			}

			out := cmd.OutOrStdout()

			switch output {
			case outputYAML:
				actions := make([]installAction, 0, len(installs))
				for _, in := range installs {
					actions = append(actions, installAction{Source: in.Source, Target: in.Target})
				}

				data, err := yaml.Marshal(resolution{
					Name:     resolved.Formula.Name,
					Version:  resolved.Formula.Version,
					Platform: p.String(),
					URL:      resolved.Artifact.URL,
					SHA256:   resolved.Artifact.SHA256,
					Install:  actions,
				})
				if err != nil {
					return err
				}

				_, err = out.Write(data)

				return err
			case outputText:
				_, err = fmt.Fprintf(out, "%s %s for %s\nurl:     %s\nsha256:  %s\ninstall: %s\n",
					resolved.Formula.Name, resolved.Formula.Version, p,
					resolved.Artifact.URL, resolved.Artifact.SHA256, installActions(installs))

				return err
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "target platform as os/arch, e.g. linux/arm64 (default: this machine)")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text or yaml")

	return cmd
}
