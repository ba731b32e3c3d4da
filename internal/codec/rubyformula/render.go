package rubyformula

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/oshokin/formula-resolver/internal/domain/formula"
)

// GeneratorName is written into the DO NOT EDIT banner.
const GeneratorName = "formulactl"

var errNoName = errors.New("formula has no name")

// osBlockOrder fixes the order of on_<os> blocks in generated files.
//
//nolint:gochecknoglobals // Static lookup table.
var osBlockOrder = []struct {
	os    string
	block string
}{
	{formula.OSDarwin, "on_macos"},
	{formula.OSLinux, "on_linux"},
}

// Render writes f as a GoReleaser style formula.
func Render(w io.Writer, f *formula.Formula) error {
	if f.Name == "" {
		return errNoName
	}

	var b bytes.Buffer

	b.WriteString("# typed: false\n# frozen_string_literal: true\n\n")
	fmt.Fprintf(&b, "# This file was generated by %s. DO NOT EDIT.\n", GeneratorName)
	fmt.Fprintf(&b, "class %s < Formula\n", ClassFromName(f.Name))

	writeField(&b, "desc", f.Description)
	writeField(&b, "homepage", f.Homepage)
	writeField(&b, "version", f.Version)
	writeField(&b, "license", f.License)

	for _, req := range f.Requirements {
		fmt.Fprintf(&b, "  depends_on :%s\n", req)
	}

	for _, a := range f.Artifacts {
		if a.OS == "" {
			b.WriteString("\n")
			writeArtifact(&b, a, 1)
		}
	}

	for _, block := range osBlockOrder {
		var artifacts []*formula.Artifact

		for _, a := range f.Artifacts {
			if a.OS == block.os {
				artifacts = append(artifacts, a)
			}
		}

		if len(artifacts) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n  %s do\n", block.block)

		for _, a := range artifacts {
			writeArtifact(&b, a, 2)
		}

		b.WriteString("  end\n")
	}

	if len(f.Dependencies) > 0 {
		b.WriteString("\n")

		for _, dep := range f.Dependencies {
			fmt.Fprintf(&b, "  depends_on %s\n", quote(dep))
		}
	}

	b.WriteString("end\n")

	_, err := w.Write(b.Bytes())

	return err
}

// RenderString renders f into a string.
func RenderString(f *formula.Formula) (string, error) {
	var b strings.Builder
	if err := Render(&b, f); err != nil {
		return "", err
	}

	return b.String(), nil
}

func writeField(b *bytes.Buffer, name, value string) {
	if value == "" {
		return
	}

	fmt.Fprintf(b, "  %s %s\n", name, quote(value))
}

func writeArtifact(b *bytes.Buffer, a *formula.Artifact, depth int) {
	indent := strings.Repeat("  ", depth)

	if a.When != nil {
		fmt.Fprintf(b, "%sif %s\n", indent, a.When.String())
		indent += "  "
	}

	fmt.Fprintf(b, "%surl %s\n", indent, quote(a.URL))
	fmt.Fprintf(b, "%ssha256 %s\n", indent, quote(a.SHA256))

	if len(a.Install) > 0 {
		fmt.Fprintf(b, "\n%sdef install\n", indent)

		for _, install := range a.Install {
			if install.Target != "" && install.Target != install.Source {
				fmt.Fprintf(b, "%s  bin.install %s => %s\n", indent, quote(install.Source), quote(install.Target))
			} else {
				fmt.Fprintf(b, "%s  bin.install %s\n", indent, quote(install.Source))
			}
		}

		fmt.Fprintf(b, "%send\n", indent)
	}

	if a.When != nil {
		fmt.Fprintf(b, "%send\n", strings.Repeat("  ", depth))
	}
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "#{", `\#{`)

	return `"` + r.Replace(s) + `"`
}
