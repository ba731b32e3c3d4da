package packager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"

	"github.com/oshokin/formula-resolver/internal/archive"
	"github.com/oshokin/formula-resolver/internal/codec/descriptor"
	"github.com/oshokin/formula-resolver/internal/codec/rubyformula"
	"github.com/oshokin/formula-resolver/internal/config"
	"github.com/oshokin/formula-resolver/internal/domain/formula"
	"github.com/oshokin/formula-resolver/internal/logger"
	"github.com/oshokin/formula-resolver/internal/validate"
)

// Output formats.
const (
	FormatRuby = "ruby"
	FormatYAML = "yaml"
)

var (
	// ErrNoArchives is returned when the directory holds no recognisable release archive.
	ErrNoArchives = errors.New("no release archives found")
	// ErrInvalidFormula is returned when the generated formula fails validation.
	ErrInvalidFormula = errors.New("generated formula is invalid")

	errDirRequired      = errors.New("archive directory must be provided")
	errNameRequired     = errors.New("formula name must be provided")
	errVersionRequired  = errors.New("formula version must be provided")
	errTemplateRequired = errors.New("URL template must be provided")
	errUnknownFormat    = errors.New("unknown output format")
	errBadBinary        = errors.New("invalid binary specification")
)

// Options contains inputs for the packager entry point.
type Options struct {
	// Dir holds the release archives.
	Dir string
	// Name is the formula name.
	Name string
	// Version is the release version.
	Version string
	// Description is the one-line summary.
	Description string
	// Homepage is the project page.
	Homepage string
	// License is an SPDX identifier.
	License string
	// URLTemplate builds download URLs from {{.Name}}, {{.Version}}, {{.Artifact}}, {{.OS}} and {{.Arch}}.
	URLTemplate string
	// Binaries are "source" or "source:target" install actions; empty means the formula name.
	Binaries []string
	// Requirements are symbolic requirements such as "linux".
	Requirements []string
	// Dependencies are other formulas needed at install time.
	Dependencies []string
	// Formats lists FormatRuby and/or FormatYAML; empty means FormatRuby.
	Formats []string
	// OutputDir receives the generated files; empty means Dir.
	OutputDir string
}

// Result describes what Run produced.
type Result struct {
	// Formula is the generated formula.
	Formula *formula.Formula
	// Files are the paths written.
	Files []string
	// Skipped lists archives that were ignored.
	Skipped []string
	// Findings are review notes from validation.
	Findings []validate.Finding
}

// urlData is passed to the URL template.
type urlData struct {
	Name     string
	Version  string
	Artifact string
	OS       string
	Arch     string
}

// packager holds the state of a single packaging run.
type packager struct {
	opts     *Options
	install  []formula.BinaryInstall
	urlTmpl  *template.Template
	formats  []string
	result   *Result
	selected []candidate
}

// Run builds a formula from the archives in opts.Dir and writes it in every requested format.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "packager")

	pkg, err := newPackager(opts)
	if err != nil {
		return nil, err
	}

	if err = pkg.run(ctx); err != nil {
		return nil, fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return pkg.result, nil
}

func newPackager(opts *Options) (*packager, error) {
	switch {
	case opts == nil || opts.Dir == "":
		return nil, errDirRequired
	case opts.Name == "":
		return nil, errNameRequired
	case opts.Version == "":
		return nil, errVersionRequired
	case opts.URLTemplate == "":
		return nil, errTemplateRequired
	}

	urlTmpl, err := template.New("url").Option("missingkey=error").Parse(opts.URLTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse URL template: %w", err)
	}

	install, err := parseBinaries(opts.Name, opts.Binaries)
	if err != nil {
		return nil, err
	}

	formats := opts.Formats
	if len(formats) == 0 {
		formats = []string{FormatRuby}
	}

	for _, f := range formats {
		if f != FormatRuby && f != FormatYAML {
			return nil, fmt.Errorf("%w: %q", errUnknownFormat, f)
		}
	}

	return &packager{
		opts:    opts,
		install: install,
		urlTmpl: urlTmpl,
		formats: slices.Compact(slices.Sorted(slices.Values(formats))),
		result:  new(Result),
	}, nil
}

// parseBinaries turns "src" and "src:target" into install actions.
func parseBinaries(name string, specs []string) ([]formula.BinaryInstall, error) {
	if len(specs) == 0 {
		return []formula.BinaryInstall{{Source: name}}, nil
	}

	result := make([]formula.BinaryInstall, 0, len(specs))

	for _, spec := range specs {
		source, target, _ := strings.Cut(spec, ":")

		source, target = strings.TrimSpace(source), strings.TrimSpace(target)
		if source == "" || strings.Contains(target, "/") {
			return nil, fmt.Errorf("%w: %q", errBadBinary, spec)
		}

		if target == source {
			target = ""
		}

		result = append(result, formula.BinaryInstall{Source: source, Target: target})
	}

	return result, nil
}

func (p *packager) run(ctx context.Context) error {
	logger.InfoKV(ctx, "Scanning release archives", "dir", p.opts.Dir)

	if err := p.scan(ctx); err != nil {
		return err
	}

	f, err := p.buildFormula(ctx)
	if err != nil {
		return err
	}

	p.result.Formula = f

	findings := validate.CheckFormula(f)
	for _, finding := range findings {
		logger.WarnKV(ctx, "Validation finding", "finding", finding.String())
	}

	if slices.ContainsFunc(findings, func(f validate.Finding) bool { return f.Severity == validate.SeverityError }) {
		messages := make([]string, 0, len(findings))
		for _, finding := range findings {
			messages = append(messages, finding.Message)
		}

		return fmt.Errorf("%w: %s", ErrInvalidFormula, strings.Join(messages, "; "))
	}

	p.result.Findings = findings

	if err = p.write(ctx, f); err != nil {
		return err
	}

	p.printNextSteps(ctx)

	return nil
}

// scan picks one archive per platform slot.
func (p *packager) scan(ctx context.Context) error {
	entries, err := os.ReadDir(p.opts.Dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", p.opts.Dir, err)
	}

	type key struct {
		os   string
		slot slot
	}

	chosen := make(map[key]candidate)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		c, ok := parseArchiveName(filepath.Join(p.opts.Dir, entry.Name()))
		if !ok {
			logger.DebugKV(ctx, "Skipping file without platform", "file", entry.Name())
			p.result.Skipped = append(p.result.Skipped, entry.Name())

			continue
		}

		k := key{os: c.os, slot: c.slot}

		previous, exists := chosen[k]
		switch {
		case !exists:
			chosen[k] = c
		case c.slot == slotARM32 && armRank(c.arch) < armRank(previous.arch):
			p.skip(ctx, previous)
			chosen[k] = c
		default:
			p.skip(ctx, c)
		}
	}

	if len(chosen) == 0 {
		return fmt.Errorf("%w in %s", ErrNoArchives, p.opts.Dir)
	}

	for _, c := range chosen {
		p.selected = append(p.selected, c)
	}

	slices.SortFunc(p.selected, func(a, b candidate) int {
		if c := strings.Compare(a.os, b.os); c != 0 {
			return c
		}

		return int(a.slot) - int(b.slot)
	})

	return nil
}

func (p *packager) skip(ctx context.Context, c candidate) {
	logger.WarnKV(ctx, "Another archive already covers this platform", "file", c.name, "os", c.os, "arch", c.arch)
	p.result.Skipped = append(p.result.Skipped, c.name)
}

func (p *packager) buildFormula(ctx context.Context) (*formula.Formula, error) {
	f := &formula.Formula{
		Name:         p.opts.Name,
		Description:  strings.TrimSpace(p.opts.Description),
		Homepage:     p.opts.Homepage,
		Version:      strings.TrimPrefix(p.opts.Version, "v"),
		License:      p.opts.License,
		Requirements: slices.Clone(p.opts.Requirements),
		Dependencies: slices.Clone(p.opts.Dependencies),
	}

	hasIntel32 := make(map[string]bool)

	for _, c := range p.selected {
		if c.slot == slotIntel32 {
			hasIntel32[c.os] = true
		}
	}

	for _, c := range p.selected {
		checksum, err := fileChecksum(c.path)
		if err != nil {
			return nil, err
		}

		if err = p.verifyBinaries(ctx, c); err != nil {
			return nil, err
		}

		url, err := p.downloadURL(f, c)
		if err != nil {
			return nil, err
		}

		logger.InfoKV(ctx, "Packaged archive", "file", c.name, "os", c.os, "arch", c.arch, "sha256", checksum)

		f.Artifacts = append(f.Artifacts, &formula.Artifact{
			OS:      c.os,
			When:    condition(c.slot, hasIntel32[c.os]),
			URL:     url,
			SHA256:  checksum,
			Install: slices.Clone(p.install),
		})
	}

	return f, nil
}

// verifyBinaries extracts the install sources into a scratch directory to prove the archive ships them.
func (p *packager) verifyBinaries(ctx context.Context, c candidate) error {
	scratch, err := os.MkdirTemp("", config.AppName+"-package-")
	if err != nil {
		return fmt.Errorf("create temporary directory: %w", err)
	}

	defer func() {
		_ = os.RemoveAll(scratch)
	}()

	sources := make([]string, 0, len(p.install))
	for _, in := range p.install {
		if !slices.Contains(sources, in.Source) {
			sources = append(sources, in.Source)
		}
	}

	format, _ := archiveFormat(c.name)

	if _, err = archive.Extract(ctx, c.path, format, sources, scratch); err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}

	return nil
}

func (p *packager) downloadURL(f *formula.Formula, c candidate) (string, error) {
	var b strings.Builder

	data := urlData{
		Name:     f.Name,
		Version:  f.Version,
		Artifact: c.name,
		OS:       c.os,
		Arch:     c.arch,
	}

	if err := p.urlTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render URL for %s: %w", c.name, err)
	}

	return b.String(), nil
}

func (p *packager) write(ctx context.Context, f *formula.Formula) error {
	outputDir := p.opts.OutputDir
	if outputDir == "" {
		outputDir = p.opts.Dir
	}

	if err := os.MkdirAll(outputDir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	base := filepath.Join(outputDir, f.Name+"-"+f.Version)

	for _, format := range p.formats {
		var (
			contents []byte
			path     string
			err      error
		)

		switch format {
		case FormatYAML:
			path = base + ".yaml"
			contents, err = descriptor.Encode(f)
		default:
			path = base + ".rb"

			var rendered string

			rendered, err = rubyformula.RenderString(f)
			contents = []byte(rendered)
		}

		if err != nil {
			return fmt.Errorf("encode %s: %w", format, err)
		}

		//nolint:gosec // Formula files are meant to be published.
		if err = os.WriteFile(path, contents, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}

		logger.InfoKV(ctx, "Saved formula", "path", path)
		p.result.Files = append(p.result.Files, path)
	}

	return nil
}

// printNextSteps logs human-readable guidance for publishing the release.
func (p *packager) printNextSteps(ctx context.Context) {
	var builder strings.Builder

	builder.WriteString("Upload the following archives so that their URLs resolve:")

	for _, artifact := range p.result.Formula.Artifacts {
		builder.WriteString("\n")
		builder.WriteString(artifact.URL)
	}

	builder.WriteString("\n\nThen publish the generated files to a formula source:")

	for _, file := range p.result.Files {
		builder.WriteString("\n")
		builder.WriteString(file)
	}

	logger.Info(ctx, builder.String())
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := sha256.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
