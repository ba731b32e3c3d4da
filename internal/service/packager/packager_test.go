package packager

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/formula-resolver/internal/archive"
	"github.com/oshokin/formula-resolver/internal/codec/descriptor"
	"github.com/oshokin/formula-resolver/internal/codec/rubyformula"
	"github.com/oshokin/formula-resolver/internal/domain/formula"
	"github.com/oshokin/formula-resolver/internal/validate"
)

const urlTemplate = "https://github.com/Blooym/proto/releases/download/v{{.Version}}/{{.Artifact}}"

func writeZip(t *testing.T, path string, files map[string]string) string {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)

		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	sum := sha256.Sum256(buf.Bytes())

	return hex.EncodeToString(sum[:])
}

func writeTarGz(t *testing.T, path string, files map[string]string) string {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}))

		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	sum := sha256.Sum256(buf.Bytes())

	return hex.EncodeToString(sum[:])
}

func baseOptions(dir string) *Options {
	return &Options{
		Dir:          dir,
		Name:         "proto",
		Version:      "v1.1.2",
		Description:  "Install and manage custom runners with ease",
		Homepage:     "https://github.com/Blooym/proto",
		License:      "GPL-3.0-only",
		URLTemplate:  urlTemplate,
		Requirements: []string{"linux"},
		Dependencies: []string{"gnu-tar"},
	}
}

// TestRun_RubyAndYAML packages a full linux release and reads both outputs back.
func TestRun_RubyAndYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	binary := map[string]string{"proto_1.1.2/proto": "bin", "proto_1.1.2/README.md": "docs"}

	sums := map[string]string{
		"arm":   writeZip(t, filepath.Join(dir, "proto_1.1.2_linux_arm.zip"), binary),
		"arm64": writeZip(t, filepath.Join(dir, "proto_1.1.2_linux_arm64.zip"), binary),
		"amd64": writeTarGz(t, filepath.Join(dir, "proto_1.1.2_linux_amd64.tar.gz"), binary),
	}

	writeZip(t, filepath.Join(dir, "proto_1.1.2_linux_armv7.zip"), binary)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checksums.txt"), []byte("x"), 0o600))

	opts := baseOptions(dir)
	opts.Formats = []string{FormatYAML, FormatRuby, FormatRuby}
	opts.OutputDir = filepath.Join(t.TempDir(), "formulas")

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"proto_1.1.2_linux_armv7.zip", "checksums.txt"}, result.Skipped)
	require.Equal(t, []string{
		filepath.Join(opts.OutputDir, "proto-1.1.2.rb"),
		filepath.Join(opts.OutputDir, "proto-1.1.2.yaml"),
	}, result.Files)

	rb, err := os.ReadFile(result.Files[0])
	require.NoError(t, err)

	fromRuby, err := rubyformula.Parse(bytes.NewReader(rb))
	require.NoError(t, err)

	yml, err := os.ReadFile(result.Files[1])
	require.NoError(t, err)

	fromYAML, err := descriptor.Decode(yml)
	require.NoError(t, err)

	for _, f := range []*formula.Formula{fromRuby, fromYAML} {
		require.Equal(t, "proto", f.Name)
		require.Equal(t, "1.1.2", f.Version)
		require.Equal(t, []string{"gnu-tar"}, f.Dependencies)
		require.Len(t, f.Artifacts, 3)

		conditions := []string{
			"Hardware::CPU.arm? && !Hardware::CPU.is_64_bit?",
			"Hardware::CPU.arm? && Hardware::CPU.is_64_bit?",
			"Hardware::CPU.intel?",
		}
		names := []string{"arm", "arm64", "amd64"}

		for i, a := range f.Artifacts {
			require.Equal(t, formula.OSLinux, a.OS)
			require.Equal(t, conditions[i], a.Condition())
			require.Equal(t, sums[names[i]], a.SHA256)
			require.Equal(t, []formula.BinaryInstall{{Source: "proto"}}, a.Install)
		}

		require.Equal(t,
			"https://github.com/Blooym/proto/releases/download/v1.1.2/proto_1.1.2_linux_amd64.tar.gz",
			f.Artifacts[2].URL)

		report := validate.Run([]*formula.Formula{f})
		require.False(t, report.HasErrors(), "%v", report.Findings)
	}
}

// TestRun_Intel32SplitsIntelBranch adds a 386 archive and a darwin release.
func TestRun_Intel32SplitsIntelBranch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	binary := map[string]string{"pcli": "bin"}

	for _, name := range []string{
		"proto_1.1.2_linux_armv6.zip",
		"proto_1.1.2_linux_arm64.zip",
		"proto_1.1.2_linux_amd64.zip",
		"proto_1.1.2_linux_386.zip",
		"proto_1.1.2_macos_aarch64.zip",
		"proto_1.1.2_darwin_armv7.zip",
		"proto_1.1.2_darwin_x86_64.zip",
	} {
		writeZip(t, filepath.Join(dir, name), binary)
	}

	opts := baseOptions(dir)
	opts.Binaries = []string{"pcli:proto"}
	opts.Requirements = nil

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, result.Formula.Artifacts, 7)
	require.Equal(t, []string{formula.OSDarwin, formula.OSLinux}, result.Formula.OperatingSystems())

	for _, p := range []formula.Platform{
		{OS: formula.OSLinux, Arch: formula.ArchIntel, Is64: false},
		{OS: formula.OSLinux, Arch: formula.ArchIntel, Is64: true},
		{OS: formula.OSDarwin, Arch: formula.ArchARM, Is64: true},
	} {
		selected, err := result.Formula.Select(p)
		require.NoError(t, err, p.String())
		require.Equal(t, []formula.BinaryInstall{{Source: "pcli", Target: "proto"}}, selected.Install)
	}

	linux386, err := result.Formula.Select(formula.Platform{OS: formula.OSLinux, Arch: formula.ArchIntel})
	require.NoError(t, err)
	require.Contains(t, linux386.URL, "linux_386")
}

// TestRun_Errors covers inputs that must not produce a formula.
func TestRun_Errors(t *testing.T) {
	t.Parallel()

	binary := map[string]string{"proto": "bin"}

	t.Run("empty directory", func(t *testing.T) {
		t.Parallel()

		_, err := Run(context.Background(), baseOptions(t.TempDir()))
		require.ErrorIs(t, err, ErrNoArchives)
	})

	t.Run("missing arm64", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeZip(t, filepath.Join(dir, "proto_1.1.2_linux_arm.zip"), binary)
		writeZip(t, filepath.Join(dir, "proto_1.1.2_linux_amd64.zip"), binary)

		_, err := Run(context.Background(), baseOptions(dir))
		require.ErrorIs(t, err, ErrInvalidFormula)

		matches, err := filepath.Glob(filepath.Join(dir, "*.rb"))
		require.NoError(t, err)
		require.Empty(t, matches)
	})

	t.Run("template without version", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		for _, arch := range []string{"arm", "arm64", "amd64"} {
			writeZip(t, filepath.Join(dir, "proto_linux_"+arch+".zip"), binary)
		}

		opts := baseOptions(dir)
		opts.URLTemplate = "https://example.com/latest/{{.Artifact}}"

		_, err := Run(context.Background(), opts)
		require.ErrorIs(t, err, ErrInvalidFormula)
	})

	t.Run("binary not shipped", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeZip(t, filepath.Join(dir, "proto_1.1.2_linux_amd64.zip"), binary)

		opts := baseOptions(dir)
		opts.Binaries = []string{"proto-shim"}

		_, err := Run(context.Background(), opts)
		require.ErrorIs(t, err, archive.ErrBinaryNotInArchive)
	})

	t.Run("bad options", func(t *testing.T) {
		t.Parallel()

		_, err := Run(context.Background(), nil)
		require.ErrorIs(t, err, errDirRequired)

		opts := baseOptions(t.TempDir())
		opts.Formats = []string{"toml"}

		_, err = Run(context.Background(), opts)
		require.ErrorIs(t, err, errUnknownFormat)

		opts = baseOptions(t.TempDir())
		opts.URLTemplate = "{{.Version"

		_, err = Run(context.Background(), opts)
		require.Error(t, err)

		opts = baseOptions(t.TempDir())
		opts.Binaries = []string{"proto:bin/proto"}

		_, err = Run(context.Background(), opts)
		require.ErrorIs(t, err, errBadBinary)
	})
}

func TestParseArchiveName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		os   string
		arch string
		ok   bool
	}{
		{name: "proto_1.1.2_linux_arm64.zip", os: formula.OSLinux, arch: "arm64", ok: true},
		{name: "proto-1.1.2-darwin-amd64.tgz", os: formula.OSDarwin, arch: "amd64", ok: true},
		{name: "proto_1.1.2_macos_x86_64.tar.xz", os: formula.OSDarwin, arch: "x86_64", ok: true},
		{name: "proto_linux_armv7.tar.zst", os: formula.OSLinux, arch: "armv7", ok: true},
		{name: "proto_1.1.2_windows_amd64.zip"},
		{name: "proto_1.1.2_linux_amd64"},
		{name: "checksums.txt"},
	}

	for _, tt := range tests {
		c, ok := parseArchiveName(filepath.Join("dist", tt.name))
		require.Equal(t, tt.ok, ok, tt.name)

		if ok {
			require.Equal(t, tt.os, c.os, tt.name)
			require.Equal(t, tt.arch, c.arch, tt.name)
			require.Equal(t, tt.name, c.name)
		}
	}
}
