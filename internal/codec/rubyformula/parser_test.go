package rubyformula

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/formula-resolver/internal/domain/formula"
)

func parseFile(t *testing.T, name string) *formula.Formula {
	t.Helper()

	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)

	defer func() {
		_ = f.Close()
	}()

	parsed, err := Parse(f)
	require.NoError(t, err)

	return parsed
}

// TestParse_GoReleaserLinux checks metadata and branches of the 0.10.0 release file.
func TestParse_GoReleaserLinux(t *testing.T) {
	t.Parallel()

	f := parseFile(t, "proto-0.10.0.rb")

	require.Equal(t, "proto", f.Name)
	require.Equal(t, "Proto compatability tool manager", f.Description)
	require.Equal(t, "https://github.com/BitsOfAByte/proto", f.Homepage)
	require.Equal(t, "0.10.0", f.Version)
	require.Equal(t, "GPL-3.0-only", f.License)
	require.Equal(t, []string{"linux"}, f.Requirements)
	require.Equal(t, []string{"gnu-tar"}, f.Dependencies)
	require.Len(t, f.Artifacts, 3)

	conditions := make([]string, 0, len(f.Artifacts))
	for _, a := range f.Artifacts {
		require.Equal(t, formula.OSLinux, a.OS)
		require.Equal(t, []formula.BinaryInstall{{Source: "proto"}}, a.Install)

		conditions = append(conditions, a.Condition())
	}

	require.Equal(t, []string{
		"Hardware::CPU.arm? && !Hardware::CPU.is_64_bit?",
		"Hardware::CPU.arm? && Hardware::CPU.is_64_bit?",
		"Hardware::CPU.intel?",
	}, conditions)
	require.Equal(t, "https://github.com/BitsOfAByte/proto/releases/download/v0.10.0/proto_linux_arm64.zip", f.Artifacts[1].URL)
	require.Equal(t, "bbc78335811af8ac1e731cbe71eea819470cb685182611e13e7e2a7e0a9d742c", f.Artifacts[1].SHA256)
}

// TestParse_ResolvesIntel64 covers the documented 1.1.2 intel/64-bit resolution.
func TestParse_ResolvesIntel64(t *testing.T) {
	t.Parallel()

	f := parseFile(t, "proto-1.1.2.rb")

	a, err := f.Select(formula.Platform{OS: formula.OSLinux, Arch: formula.ArchIntel, Is64: true})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(a.URL, "proto_1.1.2_linux_amd64.zip"))
	require.Equal(t, "2f1d20b25182c27b1bdb0196aa06217e6ab73727b3fd2c6285e738cde0f53271", a.SHA256)
}

// TestParse_MixedSyntax covers nested on_* blocks, elsif/else, `and`, class-level install and skipped blocks.
func TestParse_MixedSyntax(t *testing.T) {
	t.Parallel()

	f := parseFile(t, "mixed.rb")

	require.Equal(t, "proto-cli", f.Name)
	require.Equal(t, `Proto "runner" manager`, f.Description)
	require.Equal(t, []string{"git"}, f.Dependencies)
	require.Empty(t, f.Requirements)
	require.Len(t, f.Artifacts, 5)

	for _, a := range f.Artifacts {
		require.Equal(t, []formula.BinaryInstall{{Source: "proto-cli", Target: "pcli"}}, a.Install)
	}

	cases := map[string]string{
		"darwin/amd64": "https://example.com/proto-cli_2.0.0_darwin_amd64.tar.gz",
		"darwin/arm64": "https://example.com/proto-cli_2.0.0_darwin_arm64.tar.gz",
		"linux/amd64":  "https://example.com/proto-cli_2.0.0_linux_amd64.tar.gz",
		"linux/arm64":  "https://example.com/proto-cli_2.0.0_linux_arm64.tar.gz",
		"linux/arm":    "https://example.com/proto-cli_2.0.0_linux_armv6.tar.gz",
	}

	for platform, url := range cases {
		p, err := formula.ParsePlatform(platform)
		require.NoError(t, err)

		a, err := f.Select(p)
		require.NoError(t, err, platform)
		require.Equal(t, url, a.URL, platform)
	}
}

// TestParse_TopLevelArtifact covers formulas without any platform gating.
func TestParse_TopLevelArtifact(t *testing.T) {
	t.Parallel()

	src := `class Tool < Formula
  version "1.0.0"
  url "https://example.com/tool-1.0.0.tar.gz"
  sha256 "abababababababababababababababababababababababababababababababab"

  def install
    bin.install "tool", "tool-helper"
  end
end
`

	f, err := ParseString(src)
	require.NoError(t, err)
	require.Len(t, f.Artifacts, 1)
	require.Empty(t, f.Artifacts[0].OS)
	require.Nil(t, f.Artifacts[0].When)
	require.Equal(t, []formula.BinaryInstall{{Source: "tool"}, {Source: "tool-helper"}}, f.Artifacts[0].Install)
}

// TestParse_BareHeredoc keeps <<EOS bodies out of the statement stream.
func TestParse_BareHeredoc(t *testing.T) {
	t.Parallel()

	src := `class Tool < Formula
  desc <<"EOS"
Tool manager
  EOS
EOS
  version "1.0.0"
  url "https://example.com/tool-1.0.0.tar.gz"
  sha256 "abababababababababababababababababababababababababababababababab"

  def install
    bin.install "tool"
  end

  def caveats
    <<EOS
  url "https://example.com/not-an-artifact.tar.gz"
  end
EOS
  end
end
`

	f, err := ParseString(src)
	require.NoError(t, err)
	require.Equal(t, "Tool manager\n  EOS", f.Description)
	require.Equal(t, "1.0.0", f.Version)
	require.Len(t, f.Artifacts, 1)
	require.Equal(t, "https://example.com/tool-1.0.0.tar.gz", f.Artifacts[0].URL)
	require.Equal(t, []formula.BinaryInstall{{Source: "tool"}}, f.Artifacts[0].Install)
}

// TestParse_Errors covers inputs that are not formulas or are malformed.
func TestParse_Errors(t *testing.T) {
	t.Parallel()

	_, err := ParseString("puts 'hello'\n")
	require.ErrorIs(t, err, ErrNotFormula)

	_, err = ParseString("class Tool < Formula\n  desc \"unterminated\n")
	require.ErrorIs(t, err, ErrSyntax)

	_, err = ParseString("class Tool < Formula\n  on_linux do\n    if Hardware::CPU.sparc?\n    end\n  end\nend\n")
	require.ErrorIs(t, err, ErrSyntax)

	_, err = ParseString("class Tool < Formula\n  on_linux do\n    url \"x\"\n")
	require.ErrorIs(t, err, ErrSyntax)
}

// TestNameFromClass checks the class name conversions in both directions.
func TestNameFromClass(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Proto":    "proto",
		"ProtoCli": "proto-cli",
		"ProtoAT1": "proto@1",
	}

	for class, name := range cases {
		require.Equal(t, name, NameFromClass(class))
		require.Equal(t, class, ClassFromName(name))
	}
}
