package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/formula-resolver/internal/domain/formula"
)

// TestDecode_Release verifies the 1.1.2 descriptor decodes and resolves intel/64.
func TestDecode_Release(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile(filepath.Join("testdata", "proto-1.1.2.yaml"))
	require.NoError(t, err)

	f, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, "proto", f.Name)
	require.Equal(t, "1.1.2", f.Version)
	require.Equal(t, []string{"linux"}, f.Requirements)
	require.Equal(t, []string{"gnu-tar"}, f.Dependencies)
	require.Len(t, f.Artifacts, 3)

	a, err := f.Select(formula.Platform{OS: formula.OSLinux, Arch: formula.ArchIntel, Is64: true})
	require.NoError(t, err)
	require.Equal(t, "2f1d20b25182c27b1bdb0196aa06217e6ab73727b3fd2c6285e738cde0f53271", a.SHA256)
	require.Equal(t, []formula.BinaryInstall{{Source: "proto"}}, a.Install)
}

// TestEncode_RoundTrip checks Encode output decodes into the same formula.
func TestEncode_RoundTrip(t *testing.T) {
	t.Parallel()

	want := &formula.Formula{
		Name:     "tool",
		Version:  "1.0",
		Homepage: "https://example.com",
		Artifacts: []*formula.Artifact{
			{
				OS:      formula.OSDarwin,
				When:    formula.And{L: formula.Term(formula.TermARM), R: formula.Not{X: formula.Term(formula.Term32Bit)}},
				URL:     "https://example.com/tool_darwin_arm64.tar.gz",
				SHA256:  "0000000000000000000000000000000000000000000000000000000000000000",
				Install: []formula.BinaryInstall{{Source: "tool", Target: "t"}},
			},
			{
				URL:    "https://example.com/tool.tar.gz",
				SHA256: "1111111111111111111111111111111111111111111111111111111111111111",
			},
		},
	}

	data, err := Encode(want)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// TestDecode_SchemaViolations covers documents the schema rejects.
func TestDecode_SchemaViolations(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing artifacts": "name: tool\nversion: 1.0.0\n",
		"unknown field":     "name: tool\nversion: 1.0.0\nflavour: x\nartifacts:\n  - url: u\n    sha256: s\n",
		"bad os":            "name: tool\nversion: 1.0.0\nartifacts:\n  - os: windows\n    url: u\n    sha256: s\n",
		"numeric version":   "name: tool\nversion: 1.5\nartifacts:\n  - url: u\n    sha256: s\n",
		"not yaml":          "name: [tool\n",
	}

	for name, doc := range cases {
		_, err := Decode([]byte(doc))
		require.ErrorIs(t, err, ErrInvalidDescriptor, name)
	}
}

// TestDecode_BadPredicate rejects conditions outside the supported terms.
func TestDecode_BadPredicate(t *testing.T) {
	t.Parallel()

	doc := "name: tool\nversion: 1.0.0\nartifacts:\n  - when: Hardware::CPU.ppc?\n    url: u\n    sha256: s\n"

	_, err := Decode([]byte(doc))
	require.ErrorIs(t, err, ErrInvalidDescriptor)
	require.ErrorIs(t, err, formula.ErrUnknownTerm)
}
