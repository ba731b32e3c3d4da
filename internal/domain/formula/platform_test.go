package formula

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParsePlatform maps GOOS/GOARCH pairs and renders them back.
func TestParsePlatform(t *testing.T) {
	t.Parallel()

	cases := map[string]Platform{
		"linux/amd64":  {OS: OSLinux, Arch: ArchIntel, Is64: true},
		"linux/386":    {OS: OSLinux, Arch: ArchIntel, Is64: false},
		"linux/arm64":  {OS: OSLinux, Arch: ArchARM, Is64: true},
		"linux/arm":    {OS: OSLinux, Arch: ArchARM, Is64: false},
		"darwin/arm64": {OS: OSDarwin, Arch: ArchARM, Is64: true},
	}

	for in, want := range cases {
		got, err := ParsePlatform(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
		require.Equal(t, in, got.String())
	}

	for _, in := range []string{"linux", "windows/amd64", "linux/riscv64"} {
		_, err := ParsePlatform(in)
		require.Error(t, err, in)
	}
}

// TestSupportedMatrix checks the required combinations and their bit-width.
func TestSupportedMatrix(t *testing.T) {
	t.Parallel()

	m := SupportedMatrix(OSLinux)
	require.Len(t, m, 3)
	require.Equal(t, 32, m[0].Bits())
	require.Equal(t, 64, m[2].Bits())
	require.Equal(t, "linux/386", OptionalMatrix(OSLinux)[0].String())
}
