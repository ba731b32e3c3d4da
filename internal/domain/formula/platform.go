package formula

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Operating systems a formula can target.
const (
	OSLinux  = "linux"
	OSDarwin = "darwin"
)

// Arch is a CPU family as seen by the formula predicates.
type Arch string

// Known CPU families.
const (
	ArchIntel Arch = "intel"
	ArchARM   Arch = "arm"
	ArchOther Arch = "other"
)

// Platform is the (OS, CPU family, bit-width) tuple an artifact is selected for.
type Platform struct {
	// OS is either OSLinux or OSDarwin.
	OS string
	// Arch is the CPU family.
	Arch Arch
	// Is64 reports a 64-bit CPU.
	Is64 bool
}

var errInvalidPlatform = errors.New("invalid platform")

// goarchTable maps GOARCH values onto CPU family and bit-width.
//
//nolint:gochecknoglobals // Static lookup table.
var goarchTable = map[string]Platform{
	"amd64": {Arch: ArchIntel, Is64: true},
	"386":   {Arch: ArchIntel, Is64: false},
	"arm64": {Arch: ArchARM, Is64: true},
	"arm":   {Arch: ArchARM, Is64: false},
}

// Detect returns the platform of the running process.
func Detect() Platform {
	p, err := FromGo(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return Platform{OS: runtime.GOOS, Arch: ArchOther, Is64: strings.HasSuffix(runtime.GOARCH, "64")}
	}

	return p
}

// FromGo converts GOOS/GOARCH values into a Platform.
func FromGo(goos, goarch string) (Platform, error) {
	switch goos {
	case OSLinux, OSDarwin:
	default:
		return Platform{}, fmt.Errorf("%w: os %q", errInvalidPlatform, goos)
	}

	p, ok := goarchTable[goarch]
	if !ok {
		return Platform{}, fmt.Errorf("%w: arch %q", errInvalidPlatform, goarch)
	}

	p.OS = goos

	return p, nil
}

// ParsePlatform parses "os/arch" in GOOS/GOARCH notation, e.g. "linux/arm64".
func ParsePlatform(s string) (Platform, error) {
	goos, goarch, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Platform{}, fmt.Errorf("%w: %q, expected os/arch", errInvalidPlatform, s)
	}

	return FromGo(strings.ToLower(goos), strings.ToLower(goarch))
}

// GOARCH renders the platform's CPU in Go notation.
func (p Platform) GOARCH() string {
	switch {
	case p.Arch == ArchIntel && p.Is64:
		return "amd64"
	case p.Arch == ArchIntel:
		return "386"
	case p.Arch == ArchARM && p.Is64:
		return "arm64"
	case p.Arch == ArchARM:
		return "arm"
	default:
		return string(ArchOther)
	}
}

// String renders the platform as "os/arch".
func (p Platform) String() string {
	return p.OS + "/" + p.GOARCH()
}

// Bits returns the bit-width, 32 or 64.
func (p Platform) Bits() int {
	if p.Is64 {
		return 64
	}

	return 32
}

// SupportedMatrix returns the CPU combinations every formula must cover for os.
func SupportedMatrix(os string) []Platform {
	return []Platform{
		{OS: os, Arch: ArchARM, Is64: false},
		{OS: os, Arch: ArchARM, Is64: true},
		{OS: os, Arch: ArchIntel, Is64: true},
	}
}

// OptionalMatrix returns combinations that need not be covered but must not overlap.
func OptionalMatrix(os string) []Platform {
	return []Platform{
		{OS: os, Arch: ArchIntel, Is64: false},
	}
}
