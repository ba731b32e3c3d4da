package packager

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/oshokin/formula-resolver/internal/archive"
	"github.com/oshokin/formula-resolver/internal/domain/formula"
)

// slot is one CPU branch of a generated formula.
type slot int

const (
	slotARM32 slot = iota
	slotARM64
	slotIntel64
	slotIntel32
)

//nolint:gochecknoglobals // Static lookup table.
var osAliases = map[string]string{
	"linux":  formula.OSLinux,
	"darwin": formula.OSDarwin,
	"macos":  formula.OSDarwin,
}

//nolint:gochecknoglobals // Static lookup table.
var archAliases = map[string]slot{
	"amd64":   slotIntel64,
	"x86_64":  slotIntel64,
	"386":     slotIntel32,
	"i386":    slotIntel32,
	"arm64":   slotARM64,
	"aarch64": slotARM64,
	"arm":     slotARM32,
	"armv6":   slotARM32,
	"armv7":   slotARM32,
}

// armPreference orders 32-bit ARM variants; GoReleaser builds GOARM=6 by default.
//
//nolint:gochecknoglobals // Static lookup table.
var armPreference = []string{"arm", "armv6", "armv7"}

// candidate is one release archive recognised by name.
type candidate struct {
	path string
	name string
	os   string
	arch string
	slot slot
}

// archiveFormat returns the format of a packaged archive, or false for other files.
func archiveFormat(name string) (archive.Format, bool) {
	format := archive.DetectFormat(name)

	return format, format != archive.FormatRaw
}

// parseArchiveName infers the platform from names like proto_1.1.2_linux_arm64.tar.gz.
func parseArchiveName(path string) (candidate, bool) {
	name := filepath.Base(path)

	format, ok := archiveFormat(name)
	if !ok {
		return candidate{}, false
	}

	stem := strings.ToLower(name)
	for _, suffix := range []string{"." + string(format), ".tgz", ".tzst", ".txz"} {
		stem = strings.TrimSuffix(stem, suffix)
	}

	fields := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})

	for i := 0; i+1 < len(fields); i++ {
		system, known := osAliases[fields[i]]
		if !known {
			continue
		}

		arch := fields[i+1]
		// x86_64 is split by the separator list above.
		if arch == "x86" && i+2 < len(fields) && fields[i+2] == "64" {
			arch = "x86_64"
		}

		s, known := archAliases[arch]
		if !known {
			continue
		}

		return candidate{path: path, name: name, os: system, arch: arch, slot: s}, true
	}

	return candidate{}, false
}

// armRank orders 32-bit ARM variants, lower is preferred.
func armRank(arch string) int {
	if i := slices.Index(armPreference, arch); i >= 0 {
		return i
	}

	return len(armPreference)
}

// condition returns the CPU predicate for a slot. hasIntel32 splits the intel branch by bit-width.
func condition(s slot, hasIntel32 bool) formula.Expr {
	switch s {
	case slotARM32:
		return formula.And{L: formula.Term(formula.TermARM), R: formula.Not{X: formula.Term(formula.Term64Bit)}}
	case slotARM64:
		return formula.And{L: formula.Term(formula.TermARM), R: formula.Term(formula.Term64Bit)}
	case slotIntel32:
		return formula.And{L: formula.Term(formula.TermIntel), R: formula.Not{X: formula.Term(formula.Term64Bit)}}
	case slotIntel64:
		if hasIntel32 {
			return formula.And{L: formula.Term(formula.TermIntel), R: formula.Term(formula.Term64Bit)}
		}

		return formula.Term(formula.TermIntel)
	default:
		return nil
	}
}
