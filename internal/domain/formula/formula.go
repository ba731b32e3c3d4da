package formula

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrUnsupportedPlatform is returned when no artifact matches the platform.
	ErrUnsupportedPlatform = errors.New("no artifact matches platform")
	// ErrAmbiguousPlatform is returned when more than one artifact matches the platform.
	ErrAmbiguousPlatform = errors.New("more than one artifact matches platform")
)

// BinaryInstall is one "copy file into the executable directory" action.
type BinaryInstall struct {
	// Source is the file name inside the release archive.
	Source string
	// Target is the installed name; empty means the same as Source.
	Target string
}

// TargetName returns the name the binary is installed under.
func (b BinaryInstall) TargetName() string {
	if b.Target != "" {
		return b.Target
	}

	return b.Source
}

// Artifact is one platform-specific downloadable archive.
type Artifact struct {
	// OS restricts the artifact to one operating system; empty means any.
	OS string
	// When is the CPU predicate; nil means always.
	When Expr
	// URL is the download location of the archive.
	URL string
	// SHA256 is the hex encoded checksum of the archive.
	SHA256 string
	// Install lists the binaries copied into the executable directory.
	Install []BinaryInstall
}

// Matches reports whether the artifact applies to p.
func (a *Artifact) Matches(p Platform) bool {
	if a.OS != "" && a.OS != p.OS {
		return false
	}

	if a.When == nil {
		return true
	}

	return a.When.Eval(p)
}

// Clone returns a copy of the artifact that shares no slices with the original.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}

	cloned := *a
	cloned.Install = slices.Clone(a.Install)

	return &cloned
}

// Condition renders the predicate, or an empty string for "always".
func (a *Artifact) Condition() string {
	if a.When == nil {
		return ""
	}

	return a.When.String()
}

// Formula is a release artifact descriptor for one version of a tool.
type Formula struct {
	// Name is the tool identifier.
	Name string
	// Description is a single-line summary.
	Description string
	// Homepage is the source repository link.
	Homepage string
	// Version is the published semantic version.
	Version string
	// License is an SPDX identifier.
	License string
	// Requirements are symbolic requirements such as "linux".
	Requirements []string
	// Dependencies are other formulas required at install time.
	Dependencies []string
	// Artifacts are the platform-specific downloads.
	Artifacts []*Artifact
	// Source records the file or URL the formula was read from.
	Source string
}

// Clone returns a deep copy of the formula.
func (f *Formula) Clone() *Formula {
	if f == nil {
		return nil
	}

	cloned := *f
	cloned.Requirements = slices.Clone(f.Requirements)
	cloned.Dependencies = slices.Clone(f.Dependencies)
	cloned.Artifacts = make([]*Artifact, 0, len(f.Artifacts))

	for _, a := range f.Artifacts {
		cloned.Artifacts = append(cloned.Artifacts, a.Clone())
	}

	return &cloned
}

// Ref returns "name@version".
func (f *Formula) Ref() string {
	return f.Name + "@" + f.Version
}

// Matching returns every artifact that applies to p. A formula that
// requires an operating system matches nothing elsewhere.
func (f *Formula) Matching(p Platform) []*Artifact {
	if required := f.requiredSystems(); len(required) > 0 && !slices.Contains(required, p.OS) {
		return nil
	}

	var result []*Artifact

	for _, a := range f.Artifacts {
		if a.Matches(p) {
			result = append(result, a)
		}
	}

	return result
}

// Select returns the single artifact that applies to p.
func (f *Formula) Select(p Platform) (*Artifact, error) {
	matching := f.Matching(p)

	switch len(matching) {
	case 0:
		return nil, fmt.Errorf("%s on %s: %w", f.Ref(), p, ErrUnsupportedPlatform)
	case 1:
		return matching[0], nil
	default:
		return nil, fmt.Errorf("%s on %s (%d candidates): %w", f.Ref(), p, len(matching), ErrAmbiguousPlatform)
	}
}

// OperatingSystems returns the systems the formula targets.
// Symbolic requirements win, then artifact OS fields; otherwise both systems.
func (f *Formula) OperatingSystems() []string {
	result := f.requiredSystems()
	if len(result) > 0 {
		return result
	}

	for _, a := range f.Artifacts {
		if a.OS != "" {
			result = appendUnique(result, a.OS)
		}
	}

	if len(result) > 0 {
		slices.Sort(result)
		return result
	}

	return []string{OSDarwin, OSLinux}
}

// requiredSystems maps symbolic requirements onto operating systems.
func (f *Formula) requiredSystems() []string {
	var result []string

	for _, req := range f.Requirements {
		switch strings.ToLower(req) {
		case "linux":
			result = appendUnique(result, OSLinux)
		case "macos", "mac", "darwin":
			result = appendUnique(result, OSDarwin)
		}
	}

	return result
}

func appendUnique(list []string, value string) []string {
	if slices.Contains(list, value) {
		return list
	}

	return append(list, value)
}
