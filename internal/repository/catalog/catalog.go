package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/oshokin/formula-resolver/internal/domain/formula"
)

// LatestVersion selects the newest stable version in a reference.
const LatestVersion = "latest"

var (
	// ErrFormulaNotFound is returned for names absent from every source.
	ErrFormulaNotFound = errors.New("formula not found")
	// ErrVersionNotFound is returned when the formula exists but not in the requested version.
	ErrVersionNotFound = errors.New("formula version not found")
	// ErrDuplicateVersion is returned when two files describe the same name and version.
	ErrDuplicateVersion = errors.New("duplicate formula version")
)

// Catalog is an immutable, version-ordered index of formulas.
type Catalog struct {
	// byName keeps each formula's versions sorted from oldest to newest.
	byName map[string][]*formula.Formula
}

// Resolution is the outcome of resolving a reference for a platform.
type Resolution struct {
	// Formula is the selected formula version.
	Formula *formula.Formula
	// Artifact is the single artifact matching Platform.
	Artifact *formula.Artifact
	// Platform is the platform the artifact was selected for.
	Platform formula.Platform
}

// Load collects descriptors from sources and indexes them.
func Load(ctx context.Context, sources []string, fetcher Fetcher) (*Catalog, error) {
	formulas, err := Collect(ctx, sources, fetcher)
	if err != nil {
		return nil, err
	}

	return New(formulas...)
}

// New indexes formulas, rejecting duplicate name and version pairs.
func New(formulas ...*formula.Formula) (*Catalog, error) {
	c := &Catalog{
		byName: make(map[string][]*formula.Formula),
	}

	for _, f := range formulas {
		for _, existing := range c.byName[f.Name] {
			if SameVersion(existing.Version, f.Version) {
				return nil, fmt.Errorf("%w: %s in %s and %s", ErrDuplicateVersion, f.Ref(), existing.Source, f.Source)
			}
		}

		c.byName[f.Name] = append(c.byName[f.Name], f)
	}

	for _, versions := range c.byName {
		SortByVersion(versions)
	}

	return c, nil
}

// Names returns the known formula names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Versions returns the versions of name, newest first.
func (c *Catalog) Versions(name string) ([]string, error) {
	formulas, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFormulaNotFound, name)
	}

	versions := make([]string, 0, len(formulas))
	for i := len(formulas) - 1; i >= 0; i-- {
		versions = append(versions, formulas[i].Version)
	}

	return versions, nil
}

// Latest returns the newest stable version of name, or the newest prerelease if there is nothing else.
func (c *Catalog) Latest(name string) (*formula.Formula, error) {
	formulas, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFormulaNotFound, name)
	}

	for i := len(formulas) - 1; i >= 0; i-- {
		v, err := semver.NewVersion(formulas[i].Version)
		if err == nil && v.Prerelease() == "" {
			return formulas[i], nil
		}
	}

	return formulas[len(formulas)-1], nil
}

// Get returns the formula with the given name and version. A leading "v" is tolerated.
func (c *Catalog) Get(name, version string) (*formula.Formula, error) {
	if version == "" || version == LatestVersion {
		return c.Latest(name)
	}

	formulas, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFormulaNotFound, name)
	}

	for _, f := range formulas {
		if SameVersion(f.Version, version) {
			return f, nil
		}
	}

	return nil, fmt.Errorf("%w: %s@%s", ErrVersionNotFound, name, version)
}

// Lookup resolves a reference to a formula without picking an artifact.
func (c *Catalog) Lookup(ref string) (*formula.Formula, error) {
	name, version := ParseRef(ref)

	return c.Get(name, version)
}

// Resolve finds the formula for ref and the artifact matching p.
func (c *Catalog) Resolve(ref string, p formula.Platform) (*Resolution, error) {
	f, err := c.Lookup(ref)
	if err != nil {
		return nil, err
	}

	artifact, err := f.Select(p)
	if err != nil {
		return nil, err
	}

	return &Resolution{
		Formula:  f,
		Artifact: artifact,
		Platform: p,
	}, nil
}

// All returns every formula, grouped by name and ordered by version.
func (c *Catalog) All() []*formula.Formula {
	var result []*formula.Formula
	for _, name := range c.Names() {
		result = append(result, c.byName[name]...)
	}

	return result
}

// ParseRef splits "name@version" into its parts. A missing version means latest.
func ParseRef(ref string) (string, string) {
	name, version, _ := strings.Cut(strings.TrimSpace(ref), "@")
	if version == "" {
		version = LatestVersion
	}

	return name, version
}

// SameVersion compares versions semantically, falling back to string equality.
func SameVersion(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)

	if errA != nil || errB != nil {
		return strings.TrimPrefix(a, "v") == strings.TrimPrefix(b, "v")
	}

	return va.Equal(vb)
}

// SortByVersion orders formulas from oldest to newest.
// Versions that are not semver sort before all others, by string.
func SortByVersion(formulas []*formula.Formula) {
	slices.SortStableFunc(formulas, func(a, b *formula.Formula) int {
		return CompareVersions(a.Version, b.Version)
	})
}

// CompareVersions orders two version strings the way SortByVersion does.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)

	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	default:
		return va.Compare(vb)
	}
}
