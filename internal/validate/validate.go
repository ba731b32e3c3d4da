package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/oshokin/formula-resolver/internal/domain/formula"
	"github.com/oshokin/formula-resolver/internal/repository/catalog"
)

// Severity tells whether a finding fails validation.
type Severity string

const (
	// SeverityError fails the run.
	SeverityError Severity = "error"
	// SeverityReview is reported for manual review only.
	SeverityReview Severity = "review"
)

// Finding codes.
const (
	CodeCoverage       = "coverage"
	CodeURLVersion     = "url-version"
	CodeChecksum       = "checksum"
	CodeURL            = "url"
	CodeMetadata       = "metadata"
	CodeDuplicate      = "duplicate"
	CodeHomepageChange = "homepage-change"
	CodeOwnerChange    = "owner-change"
)

//nolint:gochecknoglobals // Compiled once.
var sha256Pattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Finding is one problem found in a descriptor.
type Finding struct {
	// Formula is the formula name.
	Formula string
	// Version is the formula version.
	Version string
	// Source is the file or URL the formula came from.
	Source string
	// Severity tells whether the finding fails the run.
	Severity Severity
	// Code identifies the check that produced the finding.
	Code string
	// Message describes the problem.
	Message string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %s@%s [%s] %s (%s)", f.Severity, f.Formula, f.Version, f.Code, f.Message, f.Source)
}

// Report is the outcome of a validation run.
type Report struct {
	// Checked is the number of descriptors inspected.
	Checked int
	// Findings lists every problem in formula and version order.
	Findings []Finding
}

// HasErrors reports whether any finding has error severity.
func (r Report) HasErrors() bool {
	return slices.ContainsFunc(r.Findings, func(f Finding) bool {
		return f.Severity == SeverityError
	})
}

// Count returns the number of findings with severity s.
func (r Report) Count(s Severity) int {
	n := 0

	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}

	return n
}

// Codes returns the distinct finding codes in the report.
func (r Report) Codes() []string {
	var codes []string

	for _, f := range r.Findings {
		if !slices.Contains(codes, f.Code) {
			codes = append(codes, f.Code)
		}
	}

	return codes
}

// Run validates every formula and the history of each formula name.
func Run(formulas []*formula.Formula) Report {
	report := Report{Checked: len(formulas)}

	sorted := slices.Clone(formulas)
	slices.SortStableFunc(sorted, func(a, b *formula.Formula) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}

		return catalog.CompareVersions(a.Version, b.Version)
	})

	for _, f := range sorted {
		report.Findings = append(report.Findings, CheckFormula(f)...)
	}

	report.Findings = append(report.Findings, checkHistory(sorted)...)

	return report
}

// CheckFormula runs the per-file checks on f.
func CheckFormula(f *formula.Formula) []Finding {
	var findings []Finding

	add := func(code, format string, args ...any) {
		findings = append(findings, newFinding(f, SeverityError, code, fmt.Sprintf(format, args...)))
	}

	checkMetadata(f, add)
	checkCoverage(f, add)

	for i, a := range f.Artifacts {
		if !sha256Pattern.MatchString(a.SHA256) {
			add(CodeChecksum, "artifact %d: checksum %q is not 64 hexadecimal characters", i+1, a.SHA256)
		}

		if !isHTTPURL(a.URL) {
			add(CodeURL, "artifact %d: %q is not an absolute http(s) URL", i+1, a.URL)
		}

		if f.Version != "" && !containsVersion(a.URL, f.Version) {
			add(CodeURLVersion, "artifact %d: URL %q does not contain version %s", i+1, a.URL, f.Version)
		}

		if len(a.Install) == 0 {
			add(CodeMetadata, "artifact %d: no install action", i+1)
		}
	}

	return findings
}

// containsVersion finds version in rawURL as a whole token, so 1.1.2 does
// not match inside 11.1.2 or 1.1.20.
func containsVersion(rawURL, version string) bool {
	for offset := 0; ; {
		i := strings.Index(rawURL[offset:], version)
		if i < 0 {
			return false
		}

		start := offset + i
		end := start + len(version)

		if versionStarts(rawURL, start) && versionEnds(rawURL, end) {
			return true
		}

		offset = start + 1
	}
}

func versionStarts(s string, at int) bool {
	if at == 0 {
		return true
	}

	return strings.IndexByte("/_-.vV=", s[at-1]) >= 0
}

func versionEnds(s string, at int) bool {
	if at == len(s) {
		return true
	}

	switch s[at] {
	case '/', '_', '-', '?', '#', '+':
		return true
	case '.':
		return at+1 == len(s) || !isDigit(s[at+1])
	default:
		return false
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func checkMetadata(f *formula.Formula, add func(code, format string, args ...any)) {
	if f.Name == "" {
		add(CodeMetadata, "name is missing")
	}

	switch {
	case f.Version == "":
		add(CodeMetadata, "version is missing")
	default:
		if _, err := semver.NewVersion(f.Version); err != nil {
			add(CodeMetadata, "version %q is not a semantic version", f.Version)
		}
	}

	switch {
	case f.Homepage == "":
		add(CodeMetadata, "homepage is missing")
	case !isHTTPURL(f.Homepage):
		add(CodeMetadata, "homepage %q is not an absolute http(s) URL", f.Homepage)
	}

	if f.License == "" {
		add(CodeMetadata, "license is missing")
	}

	if len(f.Artifacts) == 0 {
		add(CodeMetadata, "no artifacts")
	}
}

// checkCoverage requires exactly one artifact per supported platform and no overlap elsewhere.
func checkCoverage(f *formula.Formula, add func(code, format string, args ...any)) {
	if len(f.Artifacts) == 0 {
		return
	}

	for _, system := range f.OperatingSystems() {
		for _, p := range formula.SupportedMatrix(system) {
			switch n := len(f.Matching(p)); {
			case n == 0:
				add(CodeCoverage, "no artifact for %s (%s %d-bit)", p, p.Arch, p.Bits())
			case n > 1:
				add(CodeCoverage, "%d artifacts overlap on %s (%s %d-bit)", n, p, p.Arch, p.Bits())
			}
		}

		for _, p := range formula.OptionalMatrix(system) {
			if n := len(f.Matching(p)); n > 1 {
				add(CodeCoverage, "%d artifacts overlap on %s (%s %d-bit)", n, p, p.Arch, p.Bits())
			}
		}
	}
}

// checkHistory compares successive versions of each formula. formulas must be sorted.
func checkHistory(formulas []*formula.Formula) []Finding {
	var findings []Finding

	for i := 1; i < len(formulas); i++ {
		prev, cur := formulas[i-1], formulas[i]
		if prev.Name != cur.Name {
			continue
		}

		if catalog.SameVersion(prev.Version, cur.Version) {
			findings = append(findings, newFinding(cur, SeverityError, CodeDuplicate,
				fmt.Sprintf("version also defined in %s", prev.Source)))

			continue
		}

		if prev.Homepage != cur.Homepage {
			findings = append(findings, newFinding(cur, SeverityReview, CodeHomepageChange,
				fmt.Sprintf("homepage changed from %s (%s) to %s", prev.Homepage, prev.Version, cur.Homepage)))
		}

		prevOwners, curOwners := githubOwners(prev), githubOwners(cur)
		if len(prevOwners) > 0 && len(curOwners) > 0 && !slices.Equal(prevOwners, curOwners) {
			findings = append(findings, newFinding(cur, SeverityReview, CodeOwnerChange,
				fmt.Sprintf("download owner changed from %s (%s) to %s",
					strings.Join(prevOwners, ","), prev.Version, strings.Join(curOwners, ","))))
		}
	}

	return findings
}

// githubOwners returns the sorted, distinct owners of github.com download URLs.
func githubOwners(f *formula.Formula) []string {
	var owners []string

	for _, a := range f.Artifacts {
		u, err := url.Parse(a.URL)
		if err != nil || !strings.EqualFold(u.Host, "github.com") {
			continue
		}

		owner, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if owner != "" && !slices.Contains(owners, owner) {
			owners = append(owners, owner)
		}
	}

	slices.Sort(owners)

	return owners
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func newFinding(f *formula.Formula, severity Severity, code, message string) Finding {
	return Finding{
		Formula:  f.Name,
		Version:  f.Version,
		Source:   f.Source,
		Severity: severity,
		Code:     code,
		Message:  message,
	}
}
