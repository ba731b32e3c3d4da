package receipt

import (
	"slices"
	"time"
)

// Actor identifies who performed an install.
type Actor struct {
	// Hostname is the machine name where the install was performed.
	Hostname string `yaml:"hostname"`
	// Username is the system user who ran the install.
	Username string `yaml:"username"`
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// Binary is one file placed into the install directory.
type Binary struct {
	// Name is the installed file name.
	Name string `yaml:"name"`
	// Size is the file size in bytes.
	Size int64 `yaml:"size"`
	// SHA256 is the hex encoded checksum of the installed file.
	SHA256 string `yaml:"sha256"`
}

// Receipt records one installed formula version.
type Receipt struct {
	// Name is the formula name.
	Name string `yaml:"name"`
	// Version is the installed formula version.
	Version string `yaml:"version"`
	// Platform is the os/arch the artifact was selected for.
	Platform string `yaml:"platform"`
	// URL is the archive the binaries came from.
	URL string `yaml:"url"`
	// SHA256 is the verified archive checksum.
	SHA256 string `yaml:"sha256"`
	// Dir is the directory the binaries were installed into.
	Dir string `yaml:"dir"`
	// Binaries lists the installed files.
	Binaries []Binary `yaml:"binaries"`
	// InstalledAt is when the install finished.
	InstalledAt time.Time `yaml:"installed_at"`
	// InstalledBy is who ran the install.
	InstalledBy *Actor `yaml:"installed_by,omitempty"`
}

// Clone returns a copy of the receipt to avoid leaking internal references.
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}

	cloned := *r
	cloned.Binaries = slices.Clone(r.Binaries)
	cloned.InstalledBy = r.InstalledBy.Clone()

	return &cloned
}

// BinaryNames returns the installed file names.
func (r *Receipt) BinaryNames() []string {
	names := make([]string, 0, len(r.Binaries))
	for _, b := range r.Binaries {
		names = append(names, b.Name)
	}

	return names
}

// TotalSize returns the combined size of the installed files.
func (r *Receipt) TotalSize() int64 {
	var total int64
	for _, b := range r.Binaries {
		total += b.Size
	}

	return total
}
