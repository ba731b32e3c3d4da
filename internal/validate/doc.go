// Package validate checks the integrity of formula descriptors.
//
// Per-file checks cover platform coverage, checksums, URLs and metadata.
// Cross-file checks look for duplicate versions and for homepage or owner
// changes between successive releases. Changes are reported for manual
// review and never fail a run.
package validate
