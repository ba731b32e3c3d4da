// Package version exposes formulactl build metadata.
//
// Version, Commit and BuildTime are injected with -ldflags "-X ..." and keep
// development defaults for local builds.
package version
