// Package config defines the formulactl settings file and provides helpers
// to load, validate and save it in YAML format.
//
// Defaults follow the XDG base directory layout: settings live under
// $XDG_CONFIG_HOME/formulactl, receipts under $XDG_STATE_HOME/formulactl and
// binaries go to $XDG_BIN_HOME unless a location is chosen.
package config
