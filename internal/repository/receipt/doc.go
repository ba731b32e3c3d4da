// Package receipt implements persistence for install receipts.
//
// The FileRepository keeps one YAML document per installed formula under
// <state_dir>/receipts and exposes a Repository interface that the installer
// depends on.
package receipt
