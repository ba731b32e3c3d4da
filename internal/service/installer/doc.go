// Package installer resolves a formula for the current platform, downloads
// its archive, verifies the checksum, extracts the binaries and swaps them
// into the install directory atomically.
//
// Every binary is applied with go-update. If one of them fails, the binaries
// already replaced in the same run are restored and freshly created ones are
// removed, so an install either lands completely or not at all. A receipt is
// written for each successful install and drives uninstall and list.
package installer
