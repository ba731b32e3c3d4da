// Package packager builds formula files from a directory of release archives.
//
// Archive names carry the target platform (proto_1.1.2_linux_arm64.zip). The
// packager checksums every archive, checks that it ships the declared
// binaries, fills the download URL template and writes a Ruby formula, a YAML
// descriptor or both. A formula that would fail validation is never written.
package packager
