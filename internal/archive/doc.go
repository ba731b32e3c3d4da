// Package archive pulls named binaries out of release archives.
//
// Zip archives are read as a stream, tarballs may be gzip, zstd or xz
// compressed, and a download that is not an archive at all is treated as the
// binary itself.
package archive
