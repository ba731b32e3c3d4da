// Package catalog loads formula descriptors from local directories, single
// files and http(s) URLs, groups them by name and resolves references such
// as "proto", "proto@latest" or "proto@1.1.2" for a platform.
package catalog
