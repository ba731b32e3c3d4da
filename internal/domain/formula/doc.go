// Package formula contains the core domain types of a release artifact
// descriptor.
//
// A Formula describes one published version of a tool: its metadata and the
// list of platform-specific Artifacts. Each Artifact is gated by a platform
// predicate (an Expr evaluated against a Platform) and an optional operating
// system. Select enforces the invariant that exactly one artifact matches the
// platform an install runs on.
package formula
