// Package rubyformula reads and writes GoReleaser-generated Homebrew formula
// files.
//
// Only the declarative subset those generators emit is understood: metadata
// calls, depends_on, on_<os>/on_<cpu> blocks, if/elsif/else branches over CPU
// predicates, url/sha256 pairs and def install with bin.install. Anything else
// (test blocks, caveats, livecheck, heredocs) is skipped.
package rubyformula
