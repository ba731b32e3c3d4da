// Package receipt contains the domain types describing an installed formula.
//
// It defines Actor (who ran the install) and Receipt (what was installed,
// where and when) with Clone helpers to avoid leaking internal references.
package receipt
