// Package descriptor reads and writes formulas in their YAML form.
//
// Documents are checked against an embedded JSON Schema before decoding,
// so structural mistakes are reported with a path into the document.
package descriptor
