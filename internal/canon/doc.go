// Package canon produces canonical JSON and content digests for table views.
//
// Canonical form follows RFC 8785 for the subset of JSON a table view uses:
// strings, integers, booleans, arrays and objects. Object keys are ordered by
// UTF-16 code units, strings are NFC normalized and HTML characters are left
// unescaped. Floats and null are rejected so two equal tables always encode
// to the same bytes.
package canon
