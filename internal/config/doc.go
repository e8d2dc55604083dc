// Package config loads cylcview settings from YAML.
//
// Defaults are applied first and the file overrides them. The merged
// result is checked against an embedded CUE schema, so a bad URL, an
// unknown output format or a typo in a key is reported before anything
// connects. Environment and flag overrides are layered on top by the CLI.
package config
