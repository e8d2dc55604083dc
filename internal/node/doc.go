// Package node provides the canonical node types for the workflow table and
// the factories that build them from raw delta records.
//
// This package has no state and no internal dependencies other than diag.
// The table and the reconciler import node; node imports neither.
//
// Key design constraints:
//   - Optional record fields are pointers so "absent" and "zero" stay distinct
//   - Merging writes only defined (non-nil) fields, last writer wins
//   - FirstParent is copied verbatim and never dereferenced here
//   - Node ids are unique across kinds within one table
package node
