// Package render turns a table into output for people and machines.
//
// View builds a canonical JSON document of the whole table, suitable for
// golden files and digests. Text draws an indented tree with state
// colouring for terminals.
package render
