// Package mappings loads the embedded per-version protocol tables: packet
// names by id, entity types, metadata value types and particles, plus the
// pair files that say how one version degrades into the previous one.
package mappings
