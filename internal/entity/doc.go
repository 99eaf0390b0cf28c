// Package entity resolves entity types across protocol versions and rewrites
// entity metadata.
//
// Types form a family tree (an armor stand is a living entity is an entity).
// The tree is flattened into ancestor chains when a Hierarchy is built, so
// family checks and fallback resolution are map probes. Metadata lists are
// passed through an ordered filter Chain; a Tracker kept in the connection
// store remembers what each spawned entity is so family filters can apply to
// later metadata updates.
package entity
