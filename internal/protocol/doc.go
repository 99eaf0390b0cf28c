// Package protocol owns the shared wire vocabulary of the translator.
//
// Ownership boundary:
// - packet direction
// - translation error taxonomy
//
// Subpackages own the primitives:
// - codec: typed field cursor encode/decode
// - nbt: structured tag trees
// - frame: length-prefixed packet framing
package protocol
