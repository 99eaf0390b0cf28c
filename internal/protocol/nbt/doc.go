// Package nbt owns the structured tag tree carried inside packets
// (registry payloads, item tags, block entity data).
//
// Trees are mutable and rewritten in place. Compounds keep key insertion
// order and lists keep one declared element kind so that a decode followed
// by an encode is byte-identical and rewrites never produce shapes the
// receiving version cannot parse.
package nbt
