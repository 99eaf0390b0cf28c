// Package pipeline owns packet transform descriptors and their execution.
//
// A Descriptor is an ordered list of field operations applied to one
// forward-only cursor over the source body. Operations run in declaration
// order; handlers see every field decoded so far by position and may
// rewrite mapped fields, write extra output, stage connection state changes
// or cancel the packet. Output is encoded only after every operation
// succeeded, so a failed packet never yields partial bytes and never
// touches the connection store.
package pipeline
