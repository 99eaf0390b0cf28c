// Package conn owns per-connection translation state.
//
// A Store is created when a connection is established and closed when it
// ends. Each piece of tracked context (entity tracker, open window, world
// and registry data) lives under its own typed Key; nothing is shared
// between connections.
//
// A Store is owned by the single worker that translates its connection and
// is not safe for concurrent use. Mutations made while translating a packet
// are staged on a Tx and applied only once the whole packet succeeded.
package conn
