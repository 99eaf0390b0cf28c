// Package protocols holds what every version pair shares: the Pair contract
// the engine chains on and the id-only remapping of packets that exist in
// both versions. Each pair lives in its own subpackage.
package protocols
