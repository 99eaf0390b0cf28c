package protocol

import "fmt"

// Direction is the flow of a packet relative to the connected client.
type Direction uint8

const (
	Clientbound Direction = iota
	Serverbound
)

func (d Direction) String() string {
	switch d {
	case Clientbound:
		return "clientbound"
	case Serverbound:
		return "serverbound"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Reverse returns the opposite flow.
func (d Direction) Reverse() Direction {
	if d == Clientbound {
		return Serverbound
	}
	return Clientbound
}
