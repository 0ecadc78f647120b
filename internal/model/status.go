package model

// BotID identifies this node to the coordination server. Sent once at
// connection establishment and immutable for the process lifetime.
type BotID string

// ConnectionStatus is the control engine's view of the server connection.
// The control engine is the only writer; everyone else observes copies
// through its data ring.
type ConnectionStatus uint8

const (
	StatusOffline ConnectionStatus = iota
	StatusConnecting
	StatusOnline
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOnline:
		return "online"
	default:
		return "offline"
	}
}
