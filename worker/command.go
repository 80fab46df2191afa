package worker

import "strings"

type Kind int

const (
	Unknown Kind = iota
	NetDown
	NetUp
	NetStatus
	BirdListPeer
	BirdPeerUp
	BirdPeerDown
)

func (k Kind) String() string {
	switch k {
	case NetDown:
		return "net_down"
	case NetUp:
		return "net_up"
	case NetStatus:
		return "net_status"
	case BirdListPeer:
		return "bird_list_peer"
	case BirdPeerUp:
		return "bird_peer_up"
	case BirdPeerDown:
		return "bird_peer_down"
	default:
		return "unknown"
	}
}

// Command is a decoded worker command. Peer is only set for the
// bird_peer_* kinds.
type Command struct {
	Kind Kind
	Peer string
}

func ParseCommand(s string) Command {
	switch s {
	case "net_down":
		return Command{Kind: NetDown}
	case "net_up":
		return Command{Kind: NetUp}
	case "net_status":
		return Command{Kind: NetStatus}
	case "bird_list_peer":
		return Command{Kind: BirdListPeer}
	}
	if peer, ok := strings.CutPrefix(s, "bird_peer_up:"); ok && peer != "" {
		return Command{Kind: BirdPeerUp, Peer: peer}
	}
	if peer, ok := strings.CutPrefix(s, "bird_peer_down:"); ok && peer != "" {
		return Command{Kind: BirdPeerDown, Peer: peer}
	}
	return Command{Kind: Unknown}
}
