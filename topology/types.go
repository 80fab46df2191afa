// Package topology holds the emulation model consumed by the compiler.
// Objects are expected to be validated by the layer that produced them.
package topology

import (
	"net/netip"

	"github.com/seedemu/emuc/addrpool"
)

type NetworkType string

const (
	NetworkLocal  NetworkType = "local"
	NetworkIX     NetworkType = "ix"
	NetworkBridge NetworkType = "bridge"
)

type Role string

const (
	RoleRouter        Role = "router"
	RoleHost          Role = "host"
	RoleRouteServer   Role = "route-server"
	RoleServiceWorker Role = "service-worker"
)

// Registry types, as used in registry keys and build context names.
const (
	TypeNetwork       = "net"
	TypeRouter        = "rnode"
	TypeHost          = "hnode"
	TypeRouteServer   = "rs"
	TypeServiceWorker = "snode"
)

// ScopeIX is the scope of internet exchange networks and route servers.
const ScopeIX = "ix"

// Object is anything held by the Registry.
type Object interface {
	RegistryInfo() (scope, typ, name string)
}

type Network struct {
	Scope       string
	Name        string
	Type        NetworkType
	Prefix      netip.Prefix
	MTU         int
	DisplayName string
	Description string

	// Dummy is set by the compiler when the network is self-managed.
	Dummy *addrpool.DummyState
}

func (n *Network) RegistryInfo() (string, string, string) {
	return n.Scope, TypeNetwork, n.Name
}

type Interface struct {
	Net     *Network
	Address netip.Addr
}

// Prefix is the interface address with the prefix length of its network.
func (i Interface) Prefix() netip.Prefix {
	return netip.PrefixFrom(i.Address, i.Net.Prefix.Bits())
}

type Port struct {
	Host  int
	Node  int
	Proto string
}

type StartCommand struct {
	Command string
	Fork    bool
}

type File struct {
	Path    string
	Content string
}

// SharedFolder binds HostPath on the emulator host to NodePath in the node.
type SharedFolder struct {
	NodePath string
	HostPath string
}

type Node struct {
	Scope       string
	Name        string
	ASN         int
	Role        Role
	DisplayName string
	Description string

	Interfaces         []Interface
	Ports              []Port
	SharedFolders      []SharedFolder
	PersistentStorages []string
	Softwares          []string
	CommonSoftwares    []string
	BuildCommands      []string
	StartCommands      []StartCommand
	Files              []File
}

func (n *Node) RegistryInfo() (string, string, string) {
	return n.Scope, n.Role.RegistryType(), n.Name
}

// RegistryType maps a role to its registry type. Unknown roles map to
// the role string itself so that they stay visible to the compiler.
func (r Role) RegistryType() string {
	switch r {
	case RoleRouter:
		return TypeRouter
	case RoleHost:
		return TypeHost
	case RoleRouteServer:
		return TypeRouteServer
	case RoleServiceWorker:
		return TypeServiceWorker
	default:
		return string(r)
	}
}
