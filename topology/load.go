package topology

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrUnknownNetwork = errors.New("interface references an unknown network")

type document struct {
	Networks []networkDoc `yaml:"networks"`
	Nodes    []nodeDoc    `yaml:"nodes"`
}

type networkDoc struct {
	Scope       string      `yaml:"scope"`
	Name        string      `yaml:"name"`
	Type        NetworkType `yaml:"type"`
	Prefix      string      `yaml:"prefix"`
	MTU         int         `yaml:"mtu"`
	DisplayName string      `yaml:"display_name"`
	Description string      `yaml:"description"`
}

type nodeDoc struct {
	Scope              string            `yaml:"scope"`
	Name               string            `yaml:"name"`
	ASN                int               `yaml:"asn"`
	Role               Role              `yaml:"role"`
	DisplayName        string            `yaml:"display_name"`
	Description        string            `yaml:"description"`
	Interfaces         []interfaceDoc    `yaml:"interfaces"`
	Ports              []portDoc         `yaml:"ports"`
	SharedFolders      []sharedFolderDoc `yaml:"shared_folders"`
	PersistentStorages []string          `yaml:"persistent_storages"`
	Softwares          []string          `yaml:"softwares"`
	CommonSoftwares    []string          `yaml:"common_softwares"`
	BuildCommands      []string          `yaml:"build_commands"`
	StartCommands      []startCommandDoc `yaml:"start_commands"`
	Files              []fileDoc         `yaml:"files"`
}

type interfaceDoc struct {
	Network string `yaml:"network"`
	Scope   string `yaml:"scope"`
	Address string `yaml:"address"`
}

type portDoc struct {
	Host  int    `yaml:"host"`
	Node  int    `yaml:"node"`
	Proto string `yaml:"proto"`
}

type sharedFolderDoc struct {
	NodePath string `yaml:"node_path"`
	HostPath string `yaml:"host_path"`
}

type startCommandDoc struct {
	Command string `yaml:"command"`
	Fork    bool   `yaml:"fork"`
}

type fileDoc struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content"`
}

func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML topology. Networks are registered before nodes.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode topology: %w", err)
	}

	reg := NewRegistry()
	for _, nd := range doc.Networks {
		net, err := nd.network()
		if err != nil {
			return nil, err
		}
		if err := reg.Register(net); err != nil {
			return nil, err
		}
	}
	for _, nd := range doc.Nodes {
		node, err := nd.node(reg)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(node); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (d networkDoc) network() (*Network, error) {
	prefix, err := netip.ParsePrefix(d.Prefix)
	if err != nil {
		return nil, fmt.Errorf("network %s/%s: %w", d.Scope, d.Name, err)
	}
	typ := d.Type
	if typ == "" {
		typ = NetworkLocal
	}
	scope := d.Scope
	if typ == NetworkIX && scope == "" {
		scope = ScopeIX
	}
	mtu := d.MTU
	if mtu == 0 {
		mtu = 1500
	}
	return &Network{
		Scope:       scope,
		Name:        d.Name,
		Type:        typ,
		Prefix:      prefix,
		MTU:         mtu,
		DisplayName: d.DisplayName,
		Description: d.Description,
	}, nil
}

func (d nodeDoc) node(reg *Registry) (*Node, error) {
	node := &Node{
		Scope:              d.Scope,
		Name:               d.Name,
		ASN:                d.ASN,
		Role:               d.Role,
		DisplayName:        d.DisplayName,
		Description:        d.Description,
		PersistentStorages: d.PersistentStorages,
		Softwares:          d.Softwares,
		CommonSoftwares:    d.CommonSoftwares,
		BuildCommands:      d.BuildCommands,
	}

	for _, id := range d.Interfaces {
		scope := id.Scope
		if scope == "" {
			scope = d.Scope
		}
		net, ok := reg.Network(scope, id.Network)
		if !ok && id.Scope == "" {
			// exchanges live in the ix scope whatever the node's scope is
			net, ok = reg.Network(ScopeIX, id.Network)
		}
		if !ok {
			return nil, fmt.Errorf("%w: node %s/%s -> %s/%s", ErrUnknownNetwork, d.Scope, d.Name, scope, id.Network)
		}
		addr, err := netip.ParseAddr(id.Address)
		if err != nil {
			return nil, fmt.Errorf("node %s/%s on %s: %w", d.Scope, d.Name, id.Network, err)
		}
		node.Interfaces = append(node.Interfaces, Interface{Net: net, Address: addr})
	}
	for _, p := range d.Ports {
		proto := p.Proto
		if proto == "" {
			proto = "tcp"
		}
		node.Ports = append(node.Ports, Port{Host: p.Host, Node: p.Node, Proto: proto})
	}
	for _, sf := range d.SharedFolders {
		node.SharedFolders = append(node.SharedFolders, SharedFolder(sf))
	}
	for _, sc := range d.StartCommands {
		node.StartCommands = append(node.StartCommands, StartCommand(sc))
	}
	for _, f := range d.Files {
		node.Files = append(node.Files, File(f))
	}
	return node, nil
}
