package compiler

import (
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

const composeVersion = "3.4"

var nodeSysctls = []string{
	"net.ipv4.ip_forward=1",
	"net.ipv4.conf.default.rp_filter=0",
	"net.ipv4.conf.all.rp_filter=0",
}

// orderedMap renders as a YAML mapping in insertion order.
type orderedMap struct {
	keys   []string
	values map[string]any
}

func newOrderedMap() *orderedMap {
	return &orderedMap{values: make(map[string]any)}
}

func (m *orderedMap) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *orderedMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *orderedMap) Keys() []string {
	return m.keys
}

func (m *orderedMap) Len() int {
	return len(m.keys)
}

func (m *orderedMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range m.keys {
		key := &yaml.Node{}
		key.SetString(k)
		value := &yaml.Node{}
		if err := value.Encode(m.values[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, key, value)
	}
	return node, nil
}

type composeFile struct {
	Version  string      `yaml:"version"`
	Services *orderedMap `yaml:"services"`
	Networks *orderedMap `yaml:"networks"`
}

type service struct {
	Build         string      `yaml:"build,omitempty"`
	Image         string      `yaml:"image,omitempty"`
	ContainerName string      `yaml:"container_name"`
	CapAdd        []string    `yaml:"cap_add,omitempty"`
	Sysctls       []string    `yaml:"sysctls,omitempty"`
	Privileged    bool        `yaml:"privileged,omitempty"`
	Networks      *orderedMap `yaml:"networks,omitempty"`
	Ports         []string    `yaml:"ports,omitempty"`
	Volumes       []any       `yaml:"volumes,omitempty"`
	Labels        *orderedMap `yaml:"labels,omitempty"`
}

type serviceNetwork struct {
	IPv4Address string `yaml:"ipv4_address"`
}

type bindVolume struct {
	Type   string `yaml:"type"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

type network struct {
	DriverOpts map[string]string `yaml:"driver_opts"`
	IPAM       ipam              `yaml:"ipam"`
	Labels     *orderedMap       `yaml:"labels"`
}

type ipam struct {
	Config []ipamConfig `yaml:"config"`
}

type ipamConfig struct {
	Subnet string `yaml:"subnet"`
}

func newNetwork(subnet string, mtu int, labels *orderedMap) network {
	return network{
		DriverOpts: map[string]string{"com.docker.network.driver.mtu": strconv.Itoa(mtu)},
		IPAM:       ipam{Config: []ipamConfig{{Subnet: subnet}}},
		Labels:     labels,
	}
}

func clientService(image string, port int) service {
	return service{
		Image:         image,
		ContainerName: "seedemu_client",
		Volumes:       []any{"/var/run/docker.sock:/var/run/docker.sock"},
		Ports:         []string{strconv.Itoa(port) + ":8080/tcp"},
	}
}

func (f *composeFile) encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(4)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}
