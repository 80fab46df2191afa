package compiler

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"

	"github.com/google/go-containerregistry/pkg/name"
	"gopkg.in/yaml.v3"
)

const (
	DefaultNamingScheme = "as{asn}{role}-{name}-{primaryIp}"
	DefaultDummyPool    = "10.128.0.0/9"
	DefaultDummyMask    = 24
	DefaultClientImage  = "magicnat/seedemu-client"
	DefaultClientPort   = 8080
	DefaultBaseImage    = "ubuntu:20.04"
)

// Options configures one compile run.
type Options struct {
	// NamingScheme accepts {asn}, {role} (r, h, rs), {name} and {primaryIp}.
	NamingScheme string `yaml:"naming_scheme"`
	// SelfManagedNetwork hands docker dummy addresses and rewrites them to
	// the real ones inside each container at boot, which allows overlapping
	// networks and the use of ".1" addresses on nodes. Port forwarding to
	// regular nodes stops working in this mode.
	SelfManagedNetwork bool `yaml:"self_managed_network"`
	// DummyNetworksPool must not overlap any real network of the emulation,
	// loopbacks included.
	DummyNetworksPool string `yaml:"dummy_networks_pool"`
	DummyNetworksMask int    `yaml:"dummy_networks_mask"`
	// ClientEnabled adds the seedemu client service. The client gives
	// unauthenticated access to every node; enable it on trusted networks only.
	ClientEnabled bool   `yaml:"client_enabled"`
	ClientPort    int    `yaml:"client_port"`
	ClientImage   string `yaml:"client_image"`
	BaseImage     string `yaml:"base_image"`
	// AgentBinary is staged into every node to serve the worker, sniffer
	// and rewrite commands. It must be built for the container platform.
	// Empty means the running executable.
	AgentBinary string `yaml:"agent_binary"`
}

func DefaultOptions() Options {
	return Options{
		NamingScheme:      DefaultNamingScheme,
		DummyNetworksPool: DefaultDummyPool,
		DummyNetworksMask: DefaultDummyMask,
		ClientPort:        DefaultClientPort,
		ClientImage:       DefaultClientImage,
		BaseImage:         DefaultBaseImage,
	}
}

// LoadOptions reads options from a YAML file on top of the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	f, err := os.Open(path)
	if err != nil {
		return opts, err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return opts, fmt.Errorf("decode %s: %w", path, err)
	}
	return opts, nil
}

func (o Options) Validate() error {
	if o.NamingScheme == "" {
		return errors.New("naming scheme is empty")
	}
	if _, err := netip.ParsePrefix(o.DummyNetworksPool); err != nil {
		return fmt.Errorf("dummy networks pool: %w", err)
	}
	if _, err := name.ParseReference(o.BaseImage); err != nil {
		return fmt.Errorf("base image: %w", err)
	}
	if o.ClientEnabled {
		if o.ClientPort <= 0 || o.ClientPort > 65535 {
			return fmt.Errorf("client port %d out of range", o.ClientPort)
		}
		if _, err := name.ParseReference(o.ClientImage); err != nil {
			return fmt.Errorf("client image: %w", err)
		}
	}
	return nil
}
