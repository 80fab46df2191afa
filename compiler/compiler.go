// Package compiler turns a topology into a docker compose deployment: one
// compose file plus one build context per node.
//
// Compilation runs in two passes. Every network is compiled first, which
// for self-managed networks allocates the dummy prefix that nodes draw
// their dummy addresses from; nodes are compiled afterwards. Output is
// written as it is produced, so a failed run leaves a partial deployment
// behind.
package compiler

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/seedemu/emuc/addrpool"
	"github.com/seedemu/emuc/rewrite"
	"github.com/seedemu/emuc/topology"
	"github.com/sirupsen/logrus"
)

// Compiler holds the state of a single compile run. It must not be reused.
type Compiler struct {
	opts     Options
	pool     *addrpool.Pool
	agent    string
	log      *logrus.Entry
	services *orderedMap
	networks *orderedMap
}

func New(opts Options) (*Compiler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	parent, err := netip.ParsePrefix(opts.DummyNetworksPool)
	if err != nil {
		return nil, err
	}
	pool, err := addrpool.NewPool(parent, opts.DummyNetworksMask)
	if err != nil {
		return nil, err
	}
	agent := opts.AgentBinary
	if agent == "" {
		if agent, err = os.Executable(); err != nil {
			return nil, fmt.Errorf("locate agent binary: %w", err)
		}
	}
	if _, err := os.Stat(agent); err != nil {
		return nil, fmt.Errorf("agent binary: %w", err)
	}
	return &Compiler{
		opts:     opts,
		pool:     pool,
		agent:    agent,
		log:      logrus.WithField("run", uuid.NewString()),
		services: newOrderedMap(),
		networks: newOrderedMap(),
	}, nil
}

// Compile writes the deployment of reg into outDir.
func (c *Compiler) Compile(reg *topology.Registry, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	for _, obj := range reg.All() {
		net, ok := obj.(*topology.Network)
		if !ok {
			continue
		}
		c.log.WithField("phase", "network").Infof("creating network: %s/%s...", net.Scope, net.Name)
		if err := c.compileNetwork(net); err != nil {
			return fmt.Errorf("network %s: %w", networkID(net), err)
		}
	}

	for _, obj := range reg.All() {
		node, ok := obj.(*topology.Node)
		if !ok {
			continue
		}
		scope, typ, name := node.RegistryInfo()
		entry := c.log.WithField("phase", "node")
		switch typ {
		case topology.TypeRouter:
			entry.Infof("compiling router node %s for as%s...", name, scope)
		case topology.TypeHost:
			entry.Infof("compiling host node %s for as%s...", name, scope)
		case topology.TypeRouteServer:
			entry.Infof("compiling rs node for %s...", name)
		case topology.TypeServiceWorker:
			entry.Infof("compiling service node %s...", name)
		default:
			return fmt.Errorf("node %s/%s: %w: %q", scope, name, ErrUnknownNodeRole, node.Role)
		}
		if err := c.compileNode(node, outDir); err != nil {
			return fmt.Errorf("node %s: %w", nodeID(node), err)
		}
	}

	if c.opts.ClientEnabled {
		c.log.Info("enabling seedemu-client...")
		c.services.Set("seedsim-client", clientService(c.opts.ClientImage, c.opts.ClientPort))
	}

	c.log.Info("creating docker-compose.yml...")
	f, err := os.Create(filepath.Join(outDir, composeFileName))
	if err != nil {
		return err
	}
	defer f.Close()
	compose := composeFile{Version: composeVersion, Services: c.services, Networks: c.networks}
	if err := compose.encode(f); err != nil {
		return fmt.Errorf("write %s: %w", composeFileName, err)
	}
	return f.Close()
}

func (c *Compiler) selfManaged(net *topology.Network) bool {
	return c.opts.SelfManagedNetwork && net.Type != topology.NetworkBridge
}

func (c *Compiler) compileNetwork(net *topology.Network) error {
	subnet := net.Prefix
	if c.selfManaged(net) {
		pfx, err := c.pool.Next()
		if err != nil {
			return err
		}
		net.Dummy = addrpool.NewDummyState(pfx)
		subnet = pfx
		c.log.Infof("self-managed network: using dummy prefix %s", pfx)
	}
	c.networks.Set(networkID(net), newNetwork(subnet.String(), net.MTU, networkLabels(net)))
	return nil
}

func (c *Compiler) compileNode(node *topology.Node, outDir string) error {
	id := nodeID(node)
	name, err := containerName(c.opts.NamingScheme, node)
	if err != nil {
		return err
	}

	nets := newOrderedMap()
	mapping := &rewrite.Mapping{}
	for _, iface := range node.Interfaces {
		address := iface.Address.String()
		if c.selfManaged(iface.Net) {
			if iface.Net.Dummy == nil {
				return fmt.Errorf("%w: %s", ErrMissingDummyState, networkID(iface.Net))
			}
			dummy, err := iface.Net.Dummy.Allocate()
			if err != nil {
				return err
			}
			if err := mapping.Add(dummy, iface.Prefix()); err != nil {
				return err
			}
			address = dummy.Addr().String()
			c.log.Infof("using self-managed network: using dummy address %s for %s on as%d/%s",
				dummy, iface.Prefix(), node.ASN, node.Name)
		}
		nets.Set(networkID(iface.Net), serviceNetwork{IPv4Address: address})
	}

	c.services.Set(id, service{
		Build:         "./" + id,
		ContainerName: name,
		CapAdd:        []string{"ALL"},
		Sysctls:       nodeSysctls,
		Privileged:    true,
		Networks:      nets,
		Ports:         ports(node),
		Volumes:       volumes(node),
		Labels:        nodeLabels(node),
	})

	return c.buildContext(filepath.Join(outDir, id), node, mapping)
}

func (c *Compiler) buildContext(dir string, node *topology.Node, mapping *rewrite.Mapping) error {
	b, err := newBuildContext(dir, c.opts.BaseImage)
	if err != nil {
		return err
	}
	b.install(node.CommonSoftwares)
	b.install(node.Softwares)
	for _, cmd := range node.BuildCommands {
		b.run(cmd)
	}

	var rewriteScript string
	if mapping.Len() > 0 {
		rewriteScript = rewrite.ScriptPath
		if err := b.addFile(rewrite.ScriptPath, []byte(rewrite.Script(AgentPath, rewrite.MappingPath))); err != nil {
			return err
		}
		table, err := mapping.MarshalText()
		if err != nil {
			return err
		}
		if err := b.addFile(rewrite.MappingPath, table); err != nil {
			return err
		}
	}

	if err := b.addExecutable(StartScriptPath, []byte(startScript(rewriteScript, node.StartCommands))); err != nil {
		return err
	}
	if err := b.addExecutable(SnifferShimPath, []byte(shim("sniffer"))); err != nil {
		return err
	}
	if err := b.addExecutable(WorkerShimPath, []byte(shim("worker"))); err != nil {
		return err
	}
	if err := b.addBinary(AgentPath, c.agent); err != nil {
		return err
	}
	b.chmod()

	for _, f := range node.Files {
		if err := b.addFile(f.Path, []byte(f.Content)); err != nil {
			return err
		}
	}
	return b.close(StartScriptPath)
}

func ports(node *topology.Node) []string {
	var out []string
	for _, p := range node.Ports {
		out = append(out, strconv.Itoa(p.Host)+":"+strconv.Itoa(p.Node)+"/"+p.Proto)
	}
	return out
}

func volumes(node *topology.Node) []any {
	var out []any
	for _, sf := range node.SharedFolders {
		out = append(out, bindVolume{Type: "bind", Source: sf.HostPath, Target: sf.NodePath})
	}
	for _, path := range node.PersistentStorages {
		out = append(out, path)
	}
	return out
}
