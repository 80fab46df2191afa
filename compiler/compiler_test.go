package compiler

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seedemu/emuc/addrpool"
	"github.com/seedemu/emuc/rewrite"
	"github.com/seedemu/emuc/topology"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func fakeAgent(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "emuc")
	require.NoError(t, os.WriteFile(path, []byte("\x7fELF agent"), 0o755))
	return path
}

func testOptions(t *testing.T, selfManaged bool) Options {
	opts := DefaultOptions()
	opts.SelfManagedNetwork = selfManaged
	opts.AgentBinary = fakeAgent(t)
	return opts
}

// sampleRegistry: AS150 with a LAN, an IX, a bridge, a router, a host and
// a route server.
func sampleRegistry(t *testing.T) *topology.Registry {
	t.Helper()
	reg := topology.NewRegistry()
	lan := &topology.Network{Scope: "150", Name: "net0", Type: topology.NetworkLocal,
		Prefix: netip.MustParsePrefix("10.150.0.0/24"), MTU: 1500, DisplayName: "LAN"}
	ix := &topology.Network{Scope: topology.ScopeIX, Name: "ix100", Type: topology.NetworkIX,
		Prefix: netip.MustParsePrefix("10.100.0.0/24"), MTU: 1500}
	br := &topology.Network{Scope: "150", Name: "br0", Type: topology.NetworkBridge,
		Prefix: netip.MustParsePrefix("172.31.0.0/16"), MTU: 1500}
	for _, n := range []*topology.Network{lan, ix, br} {
		require.NoError(t, reg.Register(n))
	}

	router := &topology.Node{Scope: "150", Name: "router0", ASN: 150, Role: topology.RoleRouter,
		Interfaces: []topology.Interface{
			{Net: lan, Address: netip.MustParseAddr("10.150.0.254")},
			{Net: ix, Address: netip.MustParseAddr("10.100.0.150")},
			{Net: br, Address: netip.MustParseAddr("172.31.0.2")},
		},
		Softwares:       []string{"bird2", "iproute2"},
		CommonSoftwares: []string{"tcpdump", "jq"},
		BuildCommands:   []string{"mkdir -p /run/bird"},
		StartCommands:   []topology.StartCommand{{Command: "bird -d", Fork: true}},
		Files:           []topology.File{{Path: "/etc/bird/bird.conf", Content: "router id 10.0.0.1;\n"}},
	}
	host := &topology.Node{Scope: "150", Name: "web", ASN: 150, Role: topology.RoleHost,
		Interfaces:         []topology.Interface{{Net: lan, Address: netip.MustParseAddr("10.150.0.71")}},
		Ports:              []topology.Port{{Host: 8080, Node: 80, Proto: "tcp"}},
		SharedFolders:      []topology.SharedFolder{{NodePath: "/srv", HostPath: "/tmp/srv"}},
		PersistentStorages: []string{"/var/lib/data"},
	}
	rs := &topology.Node{Scope: topology.ScopeIX, Name: "ix100", ASN: 100, Role: topology.RoleRouteServer,
		Interfaces: []topology.Interface{{Net: ix, Address: netip.MustParseAddr("10.100.0.100")}},
	}
	for _, n := range []*topology.Node{router, host, rs} {
		require.NoError(t, reg.Register(n))
	}
	return reg
}

func compile(t *testing.T, opts Options, reg *topology.Registry) string {
	t.Helper()
	c, err := New(opts)
	require.NoError(t, err)
	out := t.TempDir()
	require.NoError(t, c.Compile(reg, out))
	return out
}

func readCompose(t *testing.T, dir string) map[string]any {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, composeFileName))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(b, &doc))
	return doc
}

func lookup(t *testing.T, v any, path ...string) any {
	t.Helper()
	for _, p := range path {
		m, ok := v.(map[string]any)
		require.True(t, ok, "%s is not a mapping", p)
		v, ok = m[p]
		require.True(t, ok, "missing key %s", p)
	}
	return v
}

func readFile(t *testing.T, dir, inContainerPath string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, stagedName(inContainerPath)))
	require.NoError(t, err)
	return string(b)
}

func TestCompileOrdersNetworksBeforeNodes(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	// register nodes between networks to make the ordering observable
	reg := topology.NewRegistry()
	var nets []*topology.Network
	for i := 0; i < 3; i++ {
		n := &topology.Network{Scope: "2", Name: fmt.Sprintf("net%d", i), Type: topology.NetworkLocal,
			Prefix: netip.MustParsePrefix(fmt.Sprintf("10.2.%d.0/24", i)), MTU: 1500}
		nets = append(nets, n)
	}
	require.NoError(t, reg.Register(nets[0]))
	for i := 0; i < 4; i++ {
		require.NoError(t, reg.Register(&topology.Node{
			Scope: "2", Name: fmt.Sprintf("h%d", i), ASN: 2, Role: topology.RoleHost,
			Interfaces: []topology.Interface{{Net: nets[i%3], Address: netip.MustParseAddr(fmt.Sprintf("10.2.%d.%d", i%3, i+1))}},
		}))
		if i < 2 {
			require.NoError(t, reg.Register(nets[i+1]))
		}
	}

	compile(t, testOptions(t, true), reg)

	var phases []string
	for _, e := range hook.AllEntries() {
		if p, ok := e.Data["phase"].(string); ok {
			phases = append(phases, p)
		}
	}
	assert.Equal(t, []string{"network", "network", "network", "node", "node", "node", "node"}, phases)
}

func TestCompileSelfManaged(t *testing.T) {
	out := compile(t, testOptions(t, true), sampleRegistry(t))
	doc := readCompose(t, out)

	assert.Equal(t, "3.4", doc["version"])
	assert.Equal(t, "10.128.0.0/24", lookup(t, doc, "networks", "net_150_net0", "ipam", "config").([]any)[0].(map[string]any)["subnet"])
	assert.Equal(t, "10.128.1.0/24", lookup(t, doc, "networks", "net_ix_ix100", "ipam", "config").([]any)[0].(map[string]any)["subnet"])
	// bridge networks keep their real prefix and bare name
	assert.Equal(t, "172.31.0.0/16", lookup(t, doc, "networks", "br0", "ipam", "config").([]any)[0].(map[string]any)["subnet"])
	assert.Equal(t, "1500", lookup(t, doc, "networks", "br0", "driver_opts", "com.docker.network.driver.mtu"))

	router := "rnode_150_router0"
	assert.Equal(t, "10.128.0.2", lookup(t, doc, "services", router, "networks", "net_150_net0", "ipv4_address"))
	assert.Equal(t, "10.128.1.2", lookup(t, doc, "services", router, "networks", "net_ix_ix100", "ipv4_address"))
	assert.Equal(t, "172.31.0.2", lookup(t, doc, "services", router, "networks", "br0", "ipv4_address"))
	assert.Equal(t, "10.128.0.3", lookup(t, doc, "services", "hnode_150_web", "networks", "net_150_net0", "ipv4_address"))
	assert.Equal(t, "10.128.1.3", lookup(t, doc, "services", "rs_ix_ix100", "networks", "net_ix_ix100", "ipv4_address"))

	// labels carry the real addresses
	assert.Equal(t, "10.150.0.254/24", lookup(t, doc, "services", router, "labels", labelPrefix+"net.0.address"))

	table := readFile(t, filepath.Join(out, router), rewrite.MappingPath)
	assert.Equal(t, "10.128.0.2/24,10.150.0.254/24\n10.128.1.2/24,10.100.0.150/24\n", table)

	start := readFile(t, filepath.Join(out, router), StartScriptPath)
	assert.True(t, strings.HasPrefix(start, "#!/bin/bash\nchmod +x /replace_address.sh\n/replace_address.sh\nbird -d &\n"), start)
	assert.Equal(t, rewrite.Script(AgentPath, rewrite.MappingPath), readFile(t, filepath.Join(out, router), rewrite.ScriptPath))
}

func TestCompileSelfManagedReplaysRewrite(t *testing.T) {
	out := compile(t, testOptions(t, true), sampleRegistry(t))
	f, err := os.Open(filepath.Join(out, "hnode_150_web", stagedName(rewrite.MappingPath)))
	require.NoError(t, err)
	defer f.Close()
	m, err := rewrite.Parse(f)
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())

	to, ok := m.Lookup("10.128.0.3/24")
	require.True(t, ok)
	assert.Equal(t, "10.150.0.71/24", to.String())
	_, ok = m.Lookup("172.31.0.2/16")
	assert.False(t, ok)
}

func TestCompileRegular(t *testing.T) {
	out := compile(t, testOptions(t, false), sampleRegistry(t))
	doc := readCompose(t, out)

	assert.Equal(t, "10.150.0.0/24", lookup(t, doc, "networks", "net_150_net0", "ipam", "config").([]any)[0].(map[string]any)["subnet"])
	assert.Equal(t, "10.150.0.71", lookup(t, doc, "services", "hnode_150_web", "networks", "net_150_net0", "ipv4_address"))

	_, err := os.Stat(filepath.Join(out, "hnode_150_web", stagedName(rewrite.MappingPath)))
	assert.True(t, os.IsNotExist(err))

	web := lookup(t, doc, "services", "hnode_150_web").(map[string]any)
	assert.Equal(t, "./hnode_150_web", web["build"])
	assert.Equal(t, "as150h-web-10.150.0.71", web["container_name"])
	assert.Equal(t, true, web["privileged"])
	assert.Equal(t, []any{"ALL"}, web["cap_add"])
	assert.Equal(t, []any{"8080:80/tcp"}, web["ports"])
	assert.Equal(t, []any{
		map[string]any{"type": "bind", "source": "/tmp/srv", "target": "/srv"},
		"/var/lib/data",
	}, web["volumes"])
	assert.Equal(t, "Host", lookup(t, web, "labels", labelPrefix+"role"))
	assert.Equal(t, "150", lookup(t, web, "labels", labelPrefix+"asn"))

	rs := lookup(t, doc, "services", "rs_ix_ix100").(map[string]any)
	assert.Equal(t, "as100rs-ix100-10.100.0.100", rs["container_name"])
	assert.Equal(t, "global", lookup(t, doc, "networks", "net_ix_ix100", "labels", labelPrefix+"type"))
	assert.Equal(t, "LAN", lookup(t, doc, "networks", "net_150_net0", "labels", labelPrefix+"displayname"))
}

func TestComposeKeepsRegistrationOrder(t *testing.T) {
	out := compile(t, testOptions(t, false), sampleRegistry(t))
	b, err := os.ReadFile(filepath.Join(out, composeFileName))
	require.NoError(t, err)

	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal(b, &doc))
	top := doc.Content[0]
	keys := func(m *yaml.Node) []string {
		var ks []string
		for i := 0; i < len(m.Content); i += 2 {
			ks = append(ks, m.Content[i].Value)
		}
		return ks
	}
	assert.Equal(t, []string{"version", "services", "networks"}, keys(top))
	assert.Equal(t, []string{"rnode_150_router0", "hnode_150_web", "rs_ix_ix100"}, keys(top.Content[3]))
	assert.Equal(t, []string{"net_150_net0", "net_ix_ix100", "br0"}, keys(top.Content[5]))
}

func TestDockerfile(t *testing.T) {
	out := compile(t, testOptions(t, true), sampleRegistry(t))
	b, err := os.ReadFile(filepath.Join(out, "rnode_150_router0", dockerfileName))
	require.NoError(t, err)
	df := string(b)

	assert.True(t, strings.HasPrefix(df, "FROM ubuntu:20.04\n"))
	assert.Contains(t, df, "RUN apt-get install -y --no-install-recommends jq tcpdump\n"+
		"RUN apt-get install -y --no-install-recommends bird2 iproute2\n"+
		"RUN mkdir -p /run/bird\n")
	for _, p := range []string{rewrite.ScriptPath, rewrite.MappingPath, StartScriptPath, SnifferShimPath, WorkerShimPath, AgentPath, "/etc/bird/bird.conf"} {
		assert.Contains(t, df, "COPY "+stagedName(p)+" "+p+"\n")
	}
	assert.Contains(t, df, "RUN chmod +x /start.sh\nRUN chmod +x /seedemu_sniffer\nRUN chmod +x /seedemu_worker\nRUN chmod +x /usr/local/bin/emuc\n")
	assert.True(t, strings.HasSuffix(df, "CMD [\"/start.sh\"]\n"))

	agent, err := os.ReadFile(filepath.Join(out, "rnode_150_router0", stagedName(AgentPath)))
	require.NoError(t, err)
	assert.Equal(t, "\x7fELF agent", string(agent))
	assert.Equal(t, "#!/bin/sh\nexec /usr/local/bin/emuc worker \"$@\"\n", readFile(t, filepath.Join(out, "rnode_150_router0"), WorkerShimPath))
}

func TestCompileClient(t *testing.T) {
	opts := testOptions(t, false)
	opts.ClientEnabled = true
	opts.ClientPort = 8888
	doc := readCompose(t, compile(t, opts, sampleRegistry(t)))
	client := lookup(t, doc, "services", "seedsim-client").(map[string]any)
	assert.Equal(t, DefaultClientImage, client["image"])
	assert.Equal(t, []any{"8888:8080/tcp"}, client["ports"])
}

func TestNodeBeforeNetworkFailsFast(t *testing.T) {
	c, err := New(testOptions(t, true))
	require.NoError(t, err)
	net := &topology.Network{Scope: "2", Name: "n", Type: topology.NetworkLocal, Prefix: netip.MustParsePrefix("10.2.0.0/24")}
	node := &topology.Node{Scope: "2", Name: "h", ASN: 2, Role: topology.RoleHost,
		Interfaces: []topology.Interface{{Net: net, Address: netip.MustParseAddr("10.2.0.1")}}}

	err = c.compileNode(node, t.TempDir())
	assert.ErrorIs(t, err, ErrMissingDummyState)
	assert.Nil(t, net.Dummy, "no lazy allocation")
}

func TestNetworkExhausted(t *testing.T) {
	opts := testOptions(t, true)
	opts.DummyNetworksMask = 30
	reg := topology.NewRegistry()
	net := &topology.Network{Scope: "2", Name: "n", Type: topology.NetworkLocal, Prefix: netip.MustParsePrefix("10.2.0.0/24"), MTU: 1500}
	require.NoError(t, reg.Register(net))
	for _, h := range []string{"a", "b"} {
		require.NoError(t, reg.Register(&topology.Node{Scope: "2", Name: h, ASN: 2, Role: topology.RoleHost,
			Interfaces: []topology.Interface{{Net: net, Address: netip.MustParseAddr("10.2.0.9")}}}))
	}
	c, err := New(opts)
	require.NoError(t, err)
	err = c.Compile(reg, t.TempDir())
	assert.ErrorIs(t, err, addrpool.ErrNetworkExhausted)
	assert.ErrorContains(t, err, "hnode_2_b")
}

func TestPoolExhausted(t *testing.T) {
	opts := testOptions(t, true)
	opts.DummyNetworksPool = "10.128.0.0/24"
	opts.DummyNetworksMask = 24
	reg := topology.NewRegistry()
	for _, n := range []string{"a", "b"} {
		require.NoError(t, reg.Register(&topology.Network{Scope: "2", Name: n, Type: topology.NetworkLocal,
			Prefix: netip.MustParsePrefix("10.2.0.0/24"), MTU: 1500}))
	}
	c, err := New(opts)
	require.NoError(t, err)
	out := t.TempDir()
	assert.ErrorIs(t, c.Compile(reg, out), addrpool.ErrPoolExhausted)
	_, err = os.Stat(filepath.Join(out, composeFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestUnknownNodeRole(t *testing.T) {
	reg := topology.NewRegistry()
	net := &topology.Network{Scope: "2", Name: "n", Type: topology.NetworkLocal, Prefix: netip.MustParsePrefix("10.2.0.0/24"), MTU: 1500}
	require.NoError(t, reg.Register(net))
	require.NoError(t, reg.Register(&topology.Node{Scope: "2", Name: "x", ASN: 2, Role: "toaster",
		Interfaces: []topology.Interface{{Net: net, Address: netip.MustParseAddr("10.2.0.1")}}}))
	c, err := New(testOptions(t, false))
	require.NoError(t, err)
	assert.ErrorIs(t, c.Compile(reg, t.TempDir()), ErrUnknownNodeRole)
}

func TestNoInterfaces(t *testing.T) {
	reg := topology.NewRegistry()
	require.NoError(t, reg.Register(&topology.Node{Scope: "2", Name: "lonely", ASN: 2, Role: topology.RoleHost}))
	c, err := New(testOptions(t, false))
	require.NoError(t, err)
	assert.ErrorIs(t, c.Compile(reg, t.TempDir()), ErrNoInterfaces)
}

func TestCompileLogsRunID(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	logrus.SetLevel(logrus.InfoLevel)

	compile(t, testOptions(t, false), sampleRegistry(t))
	require.NotEmpty(t, hook.AllEntries())
	run := hook.AllEntries()[0].Data["run"]
	assert.NotEmpty(t, run)
	for _, e := range hook.AllEntries() {
		assert.Equal(t, run, e.Data["run"])
	}
}
