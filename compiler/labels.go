package compiler

import (
	"strconv"

	"github.com/seedemu/emuc/topology"
)

const labelPrefix = "org.seedsecuritylabs.seedemu.meta."

func setLabel(m *orderedMap, key, value string) {
	m.Set(labelPrefix+key, value)
}

func networkLabels(n *topology.Network) *orderedMap {
	m := newOrderedMap()
	scope, _, name := n.RegistryInfo()
	kind := "local"
	if scope == topology.ScopeIX {
		kind = "global"
	}
	setLabel(m, "type", kind)
	setLabel(m, "scope", scope)
	setLabel(m, "name", name)
	setLabel(m, "prefix", n.Prefix.String())
	if n.DisplayName != "" {
		setLabel(m, "displayname", n.DisplayName)
	}
	if n.Description != "" {
		setLabel(m, "description", n.Description)
	}
	return m
}

var roleLabels = map[string]string{
	topology.TypeHost:          "Host",
	topology.TypeRouter:        "Router",
	topology.TypeServiceWorker: "Emulator Service Worker",
	topology.TypeRouteServer:   "Route Server",
}

func nodeLabels(n *topology.Node) *orderedMap {
	m := newOrderedMap()
	_, typ, name := n.RegistryInfo()
	setLabel(m, "asn", strconv.Itoa(n.ASN))
	setLabel(m, "nodename", name)
	if role, ok := roleLabels[typ]; ok {
		setLabel(m, "role", role)
	}
	if n.DisplayName != "" {
		setLabel(m, "displayname", n.DisplayName)
	}
	if n.Description != "" {
		setLabel(m, "description", n.Description)
	}
	for i, iface := range n.Interfaces {
		setLabel(m, "net."+strconv.Itoa(i)+".name", iface.Net.Name)
		setLabel(m, "net."+strconv.Itoa(i)+".address", iface.Prefix().String())
	}
	return m
}
