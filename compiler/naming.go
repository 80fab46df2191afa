package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/seedemu/emuc/topology"
)

func contextPrefix(scope, typ string) string {
	return typ + "_" + scope + "_"
}

func nodeID(n *topology.Node) string {
	scope, typ, name := n.RegistryInfo()
	return contextPrefix(scope, typ) + name
}

func networkID(n *topology.Network) string {
	if n.Type == topology.NetworkBridge {
		return n.Name
	}
	scope, typ, name := n.RegistryInfo()
	return contextPrefix(scope, typ) + name
}

// roleCode is the {role} value of the naming scheme.
func roleCode(r topology.Role) (string, error) {
	switch r {
	case topology.RoleHost, topology.RoleServiceWorker:
		return "h", nil
	case topology.RoleRouter:
		return "r", nil
	case topology.RoleRouteServer:
		return "rs", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownNodeRole, r)
	}
}

func containerName(scheme string, n *topology.Node) (string, error) {
	role, err := roleCode(n.Role)
	if err != nil {
		return "", err
	}
	if len(n.Interfaces) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoInterfaces, nodeID(n))
	}
	return strings.NewReplacer(
		"{asn}", strconv.Itoa(n.ASN),
		"{role}", role,
		"{name}", n.Name,
		"{primaryIp}", n.Interfaces[0].Address.String(),
	).Replace(scheme), nil
}
