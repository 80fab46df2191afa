package compiler

import (
	"fmt"
	"strings"

	"github.com/seedemu/emuc/topology"
)

// In-container paths of the staged artifacts.
const (
	AgentPath        = "/usr/local/bin/emuc"
	StartScriptPath  = "/start.sh"
	WorkerShimPath   = "/seedemu_worker"
	SnifferShimPath  = "/seedemu_sniffer"
	dockerfileName   = "Dockerfile"
	composeFileName  = "docker-compose.yml"
	dockerfileHeader = `ARG DEBIAN_FRONTEND=noninteractive
RUN apt-get update
RUN apt-get install -y zsh curl
RUN curl -L https://grml.org/zsh/zshrc > /root/.zshrc
RUN echo 'exec zsh' > /root/.bashrc
`
	startScriptFooter = `echo "ready! run 'docker exec -it $HOSTNAME /bin/zsh' to attach to this node" >&2
for f in /proc/sys/net/ipv4/conf/*/rp_filter; do echo 0 > "$f"; done
tail -f /dev/null
`
)

// shim execs the agent subcommand so that tooling can keep running
// /seedemu_worker and /seedemu_sniffer directly.
func shim(subcommand string) string {
	return fmt.Sprintf("#!/bin/sh\nexec %s %s \"$@\"\n", AgentPath, subcommand)
}

// startScript runs the rewrite script (when given), the start commands,
// then keeps the container alive.
func startScript(rewriteScript string, cmds []topology.StartCommand) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	if rewriteScript != "" {
		fmt.Fprintf(&b, "chmod +x %s\n%s\n", rewriteScript, rewriteScript)
	}
	for _, c := range cmds {
		b.WriteString(c.Command)
		if c.Fork {
			b.WriteString(" &")
		}
		b.WriteByte('\n')
	}
	b.WriteString(startScriptFooter)
	return b.String()
}
