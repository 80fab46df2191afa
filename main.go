package main

import (
	"os"

	"github.com/seedemu/emuc/cmd/compile"
	"github.com/seedemu/emuc/cmd/ctl"
	rewrite_cmd "github.com/seedemu/emuc/cmd/rewrite"
	sniffer_cmd "github.com/seedemu/emuc/cmd/sniffer"
	worker_cmd "github.com/seedemu/emuc/cmd/worker"
	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:          "emuc",
		Short:        "Network emulation compiler and in-container control agents",
		SilenceUsage: true,
	}

	cmd.AddCommand(compile.Cmd)
	cmd.AddCommand(worker_cmd.Cmd)
	cmd.AddCommand(sniffer_cmd.Cmd)
	cmd.AddCommand(rewrite_cmd.Cmd)
	cmd.AddCommand(ctl.Cmd)

	cmd.PersistentFlags().String("log-level", "info", "logrus logger level")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
