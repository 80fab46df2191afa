package compile

import (
	"github.com/seedemu/emuc/cmd/internal/cli"
	"github.com/seedemu/emuc/compiler"
	"github.com/seedemu/emuc/topology"
	"github.com/spf13/cobra"
)

var Cmd *cobra.Command

func init() {
	Cmd = &cobra.Command{
		Use:     "compile",
		Short:   "Compile a topology into a docker compose deployment",
		Args:    cobra.NoArgs,
		PreRunE: cli.InitLogging,
		RunE:    startAction,
	}
	setFlags(Cmd)
}

func setFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("topology", "t", "", "topology file (yaml)")
	cmd.Flags().StringP("output", "o", "./output", "output directory")
	cmd.Flags().StringP("config", "c", "", "compiler options file (yaml)")
	cmd.Flags().Bool("self-managed", false, "use dummy addresses in docker and rewrite them at boot")
	cmd.Flags().Bool("client", false, "add the seedemu client service")

	cmd.MarkFlagRequired("topology")
}

func startAction(cmd *cobra.Command, args []string) error {
	options, err := processOptions(cmd)
	if err != nil {
		return err
	}
	topo, err := cmd.Flags().GetString("topology")
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	reg, err := topology.LoadFile(topo)
	if err != nil {
		return err
	}
	c, err := compiler.New(options)
	if err != nil {
		return err
	}
	return c.Compile(reg, output)
}

func processOptions(cmd *cobra.Command) (options compiler.Options, err error) {
	options = compiler.DefaultOptions()
	config, err := cmd.Flags().GetString("config")
	if err != nil {
		return
	}
	if config != "" {
		if options, err = compiler.LoadOptions(config); err != nil {
			return
		}
	}
	if cmd.Flags().Changed("self-managed") {
		if options.SelfManagedNetwork, err = cmd.Flags().GetBool("self-managed"); err != nil {
			return
		}
	}
	if cmd.Flags().Changed("client") {
		options.ClientEnabled, err = cmd.Flags().GetBool("client")
	}
	return
}
