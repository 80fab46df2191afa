package rewrite

import (
	"os"

	"github.com/seedemu/emuc/cmd/internal/cli"
	"github.com/seedemu/emuc/rewrite"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vishvananda/netlink"
)

var Cmd *cobra.Command

func init() {
	Cmd = &cobra.Command{
		Use:     "rewrite",
		Short:   "Replace dummy interface addresses with the real ones",
		Args:    cobra.NoArgs,
		PreRunE: cli.InitLogging,
		RunE:    startAction,
	}
	Cmd.Flags().String("map", rewrite.MappingPath, "dummy to real address table")
}

func startAction(cmd *cobra.Command, args []string) error {
	path, err := cmd.Flags().GetString("map")
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	m, err := rewrite.Parse(f)
	if err != nil {
		return err
	}

	h, err := netlink.NewHandle()
	if err != nil {
		return err
	}
	defer h.Close()

	done, err := rewrite.NewApplier(h).Apply(m)
	logrus.Infof("%d of %d addresses replaced", len(done), m.Len())
	return err
}
