package worker

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/seedemu/emuc/cmd/internal/cli"
	"github.com/seedemu/emuc/worker"
	"github.com/spf13/cobra"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

var Cmd *cobra.Command

func init() {
	Cmd = &cobra.Command{
		Use:     "worker",
		Short:   "Serve node control requests on stdin/stdout",
		Args:    cobra.NoArgs,
		PreRunE: cli.InitLogging,
		RunE:    startAction,
	}
	Cmd.Flags().String("birdc", worker.DefaultBirdc, "bird control client")
}

func startAction(cmd *cobra.Command, args []string) error {
	birdc, err := cmd.Flags().GetString("birdc")
	if err != nil {
		return err
	}
	h, err := netlink.NewHandle()
	if err != nil {
		return err
	}
	defer h.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	w := worker.New(worker.Options{Links: h, Birdc: birdc})
	if err := w.Run(ctx, os.Stdin, os.Stdout); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
