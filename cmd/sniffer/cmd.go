package sniffer

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/seedemu/emuc/cmd/internal/cli"
	"github.com/seedemu/emuc/sniffer"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var Cmd *cobra.Command

func init() {
	Cmd = &cobra.Command{
		Use:     "sniffer",
		Short:   "Capture packets with the filter read from each stdin line",
		Args:    cobra.NoArgs,
		PreRunE: cli.InitLogging,
		RunE:    startAction,
	}
	Cmd.Flags().String("tcpdump", sniffer.DefaultTcpdump, "tcpdump binary")
}

func startAction(cmd *cobra.Command, args []string) error {
	tcpdump, err := cmd.Flags().GetString("tcpdump")
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	s := sniffer.New(&sniffer.TcpdumpCapturer{Path: tcpdump, Stdout: os.Stdout, Stderr: os.Stderr})
	if err := s.Run(ctx, os.Stdin); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
