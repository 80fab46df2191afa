package ctl

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/seedemu/emuc/cmd/internal/cli"
	"github.com/seedemu/emuc/compiler"
	"github.com/seedemu/emuc/control"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var Cmd *cobra.Command

func init() {
	Cmd = &cobra.Command{
		Use:     "ctl <container> <command>",
		Short:   "Send one control request to the worker of a running node",
		Args:    cobra.ExactArgs(2),
		PreRunE: cli.InitLogging,
		RunE:    startAction,
	}
	Cmd.Flags().Int("id", 1, "request id")
	Cmd.Flags().String("docker", "docker", "docker binary")
}

func startAction(cmd *cobra.Command, args []string) error {
	id, err := cmd.Flags().GetInt("id")
	if err != nil {
		return err
	}
	docker, err := cmd.Flags().GetString("docker")
	if err != nil {
		return err
	}

	c := exec.CommandContext(cmd.Context(), docker, "exec", "-i", args[0], compiler.WorkerShimPath)
	c.Stderr = os.Stderr
	stdin, err := c.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return err
	}
	if err := c.Start(); err != nil {
		return err
	}
	logrus.Debugf("sending %q to %s", args[1], args[0])

	resp, err := control.RoundTrip(stdin, stdout, control.Request{ID: id, Command: args[1]})
	if werr := c.Wait(); err == nil && werr != nil {
		err = fmt.Errorf("%s exec: %w", docker, werr)
	}
	if err != nil {
		return err
	}

	out := resp.Output
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	fmt.Fprint(os.Stdout, out)
	if resp.ReturnValue != 0 {
		os.Exit(resp.ReturnValue)
	}
	return nil
}
