// Package worker serves interface and BGP session commands received on a
// container's control stream.
package worker

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/seedemu/emuc/control"
	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

const (
	NoSuchCommand = "no such command."
	InvalidID     = "invalid request id."
	DefaultBirdc  = "birdc"
)

// LinkManager is the subset of *netlink.Handle the worker needs.
type LinkManager interface {
	LinkList() ([]netlink.Link, error)
	LinkSetUp(link netlink.Link) error
	LinkSetDown(link netlink.Link) error
}

type Options struct {
	Links  LinkManager
	Runner Runner
	Birdc  string
}

type Worker struct {
	links  LinkManager
	runner Runner
	birdc  string
}

func New(opts Options) *Worker {
	w := &Worker{links: opts.Links, runner: opts.Runner, birdc: opts.Birdc}
	if w.runner == nil {
		w.runner = ExecRunner{}
	}
	if w.birdc == "" {
		w.birdc = DefaultBirdc
	}
	return w
}

// Run handles requests from r one at a time until end of stream or until
// ctx is done, writing one framed response per request to out. Oversized
// requests are cut to MaxLineBytes and still answered.
func (w *Worker) Run(ctx context.Context, r io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var werr error
	err := control.ReadLines(ctx, r, control.MaxLineBytes, func(line control.Line) {
		if werr != nil {
			return
		}
		if line.Truncated {
			logrus.Warnf("request truncated to %d bytes", len(line.Text))
		}
		resp := w.handleLine(ctx, line.Text)
		if err := control.WriteResponse(out, resp); err != nil {
			werr = fmt.Errorf("write response %d: %w", resp.ID, err)
			cancel()
		}
	})
	if werr != nil {
		return werr
	}
	return err
}

func (w *Worker) handleLine(ctx context.Context, line string) control.Response {
	req, err := control.ParseRequest(line)
	if err != nil {
		logrus.Warn(err)
		return control.Response{ID: 0, ReturnValue: 1, Output: InvalidID}
	}
	cmd := ParseCommand(req.Command)
	logrus.Debugf("request %d: %s", req.ID, cmd.Kind)
	resp := w.Handle(ctx, cmd)
	resp.ID = req.ID
	return resp
}

// Handle executes one command. The returned response has no id.
func (w *Worker) Handle(ctx context.Context, cmd Command) control.Response {
	switch cmd.Kind {
	case NetDown:
		return w.setLinks(false)
	case NetUp:
		return w.setLinks(true)
	case NetStatus:
		return w.netStatus()
	case BirdListPeer:
		return w.birdListPeer(ctx)
	case BirdPeerUp:
		return w.bird(ctx, "en", cmd.Peer)
	case BirdPeerDown:
		return w.bird(ctx, "dis", cmd.Peer)
	default:
		return control.Response{ReturnValue: 1, Output: NoSuchCommand}
	}
}

func (w *Worker) setLinks(up bool) control.Response {
	links, err := w.links.LinkList()
	if err != nil {
		return control.Response{ReturnValue: 1, Output: err.Error()}
	}
	state, set := "down", w.links.LinkSetDown
	if up {
		state, set = "up", w.links.LinkSetUp
	}
	var failures []string
	for _, link := range links {
		if err := set(link); err != nil {
			failures = append(failures, fmt.Sprintf("ip link set %s %s: %s", link.Attrs().Name, state, err))
		}
	}
	if len(failures) > 0 {
		return control.Response{ReturnValue: 1, Output: strings.Join(failures, "\n")}
	}
	return control.Response{}
}

func (w *Worker) netStatus() control.Response {
	links, err := w.links.LinkList()
	if err != nil {
		return control.Response{ReturnValue: 1, Output: err.Error()}
	}
	for _, link := range links {
		if link.Attrs().Flags&net.FlagUp != 0 {
			return control.Response{Output: "up"}
		}
	}
	return control.Response{Output: "down"}
}

func (w *Worker) birdListPeer(ctx context.Context) control.Response {
	resp := w.bird(ctx, "s", "p")
	var peers []string
	for _, line := range strings.Split(resp.Output, "\n") {
		if strings.Contains(line, "BGP") {
			peers = append(peers, line)
		}
	}
	resp.Output = strings.Join(peers, "\n")
	return resp
}

func (w *Worker) bird(ctx context.Context, args ...string) control.Response {
	out, code, err := w.runner.Run(ctx, w.birdc, args...)
	if err != nil {
		return control.Response{ReturnValue: 127, Output: err.Error()}
	}
	return control.Response{ReturnValue: code, Output: strings.TrimRight(string(out), "\n")}
}
