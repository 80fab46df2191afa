package sniffer

import (
	"context"
	"io"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

const DefaultTcpdump = "tcpdump"

// Capture is one running packet capture.
type Capture interface {
	Pid() int
	Stop() error
}

type Capturer interface {
	Start(ctx context.Context, filter string) (Capture, error)
}

// TcpdumpCapturer runs tcpdump on all interfaces, writing its output to
// Stdout and Stderr.
type TcpdumpCapturer struct {
	Path   string
	Stdout io.Writer
	Stderr io.Writer
	// Grace is how long Stop waits after SIGTERM before killing.
	Grace time.Duration
}

func (c *TcpdumpCapturer) Start(ctx context.Context, filter string) (Capture, error) {
	path := c.Path
	if path == "" {
		path = DefaultTcpdump
	}
	cmd := exec.CommandContext(ctx, path, "-e", "-i", "any", "-nn", "-p", "-q", filter)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &process{cmd: cmd, grace: c.Grace, done: make(chan struct{})}
	if p.grace == 0 {
		p.grace = 2 * time.Second
	}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type process struct {
	cmd   *exec.Cmd
	grace time.Duration
	done  chan struct{}
	err   error
}

func (p *process) Pid() int {
	return p.cmd.Process.Pid
}

// Stop terminates the process and waits until it is reaped.
func (p *process) Stop() error {
	select {
	case <-p.done:
		return p.err
	default:
	}
	if err := p.cmd.Process.Signal(unix.SIGTERM); err != nil {
		<-p.done
		return err
	}
	select {
	case <-p.done:
	case <-time.After(p.grace):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	return nil
}
