// Package sniffer restarts a packet capture every time a new filter
// expression arrives on its control stream.
package sniffer

import (
	"context"
	"io"
	"strings"

	"github.com/seedemu/emuc/control"
	"github.com/sirupsen/logrus"
)

const MaxFilterBytes = 64 * 1024

type Sniffer struct {
	capturer Capturer
	current  Capture
}

func New(capturer Capturer) *Sniffer {
	return &Sniffer{capturer: capturer}
}

// Run reads one filter per line until end of stream or until ctx is done.
// At most one capture is alive at any time; an empty line stops capturing
// and so does a filter longer than MaxFilterBytes. The live capture, if
// any, is stopped before Run returns.
func (s *Sniffer) Run(ctx context.Context, r io.Reader) error {
	defer s.stop()

	return control.ReadLines(ctx, r, MaxFilterBytes, func(line control.Line) {
		s.stop()
		filter := strings.TrimSpace(line.Text)
		if line.Truncated {
			logrus.Warnf("filter longer than %d bytes dropped", MaxFilterBytes)
			return
		}
		if filter == "" {
			return
		}
		c, err := s.capturer.Start(ctx, filter)
		if err != nil {
			logrus.Warnf("start capture %q: %s", filter, err)
			return
		}
		logrus.Debugf("capture %q running as pid %d", filter, c.Pid())
		s.current = c
	})
}

func (s *Sniffer) stop() {
	if s.current == nil {
		return
	}
	if err := s.current.Stop(); err != nil {
		logrus.Debugf("stop capture pid %d: %s", s.current.Pid(), err)
	}
	s.current = nil
}
