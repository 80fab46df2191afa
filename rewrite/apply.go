package rewrite

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

// AddrManager is the subset of *netlink.Handle the applier needs.
type AddrManager interface {
	LinkList() ([]netlink.Link, error)
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
	AddrDel(link netlink.Link, addr *netlink.Addr) error
	AddrAdd(link netlink.Link, addr *netlink.Addr) error
}

// Rewrite records one replaced address.
type Rewrite struct {
	Link string
	From string
	To   string
}

type Applier struct {
	addrs AddrManager
}

func NewApplier(addrs AddrManager) *Applier {
	return &Applier{addrs: addrs}
}

// Apply replaces every live address found on the dummy side of m with its
// real counterpart. Addresses without an entry are left alone. Failures on
// one address do not stop the others; they are returned joined.
func (a *Applier) Apply(m *Mapping) ([]Rewrite, error) {
	links, err := a.addrs.LinkList()
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	var done []Rewrite
	var errs []error
	for _, link := range links {
		name := link.Attrs().Name
		addrs, err := a.addrs.AddrList(link, netlink.FAMILY_V4)
		if err != nil {
			errs = append(errs, fmt.Errorf("list addresses of %s: %w", name, err))
			continue
		}
		for _, addr := range addrs {
			if addr.IPNet == nil {
				continue
			}
			current := addr.IPNet.String()
			to, ok := m.Lookup(current)
			if !ok {
				continue
			}
			next, err := netlink.ParseAddr(to.String())
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", to, err))
				continue
			}
			if err := a.addrs.AddrDel(link, &addr); err != nil {
				errs = append(errs, fmt.Errorf("del %s dev %s: %w", current, name, err))
				continue
			}
			if err := a.addrs.AddrAdd(link, next); err != nil {
				errs = append(errs, fmt.Errorf("add %s dev %s: %w", to, name, err))
				continue
			}
			logrus.Infof("%s: %s -> %s", name, current, to)
			done = append(done, Rewrite{Link: name, From: current, To: to.String()})
		}
	}
	return done, errors.Join(errs...)
}
