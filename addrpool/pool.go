// Package addrpool hands out the synthetic ("dummy") subnets and host
// addresses used by self-managed networks during container startup.
package addrpool

import (
	"errors"
	"fmt"
	"net/netip"
)

var (
	ErrPoolExhausted    = errors.New("dummy network pool exhausted")
	ErrNetworkExhausted = errors.New("dummy network has no host address left")
	ErrInvalidPool      = errors.New("invalid dummy network pool")
)

// Pool yields the child subnets of a parent block in ascending order.
// A Pool is owned by a single compile run and is not safe for concurrent use.
type Pool struct {
	parent    netip.Prefix
	childBits int
	next      uint64
	count     uint64
}

func NewPool(parent netip.Prefix, childBits int) (*Pool, error) {
	if !parent.IsValid() || !parent.Addr().Is4() {
		return nil, fmt.Errorf("%w: %s is not an IPv4 prefix", ErrInvalidPool, parent)
	}
	if childBits < parent.Bits() || childBits > 30 {
		return nil, fmt.Errorf("%w: mask /%d does not fit in %s (want /%d../30)",
			ErrInvalidPool, childBits, parent, parent.Bits())
	}
	return &Pool{
		parent:    parent.Masked(),
		childBits: childBits,
		count:     uint64(1) << (childBits - parent.Bits()),
	}, nil
}

// Next returns the next unused child subnet.
func (p *Pool) Next() (netip.Prefix, error) {
	if p.next >= p.count {
		return netip.Prefix{}, fmt.Errorf("%w: %s split into /%d", ErrPoolExhausted, p.parent, p.childBits)
	}
	base := addrToUint32(p.parent.Addr()) + uint32(p.next<<(32-p.childBits))
	p.next++
	return netip.PrefixFrom(uint32ToAddr(base), p.childBits), nil
}

// Remaining reports how many subnets can still be handed out.
func (p *Pool) Remaining() uint64 {
	return p.count - p.next
}

func addrToUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func uint32ToAddr(n uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
}
