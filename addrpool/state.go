package addrpool

import (
	"fmt"
	"net/netip"
)

// FirstHostIndex is the first host index handed out from a dummy subnet.
// Index 0 is the network address and index 1 the gateway address.
const FirstHostIndex = 2

// DummyState is the allocation cursor of one self-managed network.
// It lives as long as the compile run that created it.
type DummyState struct {
	Prefix   netip.Prefix
	NextHost uint32
}

func NewDummyState(prefix netip.Prefix) *DummyState {
	return &DummyState{Prefix: prefix.Masked(), NextHost: FirstHostIndex}
}

// Allocate returns the next host address together with the dummy prefix
// length and advances the cursor by one. Indices run from FirstHostIndex
// to size-2, so a /24 gives out .2 through .254 and never the broadcast.
func (s *DummyState) Allocate() (netip.Prefix, error) {
	size := uint64(1) << (32 - s.Prefix.Bits())
	if uint64(s.NextHost) >= size-1 {
		return netip.Prefix{}, fmt.Errorf("%w: %s", ErrNetworkExhausted, s.Prefix)
	}
	addr := uint32ToAddr(addrToUint32(s.Prefix.Addr()) + s.NextHost)
	s.NextHost++
	return netip.PrefixFrom(addr, s.Prefix.Bits()), nil
}
