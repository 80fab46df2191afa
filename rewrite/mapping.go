// Package rewrite builds the dummy to real address table of a node and
// applies it inside the running container.
package rewrite

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strings"
)

var ErrDuplicateDummy = errors.New("dummy address already mapped")

// Entry maps the address docker assigns to the address the topology wants.
type Entry struct {
	Dummy netip.Prefix
	Real  netip.Prefix
}

func (e Entry) String() string {
	return e.Dummy.String() + "," + e.Real.String()
}

// Mapping is the ordered table of one node, one entry per self-managed
// interface.
type Mapping struct {
	entries []Entry
}

func (m *Mapping) Add(dummy, to netip.Prefix) error {
	for _, e := range m.entries {
		if e.Dummy == dummy {
			return fmt.Errorf("%w: %s", ErrDuplicateDummy, dummy)
		}
	}
	m.entries = append(m.entries, Entry{Dummy: dummy, Real: to})
	return nil
}

func (m *Mapping) Entries() []Entry {
	return m.entries
}

func (m *Mapping) Len() int {
	return len(m.entries)
}

// Lookup matches addr ("address/prefixlen") against the dummy side by
// exact string equality.
func (m *Mapping) Lookup(addr string) (netip.Prefix, bool) {
	for _, e := range m.entries {
		if e.Dummy.String() == addr {
			return e.Real, true
		}
	}
	return netip.Prefix{}, false
}

// MarshalText renders the mapping file: one "dummyCIDR,realCIDR" per line.
func (m *Mapping) MarshalText() ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range m.entries {
		buf.WriteString(e.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Parse reads a mapping file.
func Parse(r io.Reader) (*Mapping, error) {
	m := &Mapping{}
	s := bufio.NewScanner(r)
	lineno := 0
	for s.Scan() {
		lineno++
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		dummyStr, realStr, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("line %d: missing ',' in %q", lineno, line)
		}
		dummy, err := netip.ParsePrefix(strings.TrimSpace(dummyStr))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		to, err := netip.ParsePrefix(strings.TrimSpace(realStr))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		if err := m.Add(dummy, to); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return m, nil
}
