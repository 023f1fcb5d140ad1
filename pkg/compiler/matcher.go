// sieve/pkg/compiler/matcher.go

package compiler

import (
	"net/netip"
	"sort"
)

// byteSearcher is a precompiled substring matcher using the
// Boyer-Moore-Horspool skip table. Built once per `contains` literal at
// parse time and reused for every evaluation, giving sub-linear average
// search over long inputs.
type byteSearcher struct {
	needle []byte
	skip   [256]int
}

func newByteSearcher(needle []byte) *byteSearcher {
	s := &byteSearcher{needle: needle}
	n := len(needle)
	for i := range s.skip {
		s.skip[i] = n
	}
	for i := 0; i < n-1; i++ {
		s.skip[needle[i]] = n - 1 - i
	}
	return s
}

func (s *byteSearcher) contains(haystack []byte) bool {
	n := len(s.needle)
	if n == 0 {
		return true
	}
	last := n - 1
	for i := last; i < len(haystack); {
		j := last
		k := i
		for j >= 0 && haystack[k] == s.needle[j] {
			j--
			k--
		}
		if j < 0 {
			return true
		}
		i += s.skip[haystack[i]]
	}
	return false
}

// cidrSet is a sorted set of masked network prefixes. Membership means
// the address is contained in any listed network.
type cidrSet struct {
	prefixes []netip.Prefix
}

// newCidrSet masks, sorts and dedups the given prefixes. Sorting by
// network address lets membership binary-search to the candidate region
// instead of scanning the whole set.
func newCidrSet(prefixes []netip.Prefix) *cidrSet {
	masked := make([]netip.Prefix, 0, len(prefixes))
	for _, p := range prefixes {
		masked = append(masked, p.Masked())
	}
	sort.Slice(masked, func(i, j int) bool {
		if c := masked[i].Addr().Compare(masked[j].Addr()); c != 0 {
			return c < 0
		}
		return masked[i].Bits() < masked[j].Bits()
	})
	out := masked[:0]
	for i, p := range masked {
		if i == 0 || p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return &cidrSet{prefixes: out}
}

func (s *cidrSet) len() int { return len(s.prefixes) }

// contains reports whether addr falls inside any prefix. Prefixes with
// a network address above addr cannot contain it, so only the region
// at or below the insertion point is checked, walking backwards until
// the address family changes.
func (s *cidrSet) contains(addr netip.Addr) bool {
	i := sort.Search(len(s.prefixes), func(i int) bool {
		return s.prefixes[i].Addr().Compare(addr) > 0
	})
	for j := i - 1; j >= 0; j-- {
		p := s.prefixes[j]
		if p.Addr().Is4() != addr.Is4() {
			break
		}
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
