// Package priority ranks query names against a configured, ordered
// priority list. Listed names receive negative priorities so that they
// always sort ahead of names ranked by arrival order, which are
// non-negative.
package priority

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/wire"
)

// CanonicalQName upper-cases name and ensures it ends with ".".
// Canonicalising an already canonical name returns it unchanged.
// Label bytes that are not valid UTF-8 are kept as they are, so names
// differing only in such bytes stay distinct.
func CanonicalQName(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 1)
	for i := 0; i < len(name); {
		r, size := utf8.DecodeRuneInString(name[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteByte(name[i])
		} else {
			b.WriteRune(unicode.ToUpper(r))
		}
		i += size
	}
	if !strings.HasSuffix(name, ".") {
		b.WriteByte('.')
	}
	return b.String()
}

// Resolver maps canonical query names to priorities. It is immutable
// after construction and safe for concurrent use.
type Resolver struct {
	priorities map[string]int64
	ordered    []string
}

// NewResolver builds a Resolver from names in precedence order. The
// entry at index i of a list of size S receives priority -(S - i). A
// name listed twice keeps its first position.
func NewResolver(names []string) *Resolver {
	r := &Resolver{priorities: make(map[string]int64, len(names))}
	size := int64(len(names))
	for i, name := range names {
		canonical := CanonicalQName(name)
		if _, dup := r.priorities[canonical]; dup {
			continue
		}
		r.priorities[canonical] = -(size - int64(i))
		r.ordered = append(r.ordered, canonical)
	}
	return r
}

// Names returns the canonical priority list in precedence order.
func (r *Resolver) Names() []string {
	return append([]string(nil), r.ordered...)
}

// Priority returns the priority of qname, or fallback when it is not
// listed.
func (r *Resolver) Priority(qname string, fallback int64) int64 {
	if p, ok := r.priorities[CanonicalQName(qname)]; ok {
		return p
	}
	return fallback
}

// ProtocolDataPriority returns the most favourable priority among all
// names referenced by data's match criteria, or fallback when data has
// none. A name that cannot be read is a FormatError.
func (r *Resolver) ProtocolDataPriority(data mdnsoffload.ProtocolData, fallback int64) (int64, error) {
	best := fallback
	for i, mc := range data.MatchCriteria {
		name, err := wire.ExtractFullName(data.RawPacket, int(mc.NameOffset))
		if err != nil {
			return 0, err
		}
		p := r.Priority(name, fallback)
		if i == 0 || p < best {
			best = p
		}
	}
	return best, nil
}
