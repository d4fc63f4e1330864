// Package wire reads the metadata the offload engine needs out of raw
// answer-only response packets: the owner name and type of each answer
// record. It is deliberately narrower than a full DNS decoder because
// callers need byte offsets into the packet, which a decoder discards.
//
// All functions are pure and safe for concurrent use.
package wire

import (
	"encoding/binary"
	"strings"

	"github.com/frobware/go-mdnsoffload"
)

const (
	offsetQueryCount      = 4
	offsetAnswerCount     = 6
	offsetAuthorityCount  = 8
	offsetAdditionalCount = 10
	offsetDataSection     = 12

	// class (2) + ttl (4)
	classAndTTLSize = 6

	labelMask   = 0b1100_0000
	pointerBits = 0b1100_0000
	offsetMask  = 0x3fff

	// RFC 1035 section 3.1, counting length octets and the root label.
	maxNameLength = 255
	// A name of maxNameLength holds at most 127 labels, each of which
	// may be reached through one pointer.
	maxPointerHops = 128
)

// cursor walks a packet and reports every bounds violation as a
// FormatError carrying the offending offset.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) fail(reason string) error {
	return mdnsoffload.FormatError{Offset: c.pos, Reason: reason}
}

func (c *cursor) seek(pos int) error {
	if pos < 0 {
		return c.fail("negative offset")
	}
	c.pos = pos
	return nil
}

func (c *cursor) peek() (byte, error) {
	if c.pos < 0 || c.pos >= len(c.buf) {
		return 0, c.fail("not enough data")
	}
	return c.buf[c.pos], nil
}

func (c *cursor) uint16At(pos int) (uint16, error) {
	if pos < 0 || pos+1 >= len(c.buf) {
		return 0, mdnsoffload.FormatError{Offset: pos, Reason: "not enough data"}
	}
	return binary.BigEndian.Uint16(c.buf[pos:]), nil
}

func (c *cursor) readUint16() (uint16, error) {
	v, err := c.uint16At(c.pos)
	if err != nil {
		return 0, err
	}
	c.pos += 2
	return v, nil
}

func (c *cursor) skip(n int) error {
	if c.pos+n > len(c.buf) {
		return c.fail("not enough data")
	}
	c.pos += n
	return nil
}

// label consumes a plain label at the cursor and returns its text.
func (c *cursor) label() (string, error) {
	size, err := c.peek()
	if err != nil {
		return "", err
	}
	start := c.pos + 1
	end := start + int(size)
	if end > len(c.buf) {
		return "", c.fail("not enough data")
	}
	c.pos = end
	return string(c.buf[start:end]), nil
}

// pointer consumes a compression pointer at the cursor and returns the
// offset it refers to.
func (c *cursor) pointer() (int, error) {
	v, err := c.readUint16()
	if err != nil {
		return 0, err
	}
	return int(v & offsetMask), nil
}

type labelKind int

const (
	kindRoot labelKind = iota
	kindLabel
	kindPointer
	kindReserved
)

func classify(b byte) labelKind {
	switch {
	case b == 0:
		return kindRoot
	case b&labelMask == 0:
		return kindLabel
	case b&labelMask == pointerBits:
		return kindPointer
	default:
		return kindReserved
	}
}

// ExtractFullName reads the name starting at offset, following
// compression pointers, and returns its labels joined and terminated
// by ".". A name whose encoded length would exceed 255 bytes, or that
// follows more pointers than such a name could contain, is rejected.
func ExtractFullName(packet []byte, offset int) (string, error) {
	c := &cursor{buf: packet}
	if err := c.seek(offset); err != nil {
		return "", err
	}

	var b strings.Builder
	encoded := 1 // root label
	hops := 0
	for {
		lead, err := c.peek()
		if err != nil {
			return "", err
		}
		switch classify(lead) {
		case kindRoot:
			return b.String(), nil
		case kindLabel:
			encoded += 1 + int(lead)
			if encoded > maxNameLength {
				return "", c.fail("name too long")
			}
			l, err := c.label()
			if err != nil {
				return "", err
			}
			b.WriteString(l)
			b.WriteByte('.')
		case kindPointer:
			hops++
			if hops > maxPointerHops {
				return "", c.fail("compression pointer loop")
			}
			target, err := c.pointer()
			if err != nil {
				return "", err
			}
			if err := c.seek(target); err != nil {
				return "", err
			}
		default:
			return "", c.fail("reserved label type")
		}
	}
}

// ExtractMatchCriteria returns one MatchCriteria per answer record, in
// record order. The packet must carry answers only and must be consumed
// exactly.
func ExtractMatchCriteria(packet []byte) ([]mdnsoffload.MatchCriteria, error) {
	c := &cursor{buf: packet}

	var counts [4]uint16
	for i, off := range []int{offsetQueryCount, offsetAnswerCount, offsetAuthorityCount, offsetAdditionalCount} {
		v, err := c.uint16At(off)
		if err != nil {
			return nil, err
		}
		counts[i] = v
	}
	if counts[0] != 0 || counts[2] != 0 || counts[3] != 0 {
		return nil, mdnsoffload.FormatError{Offset: offsetQueryCount, Reason: "packet contains data that is not answers"}
	}

	if err := c.seek(offsetDataSection); err != nil {
		return nil, err
	}

	criteria := make([]mdnsoffload.MatchCriteria, 0, counts[1])
	for range counts[1] {
		mc := mdnsoffload.MatchCriteria{NameOffset: uint32(c.pos)}
		if err := skipName(c); err != nil {
			return nil, err
		}

		rrType, err := c.readUint16()
		if err != nil {
			return nil, err
		}
		mc.Type = rrType

		if err := c.skip(classAndTTLSize); err != nil {
			return nil, err
		}
		dataLength, err := c.readUint16()
		if err != nil {
			return nil, err
		}
		if err := c.skip(int(dataLength)); err != nil {
			return nil, err
		}
		criteria = append(criteria, mc)
	}

	if c.pos < len(packet) {
		return nil, c.fail("too much data")
	}
	return criteria, nil
}

// skipName moves the cursor past an owner name: zero or more labels
// followed by either the root label or a pointer.
func skipName(c *cursor) error {
	for {
		lead, err := c.peek()
		if err != nil {
			return err
		}
		switch classify(lead) {
		case kindRoot:
			return c.skip(1)
		case kindLabel:
			if _, err := c.label(); err != nil {
				return err
			}
		case kindPointer:
			_, err := c.pointer()
			return err
		default:
			return c.fail("reserved label type")
		}
	}
}

// ParseProtocolData copies packet and extracts its match criteria. Every
// answer's owner name must also be readable with ExtractFullName.
func ParseProtocolData(packet []byte) (mdnsoffload.ProtocolData, error) {
	criteria, err := ExtractMatchCriteria(packet)
	if err != nil {
		return mdnsoffload.ProtocolData{}, err
	}
	for _, mc := range criteria {
		if _, err := ExtractFullName(packet, int(mc.NameOffset)); err != nil {
			return mdnsoffload.ProtocolData{}, err
		}
	}
	raw := make([]byte, len(packet))
	copy(raw, packet)
	return mdnsoffload.ProtocolData{RawPacket: raw, MatchCriteria: criteria}, nil
}
