package wire

import (
	"fmt"

	"github.com/miekg/dns"
)

// BuildAnswerPacket packs rrs into an answer-only response suitable for
// offloading: id zero, authoritative, names compressed.
func BuildAnswerPacket(rrs ...dns.RR) ([]byte, error) {
	if len(rrs) == 0 {
		return nil, fmt.Errorf("at least one answer record is required")
	}
	msg := &dns.Msg{
		MsgHdr: dns.MsgHdr{
			Response:      true,
			Authoritative: true,
		},
		Compress: true,
		Answer:   rrs,
	}
	packet, err := msg.Pack()
	if err != nil {
		return nil, fmt.Errorf("packing answers: %w", err)
	}
	return packet, nil
}

// DecodeAnswers fully decodes packet for display. It is not used on the
// registration path.
func DecodeAnswers(packet []byte) ([]dns.RR, error) {
	var msg dns.Msg
	if err := msg.Unpack(packet); err != nil {
		return nil, fmt.Errorf("decoding packet: %w", err)
	}
	return msg.Answer, nil
}
