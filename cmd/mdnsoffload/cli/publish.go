package cli

import (
	"fmt"

	"github.com/miekg/dns"

	"github.com/frobware/go-mdnsoffload/wire"
)

// PublishCmd offloads one response built from the given records and
// keeps it registered until interrupted.
type PublishCmd struct {
	Interfaces []string         `name:"interface" short:"i" required:"" help:"Interface to offload on (can be repeated)."`
	Records    []ResourceRecord `arg:"" name:"record" sep:"none" help:"Answer record in zone file syntax, e.g. 'atv.local. 120 IN A 192.0.2.1'."`
	Name       string           `name:"name" help:"Session label shown in daemon logs." default:"publish"`
}

// Run executes the publish command.
func (c *PublishCmd) Run(cli *CLI) error {
	rrs := make([]dns.RR, len(c.Records))
	for i, r := range c.Records {
		rrs[i] = r.RR
	}
	packet, err := wire.BuildAnswerPacket(rrs...)
	if err != nil {
		return err
	}
	// Reject what the daemon would reject before opening a session.
	if _, err := wire.ParseProtocolData(packet); err != nil {
		return fmt.Errorf("built packet: %w", err)
	}

	cl, err := cli.Client()
	if err != nil {
		return err
	}
	defer cl.Close()

	ctx, cancel := signalContext()
	defer cancel()

	s, err := cl.OpenSession(ctx, c.Name)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, iface := range c.Interfaces {
		key, err := s.AddOffload(ctx, iface, packet)
		if err != nil {
			return fmt.Errorf("offload on %s: %w", iface, err)
		}
		fmt.Printf("offloaded on %s: record key %d (%d bytes)\n", iface, key, len(packet))
	}

	return holdSession(ctx, s)
}
