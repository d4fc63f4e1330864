package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/frobware/go-mdnsoffload/client"
)

// PassthroughCmd registers passthrough names until interrupted.
type PassthroughCmd struct {
	Interfaces []string `name:"interface" short:"i" required:"" help:"Interface (can be repeated)."`
	QNames     []string `arg:"" name:"qname" help:"Query name, e.g. _googlecast._tcp.local."`
	Name       string   `name:"name" help:"Session label shown in daemon logs." default:"passthrough"`
}

// Run executes the passthrough command.
func (c *PassthroughCmd) Run(cli *CLI) error {
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
		for _, qname := range c.QNames {
			if err := s.AddPassthrough(ctx, iface, qname); err != nil {
				return fmt.Errorf("passthrough %s on %s: %w", qname, iface, err)
			}
			fmt.Printf("passthrough on %s: %s\n", iface, qname)
		}
	}

	return holdSession(ctx, s)
}

// holdSession blocks until ctx is cancelled or the daemon ends the
// session.
func holdSession(ctx context.Context, s *client.Session) error {
	select {
	case <-ctx.Done():
		return nil
	case <-s.Done():
		if err := s.Err(); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("session ended: %w", err)
		}
		return errors.New("session ended by daemon")
	}
}
