package cli

import (
	"context"
	"fmt"
)

// DumpCmd prints the daemon's state.
type DumpCmd struct {
	OutputFlags
	ProtocolData bool `name:"protocol-data" help:"Decode each offloaded packet and include a hex dump."`
}

// Run executes the dump command.
func (c *DumpCmd) Run(cli *CLI) error {
	cl, err := cli.Client()
	if err != nil {
		return err
	}
	defer cl.Close()

	d, err := cl.Dump(context.Background())
	if err != nil {
		return err
	}

	if c.Output == "json" {
		out, err := formatJSON(d)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}
	fmt.Print(formatDumpTree(d, c.ProtocolData))
	return nil
}
