package cli

import (
	"context"
	"fmt"

	"github.com/frobware/go-mdnsoffload"
)

// AllowlistCmd replaces the set of apps whose intents reach the device.
type AllowlistCmd struct {
	AppIDs []AppID `arg:"" optional:"" name:"app-id" help:"App ids or uids to allow. None clears the list."`
}

// Run executes the allowlist command.
func (c *AllowlistCmd) Run(cli *CLI) error {
	cl, err := cli.Client()
	if err != nil {
		return err
	}
	defer cl.Close()

	ids := make([]mdnsoffload.AppID, len(c.AppIDs))
	for i, id := range c.AppIDs {
		ids[i] = id.Value
	}
	if err := cl.SetAllowList(context.Background(), ids); err != nil {
		return err
	}
	fmt.Printf("allow-list: %v\n", ids)
	return nil
}

// InteractiveCmd reports the host's interactive state. Offload is
// active only while the host is not interactive.
type InteractiveCmd struct {
	State OnOff `arg:"" name:"state" help:"on or off."`
}

// Run executes the interactive command.
func (c *InteractiveCmd) Run(cli *CLI) error {
	cl, err := cli.Client()
	if err != nil {
		return err
	}
	defer cl.Close()

	if err := cl.SetInteractive(context.Background(), c.State.Value); err != nil {
		return err
	}
	fmt.Printf("interactive: %s\n", onOff(c.State.Value))
	return nil
}
