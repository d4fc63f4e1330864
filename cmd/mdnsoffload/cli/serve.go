package cli

import (
	"fmt"

	"github.com/frobware/go-mdnsoffload/server"
)

// ServeCmd runs the daemon.
type ServeCmd struct {
	Device     string   `name:"device" help:"Companion device address; overrides [device] address."`
	Interfaces []string `name:"interface" short:"i" help:"Interface to manage (can be repeated); overrides [offload] interfaces."`
}

// Run executes the serve command.
func (c *ServeCmd) Run(cli *CLI) error {
	logger, err := cli.LoggerFromConfig()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	appConfig, err := cli.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.Device != "" {
		appConfig.Device.Address = c.Device
	}
	if len(c.Interfaces) > 0 {
		appConfig.Offload.Interfaces = c.Interfaces
	}

	dirs, err := cli.RuntimeDirs()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return server.Run(ctx, server.RunConfig{
		Dirs:   dirs,
		Config: appConfig,
		Logger: logger,
	})
}
