package cli

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/grpc"

	"github.com/frobware/go-mdnsoffload/codec"
	"github.com/frobware/go-mdnsoffload/device/fake"
	"github.com/frobware/go-mdnsoffload/device/remote"
)

// FakeDeviceCmd serves an in-memory device on a unix socket so the
// daemon can run without companion hardware.
type FakeDeviceCmd struct {
	Listen              string `name:"listen" help:"Socket path. Defaults to the [device] address from the config."`
	OffloadCapacity     int    `name:"offload-capacity" help:"Responses per interface." default:"3"`
	PassthroughCapacity int    `name:"passthrough-capacity" help:"Passthrough names per interface." default:"4"`
}

// Run executes the fake-device command.
func (c *FakeDeviceCmd) Run(cli *CLI) error {
	logger, err := cli.LoggerFromConfig()
	if err != nil {
		return err
	}
	sock := c.Listen
	if sock == "" {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return err
		}
		sock = strings.TrimPrefix(cfg.Device.Address, "unix://")
	}

	if err := os.MkdirAll(filepath.Dir(sock), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.RemoveAll(sock); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}
	ln, err := net.Listen("unix", sock)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", sock, err)
	}
	defer ln.Close()

	dev := fake.New(
		fake.WithOffloadCapacity(c.OffloadCapacity),
		fake.WithPassthroughCapacity(c.PassthroughCapacity),
		fake.WithLogger(logger),
	)
	gs := grpc.NewServer(codec.ServerOption())
	remote.Register(gs, dev)

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	logger.Info("fake device listening", "socket", sock,
		"offload_capacity", c.OffloadCapacity, "passthrough_capacity", c.PassthroughCapacity)
	return gs.Serve(ln)
}
