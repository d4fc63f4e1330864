package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-mdnsoffload/client"
	"github.com/frobware/go-mdnsoffload/config"
	"github.com/frobware/go-mdnsoffload/logging"
)

// CLI is the root command structure for mdnsoffload.
type CLI struct {
	Config     string `name:"config" help:"Config file path." default:"${default_config_path}"`
	Log        string `name:"log" help:"Log spec (e.g., 'info,manager=debug')."`
	RuntimeDir string `name:"runtime-dir" help:"Runtime directory." default:"${default_runtime_dir}"`
	Socket     string `name:"socket" short:"s" help:"Daemon socket path. Defaults to the socket under the runtime directory."`

	Serve       ServeCmd       `cmd:"" help:"Run the offload daemon."`
	Publish     PublishCmd     `cmd:"" help:"Offload response records until interrupted."`
	Passthrough PassthroughCmd `cmd:"" help:"Let query names bypass the device filter until interrupted."`
	Dump        DumpCmd        `cmd:"" help:"Show daemon state."`
	Metrics     MetricsCmd     `cmd:"" help:"Show harvested device counters."`
	Allowlist   AllowlistCmd   `cmd:"" help:"Replace the app allow-list."`
	Interactive InteractiveCmd `cmd:"" help:"Report whether the host is interactive."`
	FakeDevice  FakeDeviceCmd  `cmd:"" name:"fake-device" help:"Serve an in-memory companion device."`
}

// KongOptions returns the Kong configuration options for the CLI.
func KongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("mdnsoffload"),
		kong.Description("mDNS offload intent manager."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.TypeMapper(reflect.TypeOf(AppID{}), appIDMapper()),
		kong.TypeMapper(reflect.TypeOf(ResourceRecord{}), resourceRecordMapper()),
		kong.TypeMapper(reflect.TypeOf(OnOff{}), onOffMapper()),
		kong.Vars{
			"default_config_path": config.DefaultConfigPath,
			"default_runtime_dir": config.DefaultRuntimeDirs().Base(),
		},
	}
}

// LoadConfig loads the configuration from the config file path.
func (c *CLI) LoadConfig() (config.Config, error) {
	return config.Load(c.Config)
}

// RuntimeDirs returns the runtime directories rooted at --runtime-dir.
func (c *CLI) RuntimeDirs() (config.RuntimeDirs, error) {
	return config.NewRuntimeDirs(c.RuntimeDir)
}

// SocketPath returns the daemon socket to connect to.
func (c *CLI) SocketPath() (string, error) {
	if c.Socket != "" {
		return c.Socket, nil
	}
	dirs, err := c.RuntimeDirs()
	if err != nil {
		return "", err
	}
	return dirs.SocketPath(), nil
}

// Logger creates a logger for CLI commands.
// CLI commands default to WARN level for quieter output.
// Use LoggerFromConfig for long-running services like serve.
func (c *CLI) Logger() (*slog.Logger, error) {
	return c.logger("warn")
}

// LoggerFromConfig creates a logger using config file settings.
func (c *CLI) LoggerFromConfig() (*slog.Logger, error) {
	return c.logger("")
}

func (c *CLI) logger(fallback string) (*slog.Logger, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	configSpec := cfg.Logging.ToSpec()
	if fallback != "" {
		configSpec = fallback
	}
	return logging.New(logging.Options{
		CLISpec:    c.Log,
		EnvSpec:    os.Getenv(logging.EnvVar),
		ConfigSpec: configSpec,
		Format:     format,
		Output:     os.Stderr,
	})
}

// Client connects to the daemon socket. The returned client must be
// closed when no longer needed.
func (c *CLI) Client() (*client.Client, error) {
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}
	sock, err := c.SocketPath()
	if err != nil {
		return nil, err
	}
	cl, err := client.Dial(sock, client.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", sock, err)
	}
	return cl, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
