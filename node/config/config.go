package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/andydunstall/rumor/pkg/log"
)

type BroadcastConfig struct {
	// RetryInterval is the duration to wait for a peer to acknowledge a
	// propagation before resending it.
	RetryInterval time.Duration `json:"retry_interval" yaml:"retry_interval"`
}

func (c *BroadcastConfig) Validate() error {
	if c.RetryInterval <= 0 {
		return fmt.Errorf("missing retry interval")
	}
	return nil
}

func (c *BroadcastConfig) RegisterFlags(fs *pflag.FlagSet) {
	fs.DurationVar(
		&c.RetryInterval,
		"broadcast.retry-interval",
		c.RetryInterval,
		`
The duration to wait for a peer to acknowledge a broadcast before resending
it.

Each resend is sent with a new message ID, and retries continue until the
peer acknowledges the broadcast, so a short interval will increase the
number of duplicate messages on a slow network.`,
	)
}

type IDFormat string

const (
	// IDFormatCounter generates IDs formatted as '<node ID>-<message ID>'.
	IDFormatCounter IDFormat = "counter"
	// IDFormatUUID generates random UUIDs.
	IDFormatUUID IDFormat = "uuid"
)

type IDsConfig struct {
	// Format is the format of IDs returned by 'generate' requests.
	Format IDFormat `json:"format" yaml:"format"`
}

func (c *IDsConfig) Validate() error {
	switch c.Format {
	case IDFormatCounter, IDFormatUUID:
		return nil
	case "":
		return fmt.Errorf("missing format")
	default:
		return fmt.Errorf("unsupported format: %s", c.Format)
	}
}

func (c *IDsConfig) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		(*string)(&c.Format),
		"ids.format",
		string(c.Format),
		`
The format of unique IDs returned by 'generate' requests.

Supports:
- counter: IDs are the node ID and the request's message ID, such as 'n1-25'
- uuid: IDs are random UUIDs`,
	)
}

type AdminConfig struct {
	// BindAddr is the address to bind to listen for incoming HTTP
	// connections. If empty the admin server is disabled.
	BindAddr string `json:"bind_addr" yaml:"bind_addr"`
}

func (c *AdminConfig) Validate() error {
	return nil
}

func (c *AdminConfig) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		&c.BindAddr,
		"admin.bind-addr",
		c.BindAddr,
		`
The host/port to listen for incoming admin connections, which serves the
node's metrics and status.

If the host is unspecified it defaults to all listeners, such as
'--admin.bind-addr :8002' will listen on '0.0.0.0:8002'.

By default the admin server is disabled.`,
	)
}

type Config struct {
	Broadcast BroadcastConfig `json:"broadcast" yaml:"broadcast"`

	IDs IDsConfig `json:"ids" yaml:"ids"`

	Admin AdminConfig `json:"admin" yaml:"admin"`

	Log log.Config `json:"log" yaml:"log"`

	// GracePeriod is the duration to gracefully shutdown the admin server
	// after the node exits.
	GracePeriod time.Duration `json:"grace_period" yaml:"grace_period"`
}

func Default() *Config {
	return &Config{
		Broadcast: BroadcastConfig{
			RetryInterval: time.Millisecond * 150,
		},
		IDs: IDsConfig{
			Format: IDFormatCounter,
		},
		Log: log.Config{
			Level: "info",
		},
		GracePeriod: time.Second * 10,
	}
}

func (c *Config) Validate() error {
	if err := c.Broadcast.Validate(); err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	if err := c.IDs.Validate(); err != nil {
		return fmt.Errorf("ids: %w", err)
	}
	if err := c.Admin.Validate(); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if c.GracePeriod == 0 {
		return fmt.Errorf("missing grace period")
	}

	return nil
}

func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	c.Broadcast.RegisterFlags(fs)
	c.IDs.RegisterFlags(fs)
	c.Admin.RegisterFlags(fs)
	c.Log.RegisterFlags(fs)

	fs.DurationVar(
		&c.GracePeriod,
		"grace-period",
		c.GracePeriod,
		`
Maximum duration after the node exits, or a shutdown signal is received
(SIGTERM or SIGINT), to gracefully shutdown the admin server.`,
	)
}
