package node

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	rungroup "github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andydunstall/rumor/node"
	"github.com/andydunstall/rumor/node/admin"
	"github.com/andydunstall/rumor/node/config"
	rumorconfig "github.com/andydunstall/rumor/pkg/config"
	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/pkg/transport"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "start a broadcast node",
		Long: `Start a broadcast node.

The node reads newline delimited JSON messages from stdin and writes its
messages to stdout. Logs are written to stderr.

The first message must be 'init', which assigns the node its ID. The node is
then assigned its adjacent peers with a 'topology' message. Each value the
node receives with a 'broadcast' message is propagated to its peers, and
resent until each peer acknowledges it.

Examples:
  # Start a node.
  rumor node

  # Start a node that resends unacknowledged broadcasts after 500ms.
  rumor node --broadcast.retry-interval 500ms

  # Start a node with an admin server on :8002 to inspect the node status
  # and metrics.
  rumor node --admin.bind-addr :8002
`,
	}

	conf := config.Default()

	var configPath string
	cmd.Flags().StringVar(
		&configPath,
		"config.path",
		"",
		`
YAML config file path.`,
	)

	var configExpandEnv bool
	cmd.Flags().BoolVar(
		&configExpandEnv,
		"config.expand-env",
		false,
		`
Whether to expand environment variables in the config file.

This will replaces references to ${VAR} or $VAR with the corresponding
environment variable. The replacement is case-sensitive.

References to undefined variables will be replaced with an empty string. A
default value can be given using form ${VAR:default}.`,
	)

	// Register flags and set default values.
	conf.RegisterFlags(cmd.Flags())

	cmd.Run = func(_ *cobra.Command, _ []string) {
		// stdout carries protocol messages so errors are written to stderr.
		if configPath != "" {
			if err := rumorconfig.Load(configPath, conf, configExpandEnv); err != nil {
				fmt.Fprintf(os.Stderr, "load config: %s\n", err.Error())
				os.Exit(1)
			}
		}

		if err := conf.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid config: %s\n", err.Error())
			os.Exit(1)
		}

		logger, err := log.NewLogger(conf.Log.Level, conf.Log.Subsystems)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to setup logger: %s\n", err.Error())
			os.Exit(1)
		}
		defer logger.Sync() //nolint

		if err := run(conf, logger); err != nil {
			logger.Error("failed to run node", zap.Error(err))
			os.Exit(1)
		}
	}

	return cmd
}

func run(conf *config.Config, logger log.Logger) error {
	logger.Info("starting rumor node", zap.Any("conf", conf))

	registry := prometheus.NewRegistry()

	n := node.NewNode(
		transport.NewStream(os.Stdin, os.Stdout),
		conf,
		logger,
	)
	n.Metrics().Register(registry)

	var group rungroup.Group

	// Node.
	nodeCtx, nodeCancel := context.WithCancel(context.Background())
	group.Add(func() error {
		if err := n.Run(nodeCtx); err != nil {
			return fmt.Errorf("node: %w", err)
		}
		logger.Info("node stopped")
		return nil
	}, func(error) {
		nodeCancel()
	})

	// Admin server.
	if conf.Admin.BindAddr != "" {
		adminLn, err := net.Listen("tcp", conf.Admin.BindAddr)
		if err != nil {
			return fmt.Errorf("admin listen: %s: %w", conf.Admin.BindAddr, err)
		}
		adminServer := admin.NewServer(registry, logger)
		adminServer.AddStatus("/broadcast", node.NewStatus(n))

		group.Add(func() error {
			if err := adminServer.Serve(adminLn); err != nil {
				return fmt.Errorf("admin server serve: %w", err)
			}
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				conf.GracePeriod,
			)
			defer cancel()

			if err := adminServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("failed to gracefully shutdown admin server", zap.Error(err))
			}

			logger.Info("admin server shut down")
		})
	}

	// Termination handler.
	signalCtx, signalCancel := context.WithCancel(context.Background())
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	group.Add(func() error {
		select {
		case sig := <-signalCh:
			logger.Info(
				"received shutdown signal",
				zap.String("signal", sig.String()),
			)
			return nil
		case <-signalCtx.Done():
			return nil
		}
	}, func(error) {
		signalCancel()
	})

	if err := group.Run(); err != nil {
		return err
	}

	logger.Info("shutdown complete")

	return nil
}
