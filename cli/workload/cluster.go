package workload

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	yaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andydunstall/rumor/pkg/log"
	"github.com/andydunstall/rumor/workload"
	"github.com/andydunstall/rumor/workload/config"
)

func newClusterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "broadcast values to an in-process cluster",
		Long: `Broadcast values to an in-process cluster.

Starts a cluster of nodes connected by an in-memory network that drops and
delays messages between nodes. Each value is broadcast to a random node, then
waits for every node to know every value.

Outputs the time to converge and the network stats.

Examples:
  # Start a cluster of 5 nodes in a line, where 20% of messages are dropped.
  rumor workload cluster --cluster.nodes 5 --cluster.topology line --cluster.drop-rate 0.2
`,
	}

	conf := config.Default()

	// Register flags and set default values.
	conf.RegisterFlags(cmd.Flags())

	var logger log.Logger

	cmd.PreRun = func(_ *cobra.Command, _ []string) {
		if err := conf.Validate(); err != nil {
			fmt.Printf("config: %s\n", err.Error())
			os.Exit(1)
		}

		var err error
		logger, err = log.NewLogger(conf.Log.Level, conf.Log.Subsystems)
		if err != nil {
			fmt.Printf("failed to setup logger: %s\n", err.Error())
			os.Exit(1)
		}
	}

	cmd.Run = func(_ *cobra.Command, _ []string) {
		if err := runCluster(conf, logger); err != nil {
			logger.Error("failed to run workload", zap.Error(err))
			os.Exit(1)
		}
	}

	return cmd
}

func runCluster(conf *config.Config, logger log.Logger) error {
	logger.Info("starting workload", zap.Any("conf", conf))

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	report, err := workload.RunBroadcast(ctx, conf, logger)
	if err != nil {
		return err
	}

	b, _ := yaml.Marshal(report)
	fmt.Print(string(b))

	return nil
}
