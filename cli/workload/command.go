package workload

import "github.com/spf13/cobra"

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workload",
		Short: "generate test workloads",
		Long: `Generate test workloads.

This tool can be used to run a cluster of nodes in-process, connected by a
lossy network, and check the nodes converge.

Examples:
  # Broadcast 1000 values to a cluster of 10 nodes and wait for the cluster
  # to converge.
  rumor workload cluster --cluster.nodes 10 --broadcast.values 1000
`,
	}

	cmd.AddCommand(newClusterCommand())

	return cmd
}
