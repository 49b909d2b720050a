package cli

import (
	"github.com/spf13/cobra"

	"github.com/andydunstall/rumor/cli/node"
	"github.com/andydunstall/rumor/cli/status"
	"github.com/andydunstall/rumor/cli/workload"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "rumor [command] (flags)",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Long: `Rumor is a gossip broadcast node.

Each node receives values from clients and peers, and propagates new values
to its adjacent peers. Propagations are resent until the peer acknowledges
them, so every node in the cluster converges to the same set of values even
when messages are lost.

The node communicates using newline delimited JSON messages on stdin and
stdout.

Start a node with:

  $ rumor node

Inspect the status of a node with an admin server using:

  $ rumor status broadcast known

Run a cluster of nodes in-process over a lossy network using:

  $ rumor workload cluster
`,
	}

	cmd.AddCommand(node.NewCommand())
	cmd.AddCommand(status.NewCommand())
	cmd.AddCommand(workload.NewCommand())

	return cmd
}

func init() {
	cobra.EnableCommandSorting = false
}
