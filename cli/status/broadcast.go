package status

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/andydunstall/rumor/node/broadcast"
	"github.com/andydunstall/rumor/node/status/client"
	"github.com/andydunstall/rumor/pkg/protocol"
)

func newBroadcastCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "inspect broadcast state",
	}

	cmd.AddCommand(newBroadcastKnownCommand(c))
	cmd.AddCommand(newBroadcastPeersCommand(c))
	cmd.AddCommand(newBroadcastTrackerCommand(c))

	return cmd
}

func newBroadcastKnownCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "known",
		Short: "inspect known values",
		Long: `Inspect known values.

Queries the node for the values it knows, sorted.

Examples:
  rumor status broadcast known
`,
	}

	cmd.Run = func(_ *cobra.Command, _ []string) {
		showBroadcastKnown(c)
	}

	return cmd
}

type broadcastKnownOutput struct {
	Values []protocol.Value `json:"values"`
}

func showBroadcastKnown(c *client.Client) {
	known, err := client.NewBroadcast(c).Known()
	if err != nil {
		fmt.Printf("failed to get known values: %s\n", err.Error())
		os.Exit(1)
	}

	b, _ := yaml.Marshal(broadcastKnownOutput{
		Values: known,
	})
	fmt.Print(string(b))
}

func newBroadcastPeersCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "inspect adjacent peers",
		Long: `Inspect adjacent peers.

Queries the node for the state of each adjacent peer, including the values
the peer has acknowledged and the propagations to the peer that are waiting
for an acknowledgment.

Examples:
  rumor status broadcast peers
`,
	}

	cmd.Run = func(_ *cobra.Command, _ []string) {
		showBroadcastPeers(c)
	}

	return cmd
}

type broadcastPeersOutput struct {
	Peers []broadcast.PeerStatus `json:"peers"`
}

func showBroadcastPeers(c *client.Client) {
	peers, err := client.NewBroadcast(c).Peers()
	if err != nil {
		fmt.Printf("failed to get peers: %s\n", err.Error())
		os.Exit(1)
	}

	b, _ := yaml.Marshal(broadcastPeersOutput{
		Peers: peers,
	})
	fmt.Print(string(b))
}

func newBroadcastTrackerCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "inspect retry tracker",
		Long: `Inspect retry tracker.

Queries the node for the number of propagations the retry tracker is
waiting to be acknowledged.

Examples:
  rumor status broadcast tracker
`,
	}

	cmd.Run = func(_ *cobra.Command, _ []string) {
		showBroadcastTracker(c)
	}

	return cmd
}

func showBroadcastTracker(c *client.Client) {
	status, err := client.NewBroadcast(c).Tracker()
	if err != nil {
		fmt.Printf("failed to get tracker status: %s\n", err.Error())
		os.Exit(1)
	}

	b, _ := yaml.Marshal(status)
	fmt.Print(string(b))
}
