package status

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/andydunstall/rumor/node/status/client"
	"github.com/andydunstall/rumor/node/status/config"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "inspect node status",
		Long: `Inspect node status.

Each Rumor node with an admin server exposes a status API to inspect the
state of the node, this can be used to answer questions such as:
* What values does the node know?
* Which values has each peer acknowledged?
* How many propagations are waiting to be resent?

See 'status --help' for the availale commands.

Examples:
  # Inspect the values known by the node.
  rumor status broadcast known

  # Inspect the peers of node 10.26.104.56:8002.
  rumor status broadcast peers --node.url http://10.26.104.56:8002
`,
	}

	var conf config.Config
	conf.RegisterFlags(cmd.PersistentFlags())

	c := client.NewClient(nil)

	cmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		if err := conf.Validate(); err != nil {
			fmt.Printf("config: %s\n", err.Error())
			os.Exit(1)
		}

		url, _ := url.Parse(conf.Node.URL)
		c.SetURL(url)
	}

	cmd.AddCommand(newBroadcastCommand(c))

	return cmd
}
