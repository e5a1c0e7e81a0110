// Package gatewaycmder provides the gateway command group for inspecting an
// agent gateway that mission control supervises.
package gatewaycmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/missioncontrol/pkg/cliui"
	"github.com/papercomputeco/missioncontrol/pkg/config"
	"github.com/papercomputeco/missioncontrol/pkg/gateway"
	"github.com/papercomputeco/missioncontrol/pkg/utils"
)

// tokenPreview is how much of a paired node's token is printed.
const tokenPreview = 20

const gatewayLongDesc string = `Inspect an agent gateway.

The gateway URL and operator token come from flags, MC_GATEWAY_*
environment variables, or gateway.url and gateway.token in config.toml.`

const pairsLongDesc string = `Show node pairing status of an agent gateway.

Connects to the gateway's WebSocket RPC endpoint as an operator and lists
pending pairing requests and paired nodes. "/rpc" is appended to the URL
when missing.

Examples:
  mc gateway pairs ws://localhost:8080 --token s3cret
  mc gateway pairs wss://gateway.example.com/rpc --insecure`

type pairsCommander struct {
	url      string
	token    string
	insecure bool
	timeout  time.Duration

	out    io.Writer
	errOut io.Writer
}

func NewGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Inspect an agent gateway",
		Long:  gatewayLongDesc,
	}
	cmd.AddCommand(newPairsCmd())
	return cmd
}

func newPairsCmd() *cobra.Command {
	cmder := &pairsCommander{}

	cmd := &cobra.Command{
		Use:   "pairs [url]",
		Short: "Show node pairing status",
		Long:  pairsLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, []string{
				config.FlagGatewayURL,
				config.FlagGatewayToken,
			})

			cmder.url = v.GetString("gateway.url")
			if len(args) == 1 {
				cmder.url = args[0]
			}
			cmder.token = v.GetString("gateway.token")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagGatewayURL, &cmder.url)
	config.AddStringFlag(cmd, config.Registry, config.FlagGatewayToken, &cmder.token)
	cmd.Flags().BoolVar(&cmder.insecure, "insecure", false, "Accept self-signed gateway certificates")
	cmd.Flags().DurationVar(&cmder.timeout, "timeout", 15*time.Second, "Give up after this long")

	return cmd
}

func (c *pairsCommander) run(ctx context.Context) error {
	if c.url == "" {
		return errors.New("a gateway URL is required: pass it as an argument or set gateway.url")
	}
	if c.token == "" {
		return errors.New("a gateway token is required: pass --token or set gateway.token")
	}

	endpoint, err := gateway.RPCURL(c.url, "")
	if err != nil {
		return err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	fmt.Fprintln(c.out, cliui.KeyStyle.Render("Agent gateway node pairing"))
	fmt.Fprintln(c.out, cliui.DimStyle.Render("Gateway: "+endpoint))

	var pairs *gateway.NodePairs
	err = cliui.Step(c.errOut, "Listing node pairs", func() error {
		client, err := gateway.Dial(ctx, gateway.Config{
			URL:                c.url,
			Token:              c.token,
			InsecureSkipVerify: c.insecure,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		pairs, err = client.NodePairs(ctx)
		return err
	})
	if err != nil {
		return err
	}

	c.print(pairs)
	return nil
}

func (c *pairsCommander) print(pairs *gateway.NodePairs) {
	fmt.Fprintf(c.out, "\n%s\n", cliui.KeyStyle.Render("Pending node pairing requests:"))
	if len(pairs.Pending) == 0 {
		fmt.Fprintln(c.out, "  - None")
	}
	for _, r := range pairs.Pending {
		fmt.Fprintf(c.out, "  - %s\n", cliui.ValueStyle.Render(r.Name()))
		c.field("Node ID", orNA(r.NodeID))
		c.field("Request ID", orNA(r.RequestID))
		if r.Platform != "" {
			c.field("Platform", r.Platform)
		}
		if at := r.CreatedAt(); !at.IsZero() {
			c.field("Created", at.Format(time.DateTime))
		}
	}

	fmt.Fprintf(c.out, "\n%s\n", cliui.KeyStyle.Render("Paired nodes:"))
	if len(pairs.Paired) == 0 {
		fmt.Fprintln(c.out, "  - None")
	}
	for _, n := range pairs.Paired {
		fmt.Fprintf(c.out, "  - %s\n", cliui.ValueStyle.Render(n.Name()))
		c.field("Node ID", orNA(n.NodeID))
		if n.Platform != "" {
			c.field("Platform", n.Platform)
		}
		if n.Token != "" {
			c.field("Token", utils.Truncate(n.Token, tokenPreview))
		}
		if at := n.ApprovedAt(); !at.IsZero() {
			c.field("Approved", at.Format(time.DateTime))
		}
	}
}

func (c *pairsCommander) field(key, value string) {
	fmt.Fprintf(c.out, "    %s %s\n", cliui.DimStyle.Render(key+":"), value)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
