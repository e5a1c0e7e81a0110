// Package mccmder is the root of the mc command tree.
package mccmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/missioncontrol/cmd/mc/config"
	gatewaycmder "github.com/papercomputeco/missioncontrol/cmd/mc/gateway"
	initcmder "github.com/papercomputeco/missioncontrol/cmd/mc/init"
	servecmder "github.com/papercomputeco/missioncontrol/cmd/mc/serve"
	tailcmder "github.com/papercomputeco/missioncontrol/cmd/mc/tail"
	tokencmder "github.com/papercomputeco/missioncontrol/cmd/mc/token"
	versioncmder "github.com/papercomputeco/missioncontrol/cmd/version"
)

const mcLongDesc string = `Mission Control coordinates agents and the humans supervising them.

Boards group agents, tasks, approvals, and shared memory. The API serves
them over REST, streams changes over Server-Sent Events, and exposes read
tools over MCP.

Run services using:
  mc serve             Run the API server
  mc tail agents       Follow a live change stream
  mc gateway pairs     Show agent gateway node pairing`

const mcShortDesc string = "Mission Control - agent supervision"

func NewMCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mc",
		Short:         mcShortDesc,
		Long:          mcLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .missioncontrol/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(gatewaycmder.NewGatewayCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(tailcmder.NewTailCmd())
	cmd.AddCommand(tokencmder.NewTokenCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
