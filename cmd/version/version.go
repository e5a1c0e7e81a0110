// Package versioncmder provides the version command shared by mc and mcapi.
package versioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/missioncontrol/pkg/utils"
)

func NewVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, utils.Version)
				return nil
			}

			fmt.Fprintf(out, "%s %s\ncommit: %s\nbuilt:  %s\n",
				cmd.Root().Name(), utils.Version, utils.Sha, utils.Buildtime)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version")

	return cmd
}
