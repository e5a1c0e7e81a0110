package main

import (
	"os"

	servecmder "github.com/papercomputeco/missioncontrol/cmd/mc/serve"
	versioncmder "github.com/papercomputeco/missioncontrol/cmd/version"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "mcapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .missioncontrol/ config directory")
	cmd.AddCommand(versioncmder.NewVersionCmd())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
