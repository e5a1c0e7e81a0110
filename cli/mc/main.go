package main

import (
	"os"

	mccmder "github.com/papercomputeco/missioncontrol/cmd/mc"
)

func main() {
	cmd := mccmder.NewMCCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
