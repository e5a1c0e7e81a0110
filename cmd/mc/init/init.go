// Package initcmder provides the init command for initializing a local
// .missioncontrol directory in the current working directory.
package initcmder

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/missioncontrol/pkg/cliui"
	"github.com/papercomputeco/missioncontrol/pkg/config"
)

const dirName = ".missioncontrol"

const initLongDesc string = `Initialize a new .missioncontrol/ directory in the current working directory.

Creates a local .missioncontrol/ directory that takes precedence over the
default ~/.missioncontrol/ directory, and writes a config.toml for the chosen
deployment preset with a freshly generated JWT secret.

Presets:
  local       SQLite storage, change events discarded (default)
  postgres    PostgreSQL storage, change events published to Kafka
  edge        libSQL storage (requires a build with -tags libsql)

Examples:
  mc init
  mc init --preset postgres`

const initShortDesc string = "Initialize a local .missioncontrol/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Deployment preset ("+strings.Join(config.ValidPresetNames(), ", ")+")")

	return cmd
}

func (c *initCommander) run(w io.Writer) error {
	preset := c.preset
	if preset == "" {
		preset = "local"
	}

	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dirName)

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err == nil {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .missioncontrol directory: %w", err)
	}

	secret, err := newSecret()
	if err != nil {
		return err
	}
	cfg.Auth.JWTSecret = secret

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Initialized %s with the %s preset\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(dir),
		cliui.KeyStyle.Render(preset),
	)
	return nil
}

// newSecret returns 32 random bytes, hex encoded.
func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
