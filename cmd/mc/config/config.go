// Package configcmder provides the config command for managing persistent
// mission control configuration stored in the .missioncontrol/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/missioncontrol/pkg/cliui"
	"github.com/papercomputeco/missioncontrol/pkg/config"
)

const configLongDesc string = `Manage persistent mission control configuration.

Configuration is stored as config.toml in the .missioncontrol/ directory and
provides default values for command flags. CLI flags and MC_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  storage.libsql_url, storage.libsql_auth_token,
  api.listen, auth.jwt_secret, auth.jwt_issuer,
  stream.poll_interval, stream.window_size, stream.eviction, stream.max_retries,
  eventstream.provider, eventstream.brokers, eventstream.topic,
  client.api_target, client.token, gateway.url, gateway.token

Use subcommands to get, set, or list configuration values:
  mc config set <key> <value>    Set a configuration value
  mc config get <key>            Get a configuration value
  mc config list                 List all configuration values

Examples:
  mc config set storage.driver postgres
  mc config set stream.poll_interval 500ms
  mc config get api.listen
  mc config list`

const configShortDesc string = "Manage persistent mission control configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// completeKeys completes the first argument with the known config keys.
func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// printTarget reports which config file a command is using.
func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}
