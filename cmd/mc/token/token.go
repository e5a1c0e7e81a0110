// Package tokencmder provides the token command for minting user tokens
// accepted by the mission control API.
package tokencmder

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/missioncontrol/pkg/actor"
	"github.com/papercomputeco/missioncontrol/pkg/config"
)

const tokenLongDesc string = `Mint tokens for the mission control API.

User tokens are HS256 JWTs signed with auth.jwt_secret. Agent tokens are
issued by the API when an agent is created.`

const tokenShortDesc string = "Mint API tokens"

const userLongDesc string = `Mint a user token.

The token is signed with the configured JWT secret and carries the user and
organization ids. Pass it to the API as "Authorization: Bearer <token>", or
store it with "mc config set client.token <token>" for mc tail.

Examples:
  mc token user --user-id u-1 --org-id org-1
  mc token user --user-id u-1 --org-id org-1 --ttl 1h`

const userShortDesc string = "Mint a user token"

func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: tokenShortDesc,
		Long:  tokenLongDesc,
	}

	cmd.AddCommand(newUserCmd())

	return cmd
}

type userCommander struct {
	userID    string
	orgID     string
	ttl       time.Duration
	jwtSecret string
	jwtIssuer string
}

func newUserCmd() *cobra.Command {
	cmder := &userCommander{}

	cmd := &cobra.Command{
		Use:   "user",
		Short: userShortDesc,
		Long:  userLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, []string{
				config.FlagJWTSecret,
				config.FlagJWTIssuer,
			})

			cmder.jwtSecret = v.GetString("auth.jwt_secret")
			cmder.jwtIssuer = v.GetString("auth.jwt_issuer")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := cmder.issue()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&cmder.userID, "user-id", "", "User id (token subject)")
	cmd.Flags().StringVar(&cmder.orgID, "org-id", "", "Organization the user belongs to")
	cmd.Flags().DurationVar(&cmder.ttl, "ttl", 24*time.Hour, "How long the token stays valid")
	config.AddStringFlag(cmd, config.Registry, config.FlagJWTSecret, &cmder.jwtSecret)
	config.AddStringFlag(cmd, config.Registry, config.FlagJWTIssuer, &cmder.jwtIssuer)

	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("org-id")

	return cmd
}

func (c *userCommander) issue() (string, error) {
	if c.jwtSecret == "" {
		return "", errors.New("a JWT secret is required: pass --jwt-secret or set auth.jwt_secret")
	}
	if c.ttl <= 0 {
		return "", fmt.Errorf("invalid ttl %s", c.ttl)
	}
	return actor.IssueUserToken([]byte(c.jwtSecret), c.jwtIssuer, c.userID, c.orgID, c.ttl)
}
