// Package tailcmder provides the tail command that follows a mission control
// activity stream and prints each event as it arrives.
package tailcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/missioncontrol/pkg/actor"
	"github.com/papercomputeco/missioncontrol/pkg/cliui"
	"github.com/papercomputeco/missioncontrol/pkg/config"
	"github.com/papercomputeco/missioncontrol/pkg/sse"
	"github.com/papercomputeco/missioncontrol/pkg/utils"
)

// Streams lists the stream names tail accepts.
var Streams = []string{"agents", "approvals", "memory", "comments"}

const tailLongDesc string = `Follow a live activity stream.

Connects to a running API server and prints every event of the stream as it
arrives, until interrupted. Keep-alive pings are not printed.

Streams:
  agents       Agent status changes (optionally for one --board-id)
  approvals    Approval requests and decisions of --board-id
  memory       Board memory of --board-id (--chat for chat messages only)
  comments     Task comments (optionally for one --board-id)

The API target and token come from flags, MC_CLIENT_* environment
variables, or client.api_target and client.token in config.toml. Tokens with
the agent prefix are sent as agent tokens, anything else as a bearer token.

Examples:
  mc tail agents
  mc tail approvals --board-id b-1
  mc tail memory --board-id b-1 --chat --record memory.sse`

const tailShortDesc string = "Follow a live activity stream"

type tailCommander struct {
	apiTarget string
	token     string
	boardID   string
	since     string
	chat      bool
	raw       bool
	maxWidth  int
	record    string

	out    io.Writer
	errOut io.Writer
}

func NewTailCmd() *cobra.Command {
	cmder := &tailCommander{}

	cmd := &cobra.Command{
		Use:       "tail <stream>",
		Short:     tailShortDesc,
		Long:      tailLongDesc,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: Streams,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, []string{
				config.FlagAPITarget,
				config.FlagClientToken,
			})

			cmder.apiTarget = v.GetString("client.api_target")
			cmder.token = v.GetString("client.token")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, args[0])
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagAPITarget, &cmder.apiTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagClientToken, &cmder.token)
	cmd.Flags().StringVarP(&cmder.boardID, "board-id", "b", "", "Board to follow")
	cmd.Flags().StringVar(&cmder.since, "since", "", "Only show changes at or after this RFC 3339 time (default: now)")
	cmd.Flags().BoolVar(&cmder.chat, "chat", false, "Only show chat messages (memory stream)")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print event data as JSON lines without labels")
	cmd.Flags().IntVar(&cmder.maxWidth, "max-width", 240, "Truncate labeled event data to this many characters (0 disables)")
	cmd.Flags().StringVar(&cmder.record, "record", "", "Append the raw event stream to this file")

	return cmd
}

// streamURL builds the endpoint URL of the named stream.
func (c *tailCommander) streamURL(name string) (string, error) {
	base, err := url.Parse(strings.TrimRight(c.apiTarget, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid API target %q", c.apiTarget)
	}

	q := url.Values{}
	if c.since != "" {
		if _, err := time.Parse(time.RFC3339Nano, c.since); err != nil {
			return "", fmt.Errorf("invalid --since %q: expected an RFC 3339 time", c.since)
		}
		q.Set("since", c.since)
	}

	var path string
	switch name {
	case "agents":
		path = "/v1/agents/stream"
		if c.boardID != "" {
			q.Set("board_id", c.boardID)
		}
	case "comments":
		path = "/v1/activity/task-comments/stream"
		if c.boardID != "" {
			q.Set("board_id", c.boardID)
		}
	case "approvals", "memory":
		if c.boardID == "" {
			return "", fmt.Errorf("the %s stream requires --board-id", name)
		}
		path = "/v1/boards/" + url.PathEscape(c.boardID) + "/" + name + "/stream"
		if name == "memory" && c.chat {
			q.Set("is_chat", "true")
		}
	default:
		return "", fmt.Errorf("unknown stream %q (available: %s)", name, strings.Join(Streams, ", "))
	}

	u := base.JoinPath(path)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *tailCommander) run(ctx context.Context, name string) error {
	endpoint, err := c.streamURL(name)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", sse.ContentType)
	c.authorize(req)

	var resp *http.Response
	connect := func() error {
		var err error
		resp, err = http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", endpoint, err)
		}
		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return apiError(resp)
		}
		return nil
	}

	if c.raw {
		err = connect()
	} else {
		err = cliui.Step(c.errOut, "Connecting to "+endpoint, connect)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	dest := io.Discard
	if c.record != "" {
		f, err := os.OpenFile(c.record, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening record file: %w", err)
		}
		defer f.Close()
		dest = f
	}

	reader := sse.NewTeeReader(resp.Body, dest)
	for {
		ev, err := reader.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil {
			return nil
		}

		c.print(ev)
		if ev.Type == "error" {
			return fmt.Errorf("stream closed by server: %s", ev.Data)
		}
	}
}

// authorize attaches the configured token to req.
func (c *tailCommander) authorize(req *http.Request) {
	switch {
	case c.token == "":
	case strings.HasPrefix(c.token, actor.AgentTokenPrefix):
		req.Header.Set(actor.AgentTokenHeader, c.token)
	default:
		req.Header.Set(actor.AuthorizationHeader, "Bearer "+c.token)
	}
}

func (c *tailCommander) print(ev *sse.Event) {
	data := compact(ev.Data)
	if c.raw {
		fmt.Fprintln(c.out, data)
		return
	}

	fmt.Fprintf(c.out, "%s %s %s\n",
		cliui.DimStyle.Render(time.Now().Format(time.TimeOnly)),
		cliui.EventLabel(ev.Type),
		utils.Truncate(data, c.maxWidth),
	)
}

// compact strips insignificant whitespace from JSON data, leaving anything
// else unchanged.
func compact(data string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(data)); err != nil {
		return data
	}
	return buf.String()
}

// apiError turns a non-200 response into an error carrying the server's
// message.
func apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("API returned %d: %s", resp.StatusCode, body.Error)
	}
	return errors.New("API returned " + resp.Status)
}
