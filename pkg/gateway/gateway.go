// Package gateway is a client for the agent gateway's WebSocket RPC
// protocol. Mission control operators use it to inspect node pairing.
//
// A session starts with the gateway sending a connect.challenge event. The
// client answers with a connect request carrying its role and token, then
// issues RPC requests and matches responses by id.
package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/papercomputeco/missioncontrol/pkg/logger"
)

const (
	// ProtocolVersion is the only gateway protocol version spoken.
	ProtocolVersion = 3

	// RoleOperator is the role mission control connects as.
	RoleOperator = "operator"

	// EventConnectChallenge opens every session.
	EventConnectChallenge = "connect.challenge"

	// MethodConnect answers the challenge.
	MethodConnect = "connect"

	// MethodNodePairList lists pending pairing requests and paired nodes.
	MethodNodePairList = "node.pair.list"

	defaultHandshakeTimeout = 10 * time.Second
)

// OperatorScopes are requested on connect.
var OperatorScopes = []string{"operator.read", "operator.write", "operator.pairing", "operator.admin"}

// ErrHandshake is wrapped by errors that happen before the gateway
// accepted the connect request.
var ErrHandshake = errors.New("gateway handshake failed")

// RPCError is an error reported by the gateway in a response frame.
type RPCError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// request is an outgoing "req" frame.
type request struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

// frame is any incoming frame. Events carry Event; responses carry ID, OK
// and either Payload or Error.
type frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Event   string          `json:"event,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// ClientInfo identifies the connecting program to the gateway.
type ClientInfo struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Mode     string `json:"mode"`
}

type connectAuth struct {
	Token string `json:"token"`
}

type connectParams struct {
	MinProtocol int         `json:"minProtocol"`
	MaxProtocol int         `json:"maxProtocol"`
	Client      ClientInfo  `json:"client"`
	Role        string      `json:"role"`
	Scopes      []string    `json:"scopes"`
	Caps        []string    `json:"caps"`
	Auth        connectAuth `json:"auth"`
}

// Config configures Dial.
type Config struct {
	// URL of the gateway. "/rpc" is appended when missing.
	URL string

	// Token authenticates the operator.
	Token string

	// Client defaults to the mc CLI identity.
	Client ClientInfo

	// InsecureSkipVerify accepts self-signed gateway certificates.
	InsecureSkipVerify bool

	// HandshakeTimeout bounds the WebSocket upgrade. Defaults to 10s.
	HandshakeTimeout time.Duration

	Logger *slog.Logger
}

// Client is a connected, authenticated gateway session. It is not safe for
// concurrent use.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger
}

// RPCURL normalizes a gateway URL: the path gets an "/rpc" suffix and the
// token is added as a query parameter.
func RPCURL(raw, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid gateway URL %q", raw)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid gateway URL %q: scheme must be ws or wss", raw)
	}

	if !strings.HasSuffix(u.Path, "/rpc") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/rpc"
	}

	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Dial connects to the gateway and completes the connect handshake.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("gateway token is required")
	}
	if cfg.Client.ID == "" {
		cfg.Client = ClientInfo{ID: "mc", Version: "1.0.0", Platform: "cli", Mode: "backend"}
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	endpoint, err := RPCURL(cfg.URL, cfg.Token)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // opt-in for self-signed gateways
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connecting to gateway: %w (HTTP %s)", err, resp.Status)
		}
		return nil, fmt.Errorf("connecting to gateway: %w", err)
	}

	c := &Client{conn: conn, logger: cfg.Logger}
	if err := c.handshake(ctx, cfg); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake(ctx context.Context, cfg Config) error {
	for {
		f, err := c.read(ctx)
		if err != nil {
			return fmt.Errorf("%w: waiting for challenge: %w", ErrHandshake, err)
		}
		if f.Type == "event" && f.Event == EventConnectChallenge {
			break
		}
		c.logger.Debug("ignoring frame before challenge", "type", f.Type, "event", f.Event)
	}

	err := c.Call(ctx, MethodConnect, connectParams{
		MinProtocol: ProtocolVersion,
		MaxProtocol: ProtocolVersion,
		Client:      cfg.Client,
		Role:        RoleOperator,
		Scopes:      OperatorScopes,
		Caps:        []string{},
		Auth:        connectAuth{Token: cfg.Token},
	}, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	return nil
}

// Call sends method with params and waits for the matching response. When
// out is non-nil the response payload is decoded into it. Frames with other
// ids are skipped.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	if params == nil {
		params = struct{}{}
	}
	req := request{Type: "req", ID: uuid.NewString(), Method: method, Params: params}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}

	for {
		f, err := c.read(ctx)
		if err != nil {
			return fmt.Errorf("waiting for %s response: %w", method, err)
		}
		if f.Type != "res" || f.ID != req.ID {
			c.logger.Debug("skipping frame", "type", f.Type, "id", f.ID, "event", f.Event)
			continue
		}

		if !f.OK {
			if f.Error == nil {
				return &RPCError{Message: method + " failed"}
			}
			return f.Error
		}
		if out == nil || len(f.Payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(f.Payload, out); err != nil {
			return fmt.Errorf("decoding %s payload: %w", method, err)
		}
		return nil
	}
}

// read returns the next well-formed frame. Messages that are not JSON
// objects with a type are dropped. Cancelling ctx closes the connection.
func (c *Client) read(ctx context.Context) (*frame, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil || f.Type == "" {
			c.logger.Debug("dropping malformed frame", "size", len(data))
			continue
		}
		return &f, nil
	}
}

// NodePairs lists pending pairing requests and paired nodes.
func (c *Client) NodePairs(ctx context.Context) (*NodePairs, error) {
	var pairs NodePairs
	if err := c.Call(ctx, MethodNodePairList, nil, &pairs); err != nil {
		return nil, err
	}
	return &pairs, nil
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
