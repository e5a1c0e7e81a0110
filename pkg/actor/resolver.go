package actor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

// Request headers carrying credentials.
const (
	AuthorizationHeader = "Authorization"
	AgentTokenHeader    = "X-Agent-Token"
)

// Credentials are the raw authentication headers of a request.
type Credentials struct {
	// Authorization is the "Authorization" header ("Bearer <jwt>").
	Authorization string

	// AgentToken is the "X-Agent-Token" header.
	AgentToken string
}

// CredentialsFrom reads credentials through a header getter such as
// http.Header.Get or fiber.Ctx.Get.
func CredentialsFrom(get func(key string) string) Credentials {
	return Credentials{
		Authorization: get(AuthorizationHeader),
		AgentToken:    get(AgentTokenHeader),
	}
}

// AgentLookup finds the agent owning a token digest.
type AgentLookup interface {
	AgentByTokenHash(ctx context.Context, hash string) (*mission.Agent, error)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// JWTSecret verifies user tokens (HS256).
	JWTSecret []byte

	// JWTIssuer, when set, must match the "iss" claim.
	JWTIssuer string

	// Agents resolves agent tokens.
	Agents AgentLookup
}

// Resolver turns request credentials into an Actor.
type Resolver struct {
	secret []byte
	agents AgentLookup
	parser *jwt.Parser
}

// NewResolver validates cfg and returns a Resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.Agents == nil {
		return nil, errors.New("agent lookup is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}

	return &Resolver{
		secret: cfg.JWTSecret,
		agents: cfg.Agents,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Resolve authenticates creds. An agent token takes precedence over a
// bearer token. Missing or invalid credentials return an error wrapping
// ErrUnauthorized; storage failures are returned as they are.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (*Actor, error) {
	if token := strings.TrimSpace(creds.AgentToken); token != "" {
		return r.resolveAgent(ctx, token)
	}

	scheme, token, ok := strings.Cut(strings.TrimSpace(creds.Authorization), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: missing credentials", ErrUnauthorized)
	}
	return r.resolveUser(strings.TrimSpace(token))
}

func (r *Resolver) resolveUser(token string) (*Actor, error) {
	var claims Claims
	_, err := r.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.OrgID == "" {
		return nil, fmt.Errorf("%w: token is missing sub or org_id", ErrUnauthorized)
	}

	return &Actor{Type: TypeUser, UserID: claims.Subject, OrgID: claims.OrgID}, nil
}

func (r *Resolver) resolveAgent(ctx context.Context, token string) (*Actor, error) {
	agent, err := r.agents.AgentByTokenHash(ctx, HashToken(token))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: unknown agent token", ErrUnauthorized)
		}
		return nil, fmt.Errorf("resolving agent token: %w", err)
	}

	return &Actor{Type: TypeAgent, AgentID: agent.ID, OrgID: agent.OrgID, BoardID: agent.BoardID}, nil
}
