package actor

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zeebo/blake3"
)

// AgentTokenPrefix marks mission control agent tokens so they are easy to
// spot in logs and secret scanners.
const AgentTokenPrefix = "mca_"

// Claims are the JWT claims of a user token. The subject is the user id.
type Claims struct {
	OrgID string `json:"org_id"`
	jwt.RegisteredClaims
}

// IssueUserToken signs an HS256 token for userID in orgID valid for ttl.
// An empty issuer leaves the "iss" claim unset.
func IssueUserToken(secret []byte, issuer, userID, orgID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is required")
	}
	if userID == "" || orgID == "" {
		return "", errors.New("user id and org id are required")
	}

	now := time.Now()
	claims := Claims{
		OrgID: orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing user token: %w", err)
	}
	return signed, nil
}

// NewAgentToken returns a random plaintext agent token and the digest that
// is persisted in its place.
func NewAgentToken() (token, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating agent token: %w", err)
	}

	token = AgentTokenPrefix + base64.RawURLEncoding.EncodeToString(buf)
	return token, HashToken(token), nil
}

// HashToken returns the hex BLAKE3 digest of an agent token.
func HashToken(token string) string {
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
