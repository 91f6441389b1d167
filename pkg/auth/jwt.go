package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "realtime-collab"

var ErrNoSubject = errors.New("no sub")

type ctxKey int

const claimsKey ctxKey = 1

// Claims is what a bearer token says about its holder
type Claims struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Guest    bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject, i.e. the user id
func (c *Claims) UserID() string { return c.Subject }

// WithClaims adds verified claims to the context
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// FromContext extracts the claims put there by the auth middleware
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// JWT wraps a signing secret for issuing/verifying tokens
type JWT struct {
	secret []byte
	now    func() time.Time
}

// New creates a new JWT signer/verifier.
func New(secret string) *JWT { return &JWT{secret: []byte(secret), now: time.Now} }

// Verify checks a token signature and expiry and returns its claims
func (j *JWT) Verify(tok string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrNoSubject
	}
	return claims, nil
}

// Sign creates a token for uid with the given TTL; each token gets a unique id for revocation
func (j *JWT) Sign(uid, username, email string, guest bool, ttl time.Duration) (string, *Claims, error) {
	if uid == "" {
		return "", nil, errors.New("empty uid")
	}
	now := j.now()
	claims := &Claims{
		Username: username,
		Email:    email,
		Guest:    guest,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   uid,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", nil, err
	}
	return tok, claims, nil
}
