// Package token signs and verifies the compact, self-contained JWTs used for
// login sessions and password resets. Tokens are never stored server-side;
// expiry is the only way one stops working.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLen is the shortest HMAC secret NewCodec accepts.
const MinSecretLen = 16

var (
	// ErrInvalidToken is returned for every verification failure: bad
	// signature, expiry, wrong issuer or audience, or a malformed string.
	ErrInvalidToken = errors.New("invalid token")

	// ErrWeakSecret is returned by NewCodec for secrets shorter than MinSecretLen.
	ErrWeakSecret = errors.New("token: signing secret too short")
)

// Scope binds a token to one flow. A token signed for one scope never
// verifies under another.
type Scope struct {
	Issuer   string
	Audience string
}

var (
	// AccessScope is used for tokens returned by login, register and reset.
	AccessScope = Scope{Issuer: "login", Audience: "users"}

	// ResetScope is used for the e-mailed password reset token.
	ResetScope = Scope{Issuer: "forget", Audience: "users"}
)

// Claims is the payload carried by every token. ID, Name and Email are
// application claims; the registered claims carry sub, iss, aud, iat, exp.
type Claims struct {
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SignOptions are the registered fields set at signing time.
type SignOptions struct {
	ExpiresIn time.Duration
	Subject   string
	Scope     Scope
}

// Codec signs and verifies HS256 tokens with a single process-wide secret.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a Codec. The secret is copied so later mutation of the
// caller's slice has no effect.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrWeakSecret
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sign produces a signed token carrying claims plus iat, exp, sub, iss and
// aud taken from opts. Registered claims already present on claims are
// overwritten.
func (c *Codec) Sign(claims Claims, opts SignOptions) (string, error) {
	if opts.ExpiresIn <= 0 {
		return "", fmt.Errorf("token: expiry must be positive")
	}

	now := c.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   opts.Subject,
		Issuer:    opts.Scope.Issuer,
		Audience:  jwt.ClaimStrings{opts.Scope.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(opts.ExpiresIn)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: signing: %w", err)
	}
	return signed, nil
}

// Verify parses raw and checks signature, expiry and scope. Every failure
// wraps ErrInvalidToken; callers cannot tell an expired token from a
// malformed one.
func (c *Codec) Verify(raw string, scope Scope) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(scope.Issuer),
		jwt.WithAudience(scope.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, jwt.ErrSignatureInvalid
	}
	return c.secret, nil
}
