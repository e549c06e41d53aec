package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/torqueshop/torqueshop/internal/platform/httpx"
)

// Codec failure kinds. Exactly two verification outcomes exist: a lapsed
// claim and everything else. Both classify as unauthenticated; callers never
// see parsing internals.
var (
	ErrTokenMissing = fmt.Errorf("%w: no credential presented", httpx.ErrUnauthenticated)
	ErrTokenExpired = fmt.Errorf("%w: token expired", httpx.ErrUnauthenticated)
	ErrTokenInvalid = fmt.Errorf("%w: token invalid", httpx.ErrUnauthenticated)
)

// Codec issues and verifies signed, time-limited identity claims.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec constructs a Codec. The signing key is injected configuration;
// there is no fallback key in any environment.
func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret must be provided")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs a claim for the subject with an absolute expiry of one TTL
// from now. The subject travels as a decimal string per the wire format.
func (c *Codec) Issue(subjectID int64, role Role) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("auth: unknown role %q", role)
	}
	now := c.now().UTC()
	claims := tokenClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks signature, structure and expiry, in that order, and returns
// the embedded identity. Failures are ErrTokenExpired or ErrTokenInvalid,
// never anything else.
func (c *Codec) Verify(token string) (Identity, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenInvalid
	}

	subjectID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Identity{}, ErrTokenInvalid
	}
	role := Role(claims.Role)
	if !role.Valid() {
		return Identity{}, ErrTokenInvalid
	}
	return Identity{SubjectID: subjectID, Role: role}, nil
}

// TTL exposes the configured claim lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}
