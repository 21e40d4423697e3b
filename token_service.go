package activation

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenTTL is how long an activation link stays redeemable
const DefaultTokenTTL = 24 * time.Hour

// JWTCodec implements TokenCodec with HMAC signed JWTs
type JWTCodec struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	now        func() time.Time
	logger     Logger
}

var _ TokenCodec = (*JWTCodec)(nil)

// NewTokenCodec creates a new JWTCodec instance
func NewTokenCodec(signingKey []byte, ttl time.Duration, issuer string, logger Logger) *JWTCodec {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTCodec{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		now:        time.Now,
		logger:     normalizeLogger(logger),
	}
}

// WithClock injects a custom clock (useful for tests)
func (c *JWTCodec) WithClock(clock func() time.Time) *JWTCodec {
	if clock != nil {
		c.now = clock
	}
	return c
}

// Sign signs arbitrary claims. Activation claims get issuer, expiration,
// and a unique token id filled in when missing.
func (c *JWTCodec) Sign(claims jwt.Claims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	if ac, ok := claims.(*ActivationClaims); ok {
		c.stamp(&ac.RegisteredClaims)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign activation token")
	}

	return signed, nil
}

// DryVerify decodes and validates a token without failing the caller.
// It returns false for malformed, tampered, or expired tokens.
func (c *JWTCodec) DryVerify(tokenString string) (*ActivationClaims, bool) {
	if tokenString == "" {
		return nil, false
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(c.issuer))
	}

	claims := &ActivationClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.signingKey, nil
	}, parserOptions...)

	if err != nil {
		c.logger.Debug("activation token rejected: %v", err)
		return nil, false
	}

	if !token.Valid {
		return nil, false
	}

	return claims, true
}

func (c *JWTCodec) stamp(rc *jwt.RegisteredClaims) {
	now := c.now()
	if rc.Issuer == "" {
		rc.Issuer = c.issuer
	}
	if rc.IssuedAt == nil {
		rc.IssuedAt = jwt.NewNumericDate(now)
	}
	if rc.ExpiresAt == nil {
		rc.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttl))
	}
	if rc.ID == "" {
		rc.ID = uuid.NewString()
	}
}
