package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14

	minSecretLen = 32
)

// KeyRing holds the signing key plus previous keys still accepted for
// verification. Keys are addressed by the kid JWT header.
type KeyRing struct {
	activeID string
	keys     map[string][]byte
}

// NewKeyRing builds a ring signing with (activeID, secret) that also verifies
// tokens minted under any key in previous.
func NewKeyRing(activeID string, secret []byte, previous map[string][]byte) (*KeyRing, error) {
	activeID = strings.TrimSpace(activeID)
	if activeID == "" {
		return nil, errors.New("auth: key id is required")
	}
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("auth: signing secret must be at least %d bytes", minSecretLen)
	}
	ring := &KeyRing{activeID: activeID, keys: map[string][]byte{activeID: secret}}
	for kid, key := range previous {
		kid = strings.TrimSpace(kid)
		if kid == "" || kid == activeID {
			return nil, fmt.Errorf("auth: invalid previous key id %q", kid)
		}
		if len(key) < minSecretLen {
			return nil, fmt.Errorf("auth: previous key %q must be at least %d bytes", kid, minSecretLen)
		}
		ring.keys[kid] = key
	}
	return ring, nil
}

// ParsePreviousKeys parses "kid1:secret1,kid2:secret2".
func ParsePreviousKeys(raw string) (map[string][]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := make(map[string][]byte)
	for _, item := range strings.Split(raw, ",") {
		kid, secret, ok := strings.Cut(strings.TrimSpace(item), ":")
		if !ok || strings.TrimSpace(kid) == "" || secret == "" {
			return nil, fmt.Errorf("auth: malformed previous key entry %q", item)
		}
		out[strings.TrimSpace(kid)] = []byte(secret)
	}
	return out, nil
}

// ActiveKeyID returns the kid stamped on newly minted tokens.
func (k *KeyRing) ActiveKeyID() string { return k.activeID }

func (k *KeyRing) lookup(kid string) ([]byte, bool) {
	key, ok := k.keys[kid]
	return key, ok
}

type tokenSettings struct {
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption configures an Issuer or Verifier.
type TokenOption func(*tokenSettings)

// WithIssuer sets the iss claim written and required.
func WithIssuer(issuer string) TokenOption {
	return func(s *tokenSettings) { s.issuer = strings.TrimSpace(issuer) }
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *tokenSettings) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *tokenSettings) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(s *tokenSettings) {
		if fn != nil {
			s.now = fn
		}
	}
}

func newTokenSettings(opts []TokenOption) tokenSettings {
	s := tokenSettings{accessTTL: defaultAccessTTL, refreshTTL: defaultRefreshTTL, now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Issuer mints HS256 token pairs.
type Issuer struct {
	keys *KeyRing
	tokenSettings
}

// NewIssuer constructs an Issuer signing with the ring's active key.
func NewIssuer(keys *KeyRing, opts ...TokenOption) (*Issuer, error) {
	if keys == nil {
		return nil, errors.New("auth: key ring is required")
	}
	return &Issuer{keys: keys, tokenSettings: newTokenSettings(opts)}, nil
}

// Issue mints an access/refresh pair for userID stamped with the user's
// current token generation.
func (i *Issuer) Issue(userID string, generation int64) (TokenPair, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return TokenPair{}, errors.New("auth: userID is required")
	}
	now := i.now()
	access, accessExp, err := i.sign(userID, generation, TokenTypeAccess, now, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := i.sign(userID, generation, TokenTypeRefresh, now, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) sign(userID string, generation int64, typ TokenType, now time.Time, ttl time.Duration) (string, time.Time, error) {
	claims := Claims{
		TokenType:  typ,
		Generation: generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	kid := i.keys.ActiveKeyID()
	token.Header["kid"] = kid
	key, _ := i.keys.lookup(kid)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verifier validates tokens and, for refresh tokens, consults the ledger.
type Verifier struct {
	keys   *KeyRing
	ledger RevocationLedger
	tokenSettings
}

// NewVerifier constructs a Verifier. ledger may only be nil when refresh
// tokens are never verified.
func NewVerifier(keys *KeyRing, ledger RevocationLedger, opts ...TokenOption) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("auth: key ring is required")
	}
	return &Verifier{keys: keys, ledger: ledger, tokenSettings: newTokenSettings(opts)}, nil
}

// Verify checks, in order: signature (ErrInvalidSignature), expiry (ErrExpired),
// token type (ErrWrongType) and, for refresh tokens, revocation (ErrRevoked).
func (v *Verifier) Verify(ctx context.Context, raw string, expected TokenType) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	if _, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, v.keyFunc); err != nil {
		return nil, classifyJWTError(err)
	}
	if claims.TokenType != expected {
		return nil, ErrWrongType
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.ID) == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}

	if expected == TokenTypeRefresh {
		if v.ledger == nil {
			return nil, errors.New("auth: revocation ledger not configured")
		}
		revoked, err := v.ledger.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("revocation lookup: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	return claims, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	key, ok := v.keys.lookup(kid)
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return key, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrInvalidToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrInvalidToken
	}
}
