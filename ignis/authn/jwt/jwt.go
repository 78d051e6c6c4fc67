// Package jwt is a sample authn.Strategy (spec §4.7): it verifies the outer
// JWT structure with a configured secret and HS256 by default, keeps the
// standard registered claims verbatim, and symmetric-encrypts every
// non-standard claim (keys and values alike), transporting roles as
// pipe-separated "id|identifier|priority" strings first.
package jwt

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/ignis-framework/ignis/ignis/authn"
	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/rs/xid"
)

// revokedCacheSize bounds the revoked-jti cache; entries age out on their
// own once the underlying token would have expired anyway.
const revokedCacheSize = 8192

// Claims is the wire shape of an Ignis JWT: standard registered claims are
// preserved verbatim, everything else travels encrypted inside Enc.
type Claims struct {
	jwt.RegisteredClaims
	Enc map[string]string `json:"enc,omitempty"`
}

// Options configures token issuance and verification.
type Options struct {
	Secret                    string
	Issuer                    string
	AccessTokenExpireDuration time.Duration
}

// GenerateAccessToken issues a signed access token for subject, embedding
// custom (non-standard) claims encrypted under opts.Secret.
func GenerateAccessToken(opts Options, subject string, custom map[string]any) (string, error) {
	now := time.Now()
	enc, err := encryptClaims(opts.Secret, custom)
	if err != nil {
		return "", igniserr.Wrap(igniserr.KindUnauthenticated, err, "failed to encrypt claims")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			Issuer:    opts.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(opts.AccessTokenExpireDuration)),
		},
		Enc: enc,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(opts.Secret))
	if err != nil {
		return "", igniserr.Wrap(igniserr.KindUnauthenticated, err, "failed to sign token")
	}
	return token, nil
}

// ParseToken verifies tokenStr and decrypts its non-standard claims.
func ParseToken(opts Options, tokenStr string) (*Claims, map[string]string, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return []byte(opts.Secret), nil
	})
	if err != nil {
		switch {
		case errorsIsExpired(err):
			return nil, nil, igniserr.Wrap(igniserr.KindUnauthenticated, err, "token expired")
		default:
			return nil, nil, igniserr.Wrap(igniserr.KindUnauthenticated, err, "invalid token")
		}
	}
	if !token.Valid {
		return nil, nil, igniserr.New(igniserr.KindUnauthenticated, "invalid token")
	}
	if opts.Issuer != "" && claims.Issuer != opts.Issuer {
		return nil, nil, igniserr.New(igniserr.KindUnauthenticated, "invalid token issuer")
	}

	custom, err := decryptClaims(opts.Secret, claims.Enc)
	if err != nil {
		return nil, nil, igniserr.Wrap(igniserr.KindUnauthenticated, err, "failed to decrypt claims")
	}
	return claims, custom, nil
}

func errorsIsExpired(err error) bool {
	return err != nil && strings.Contains(err.Error(), "expired")
}

// Strategy is the authn.Strategy implementation.
type Strategy struct {
	opts    Options
	revoked *expirable.LRU[string, struct{}]
}

// New builds a JWT Strategy. It keeps an expirable LRU of revoked token
// IDs, bounded at revokedCacheSize entries and TTL'd to the access-token
// lifetime (one hour when unset) so a revocation never has to be remembered
// past the point the token would have expired anyway.
func New(opts Options) *Strategy {
	ttl := opts.AccessTokenExpireDuration
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Strategy{
		opts:    opts,
		revoked: expirable.NewLRU[string, struct{}](revokedCacheSize, nil, ttl),
	}
}

func (s *Strategy) Name() string { return "jwt" }

// Revoke marks a token's jti as no longer valid. It is a no-op past the
// token's own expiry, since the cache entry ages out on the same TTL.
func (s *Strategy) Revoke(jti string) {
	if jti != "" {
		s.revoked.Add(jti, struct{}{})
	}
}

// Authenticate extracts a Bearer token from the Authorization header,
// verifies it, and builds the authenticated authn.User from its (decrypted)
// custom claims. A missing header means the strategy simply does not
// apply — it returns (nil, nil), not an error, so `mode=any` can fall
// through to the next strategy.
func (s *Strategy) Authenticate(ctx context.Context, r authn.Request) (*authn.User, error) {
	header := r.Header("Authorization")
	if header == "" {
		return nil, nil
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, igniserr.New(igniserr.KindUnauthenticated, "malformed Authorization header")
	}

	claims, custom, err := ParseToken(s.opts, parts[1])
	if err != nil {
		return nil, err
	}
	if _, revoked := s.revoked.Get(claims.ID); revoked {
		return nil, igniserr.New(igniserr.KindUnauthenticated, "token has been revoked")
	}

	user := &authn.User{ID: custom["userId"], Extra: make(map[string]any)}
	if rolesStr, ok := custom["roles"]; ok && rolesStr != "" {
		for _, part := range strings.Split(rolesStr, ",") {
			role, err := ParseRole(part)
			if err != nil {
				return nil, err
			}
			user.Roles = append(user.Roles, role.Identifier)
		}
	}
	for k, v := range custom {
		if k == "userId" || k == "roles" {
			continue
		}
		user.Extra[k] = v
	}
	return user, nil
}
