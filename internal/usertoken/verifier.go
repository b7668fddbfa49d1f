// Package usertoken verifies ID tokens minted by an external issuer that
// publishes its RSA keys as a JWKS document.
package usertoken

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"lmsapi/pkg/domain"
	"lmsapi/pkg/identity"
)

const (
	defaultLeeway      = 30 * time.Second
	defaultKeysTTL     = 5 * time.Minute
	minRefreshInterval = 10 * time.Second
	fetchTimeout       = 5 * time.Second
)

var (
	// ErrInvalidToken wraps every verification failure.
	ErrInvalidToken = errors.New("invalid external token")

	errUnknownKey = errors.New("unknown signing key")
)

// Config names the issuer. Issuer and Audience default to the local identity
// provider's values.
type Config struct {
	JWKSURL    string
	Issuer     string
	Audience   string
	Leeway     time.Duration
	HTTPClient *http.Client
}

// Verifier checks RS256 tokens against a cached copy of the issuer's keys.
// An unknown kid triggers a refetch, at most once per minRefreshInterval.
type Verifier struct {
	jwksURL string
	client  *http.Client
	parser  *jwt.Parser
	now     func() time.Time

	mu          sync.Mutex
	keys        map[string]*rsa.PublicKey
	expires     time.Time
	lastFetched time.Time
}

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewVerifier fetches the key set once so that a bad URL fails at startup.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" {
		return nil, errors.New("usertoken: jwksURL is required")
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = identity.DefaultIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = identity.DefaultAudience
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}

	v := &Verifier{
		jwksURL: jwksURL,
		client:  client,
		now:     time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithIssuedAt(),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(leeway),
		),
	}
	if err := v.refresh(ctx, true); err != nil {
		return nil, err
	}
	return v, nil
}

// VerifyIDToken returns the token's subject, email and role claim.
func (v *Verifier) VerifyIDToken(ctx context.Context, token string) (domain.IDToken, error) {
	token = strings.TrimSpace(token)
	c, err := v.parse(token)
	if errors.Is(err, errUnknownKey) || (err != nil && v.stale()) {
		if refreshErr := v.refresh(ctx, false); refreshErr != nil {
			return domain.IDToken{}, fmt.Errorf("%w: %v", ErrInvalidToken, refreshErr)
		}
		c, err = v.parse(token)
	}
	if err != nil {
		return domain.IDToken{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	uid := strings.TrimSpace(c.Subject)
	if uid == "" {
		return domain.IDToken{}, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return domain.IDToken{UID: uid, Email: c.Email, Role: c.Role}, nil
}

func (v *Verifier) parse(token string) (*tokenClaims, error) {
	c := &tokenClaims{}
	_, err := v.parser.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key := v.key(strings.TrimSpace(kid))
		if key == nil {
			return nil, errUnknownKey
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (v *Verifier) key(kid string) *rsa.PublicKey {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.keys[kid]
}

func (v *Verifier) stale() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now().After(v.expires)
}

// refresh replaces the key set. Unless force is set, a fetch within
// minRefreshInterval of the previous one is skipped.
func (v *Verifier) refresh(ctx context.Context, force bool) error {
	v.mu.Lock()
	if !force && v.now().Sub(v.lastFetched) < minRefreshInterval {
		v.mu.Unlock()
		return nil
	}
	v.lastFetched = v.now()
	v.mu.Unlock()

	keys, ttl, err := v.fetch(ctx)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.keys = keys
	v.expires = v.now().Add(ttl)
	v.mu.Unlock()
	return nil
}

func (v *Verifier) fetch(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}

	var set identity.JWKSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, 0, fmt.Errorf("decode jwks: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		kid := strings.TrimSpace(jwk.Kid)
		if kid == "" || !strings.EqualFold(jwk.Kty, "RSA") {
			continue
		}
		pub, err := publicKey(jwk)
		if err != nil {
			continue
		}
		keys[kid] = pub
	}
	if len(keys) == 0 {
		return nil, 0, errors.New("jwks has no usable rsa keys")
	}

	ttl := maxAge(resp.Header.Get("Cache-Control"))
	if ttl <= 0 {
		ttl = defaultKeysTTL
	}
	return keys, ttl, nil
}

func publicKey(jwk identity.JWK) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(jwk.N))
	if err != nil {
		return nil, err
	}
	e, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(jwk.E))
	if err != nil {
		return nil, err
	}
	modulus := new(big.Int).SetBytes(n)
	exponent := new(big.Int).SetBytes(e)
	if modulus.Sign() <= 0 || !exponent.IsInt64() || exponent.Int64() <= 0 || exponent.Int64() > 1<<31-1 {
		return nil, errors.New("invalid rsa key")
	}
	return &rsa.PublicKey{N: modulus, E: int(exponent.Int64())}, nil
}

// maxAge reads max-age from a Cache-Control header; zero when absent.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}
