package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultIssuer   = "lms-identity"
	DefaultAudience = "lms-api"
	DefaultKeyID    = "lms-active"
	DefaultTokenTTL = time.Hour

	defaultLeeway = 30 * time.Second
	ephemeralBits = 2048
)

// SignerConfig selects the signing key and token claims.
// PrivateKeyPEM wins over PrivateKeyPath; with neither an ephemeral key is generated.
type SignerConfig struct {
	Issuer         string
	Audience       string
	PrivateKeyPEM  string
	PrivateKeyPath string
	KeyID          string
	TTL            time.Duration
	Leeway         time.Duration
}

// Claims is the ID token payload.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWK is one RSA public key in a JWKS document.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSet is the body served at /.well-known/jwks.json.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// Signer issues and parses RS256 ID tokens.
type Signer struct {
	key      *rsa.PrivateKey
	kid      string
	issuer   string
	audience string
	ttl      time.Duration
	leeway   time.Duration
}

// NewSigner loads (or generates) the RSA key and normalizes claim options.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	key, err := loadSigningKey(cfg)
	if err != nil {
		return nil, err
	}
	s := &Signer{
		key:      key,
		kid:      strings.TrimSpace(cfg.KeyID),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		ttl:      cfg.TTL,
		leeway:   cfg.Leeway,
	}
	if s.kid == "" {
		s.kid = DefaultKeyID
	}
	if s.issuer == "" {
		s.issuer = DefaultIssuer
	}
	if s.audience == "" {
		s.audience = DefaultAudience
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTokenTTL
	}
	if s.leeway <= 0 {
		s.leeway = defaultLeeway
	}
	return s, nil
}

// TTL is the lifetime of issued tokens.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign issues a token for uid. role may be empty.
func (s *Signer) Sign(uid, email, role string, now time.Time) (string, error) {
	now = now.UTC()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid
	return token.SignedString(s.key)
}

// Parse validates signature, issuer, audience and time claims.
func (s *Signer) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("invalid token format")
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if strings.TrimSpace(kid) != s.kid {
			return nil, errors.New("unknown token key")
		}
		return &s.key.PublicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token subject missing")
	}
	return claims, nil
}

// JWKS publishes the verification key.
func (s *Signer) JWKS() JWKSet {
	pub := s.key.PublicKey
	return JWKSet{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Kid: s.kid,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}}
}

func loadSigningKey(cfg SignerConfig) (*rsa.PrivateKey, error) {
	if raw := strings.TrimSpace(cfg.PrivateKeyPEM); raw != "" {
		// Env-provided keys often carry escaped newlines.
		key, err := parseRSAPrivateKey([]byte(strings.ReplaceAll(raw, `\n`, "\n")))
		if err != nil {
			return nil, fmt.Errorf("parse identity private key: %w", err)
		}
		return key, nil
	}
	if path := strings.TrimSpace(cfg.PrivateKeyPath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read identity private key: %w", err)
		}
		key, err := parseRSAPrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parse identity private key %s: %w", path, err)
		}
		return key, nil
	}
	slog.Warn("identity signing key not configured; generating an ephemeral key")
	key, err := rsa.GenerateKey(rand.Reader, ephemeralBits)
	if err != nil {
		return nil, fmt.Errorf("generate identity key: %w", err)
	}
	return key, nil
}

func parseRSAPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("invalid pem")
	}
	if pkcs1, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return pkcs1, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	privateKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not rsa")
	}
	return privateKey, nil
}
