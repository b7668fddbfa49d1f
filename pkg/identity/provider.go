package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lmsapi/internal/util"
	"lmsapi/pkg/auth"
	"lmsapi/pkg/domain"
)

var (
	ErrInvalidEmail       = errors.New("the email address is improperly formatted")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("the user account has been disabled")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AccountUpdate carries optional profile changes; nil fields are left alone.
type AccountUpdate struct {
	Email       *string
	DisplayName *string
	Disabled    *bool
}

// Session is the result of a successful sign-in.
type Session struct {
	IDToken   string `json:"idToken"`
	ExpiresIn int64  `json:"expiresIn"`
	UID       string `json:"uid"`
}

// Provider is the local identity provider: accounts, sign-in and ID token verification.
type Provider struct {
	accounts Accounts
	signer   *Signer
	revoker  Revoker
	now      func() time.Time
}

// NewProvider wires the provider. A nil revoker falls back to in-memory cutoffs.
func NewProvider(accounts Accounts, signer *Signer, revoker Revoker) *Provider {
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &Provider{accounts: accounts, signer: signer, revoker: revoker, now: time.Now}
}

// CreateUser registers a new account with a bcrypt password hash.
func (p *Provider) CreateUser(ctx context.Context, email, password, displayName string) (Account, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return Account{}, ErrInvalidEmail
	}
	if err := auth.ValidatePassword(password); err != nil {
		return Account{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}
	now := p.now().UTC()
	a := Account{
		UID:          util.NewID(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(displayName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.accounts.CreateAccount(ctx, a); err != nil {
		return Account{}, err
	}
	return a, nil
}

// GetUser returns the account for uid.
func (p *Provider) GetUser(ctx context.Context, uid string) (Account, error) {
	a, ok, err := p.accounts.GetAccount(ctx, uid)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

// SetCustomClaims sets the role claim carried by tokens issued from now on.
func (p *Provider) SetCustomClaims(ctx context.Context, uid string, role domain.Role) error {
	a, err := p.GetUser(ctx, uid)
	if err != nil {
		return err
	}
	a.Role = string(role)
	a.UpdatedAt = p.now().UTC()
	return p.accounts.SaveAccount(ctx, a)
}

// UpdateUser applies profile changes. Disabling an account revokes its outstanding tokens.
func (p *Provider) UpdateUser(ctx context.Context, uid string, upd AccountUpdate) (Account, error) {
	a, err := p.GetUser(ctx, uid)
	if err != nil {
		return Account{}, err
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if !validEmail(email) {
			return Account{}, ErrInvalidEmail
		}
		a.Email = email
	}
	if upd.DisplayName != nil {
		a.DisplayName = strings.TrimSpace(*upd.DisplayName)
	}
	disabling := upd.Disabled != nil && *upd.Disabled && !a.Disabled
	if upd.Disabled != nil {
		a.Disabled = *upd.Disabled
	}
	now := p.now().UTC()
	a.UpdatedAt = now
	if err := p.accounts.SaveAccount(ctx, a); err != nil {
		return Account{}, err
	}
	if disabling {
		if err := p.revoker.RevokeUser(ctx, uid, now, p.signer.TTL()); err != nil {
			return Account{}, fmt.Errorf("revoke tokens: %w", err)
		}
	}
	return a, nil
}

// SignIn checks credentials and issues an ID token.
func (p *Provider) SignIn(ctx context.Context, email, password string) (Session, error) {
	a, ok, err := p.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if !ok || !auth.CheckPassword(password, a.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	if a.Disabled {
		return Session{}, ErrAccountDisabled
	}
	token, err := p.signer.Sign(a.UID, a.Email, a.Role, p.now())
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{IDToken: token, ExpiresIn: int64(p.signer.TTL() / time.Second), UID: a.UID}, nil
}

// VerifyIDToken validates a token and applies the per-user revocation cutoff.
func (p *Provider) VerifyIDToken(ctx context.Context, token string) (domain.IDToken, error) {
	claims, err := p.signer.Parse(token)
	if err != nil {
		return domain.IDToken{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	cutoff, err := p.revoker.RevokedAfter(ctx, claims.Subject)
	if err != nil {
		slog.Warn("revocation lookup failed", "uid", claims.Subject, "err", err)
		return domain.IDToken{}, fmt.Errorf("%w: revocation lookup: %v", ErrInvalidToken, err)
	}
	if !cutoff.IsZero() && !claims.IssuedAt.Time.After(cutoff) {
		return domain.IDToken{}, fmt.Errorf("%w: token revoked", ErrInvalidToken)
	}
	return domain.IDToken{UID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// JWKS publishes the signing key.
func (p *Provider) JWKS() JWKSet {
	return p.signer.JWKS()
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
