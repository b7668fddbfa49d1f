package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"lmsapi/internal/util"
	"lmsapi/pkg/domain"
	"lmsapi/pkg/events"
	"lmsapi/pkg/identity"
	"lmsapi/pkg/search"
	"lmsapi/pkg/storage"
	"lmsapi/pkg/store"
)

const defaultEventTimeout = 3 * time.Second

// IdentityProvider manages the credential side of users.
type IdentityProvider interface {
	CreateUser(ctx context.Context, email, password, displayName string) (identity.Account, error)
	SetCustomClaims(ctx context.Context, uid string, role domain.Role) error
	UpdateUser(ctx context.Context, uid string, upd identity.AccountUpdate) (identity.Account, error)
	SignIn(ctx context.Context, email, password string) (identity.Session, error)
}

// Config holds the collaborators of the application core.
type Config struct {
	Store    store.Store
	Identity IdentityProvider
	// Storage is optional; signed URL operations fail without it.
	Storage storage.SignedURLs
	// Events defaults to events.Noop.
	Events events.Publisher
	// Search defaults to filtering the store listing.
	Search       search.CourseIndex
	EventTimeout time.Duration
	Now          func() time.Time
}

// App holds the LMS use cases behind the HTTP API.
type App struct {
	store        store.Store
	identity     IdentityProvider
	files        storage.SignedURLs
	events       events.Publisher
	search       search.CourseIndex
	validate     *validator.Validate
	eventTimeout time.Duration
	now          func() time.Time
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Identity == nil {
		return nil, errors.New("identity provider is required")
	}
	a := &App{
		store:        cfg.Store,
		identity:     cfg.Identity,
		files:        cfg.Storage,
		events:       cfg.Events,
		search:       cfg.Search,
		validate:     validator.New(),
		eventTimeout: cfg.EventTimeout,
		now:          cfg.Now,
	}
	if a.events == nil {
		a.events = events.Noop{}
	}
	if a.search == nil {
		a.search = search.NewStoreIndex(cfg.Store)
	}
	if a.eventTimeout <= 0 {
		a.eventTimeout = defaultEventTimeout
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// Store exposes the backing store to the transport layer for the gates.
func (a *App) Store() store.Store {
	return a.store
}

func (a *App) clock() time.Time {
	return a.now().UTC()
}

// check validates v and maps any failure to a bad request carrying msg.
func (a *App) check(v any, msg string) error {
	if err := a.validate.Struct(v); err != nil {
		return badRequest(msg)
	}
	return nil
}

// publish delivers a domain event. Failures are logged and never returned.
func (a *App) publish(ctx context.Context, eventType string, data any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.eventTimeout)
	defer cancel()
	if err := a.events.Publish(ctx, events.New(eventType, data)); err != nil {
		logger(ctx).Warn("event publish failed", "type", eventType, "err", err)
	}
}

func logger(ctx context.Context) *slog.Logger {
	return util.LoggerFromContext(ctx)
}
