package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lmsapi/pkg/domain"
	"lmsapi/pkg/events"
	"lmsapi/pkg/identity"
	"lmsapi/pkg/store"
)

var (
	signerOnce sync.Once
	signer     *identity.Signer
	signerErr  error
)

func testSigner(t *testing.T) *identity.Signer {
	t.Helper()
	signerOnce.Do(func() {
		signer, signerErr = identity.NewSigner(identity.SignerConfig{TTL: time.Minute})
	})
	if signerErr != nil {
		t.Fatalf("new signer: %v", signerErr)
	}
	return signer
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeFiles struct {
	objects map[string]bool
	statErr error
}

func (f *fakeFiles) PresignPut(_ context.Context, key, contentType string, expiry time.Duration) (string, error) {
	return "https://files.test/put/" + key + "?ct=" + contentType + "&exp=" + expiry.String(), nil
}

func (f *fakeFiles) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	return "https://files.test/get/" + key + "?exp=" + expiry.String(), nil
}

func (f *fakeFiles) Exists(_ context.Context, key string) (bool, error) {
	if f.statErr != nil {
		return false, f.statErr
	}
	return f.objects[key], nil
}

type testEnv struct {
	app      *App
	store    *store.MemoryStore
	accounts *identity.MemoryAccounts
	provider *identity.Provider
	events   *recordingPublisher
	files    *fakeFiles
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    store.NewMemoryStore(),
		accounts: identity.NewMemoryAccounts(),
		events:   &recordingPublisher{},
		files:    &fakeFiles{objects: map[string]bool{}},
		now:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	env.provider = identity.NewProvider(env.accounts, testSigner(t), nil)
	a, err := New(Config{
		Store:    env.store,
		Identity: env.provider,
		Storage:  env.files,
		Events:   env.events,
		Now:      func() time.Time { return env.now },
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	env.app = a
	return env
}

func expectKind(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	appErr, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if appErr.Kind != kind || appErr.Message != msg {
		t.Fatalf("expected kind %d %q, got kind %d %q", kind, msg, appErr.Kind, appErr.Message)
	}
}

func strPtr(s string) *string { return &s }

func TestNewRequiresStoreAndIdentity(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := New(Config{Store: store.NewMemoryStore()}); err == nil {
		t.Fatalf("expected error without identity provider")
	}
}

func TestRegisterCreatesStudent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	reg, err := env.app.Register(ctx, RegisterInput{Email: "siti@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Name != "siti" || reg.Role != domain.RoleStudent || reg.UID == "" {
		t.Fatalf("unexpected registration: %+v", reg)
	}
	user, ok, err := env.store.GetUser(ctx, reg.UID)
	if err != nil || !ok {
		t.Fatalf("expected stored user, ok=%v err=%v", ok, err)
	}
	if !user.IsActive || user.TotalPoints != 0 || user.Role != domain.RoleStudent {
		t.Fatalf("unexpected user record: %+v", user)
	}
	account, err := env.provider.GetUser(ctx, reg.UID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Role != string(domain.RoleStudent) || account.DisplayName != "siti" {
		t.Fatalf("unexpected account: %+v", account)
	}
	if got := env.events.types(); len(got) != 1 || got[0] != events.TypeUserRegistered {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestRegisterErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.app.Register(ctx, RegisterInput{Email: "a@example.com"})
	expectKind(t, err, KindBadRequest, "email and password are required")

	if _, err := env.app.Register(ctx, RegisterInput{Email: "a@example.com", Password: "secret1", Name: "A"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err = env.app.Register(ctx, RegisterInput{Email: "A@example.com", Password: "secret1"})
	if !errors.Is(err, identity.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
	if _, ok := AsError(err); ok {
		t.Fatalf("identity errors must not be classified")
	}
}

func TestRegisterSurvivesPublishFailure(t *testing.T) {
	env := newTestEnv(t)
	env.events.err = errors.New("broker down")
	if _, err := env.app.Register(context.Background(), RegisterInput{Email: "b@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("register should ignore publish failures: %v", err)
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	reg, err := env.app.Register(ctx, RegisterInput{Email: "c@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	session, err := env.app.Login(ctx, LoginInput{Email: "c@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.UID != reg.UID || session.IDToken == "" || session.ExpiresIn != 60 {
		t.Fatalf("unexpected session: %+v", session)
	}

	_, err = env.app.Login(ctx, LoginInput{Email: "c@example.com", Password: "wrong-password"})
	expectKind(t, err, KindUnauthorized, "Invalid email or password")

	if _, err := env.app.DeactivateUser(ctx, reg.UID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = env.app.Login(ctx, LoginInput{Email: "c@example.com", Password: "secret1"})
	expectKind(t, err, KindUnauthorized, "Account disabled")
}

func TestAssignRole(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	reg, err := env.app.Register(ctx, RegisterInput{Email: "d@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err = env.app.AssignRole(ctx, AssignRoleInput{UID: reg.UID})
	expectKind(t, err, KindBadRequest, "uid and role are required")
	_, err = env.app.AssignRole(ctx, AssignRoleInput{UID: reg.UID, Role: "superuser"})
	expectKind(t, err, KindBadRequest, "Invalid role. Must be one of: student, admin, instructor")
	_, err = env.app.AssignRole(ctx, AssignRoleInput{UID: "ghost", Role: "admin"})
	expectKind(t, err, KindNotFound, "User not found")

	got, err := env.app.AssignRole(ctx, AssignRoleInput{UID: reg.UID, Role: "instructor"})
	if err != nil {
		t.Fatalf("assign role: %v", err)
	}
	if got.Role != domain.RoleInstructor {
		t.Fatalf("unexpected assignment: %+v", got)
	}
	user, _, _ := env.store.GetUser(ctx, reg.UID)
	if user.Role != domain.RoleInstructor {
		t.Fatalf("store role not updated: %+v", user)
	}
	account, _ := env.provider.GetUser(ctx, reg.UID)
	if account.Role != "instructor" {
		t.Fatalf("claim not updated: %+v", account)
	}
}

func TestAssignRoleWithoutLocalAccount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	if _, err := env.app.UpsertProfile(ctx, UpsertProfileInput{UID: "ext-1", Email: "ext@example.com"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := env.app.AssignRole(ctx, AssignRoleInput{UID: "ext-1", Role: "admin"}); err != nil {
		t.Fatalf("assign role: %v", err)
	}
	user, _, _ := env.store.GetUser(ctx, "ext-1")
	if user.Role != domain.RoleAdmin {
		t.Fatalf("expected admin, got %+v", user)
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.app.Me(context.Background(), "nobody")
	expectKind(t, err, KindNotFound, "User profile not found")
}
