package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"lmsapi/internal/ratelimit"
	"lmsapi/internal/security"
	"lmsapi/pkg/domain"
	"lmsapi/pkg/identity"
	"lmsapi/pkg/store"
	"lmsapi/services/api/internal/app"
)

var (
	signerOnce sync.Once
	testSigner *identity.Signer
	signerErr  error
)

func sharedSigner(t *testing.T) *identity.Signer {
	t.Helper()
	signerOnce.Do(func() {
		testSigner, signerErr = identity.NewSigner(identity.SignerConfig{TTL: time.Minute})
	})
	if signerErr != nil {
		t.Fatalf("new signer: %v", signerErr)
	}
	return testSigner
}

// fakeVerifier accepts a fixed set of opaque tokens.
type fakeVerifier map[string]domain.IDToken

func (f fakeVerifier) VerifyIDToken(_ context.Context, token string) (domain.IDToken, error) {
	tok, ok := f[token]
	if !ok {
		return domain.IDToken{}, errors.New("unknown token")
	}
	return tok, nil
}

// enrollmentErrorStore fails every enrollment lookup.
type enrollmentErrorStore struct {
	*store.MemoryStore
}

func (enrollmentErrorStore) HasEnrollment(context.Context, string, string) (bool, error) {
	return false, errors.New("database unavailable")
}

type harness struct {
	handler  http.Handler
	store    *store.MemoryStore
	provider *identity.Provider
	tokens   fakeVerifier
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	return newHarnessWithStore(t, store.NewMemoryStore(), nil, mutate)
}

func newHarnessWithStore(t *testing.T, mem *store.MemoryStore, backing store.Store, mutate func(*Config)) *harness {
	t.Helper()
	if backing == nil {
		backing = mem
	}
	provider := identity.NewProvider(identity.NewMemoryAccounts(), sharedSigner(t), nil)
	core, err := app.New(app.Config{Store: backing, Identity: provider})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	tokens := fakeVerifier{
		"admin-token":   {UID: "admin-1", Email: "admin@example.com", Role: "admin"},
		"student-token": {UID: "student-1", Email: "student@example.com", Role: "student"},
		"noclaim-token": {UID: "staff-1", Email: "staff@example.com"},
	}
	cfg := Config{
		App:      core,
		Verifier: ChainVerifier{tokens, provider},
		JWKS:     provider,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &harness{handler: srv.Router(), store: mem, provider: provider, tokens: tokens}
}

type response struct {
	Status int
	Header http.Header
	Raw    string
	Body   struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) response {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	out := response{Status: rec.Code, Header: rec.Header(), Raw: rec.Body.String()}
	if strings.HasPrefix(strings.TrimSpace(out.Raw), "{") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out.Body); err != nil {
			t.Fatalf("decode response %q: %v", out.Raw, err)
		}
	}
	return out
}

func (r response) expectError(t *testing.T, status int, code, msg string) {
	t.Helper()
	if r.Status != status || r.Body.Success || r.Body.Error.Code != code || r.Body.Error.Message != msg {
		t.Fatalf("expected %d %s %q, got %d %s", status, code, msg, r.Status, r.Raw)
	}
}

func (r response) decode(t *testing.T, dst any) {
	t.Helper()
	if !r.Body.Success {
		t.Fatalf("expected success envelope, got %d %s", r.Status, r.Raw)
	}
	if err := json.Unmarshal(r.Body.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", r.Body.Data, err)
	}
}

func (h *harness) seedCourse(t *testing.T, published bool) domain.Course {
	t.Helper()
	res := h.do(t, http.MethodPost, "/v1/courses", "admin-token", map[string]any{"title": "Akad Syariah", "isPublished": published})
	if res.Status != http.StatusCreated {
		t.Fatalf("create course: %d %s", res.Status, res.Raw)
	}
	var course domain.Course
	res.decode(t, &course)
	return course
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	res := h.do(t, http.MethodGet, "/health", "", nil)
	if res.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Status)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(res.Raw), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["ok"] != true || body["service"] != "lms-api" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodGet, "/v1/nope", "", nil).expectError(t, http.StatusNotFound, "NOT_FOUND", "Route not found")
}

func TestRequiredAuth(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodGet, "/v1/auth/me", "", nil).expectError(t, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid token")
	h.do(t, http.MethodGet, "/v1/auth/me", "forged", nil).expectError(t, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
	h.do(t, http.MethodGet, "/v1/auth/me", "student-token", nil).expectError(t, http.StatusNotFound, "NOT_FOUND", "User profile not found")
}

func TestRoleGate(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, "/v1/courses", "", map[string]any{"title": "x"}).
		expectError(t, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid token")
	h.do(t, http.MethodPost, "/v1/courses", "student-token", map[string]any{"title": "x"}).
		expectError(t, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
	h.do(t, http.MethodPost, "/v1/courses", "admin-token", map[string]any{}).
		expectError(t, http.StatusBadRequest, "BAD_REQUEST", "title is required")
	h.seedCourse(t, false)
}

func TestRoleFromStoreWhenClaimMissing(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, "/v1/courses", "noclaim-token", map[string]any{"title": "x"}).
		expectError(t, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")

	ctx := context.Background()
	if err := h.store.CreateUser(ctx, domain.User{UID: "staff-1", Email: "staff@example.com", Role: domain.RoleAdmin, IsActive: true}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	res := h.do(t, http.MethodPost, "/v1/courses", "noclaim-token", map[string]any{"title": "x"})
	if res.Status != http.StatusCreated {
		t.Fatalf("store role should grant admin, got %d %s", res.Status, res.Raw)
	}
}

func TestCourseVisibilityWithOptionalAuth(t *testing.T) {
	h := newHarness(t, nil)
	h.seedCourse(t, true)
	h.seedCourse(t, false)

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", 1},
		{"invalid token is ignored", "forged", 1},
		{"student", "student-token", 1},
		{"admin", "admin-token", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := h.do(t, http.MethodGet, "/v1/courses", tc.token, nil)
			var courses []domain.Course
			res.decode(t, &courses)
			if len(courses) != tc.want {
				t.Fatalf("expected %d courses, got %d", tc.want, len(courses))
			}
		})
	}

	res := h.do(t, http.MethodGet, "/v1/courses/search?q=akad", "", nil)
	var hits []domain.Course
	res.decode(t, &hits)
	if len(hits) != 1 || !hits[0].IsPublished {
		t.Fatalf("unexpected search hits: %+v", hits)
	}
}

func TestEnrollmentGate(t *testing.T) {
	h := newHarness(t, nil)
	course := h.seedCourse(t, true)
	path := "/v1/courses/" + course.ID + "/chapters"

	h.do(t, http.MethodGet, path, "", nil).expectError(t, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid token")
	h.do(t, http.MethodGet, path, "student-token", nil).expectError(t, http.StatusForbidden, "FORBIDDEN", "You must be enrolled in this course")
	if res := h.do(t, http.MethodGet, path, "admin-token", nil); res.Status != http.StatusOK {
		t.Fatalf("admins bypass enrollment, got %d %s", res.Status, res.Raw)
	}

	res := h.do(t, http.MethodPost, "/v1/enrollments", "student-token", map[string]any{"courseId": course.ID})
	if res.Status != http.StatusCreated {
		t.Fatalf("enroll: %d %s", res.Status, res.Raw)
	}
	h.do(t, http.MethodPost, "/v1/enrollments", "student-token", map[string]any{"courseId": course.ID}).
		expectError(t, http.StatusConflict, "CONFLICT", "Already enrolled in this course")
	h.do(t, http.MethodPost, "/v1/enrollments", "student-token", map[string]any{"courseId": "missing"}).
		expectError(t, http.StatusNotFound, "NOT_FOUND", "Course not found")

	if res := h.do(t, http.MethodGet, path, "student-token", nil); res.Status != http.StatusOK {
		t.Fatalf("enrolled student should pass, got %d %s", res.Status, res.Raw)
	}
	var status struct {
		Enrolled bool `json:"enrolled"`
	}
	h.do(t, http.MethodGet, "/v1/enrollments/"+course.ID+"/status", "student-token", nil).decode(t, &status)
	if !status.Enrolled {
		t.Fatalf("expected enrolled status")
	}
}

func TestEnrollmentGateFailsClosed(t *testing.T) {
	mem := store.NewMemoryStore()
	h := newHarnessWithStore(t, mem, enrollmentErrorStore{mem}, nil)
	h.do(t, http.MethodGet, "/v1/courses/c1/quizzes", "student-token", nil).
		expectError(t, http.StatusInternalServerError, "ENROLLMENT_CHECK_FAILED", "Failed to verify enrollment")
}

func TestQuizFlow(t *testing.T) {
	h := newHarness(t, nil)
	course := h.seedCourse(t, true)
	quizPath := "/v1/courses/" + course.ID + "/quizzes"

	h.do(t, http.MethodPost, quizPath, "admin-token", map[string]any{"title": "Kuis"}).
		expectError(t, http.StatusBadRequest, "BAD_REQUEST", "title and questions array are required")
	res := h.do(t, http.MethodPost, quizPath, "admin-token", map[string]any{
		"title": "Kuis",
		"questions": []map[string]any{
			{"question": "q1", "options": []string{"a", "b"}, "correctAnswer": 1},
			{"question": "q2", "options": []string{"a", "b"}, "correctAnswer": 0},
		},
	})
	if res.Status != http.StatusCreated {
		t.Fatalf("create quiz: %d %s", res.Status, res.Raw)
	}
	var quiz domain.Quiz
	res.decode(t, &quiz)

	mistyped := h.do(t, http.MethodPost, quizPath, "admin-token",
		`{"title":"Kuis","questions":[{"question":"q1","options":["a","b"],"correctAnswer":"1"}]}`)
	mistyped.expectError(t, http.StatusBadRequest, "BAD_REQUEST", "Invalid value for questions.correctAnswer")
	h.do(t, http.MethodPatch, "/v1/courses/"+course.ID, "admin-token", `{"isPublished":"true"}`).
		expectError(t, http.StatusBadRequest, "BAD_REQUEST", "Invalid value for isPublished")

	h.do(t, http.MethodPost, "/v1/enrollments", "student-token", map[string]any{"courseId": course.ID})

	listed := h.do(t, http.MethodGet, quizPath, "student-token", nil)
	if listed.Status != http.StatusOK || strings.Contains(listed.Raw, "correctAnswer") {
		t.Fatalf("students must not see answers: %d %s", listed.Status, listed.Raw)
	}
	adminView := h.do(t, http.MethodGet, quizPath+"/"+quiz.ID, "admin-token", nil)
	if !strings.Contains(adminView.Raw, "correctAnswer") {
		t.Fatalf("admins see answers: %s", adminView.Raw)
	}

	submit := quizPath + "/" + quiz.ID + "/submit"
	h.do(t, http.MethodPost, submit, "student-token", map[string]any{"answers": "nope"}).
		expectError(t, http.StatusBadRequest, "BAD_REQUEST", "answers array is required")
	h.do(t, http.MethodPost, submit, "student-token", map[string]any{"answers": []int{1}}).
		expectError(t, http.StatusBadRequest, "BAD_REQUEST", "Expected 2 answers, got 1")
	h.do(t, http.MethodPost, quizPath+"/missing/submit", "student-token", map[string]any{"answers": []int{1}}).
		expectError(t, http.StatusNotFound, "NOT_FOUND", "Quiz not found")
	h.do(t, http.MethodPost, submit, "student-token", `{"answers":null}`).
		expectError(t, http.StatusBadRequest, "BAD_REQUEST", "answers array is required")
	for _, body := range []string{`{"answers":["banana",0.7]}`, `{"answers":["1","0"]}`, `{"answers":[1,true]}`, `{"answers":[1e0,0]}`} {
		h.do(t, http.MethodPost, submit, "student-token", body).
			expectError(t, http.StatusBadRequest, "BAD_REQUEST", "answers must be an array of integers")
	}
	if got := h.store.QuizResults(); len(got) != 0 {
		t.Fatalf("rejected submissions must not be stored: %+v", got)
	}

	res = h.do(t, http.MethodPost, submit, "student-token", map[string]any{"answers": []int{1, 1}})
	if res.Status != http.StatusOK || !strings.Contains(res.Raw, `"submittedAt":null`) {
		t.Fatalf("unexpected submit response: %d %s", res.Status, res.Raw)
	}
	var result domain.QuizResult
	res.decode(t, &result)
	if result.Score != 50 || result.CorrectCount != 1 || result.UserID != "student-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestProgressStatusCodes(t *testing.T) {
	h := newHarness(t, nil)
	course := h.seedCourse(t, true)
	res := h.do(t, http.MethodPost, "/v1/courses/"+course.ID+"/chapters", "admin-token", map[string]any{"title": "Bab 1"})
	var chapter domain.Chapter
	res.decode(t, &chapter)
	if chapter.Order != 0 {
		t.Fatalf("order defaults to 0, got %d", chapter.Order)
	}

	empty := h.do(t, http.MethodGet, "/v1/progress/"+course.ID, "student-token", nil)
	if !strings.Contains(empty.Raw, `"completedChapters":[]`) || !strings.Contains(empty.Raw, `"percentage":0`) {
		t.Fatalf("unexpected empty progress: %s", empty.Raw)
	}

	body := map[string]any{"courseId": course.ID, "chapterId": chapter.ID}
	if res := h.do(t, http.MethodPost, "/v1/progress", "student-token", body); res.Status != http.StatusCreated {
		t.Fatalf("first completion should be 201, got %d %s", res.Status, res.Raw)
	}
	res = h.do(t, http.MethodPost, "/v1/progress", "student-token", body)
	if res.Status != http.StatusOK {
		t.Fatalf("repeat completion should be 200, got %d", res.Status)
	}
	var progress domain.Progress
	res.decode(t, &progress)
	if progress.Percentage != 100 || len(progress.CompletedChapters) != 1 {
		t.Fatalf("unexpected progress: %+v", progress)
	}
	h.do(t, http.MethodPost, "/v1/progress", "student-token", map[string]any{"courseId": course.ID}).
		expectError(t, http.StatusBadRequest, "BAD_REQUEST", "courseId and chapterId are required")
}

func TestRegisterLoginAndMe(t *testing.T) {
	h := newHarness(t, nil)

	h.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{"email": "rina@example.com"}).
		expectError(t, http.StatusBadRequest, "BAD_REQUEST", "email and password are required")
	h.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{"email": "rina@example.com", "password": "123"}).
		expectError(t, http.StatusInternalServerError, "REGISTER_FAILED", "the password must be a string with at least 6 characters")

	res := h.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{"email": "rina@example.com", "password": "secret1"})
	if res.Status != http.StatusCreated {
		t.Fatalf("register: %d %s", res.Status, res.Raw)
	}
	var reg app.Registration
	res.decode(t, &reg)
	if reg.Role != domain.RoleStudent || reg.Name != "rina" {
		t.Fatalf("unexpected registration: %+v", reg)
	}

	h.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"email": "rina@example.com", "password": "bad-pass"}).
		expectError(t, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password")
	var session identity.Session
	h.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"email": "rina@example.com", "password": "secret1"}).decode(t, &session)

	var me domain.User
	h.do(t, http.MethodGet, "/v1/auth/me", session.IDToken, nil).decode(t, &me)
	if me.UID != reg.UID || !me.IsActive {
		t.Fatalf("unexpected profile: %+v", me)
	}

	if res := h.do(t, http.MethodDelete, "/v1/users/"+reg.UID, "admin-token", nil); res.Status != http.StatusOK {
		t.Fatalf("deactivate: %d %s", res.Status, res.Raw)
	}
	h.do(t, http.MethodGet, "/v1/auth/me", session.IDToken, nil).
		expectError(t, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
}

func TestAssignRoleValidation(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, "/v1/auth/assign-role", "admin-token", map[string]any{"uid": "u"}).
		expectError(t, http.StatusBadRequest, "BAD_REQUEST", "uid and role are required")
	h.do(t, http.MethodPost, "/v1/auth/assign-role", "admin-token", map[string]any{"uid": "u", "role": "root"}).
		expectError(t, http.StatusBadRequest, "BAD_REQUEST", "Invalid role. Must be one of: student, admin, instructor")
}

func TestInvalidJSON(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, "/v1/courses", "admin-token", "{not json").
		expectError(t, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body")
}

func TestChatbot(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, "/v1/chatbot/message", "student-token", map[string]any{"message": "halo"}).
		expectError(t, http.StatusBadRequest, "BAD_REQUEST", "message and sessionId are required")

	var reply app.ChatReply
	h.do(t, http.MethodPost, "/v1/chatbot/message", "student-token", map[string]any{"message": "halo", "sessionId": "s1"}).decode(t, &reply)
	if reply.SessionID != "s1" || reply.Response != app.ChatbotReply {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	var msgs []domain.ChatMessage
	h.do(t, http.MethodGet, "/v1/chatbot/sessions/s1/messages", "student-token", nil).decode(t, &msgs)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestStorageWithoutBackend(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodPost, "/v1/storage/upload-url", "admin-token", map[string]any{"fileName": "a.pdf"}).
		expectError(t, http.StatusBadRequest, "BAD_REQUEST", "fileName and contentType are required")
	h.do(t, http.MethodPost, "/v1/storage/upload-url", "admin-token", map[string]any{"fileName": "a.pdf", "contentType": "application/pdf"}).
		expectError(t, http.StatusInternalServerError, "UPLOAD_URL_FAILED", "Failed to generate upload URL")
}

func TestJWKS(t *testing.T) {
	h := newHarness(t, nil)
	res := h.do(t, http.MethodGet, "/.well-known/jwks.json", "", nil)
	if res.Status != http.StatusOK || res.Header.Get("Cache-Control") != "public, max-age=300" {
		t.Fatalf("unexpected jwks response: %d %v", res.Status, res.Header)
	}
	var set identity.JWKSet
	if err := json.Unmarshal([]byte(res.Raw), &set); err != nil {
		t.Fatalf("decode jwks: %v", err)
	}
	if len(set.Keys) != 1 || set.Keys[0].Kid != identity.DefaultKeyID {
		t.Fatalf("unexpected keys: %+v", set.Keys)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.CORSOrigins = []string{"https://lms.example"} })
	req := httptest.NewRequest(http.MethodOptions, "/v1/courses", nil)
	req.Header.Set("Origin", "https://lms.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://lms.example" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := ratelimit.NewFixedWindowLimiter(client, "test:login", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	h := newHarness(t, func(cfg *Config) { cfg.LoginLimiter = limiter })

	creds := map[string]any{"email": "nobody@example.com", "password": "secret1"}
	h.do(t, http.MethodPost, "/v1/auth/login", "", creds).
		expectError(t, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password")
	res := h.do(t, http.MethodPost, "/v1/auth/login", "", creds)
	res.expectError(t, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please try again later")
	if res.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	// register has its own budget
	if res := h.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{"email": "a@example.com", "password": "secret1"}); res.Status != http.StatusCreated {
		t.Fatalf("register should not be limited: %d %s", res.Status, res.Raw)
	}
}

func TestChainVerifier(t *testing.T) {
	ctx := context.Background()
	first := fakeVerifier{"a": {UID: "u-a"}}
	second := fakeVerifier{"b": {UID: "u-b"}}
	chain := ChainVerifier{first, nil, second}

	if tok, err := chain.VerifyIDToken(ctx, "b"); err != nil || tok.UID != "u-b" {
		t.Fatalf("expected second verifier to accept, got %+v %v", tok, err)
	}
	if tok, err := chain.VerifyIDToken(ctx, "a"); err != nil || tok.UID != "u-a" {
		t.Fatalf("expected first verifier to accept, got %+v %v", tok, err)
	}
	if _, err := chain.VerifyIDToken(ctx, "c"); err == nil {
		t.Fatalf("expected rejection")
	}
	if _, err := (ChainVerifier{}).VerifyIDToken(ctx, "a"); err == nil {
		t.Fatalf("empty chain must reject")
	}
}

func TestFailedLoginsFeedAlerter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	h := newHarness(t, func(cfg *Config) { cfg.Alerter = security.NewAlerter(client, "test:alerts") })

	creds := map[string]any{"email": "nobody@example.com", "password": "secret1"}
	for i := 0; i < 3; i++ {
		h.do(t, http.MethodPost, "/v1/auth/login", "", creds).
			expectError(t, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password")
	}
	keys := mr.Keys()
	if len(keys) != 1 || !strings.HasPrefix(keys[0], "test:alerts:auth.login:fail:") {
		t.Fatalf("unexpected alert counters: %v", keys)
	}
	if got, _ := mr.Get(keys[0]); got != "3" {
		t.Fatalf("expected 3 failures counted, got %q", got)
	}
}
