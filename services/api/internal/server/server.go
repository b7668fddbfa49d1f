package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"lmsapi/internal/access"
	"lmsapi/internal/ratelimit"
	"lmsapi/internal/security"
	"lmsapi/internal/util"
	"lmsapi/pkg/identity"
	"lmsapi/services/api/internal/app"
)

const (
	serviceName  = "lms-api"
	maxBodyBytes = 1 << 20
)

// JWKSSource publishes the local signing keys.
type JWKSSource interface {
	JWKS() identity.JWKSet
}

// Config wires the HTTP layer.
type Config struct {
	App      *app.App
	Verifier TokenVerifier
	Roles    *access.RoleResolver
	JWKS     JWKSSource
	// Limiters are optional; nil disables rate limiting for that route.
	RegisterLimiter *ratelimit.FixedWindowLimiter
	LoginLimiter    *ratelimit.FixedWindowLimiter
	ProxyTrust      *util.ProxyTrust
	// Alerter is optional and counts failed security events.
	Alerter     *security.Alerter
	CORSOrigins []string
}

// Server exposes the LMS API over HTTP.
type Server struct {
	app             *app.App
	verifier        TokenVerifier
	roles           *access.RoleResolver
	jwks            JWKSSource
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
	proxyTrust      *util.ProxyTrust
	alerter         *security.Alerter
	router          *mux.Router
	handler         http.Handler
}

// New builds the router and middleware chain.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("server: token verifier is required")
	}
	roles := cfg.Roles
	if roles == nil {
		roles = access.NewRoleResolver(cfg.App.Store())
	}
	s := &Server{
		app:             cfg.App,
		verifier:        cfg.Verifier,
		roles:           roles,
		jwks:            cfg.JWKS,
		registerLimiter: cfg.RegisterLimiter,
		loginLimiter:    cfg.LoginLimiter,
		proxyTrust:      cfg.ProxyTrust,
		alerter:         cfg.Alerter,
		router:          mux.NewRouter(),
	}
	s.routes()

	var h http.Handler = s.router
	h = util.WithCORS(cfg.CORSOrigins, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog(h)
	h = util.WithRequestID(h)
	h = s.recoverPanics(h)
	s.handler = h
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/.well-known/jwks.json", s.handleJWKS).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	// auth
	v1.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	v1.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	v1.Handle("/auth/assign-role", s.admin(s.handleAssignRole)).Methods(http.MethodPost)
	v1.Handle("/auth/me", s.authed(s.handleMe)).Methods(http.MethodGet)

	// courses
	v1.Handle("/courses", s.optionalAuth(http.HandlerFunc(s.handleListCourses))).Methods(http.MethodGet)
	v1.Handle("/courses", s.admin(s.handleCreateCourse)).Methods(http.MethodPost)
	v1.Handle("/courses/search", s.optionalAuth(http.HandlerFunc(s.handleSearchCourses))).Methods(http.MethodGet)
	v1.HandleFunc("/courses/{courseId}", s.handleGetCourse).Methods(http.MethodGet)
	v1.Handle("/courses/{courseId}", s.admin(s.handleUpdateCourse)).Methods(http.MethodPatch)
	v1.Handle("/courses/{courseId}", s.admin(s.handleDeleteCourse)).Methods(http.MethodDelete)

	// chapters
	v1.Handle("/courses/{courseId}/chapters", s.enrolled(s.handleListChapters)).Methods(http.MethodGet)
	v1.Handle("/courses/{courseId}/chapters", s.admin(s.handleCreateChapter)).Methods(http.MethodPost)
	v1.Handle("/courses/{courseId}/chapters/{chapterId}", s.enrolled(s.handleGetChapter)).Methods(http.MethodGet)
	v1.Handle("/courses/{courseId}/chapters/{chapterId}", s.admin(s.handleUpdateChapter)).Methods(http.MethodPatch)
	v1.Handle("/courses/{courseId}/chapters/{chapterId}", s.admin(s.handleDeleteChapter)).Methods(http.MethodDelete)

	// quizzes
	v1.Handle("/courses/{courseId}/quizzes", s.enrolled(s.handleListQuizzes)).Methods(http.MethodGet)
	v1.Handle("/courses/{courseId}/quizzes", s.admin(s.handleCreateQuiz)).Methods(http.MethodPost)
	v1.Handle("/courses/{courseId}/quizzes/{quizId}", s.enrolled(s.handleGetQuiz)).Methods(http.MethodGet)
	v1.Handle("/courses/{courseId}/quizzes/{quizId}", s.admin(s.handleUpdateQuiz)).Methods(http.MethodPatch)
	v1.Handle("/courses/{courseId}/quizzes/{quizId}", s.admin(s.handleDeleteQuiz)).Methods(http.MethodDelete)
	v1.Handle("/courses/{courseId}/quizzes/{quizId}/submit", s.enrolled(s.handleSubmitQuiz)).Methods(http.MethodPost)

	// enrollments & progress
	v1.Handle("/enrollments", s.authed(s.handleEnroll)).Methods(http.MethodPost)
	v1.Handle("/enrollments/my", s.authed(s.handleMyEnrollments)).Methods(http.MethodGet)
	v1.Handle("/enrollments/{courseId}/status", s.authed(s.handleEnrollmentStatus)).Methods(http.MethodGet)
	v1.Handle("/progress", s.authed(s.handleCompleteChapter)).Methods(http.MethodPost)
	v1.Handle("/progress/{courseId}", s.authed(s.handleGetProgress)).Methods(http.MethodGet)

	v1.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)

	// users
	v1.Handle("/users", s.admin(s.handleListUsers)).Methods(http.MethodGet)
	v1.Handle("/users/upsert", s.authed(s.handleUpsertUser)).Methods(http.MethodPost)
	v1.Handle("/users/{uid}", s.admin(s.handleGetUser)).Methods(http.MethodGet)
	v1.Handle("/users/{uid}", s.admin(s.handleUpdateUser)).Methods(http.MethodPatch)
	v1.Handle("/users/{uid}", s.admin(s.handleDeleteUser)).Methods(http.MethodDelete)

	// storage & chatbot
	v1.Handle("/storage/upload-url", s.admin(s.handleUploadURL)).Methods(http.MethodPost)
	v1.Handle("/storage/download-url/{fileId}", s.authed(s.handleDownloadURL)).Methods(http.MethodGet)
	v1.Handle("/chatbot/message", s.authed(s.handleChatMessage)).Methods(http.MethodPost)
	v1.Handle("/chatbot/sessions/{sessionId}/messages", s.authed(s.handleChatMessages)).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": serviceName})
}

func (s *Server) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	keys := identity.JWKSet{Keys: []identity.JWK{}}
	if s.jwks != nil {
		keys = s.jwks.JWKS()
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, keys)
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("panic recovered", "path", r.URL.Path, "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
				writeFailure(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: &errorBody{Code: code, Message: msg}})
}

// failure names the envelope used when an operation fails unexpectedly.
// Expose passes the underlying error text through to the client.
type failure struct {
	Code    string
	Message string
	Expose  bool
}

// writeAppError maps an app error to its status and envelope. Unclassified
// errors become 500 with the handler's failure code.
func writeAppError(w http.ResponseWriter, r *http.Request, err error, f failure) {
	if appErr, ok := app.AsError(err); ok {
		status, code := http.StatusInternalServerError, f.Code
		switch appErr.Kind {
		case app.KindBadRequest:
			status, code = http.StatusBadRequest, "BAD_REQUEST"
		case app.KindUnauthorized:
			status, code = http.StatusUnauthorized, "UNAUTHORIZED"
		case app.KindForbidden:
			status, code = http.StatusForbidden, "FORBIDDEN"
		case app.KindNotFound:
			status, code = http.StatusNotFound, "NOT_FOUND"
		case app.KindConflict:
			status, code = http.StatusConflict, "CONFLICT"
		}
		writeFailure(w, status, code, appErr.Message)
		return
	}
	util.LoggerFromContext(r.Context()).Error("request failed", "code", f.Code, "err", err)
	msg := f.Message
	if f.Expose {
		msg = err.Error()
	}
	writeFailure(w, http.StatusInternalServerError, f.Code, msg)
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched. A value of the wrong type fails the decode instead of being
// left zero.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// readJSON decodes the body and writes a 400 on malformed input. Decoders in
// the app package report their own message; a mistyped field is named.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := decodeJSON(r, dst)
	if err == nil {
		return true
	}
	msg := "Invalid JSON body"
	var typeErr *json.UnmarshalTypeError
	if appErr, ok := app.AsError(err); ok {
		msg = appErr.Message
	} else if errors.As(err, &typeErr) && typeErr.Field != "" {
		msg = "Invalid value for " + typeErr.Field
	}
	writeFailure(w, http.StatusBadRequest, "BAD_REQUEST", msg)
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")), true
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := s.proxyTrust.ClientIP(r)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	alert, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security alert counter failed", "event", event, "err", err)
		return
	}
	if alert.Triggered {
		logger.Error("security_alert",
			"event", event,
			"ip", ip,
			"count", alert.Count,
			"threshold", alert.Threshold,
			"window", alert.Window.String(),
		)
	}
}

// allowRate applies limiter to path and client IP. A nil limiter allows everything.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + s.proxyTrust.ClientIP(r)
	decision := limiter.Allow(r.Context(), key)
	if decision.Allowed {
		return true
	}
	retry := int(decision.RetryAfter.Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	s.audit(r, "rate_limit", "fail")
	writeFailure(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please try again later")
	return false
}

func callerOf(r *http.Request) access.Identity {
	id, _ := access.IdentityFromContext(r.Context())
	return id
}

func isAdmin(r *http.Request) bool {
	id, ok := access.IdentityFromContext(r.Context())
	return ok && id.IsAdmin()
}
