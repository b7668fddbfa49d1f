package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"lmsapi/internal/access"
	"lmsapi/pkg/domain"
)

// TokenVerifier validates a bearer ID token.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, token string) (domain.IDToken, error)
}

// ChainVerifier accepts a token when any of its verifiers does. The first
// verifier's error is returned when all fail.
type ChainVerifier []TokenVerifier

func (c ChainVerifier) VerifyIDToken(ctx context.Context, token string) (domain.IDToken, error) {
	var firstErr error
	for _, v := range c {
		if v == nil {
			continue
		}
		tok, err := v.VerifyIDToken(ctx, token)
		if err == nil {
			return tok, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = errors.New("no token verifier configured")
	}
	return domain.IDToken{}, firstErr
}

func (s *Server) identify(r *http.Request, token string) (access.Identity, error) {
	tok, err := s.verifier.VerifyIDToken(r.Context(), token)
	if err != nil {
		return access.Identity{}, err
	}
	return s.roles.Identify(r.Context(), tok), nil
}

// requireAuth attaches the caller identity or answers 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "auth.verify", "fail", "reason", "missing_token")
			writeFailure(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid token")
			return
		}
		id, err := s.identify(r, token)
		if err != nil {
			s.audit(r, "auth.verify", "fail", "reason", "invalid_token", "err", err)
			writeFailure(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			return
		}
		s.audit(r, "auth.verify", "success", "user_id", id.UID, "role", id.Role, "role_source", id.RoleSource)
		next.ServeHTTP(w, r.WithContext(access.WithIdentity(r.Context(), id)))
	})
}

// optionalAuth attaches an identity when a valid token is present and
// otherwise continues anonymously.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		id, err := s.identify(r, token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(access.WithIdentity(r.Context(), id)))
	})
}

func (s *Server) requireRole(allowed ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := access.RequireRole(r.Context(), allowed...)
			switch {
			case errors.Is(err, access.ErrUnauthenticated):
				writeFailure(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
				return
			case err != nil:
				s.audit(r, "auth.role_gate", "fail", "user_id", id.UID, "role", id.Role)
				writeFailure(w, http.StatusForbidden, "FORBIDDEN", err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireEnrollment lets admins through and otherwise requires an enrollment
// in the {courseId} course. Store failures deny the request.
func (s *Server) requireEnrollment(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := access.CheckEnrollment(r.Context(), s.app.Store(), mux.Vars(r)["courseId"])
		switch {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, access.ErrUnauthenticated):
			writeFailure(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		case errors.Is(err, access.ErrCourseIDRequired):
			writeFailure(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		case errors.Is(err, access.ErrNotEnrolled):
			s.audit(r, "auth.enrollment_gate", "fail", "user_id", id.UID)
			writeFailure(w, http.StatusForbidden, "FORBIDDEN", err.Error())
		default:
			s.audit(r, "auth.enrollment_gate", "error", "user_id", id.UID, "err", err)
			writeFailure(w, http.StatusInternalServerError, "ENROLLMENT_CHECK_FAILED", "Failed to verify enrollment")
		}
	})
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return s.requireAuth(h)
}

func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return s.requireAuth(s.requireRole(domain.RoleAdmin)(h))
}

func (s *Server) enrolled(h http.HandlerFunc) http.Handler {
	return s.requireAuth(s.requireEnrollment(h))
}
