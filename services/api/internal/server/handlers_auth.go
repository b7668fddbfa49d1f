package server

import (
	"net/http"

	"lmsapi/services/api/internal/app"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.registerLimiter) {
		return
	}
	var req app.RegisterInput
	if !readJSON(w, r, &req) {
		return
	}
	reg, err := s.app.Register(r.Context(), req)
	if err != nil {
		s.audit(r, "auth.register", "fail", "err", err)
		writeAppError(w, r, err, failure{Code: "REGISTER_FAILED", Expose: true})
		return
	}
	s.audit(r, "auth.register", "success", "user_id", reg.UID)
	writeSuccess(w, http.StatusCreated, reg)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter) {
		return
	}
	var req app.LoginInput
	if !readJSON(w, r, &req) {
		return
	}
	session, err := s.app.Login(r.Context(), req)
	if err != nil {
		s.audit(r, "auth.login", "fail")
		writeAppError(w, r, err, failure{Code: "LOGIN_FAILED", Message: "Failed to sign in"})
		return
	}
	s.audit(r, "auth.login", "success", "user_id", session.UID)
	writeSuccess(w, http.StatusOK, session)
}

func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req app.AssignRoleInput
	if !readJSON(w, r, &req) {
		return
	}
	out, err := s.app.AssignRole(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "ASSIGN_ROLE_FAILED", Expose: true})
		return
	}
	s.audit(r, "auth.assign_role", "success", "user_id", callerOf(r).UID, "target_uid", out.UID, "role", out.Role)
	writeSuccess(w, http.StatusOK, out)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.app.Me(r.Context(), callerOf(r).UID)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to fetch user profile"})
		return
	}
	writeSuccess(w, http.StatusOK, user)
}
