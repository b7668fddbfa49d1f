package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"lmsapi/services/api/internal/app"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, err := s.app.ListUsers(r.Context(), q.Get("role"), q.Get("search"))
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to fetch users"})
		return
	}
	writeSuccess(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.app.GetUser(r.Context(), mux.Vars(r)["uid"])
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to fetch user"})
		return
	}
	writeSuccess(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req app.UpdateUserInput
	if !readJSON(w, r, &req) {
		return
	}
	user, err := s.app.UpdateUser(r.Context(), mux.Vars(r)["uid"], req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "UPDATE_FAILED", Message: "Failed to update user"})
		return
	}
	writeSuccess(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	out, err := s.app.DeactivateUser(r.Context(), uid)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "DELETE_FAILED", Message: "Failed to delete user"})
		return
	}
	s.audit(r, "users.deactivate", "success", "user_id", callerOf(r).UID, "target_uid", uid)
	writeSuccess(w, http.StatusOK, out)
}

func (s *Server) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	var req app.UpsertProfileInput
	if !readJSON(w, r, &req) {
		return
	}
	user, err := s.app.UpsertProfile(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "UPSERT_FAILED", Message: "Failed to upsert user profile"})
		return
	}
	writeSuccess(w, http.StatusOK, user)
}
