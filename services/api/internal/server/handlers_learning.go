package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"lmsapi/services/api/internal/app"
)

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req app.EnrollInput
	if !readJSON(w, r, &req) {
		return
	}
	enrollment, err := s.app.Enroll(r.Context(), callerOf(r).UID, req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "ENROLL_FAILED", Message: "Failed to enroll"})
		return
	}
	writeSuccess(w, http.StatusCreated, enrollment)
}

func (s *Server) handleMyEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := s.app.MyEnrollments(r.Context(), callerOf(r).UID)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to fetch enrollments"})
		return
	}
	writeSuccess(w, http.StatusOK, enrollments)
}

func (s *Server) handleEnrollmentStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.app.EnrollmentStatus(r.Context(), callerOf(r).UID, mux.Vars(r)["courseId"])
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to check enrollment status"})
		return
	}
	writeSuccess(w, http.StatusOK, status)
}

func (s *Server) handleCompleteChapter(w http.ResponseWriter, r *http.Request) {
	var req app.CompleteChapterInput
	if !readJSON(w, r, &req) {
		return
	}
	progress, created, err := s.app.CompleteChapter(r.Context(), callerOf(r).UID, req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "PROGRESS_FAILED", Message: "Failed to update progress"})
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeSuccess(w, status, progress)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.app.GetProgress(r.Context(), callerOf(r).UID, mux.Vars(r)["courseId"])
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to fetch progress"})
		return
	}
	writeSuccess(w, http.StatusOK, progress)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.app.Leaderboard(r.Context(), limit)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to fetch leaderboard"})
		return
	}
	writeSuccess(w, http.StatusOK, entries)
}
