package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"lmsapi/services/api/internal/app"
)

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req app.UploadURLInput
	if !readJSON(w, r, &req) {
		return
	}
	out, err := s.app.UploadURL(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "UPLOAD_URL_FAILED", Message: "Failed to generate upload URL"})
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (s *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	out, err := s.app.DownloadURL(r.Context(), mux.Vars(r)["fileId"], r.URL.Query().Get("path"))
	if err != nil {
		writeAppError(w, r, err, failure{Code: "DOWNLOAD_URL_FAILED", Message: "Failed to generate download URL"})
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req app.ChatMessageInput
	if !readJSON(w, r, &req) {
		return
	}
	reply, err := s.app.SendChatMessage(r.Context(), callerOf(r).UID, req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "CHATBOT_FAILED", Message: "Failed to process chatbot message"})
		return
	}
	writeSuccess(w, http.StatusOK, reply)
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.app.ChatMessages(r.Context(), callerOf(r).UID, mux.Vars(r)["sessionId"])
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to fetch chat messages"})
		return
	}
	writeSuccess(w, http.StatusOK, msgs)
}
