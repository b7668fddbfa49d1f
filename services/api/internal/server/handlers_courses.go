package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"lmsapi/services/api/internal/app"
)

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.app.ListCourses(r.Context(), isAdmin(r))
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to fetch courses"})
		return
	}
	writeSuccess(w, http.StatusOK, courses)
}

func (s *Server) handleSearchCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.app.SearchCourses(r.Context(), r.URL.Query().Get("q"), isAdmin(r))
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to search courses"})
		return
	}
	writeSuccess(w, http.StatusOK, courses)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := s.app.GetCourse(r.Context(), mux.Vars(r)["courseId"])
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to fetch course"})
		return
	}
	writeSuccess(w, http.StatusOK, course)
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req app.CreateCourseInput
	if !readJSON(w, r, &req) {
		return
	}
	course, err := s.app.CreateCourse(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "CREATE_FAILED", Message: "Failed to create course"})
		return
	}
	writeSuccess(w, http.StatusCreated, course)
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req app.UpdateCourseInput
	if !readJSON(w, r, &req) {
		return
	}
	course, err := s.app.UpdateCourse(r.Context(), mux.Vars(r)["courseId"], req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "UPDATE_FAILED", Message: "Failed to update course"})
		return
	}
	writeSuccess(w, http.StatusOK, course)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	out, err := s.app.DeleteCourse(r.Context(), mux.Vars(r)["courseId"])
	if err != nil {
		writeAppError(w, r, err, failure{Code: "DELETE_FAILED", Message: "Failed to delete course"})
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

// chapters

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := s.app.ListChapters(r.Context(), mux.Vars(r)["courseId"])
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to fetch chapters"})
		return
	}
	writeSuccess(w, http.StatusOK, chapters)
}

func (s *Server) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chapter, err := s.app.GetChapter(r.Context(), vars["courseId"], vars["chapterId"])
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to fetch chapter"})
		return
	}
	writeSuccess(w, http.StatusOK, chapter)
}

func (s *Server) handleCreateChapter(w http.ResponseWriter, r *http.Request) {
	var req app.CreateChapterInput
	if !readJSON(w, r, &req) {
		return
	}
	chapter, err := s.app.CreateChapter(r.Context(), mux.Vars(r)["courseId"], req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "CREATE_FAILED", Message: "Failed to create chapter"})
		return
	}
	writeSuccess(w, http.StatusCreated, chapter)
}

func (s *Server) handleUpdateChapter(w http.ResponseWriter, r *http.Request) {
	var req app.UpdateChapterInput
	if !readJSON(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	chapter, err := s.app.UpdateChapter(r.Context(), vars["courseId"], vars["chapterId"], req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "UPDATE_FAILED", Message: "Failed to update chapter"})
		return
	}
	writeSuccess(w, http.StatusOK, chapter)
}

func (s *Server) handleDeleteChapter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	out, err := s.app.DeleteChapter(r.Context(), vars["courseId"], vars["chapterId"])
	if err != nil {
		writeAppError(w, r, err, failure{Code: "DELETE_FAILED", Message: "Failed to delete chapter"})
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

// quizzes

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := s.app.ListQuizzes(r.Context(), mux.Vars(r)["courseId"], isAdmin(r))
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to fetch quizzes"})
		return
	}
	writeSuccess(w, http.StatusOK, quizzes)
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	quiz, err := s.app.GetQuiz(r.Context(), vars["courseId"], vars["quizId"], isAdmin(r))
	if err != nil {
		writeAppError(w, r, err, failure{Code: "FETCH_FAILED", Message: "Failed to fetch quiz"})
		return
	}
	writeSuccess(w, http.StatusOK, quiz)
}

func (s *Server) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req app.CreateQuizInput
	if !readJSON(w, r, &req) {
		return
	}
	quiz, err := s.app.CreateQuiz(r.Context(), mux.Vars(r)["courseId"], req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "CREATE_FAILED", Message: "Failed to create quiz"})
		return
	}
	writeSuccess(w, http.StatusCreated, quiz)
}

func (s *Server) handleUpdateQuiz(w http.ResponseWriter, r *http.Request) {
	var req app.UpdateQuizInput
	if !readJSON(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	quiz, err := s.app.UpdateQuiz(r.Context(), vars["courseId"], vars["quizId"], req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "UPDATE_FAILED", Message: "Failed to update quiz"})
		return
	}
	writeSuccess(w, http.StatusOK, quiz)
}

func (s *Server) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	out, err := s.app.DeleteQuiz(r.Context(), vars["courseId"], vars["quizId"])
	if err != nil {
		writeAppError(w, r, err, failure{Code: "DELETE_FAILED", Message: "Failed to delete quiz"})
		return
	}
	writeSuccess(w, http.StatusOK, out)
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req app.SubmitQuizInput
	if !readJSON(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	result, err := s.app.SubmitQuiz(r.Context(), callerOf(r).UID, vars["courseId"], vars["quizId"], req)
	if err != nil {
		writeAppError(w, r, err, failure{Code: "SUBMIT_FAILED", Message: "Failed to submit quiz"})
		return
	}
	writeSuccess(w, http.StatusOK, result)
}
