// Package server exposes a small read-only HTTP surface over the result
// database, for browsing classified mail after batches have run.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ebiseau/mail-sorter/internal/db"
)

type Server struct {
	db     *db.DB
	logger *slog.Logger
}

func New(database *db.DB, logger *slog.Logger) *Server {
	return &Server{db: database, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/emails", s.listEmails)
	r.Get("/emails/{id}/attachments", s.listAttachments)
	r.Get("/stats", s.stats)

	return r
}

type emailResponse struct {
	ID              int64  `json:"id"`
	Timestamp       string `json:"timestamp"`
	Sender          string `json:"sender"`
	Subject         string `json:"subject"`
	Date            string `json:"date"`
	Category        string `json:"category"`
	HasAttachments  bool   `json:"has_attachments"`
	AttachmentCount int    `json:"attachment_count"`
	Error           string `json:"error,omitempty"`
}

func (s *Server) listEmails(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		http.Error(w, "category query parameter is required", http.StatusBadRequest)
		return
	}

	emails, err := s.db.EmailsByCategory(category)
	if err != nil {
		s.internalError(w, "failed to list emails", err)
		return
	}

	resp := make([]emailResponse, 0, len(emails))
	for _, e := range emails {
		resp = append(resp, emailResponse{
			ID:              e.ID,
			Timestamp:       e.Timestamp,
			Sender:          e.Sender,
			Subject:         e.Subject,
			Date:            e.Date,
			Category:        e.Category,
			HasAttachments:  e.HasAttachments,
			AttachmentCount: e.AttachmentCount,
			Error:           e.Error,
		})
	}
	s.writeJSON(w, resp)
}

type attachmentResponse struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
	Category string `json:"category"`
}

func (s *Server) listAttachments(w http.ResponseWriter, r *http.Request) {
	emailID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid email id", http.StatusBadRequest)
		return
	}

	attachments, err := s.db.AttachmentsByEmailID(emailID)
	if err != nil {
		s.internalError(w, "failed to list attachments", err)
		return
	}

	resp := make([]attachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		resp = append(resp, attachmentResponse{
			ID:       a.ID,
			Filename: a.Filename,
			FilePath: a.FilePath,
			Category: a.Category,
		})
	}
	s.writeJSON(w, resp)
}

type statsResponse struct {
	Total      int               `json:"total"`
	Errors     int               `json:"errors"`
	Categories []db.CategoryStat `json:"categories"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	total, err := s.db.TotalCount()
	if err != nil {
		s.internalError(w, "failed to count emails", err)
		return
	}
	errors, err := s.db.ErrorCount()
	if err != nil {
		s.internalError(w, "failed to count errors", err)
		return
	}
	categories, err := s.db.Statistics()
	if err != nil {
		s.internalError(w, "failed to load statistics", err)
		return
	}

	s.writeJSON(w, statsResponse{Total: total, Errors: errors, Categories: categories})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "err", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "err", err)
	http.Error(w, msg, http.StatusInternalServerError)
}
