// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api exposes conversion jobs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pdiddy/docxml/internal/jobs"
	"github.com/pdiddy/docxml/internal/serialize"
	"github.com/pdiddy/docxml/pkg/types"
)

// OwnerHeader carries the caller identity set by the upstream auth layer.
const OwnerHeader = "X-Owner-ID"

// multipartOverhead is allowed on top of the file limit for part headers
// and boundaries.
const multipartOverhead = 64 << 10

// uploadFields are the multipart field names accepted for the source file.
var uploadFields = map[string]bool{"pdf": true, "file": true}

type ownerKey struct{}

// Server serves the conversion API.
type Server struct {
	svc    *jobs.Service
	logger *slog.Logger
}

// NewServer returns a Server backed by svc.
func NewServer(svc *jobs.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, logger: logger}
}

// Routes returns the HTTP handler for all endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/conversions", func(r chi.Router) {
		r.Use(requireOwner)
		r.Post("/", s.handleUpload)
		r.Get("/", s.handleHistory)
		r.Get("/{id}", s.handleGet)
		r.Get("/{id}/download", s.handleDownload)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(OwnerHeader)
		if owner == "" {
			writeMessage(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// jobView is the JSON shape of a job. The XML output is only served by the
// download endpoint.
type jobView struct {
	ID           string     `json:"id"`
	OriginalName string     `json:"originalName"`
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

func viewOf(j types.ConversionJob) jobView {
	return jobView{
		ID:           j.ID,
		OriginalName: j.OriginalName,
		Status:       string(j.Status),
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		FinishedAt:   j.FinishedAt,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.svc.MaxBytes()+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: reading upload: %w", jobs.ErrInvalidSubmission, err))
			return
		}
		if !uploadFields[part.FormName()] || part.FileName() == "" {
			part.Close()
			continue
		}

		id, err := s.svc.Submit(r.Context(), jobs.Submission{
			OwnerID: ownerFrom(r.Context()),
			Name:    part.FileName(),
			Body:    part,
		})
		part.Close()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"message":      "File uploaded and processing started",
			"conversionId": id,
		})
		return
	}

	writeMessage(w, http.StatusBadRequest, "No file uploaded")
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := jobs.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeMessage(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := s.svc.History(r.Context(), ownerFrom(r.Context()), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]jobView, len(list))
	for i, j := range list {
		views[i] = viewOf(j)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.GetForOwner(r.Context(), chi.URLParam(r, "id"), ownerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(*job))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.GetForOwner(r.Context(), chi.URLParam(r, "id"), ownerFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if job.Status != types.JobCompleted {
		writeMessage(w, http.StatusBadRequest, "Conversion not completed")
		return
	}

	w.Header().Set("Content-Type", serialize.MediaType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": serialize.FileName(job.OriginalName),
	}))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, job.Output)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, jobs.ErrTooLarge), errors.As(err, &maxErr):
		writeMessage(w, http.StatusRequestEntityTooLarge, "File too large")
	case errors.Is(err, jobs.ErrInvalidSubmission):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Conversion not found")
	case errors.Is(err, jobs.ErrQueueClosed):
		writeMessage(w, http.StatusServiceUnavailable, "Server is shutting down")
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err,
			"request_id", middleware.GetReqID(r.Context()))
		writeMessage(w, http.StatusInternalServerError, "Server error")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
