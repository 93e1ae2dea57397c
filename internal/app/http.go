package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"geocompliance/api/internal/export"
	"geocompliance/api/internal/search"
)

// maxBillUpload bounds uploaded bill files.
const maxBillUpload = 4 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/summary" {
		summary, err := s.service.Summary(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/projects" {
		projects, err := s.service.ListProjects(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
		return
	}

	segments := splitPath(r.URL.Path)

	// /api/projects/{id}
	if r.Method == http.MethodGet && len(segments) == 3 && segments[0] == "api" && segments[1] == "projects" {
		detail, err := s.service.GetProject(r.Context(), segments[2])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
		return
	}

	// /api/projects/{pid}/documents/{did}
	if r.Method == http.MethodGet && len(segments) == 5 && segments[0] == "api" && segments[1] == "projects" && segments[3] == "documents" {
		view, err := s.service.GetReviewDocument(r.Context(), segments[2], segments[4])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	// /api/projects/{pid}/documents/{did}/segments
	if r.Method == http.MethodGet && len(segments) == 6 && segments[0] == "api" && segments[1] == "projects" && segments[3] == "documents" && segments[5] == "segments" {
		view, err := s.service.Segments(r.Context(), segments[2], segments[4], viewerID(r), r.URL.Query().Get("isolate"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/viewer/selection" {
		var body struct {
			DocumentID string          `json:"documentId"`
			Action     SelectionAction `json:"action"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.DocumentID) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "documentId is required", nil)
			return
		}
		sel, err := s.service.ApplySelection(r.Context(), viewerID(r), body.DocumentID, body.Action)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"selection": sel})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/highlights/comments" {
		var body struct {
			ProjectID   string `json:"projectId"`
			DocumentID  string `json:"documentId"`
			HighlightID string `json:"highlightId"`
			Content     string `json:"content"`
			Author      string `json:"author"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.HighlightID) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "highlightId is required", nil)
			return
		}
		comment, err := s.service.AddComment(r.Context(), body.ProjectID, body.DocumentID, body.HighlightID, body.Content, body.Author)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"comment": comment})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/highlights/reply" {
		var body struct {
			ProjectID   string `json:"projectId"`
			DocumentID  string `json:"documentId"`
			HighlightID string `json:"highlightId"`
			UserText    string `json:"userText"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.HighlightID) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "highlightId is required", nil)
			return
		}
		comment, err := s.service.RequestReply(r.Context(), body.ProjectID, body.DocumentID, body.HighlightID, body.UserText)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"comment": comment})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/laws" {
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.AddLaw(r.Context(), body.Text)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/laws/file" {
		s.handleLawFileUpload(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		resp := s.service.Search(search.Query{
			Text:            q.Get("q"),
			FilterType:      search.ResultType(q.Get("type")),
			FilterBelongsTo: q.Get("belongsTo"),
			Limit:           limit,
			Offset:          offset,
		})
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/chat/conversations" {
		var body struct {
			ConversationID string `json:"conversationId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		conv, err := s.service.OpenConversation(r.Context(), body.ConversationID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"conversation": conv})
		return
	}

	// /api/chat/conversations/{id}/history
	if r.Method == http.MethodGet && len(segments) == 5 && segments[0] == "api" && segments[1] == "chat" && segments[2] == "conversations" && segments[4] == "history" {
		history, err := s.service.ChatHistory(r.Context(), segments[3])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, history)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/chat/messages" {
		var body struct {
			ConversationID string `json:"conversationId"`
			Content        string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		exchange, err := s.service.PostChatMessage(r.Context(), body.ConversationID, body.Content)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, exchange)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/audits" {
		var body struct {
			ProjectID    string `json:"projectId"`
			MaxScenarios int    `json:"maxScenarios"`
			Async        bool   `json:"async"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.ProjectID) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "projectId is required", nil)
			return
		}
		started, err := s.service.StartAudit(r.Context(), body.ProjectID, body.MaxScenarios, body.Async)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"audit": started})
		return
	}

	// /api/audits/{id}
	if r.Method == http.MethodGet && len(segments) == 3 && segments[0] == "api" && segments[1] == "audits" {
		auditRow, issues, err := s.service.GetAudit(r.Context(), segments[2])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"audit": auditRow, "issues": issues})
		return
	}

	// /api/audits/{id}/report
	if r.Method == http.MethodGet && len(segments) == 4 && segments[0] == "api" && segments[1] == "audits" && segments[3] == "report" {
		s.handleAuditReport(w, r, segments[2])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleLawFileUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxBillUpload); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid multipart form", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file is required", nil)
		return
	}
	defer file.Close()

	if header.Size > maxBillUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "bill file exceeds size limit", nil)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBillUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read file", nil)
		return
	}
	if len(data) > maxBillUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "bill file exceeds size limit", nil)
		return
	}

	result, err := s.service.AddLaw(r.Context(), string(data))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleAuditReport(w http.ResponseWriter, r *http.Request, auditID string) {
	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatMarkdown
	}

	result, err := s.service.ExportAuditReport(r.Context(), auditID, format)
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unsupported format", map[string]any{"format": format})
			return
		}
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			writeError(w, http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF rendering is not available on this host", nil)
			return
		}
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// viewerID identifies the selection owner; anonymous viewers share a bucket.
func viewerID(r *http.Request) string {
	if v := strings.TrimSpace(r.URL.Query().Get("viewer")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Viewer-ID")); v != "" {
		return v
	}
	return "anonymous"
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Viewer-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
