package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"linkbird/api/internal/data"
	"linkbird/api/internal/nav"
	"linkbird/api/internal/search"
	"linkbird/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.Logger
	// interval between SSE keepalive comments
	keepalive time.Duration
}

func NewHTTPServer(service *Service, corsOrigin string, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: logger, keepalive: 15 * time.Second}
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
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		s.service.MetricsHandler().ServeHTTP(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/events" {
		s.handleEvents(w, r)
		return
	}

	if r.URL.Path == "/api/session" || strings.HasPrefix(r.URL.Path, "/api/session/") {
		s.handleSession(w, r)
		return
	}

	if !strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if !s.requireSession(w) {
		return
	}

	parts := splitPath(r.URL.Path)
	switch {
	case len(parts) >= 2 && parts[1] == "leads":
		s.handleLeads(w, r, parts[2:])
		return
	case len(parts) >= 2 && parts[1] == "campaigns":
		s.handleCampaigns(w, r, parts[2:])
		return
	case len(parts) >= 2 && parts[1] == "ui":
		s.handleUI(w, r, parts[2:])
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/data/refresh" {
		if err := s.service.LoadData(r.Context()); err != nil {
			writeMappedError(w, err)
			return
		}
		st := s.service.data.State()
		writeJSON(w, http.StatusOK, map[string]any{
			"leads":     len(st.Leads),
			"campaigns": len(st.Campaigns),
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/stats" {
		writeJSON(w, http.StatusOK, s.service.Stats())
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.Ping(ctx) {
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/api/session" {
		writeJSON(w, http.StatusOK, s.service.Session())
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/login" {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		snap, err := s.service.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/google" {
		snap, err := s.service.LoginWithGoogle(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/register" {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
			Name     string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		snap, err := s.service.Register(r.Context(), body.Email, body.Password, body.Name)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, snap)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/session/logout" {
		writeJSON(w, http.StatusOK, s.service.Logout(r.Context()))
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleLeads(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			query := r.URL.Query()
			list, err := s.service.Leads(query.Get("search"), query.Get("status"))
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			var body data.NewLead
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if strings.TrimSpace(body.Name) == "" {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "name is required", nil)
				return
			}
			lead, err := s.service.AddLead(r.Context(), body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, lead)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	leadID := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		lead, err := s.service.Lead(leadID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lead)
		return
	}

	if len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPatch {
		var body struct {
			Status store.LeadStatus `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		lead, err := s.service.UpdateLeadStatus(r.Context(), leadID, body.Status)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lead)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleCampaigns(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			query := r.URL.Query()
			list, err := s.service.Campaigns(query.Get("search"), query.Get("status"))
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			var body data.NewCampaign
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if strings.TrimSpace(body.Name) == "" {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "name is required", nil)
				return
			}
			campaign, err := s.service.AddCampaign(r.Context(), body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, campaign)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 1 && r.Method == http.MethodGet {
		campaign, err := s.service.Campaign(parts[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, campaign)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleUI(w http.ResponseWriter, r *http.Request, parts []string) {
	path := strings.Join(parts, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.service.UI())
		return

	case path == "sidebar/toggle" && r.Method == http.MethodPost:
		writeJSON(w, http.StatusOK, s.service.ToggleSidebar())
		return

	case path == "sidebar" && r.Method == http.MethodPut:
		var body struct {
			Collapsed *bool `json:"collapsed"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.Collapsed == nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "collapsed is required", nil)
			return
		}
		writeJSON(w, http.StatusOK, s.service.SetSidebarCollapsed(*body.Collapsed))
		return

	case path == "page" && r.Method == http.MethodPut:
		var body struct {
			Page nav.Page `json:"page"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		st, err := s.service.SetCurrentPage(body.Page)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
		return

	case path == "lead-sheet" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.service.LeadSheet())
		return

	case path == "lead-sheet" && r.Method == http.MethodPost:
		var body struct {
			LeadID string `json:"leadId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.LeadID) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "leadId is required", nil)
			return
		}
		writeJSON(w, http.StatusOK, s.service.OpenLeadSheet(body.LeadID))
		return

	case path == "lead-sheet" && r.Method == http.MethodDelete:
		writeJSON(w, http.StatusOK, s.service.CloseLeadSheet())
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := search.Query{
		Text:       strings.TrimSpace(query.Get("q")),
		FilterType: search.ResultType(query.Get("type")),
		Status:     query.Get("status"),
	}
	var err error
	if q.Limit, err = intParam(query.Get("limit")); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "limit must be a non-negative integer", nil)
		return
	}
	if q.Offset, err = intParam(query.Get("offset")); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "offset must be a non-negative integer", nil)
		return
	}
	resp, err := s.service.Search(q)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func intParam(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid integer %q", value)
	}
	return n, nil
}

func (s *HTTPServer) requireSession(w http.ResponseWriter) bool {
	if !s.service.Authenticated() {
		writeMappedError(w, errUnauthenticated)
		return false
	}
	return true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Duration("duration", time.Since(started)),
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

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
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

func writeMappedError(w http.ResponseWriter, err error) {
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
