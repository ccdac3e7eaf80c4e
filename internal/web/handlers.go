package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockroom-app/stockroom/internal/importer"
	"github.com/stockroom-app/stockroom/internal/schema"
)

// SessionResponse is the JSON snapshot of an import session.
type SessionResponse struct {
	SessionID string                   `json:"sessionId"`
	FileName  string                   `json:"fileName"`
	Stage     importer.Stage           `json:"stage"`
	Delimiter string                   `json:"delimiter,omitempty"`
	TotalRows int                      `json:"totalRows"`
	Profiles  []importer.ColumnProfile `json:"profiles,omitempty"`
	Mappings  []importer.ColumnMapping `json:"mappings,omitempty"`
	CreatedAt time.Time                `json:"createdAt"`
}

func toSessionResponse(s *importer.ImportSession) SessionResponse {
	resp := SessionResponse{
		SessionID: s.ID,
		FileName:  s.FileName,
		Stage:     s.Stage,
		Profiles:  s.Profiles,
		Mappings:  s.Mappings,
		CreatedAt: s.CreatedAt,
	}
	if s.Table != nil {
		resp.Delimiter = string(s.Table.Delimiter)
		resp.TotalRows = s.Table.RowCount()
	}
	return resp
}

// handleCreateSession accepts a multipart CSV upload, parses and profiles
// it, and returns the new session with its proposed column mapping.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondError(w, r, fmt.Errorf("file too large or invalid form: %w", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errors.New("no file provided"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusInternalServerError)
		return
	}

	session, err := s.sessions.Create(header.Filename, data)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toSessionResponse(session))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, toSessionResponse(session))
}

func (s *Server) handleGetMapping(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"mappings": session.Mappings,
		"issues":   importer.ValidateMappings(session.Mappings),
	})
}

// mappingRequest is the body of PUT /mapping: point one column at a field,
// or unmap it with mapped=false.
type mappingRequest struct {
	ColumnIndex int    `json:"columnIndex"`
	Field       string `json:"field"`
	Mapped      bool   `json:"mapped"`
}

func (s *Server) handleSetMapping(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("invalid mapping request: %w", err), http.StatusBadRequest)
		return
	}

	mappings, err := s.sessions.SetMapping(sessionID, req.ColumnIndex, schema.Field(req.Field), req.Mapped)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, map[string]any{
		"mappings": mappings,
		"issues":   importer.ValidateMappings(mappings),
	})
}

// handleBuildPreview validates the mapping and, if it passes, returns the
// full transform preview. Validation failures come back as 422 with the
// issue list.
func (s *Server) handleBuildPreview(w http.ResponseWriter, r *http.Request) {
	preview, issues, err := s.sessions.BuildPreview(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if len(issues) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"valid": false, "issues": issues})
		return
	}

	writeJSON(w, map[string]any{"valid": true, "preview": preview})
}

func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.sessions.StartImport(r.Context(), sessionID); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "importing", "sessionId": sessionID})
}

// handleProgress reports commit progress. Clients that accept
// text/event-stream get a live SSE feed; everyone else gets a snapshot.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		progress, err := s.sessions.Progress(sessionID)
		if err != nil {
			s.respondError(w, r, err, http.StatusNotFound)
			return
		}
		writeJSON(w, progress)
		return
	}

	progressCh, err := s.sessions.SubscribeProgress(sessionID)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// ResponseController unwraps middleware writers to reach the Flusher.
	rc := http.NewResponseController(w)

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				rc.Flush()
				return
			}
			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Percentage, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Cancel(chi.URLParam(r, "sessionID")); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, map[string]string{"status": "cancelling"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Reset(chi.URLParam(r, "sessionID")); err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "reset"})
}

// handleResult returns the final import report, blocking until a running
// commit finishes.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.sessions.Result(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, result)
}

// handleResultExport downloads the structured result document.
func (s *Server) handleResultExport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	result, err := s.sessions.Result(sessionID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	doc := importer.BuildResultDocument(session.FileName, time.Now(), result)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", exportFilename("import_result", "json"))
	writeJSON(w, doc)
}

// handleIssuesCSV downloads every error and warning as CSV.
func (s *Server) handleIssuesCSV(w http.ResponseWriter, r *http.Request) {
	result, err := s.sessions.Result(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", exportFilename("import_issues", "csv"))
	// Headers are sent; a mid-stream write error leaves nothing to report.
	_ = importer.WriteIssuesCSV(w, result)
}

// handleFailedRowsCSV downloads failed rows in the original column layout
// so the file can be fixed and re-imported.
func (s *Server) handleFailedRowsCSV(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	if session.Table == nil {
		s.respondError(w, r, errors.New("session not found: source data cleared"), http.StatusNotFound)
		return
	}
	result, err := s.sessions.Result(sessionID)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", exportFilename("failed_rows", "csv"))
	_ = importer.WriteFailedItemsCSV(w, session.Table.Headers, result)
}

// fieldInfo describes one target field for mapping UIs.
type fieldInfo struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Synonyms []string `json:"synonyms,omitempty"`
}

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	fields := make([]fieldInfo, 0, len(schema.InventoryFields))
	for _, f := range schema.InventoryFields {
		fields = append(fields, fieldInfo{
			Key:      string(f.Key),
			Label:    f.Label,
			Type:     schema.TypeName(f.Type),
			Required: f.Required,
			Synonyms: f.Synonyms,
		})
	}
	writeJSON(w, map[string]any{"fields": fields})
}

// handleQueueStatus returns the commit limiter state for monitoring.
func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.sessions.Limiter().Status())
}

func exportFilename(prefix, ext string) string {
	return fmt.Sprintf(`attachment; filename="%s_%s.%s"`, prefix, time.Now().Format("20060102_150405"), ext)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// statusFor picks an HTTP status for a session-layer error.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, importer.ErrTooManyImports):
		return http.StatusTooManyRequests
	case strings.Contains(err.Error(), "not found"):
		return http.StatusNotFound
	case strings.Contains(err.Error(), "already running"):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
