/**
 * HTTP handlers for the contract analysis API.
 */

package api

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MuthuAjay/contracts-v3/internal/agents"
)

// allowedUploadExtensions limits what the upload endpoint accepts. The
// pipeline itself handles more formats; the public surface stays narrow.
var allowedUploadExtensions = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

type analyzeRequest struct {
	CollectionName string `json:"collection_name"`
	AnalysisType   string `json:"analysis_type"`
	CustomQuery    string `json:"custom_query,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.readiness))
	status := http.StatusOK

	for name, check := range s.readiness {
		if err := check(r.Context()); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "ok"
		}
	}

	state := "ready"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	writeJSON(w, status, map[string]interface{}{"status": state, "checks": checks})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize)
	if err := r.ParseMultipartForm(s.cfg.MaxFileSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the maximum upload size")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Size > s.cfg.MaxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the maximum upload size")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploadExtensions[ext] {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported file type: "+ext)
		return
	}

	tempPath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.logger.Error().Err(err).Str("file", header.Filename).Msg("failed to save upload")
		writeError(w, http.StatusInternalServerError, "failed to save uploaded file")
		return
	}
	defer os.RemoveAll(filepath.Dir(tempPath))

	result, err := s.indexer.ProcessAndIndex(r.Context(), tempPath)
	if err != nil {
		s.logger.Error().Err(err).Str("file", header.Filename).Msg("document processing failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content":         result.Content,
		"collection_name": result.CollectionName,
		"page_count":      result.PageCount,
		"chunks_indexed":  result.ChunksIndexed,
	})
}

// saveUpload writes the uploaded file into a fresh temp directory so the
// original filename survives for collection naming.
func (s *Server) saveUpload(file io.Reader, filename string) (string, error) {
	dir, err := os.MkdirTemp(s.cfg.UploadDir, "upload-*")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, filepath.Base(filename))
	out, err := os.Create(path)
	if err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return path, nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CollectionName == "" {
		writeError(w, http.StatusBadRequest, "collection_name is required")
		return
	}

	if req.AnalysisType == "" || req.AnalysisType == "all" {
		results := s.analyzer.AnalyzeAll(r.Context(), req.CollectionName)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"collection_name": req.CollectionName,
			"analyses":        results,
		})
		return
	}

	role := agents.Role(req.AnalysisType)
	if !agents.ValidRole(role) {
		writeError(w, http.StatusBadRequest, "unknown analysis type: "+req.AnalysisType)
		return
	}

	analysis, err := s.analyzer.Analyze(r.Context(), req.CollectionName, role, req.CustomQuery)
	if err != nil {
		if strings.Contains(err.Error(), "collection not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error().Err(err).Str("collection", req.CollectionName).Str("role", req.AnalysisType).Msg("analysis failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleAnalysisVersions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "analysis history is not configured")
		return
	}

	collection := chi.URLParam(r, "collection")
	role := r.URL.Query().Get("role")
	if role == "" {
		writeError(w, http.StatusBadRequest, "role query parameter is required")
		return
	}

	versions, err := s.history.GetAnalysisVersions(r.Context(), collection, role)
	if err != nil {
		s.logger.Error().Err(err).Str("collection", collection).Msg("failed to load analysis versions")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"collection_name": collection,
		"role":            role,
		"versions":        versions,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
