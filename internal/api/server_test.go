/**
 * API server tests.
 */

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MuthuAjay/contracts-v3/internal/agents"
	"github.com/MuthuAjay/contracts-v3/internal/pipeline"
	"github.com/MuthuAjay/contracts-v3/internal/storage"
)

type stubIndexer struct {
	lastPath string
	result   *pipeline.Result
	err      error
}

func (s *stubIndexer) ProcessAndIndex(ctx context.Context, filePath string) (*pipeline.Result, error) {
	s.lastPath = filePath
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubAnalyzer struct {
	lastRole  agents.Role
	lastQuery string
	analysis  *agents.Analysis
	err       error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, collectionName string, role agents.Role, customQuery string) (*agents.Analysis, error) {
	s.lastRole = role
	s.lastQuery = customQuery
	if s.err != nil {
		return nil, s.err
	}
	return s.analysis, nil
}

func (s *stubAnalyzer) AnalyzeAll(ctx context.Context, collectionName string) map[agents.Role]*agents.Analysis {
	return map[agents.Role]*agents.Analysis{
		agents.RoleSummary: {Role: agents.RoleSummary, Collection: collectionName, Content: "summary"},
	}
}

type stubHistory struct {
	versions []storage.AnalysisVersion
}

func (s *stubHistory) GetAnalysisVersions(ctx context.Context, collectionName, role string) ([]storage.AnalysisVersion, error) {
	return s.versions, nil
}

func newTestServer(t *testing.T, indexer *stubIndexer, analyzer *stubAnalyzer, history HistoryStore) *Server {
	t.Helper()
	return NewServer(ServerConfig{
		Addr:        ":0",
		MaxFileSize: 10 * 1024 * 1024,
		UploadDir:   t.TempDir(),
	}, indexer, analyzer, history)
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubAnalyzer{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReadyEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubAnalyzer{}, nil)
	srv.AddReadinessCheck("database", func(ctx context.Context) error { return nil })
	srv.AddReadinessCheck("redis", func(ctx context.Context) error { return nil })

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready"`)

	srv.AddReadinessCheck("redis", func(ctx context.Context) error { return fmt.Errorf("connection refused") })
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestUploadProcessesDocument(t *testing.T) {
	indexer := &stubIndexer{result: &pipeline.Result{
		Content:        "WHEREAS the parties agree",
		CollectionName: "contract_25",
		PageCount:      1,
		ChunksIndexed:  1,
	}}
	srv := newTestServer(t, indexer, &stubAnalyzer{}, nil)

	body, contentType := multipartBody(t, "contract.txt", "WHEREAS the parties agree")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "contract_25", resp["collection_name"])
	assert.Equal(t, "WHEREAS the parties agree", resp["content"])

	// The saved temp file keeps the original name for collection naming.
	assert.Equal(t, "contract.txt", filepath.Base(indexer.lastPath))
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubAnalyzer{}, nil)

	body, contentType := multipartBody(t, "archive.zip", "PK")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Body.String(), ".zip")
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	srv := NewServer(ServerConfig{
		Addr:        ":0",
		MaxFileSize: 1024,
		UploadDir:   t.TempDir(),
	}, &stubIndexer{}, &stubAnalyzer{}, nil)

	body, contentType := multipartBody(t, "contract.txt", strings.Repeat("a", 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadRequiresFileField(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubAnalyzer{}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "contract"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeSingleRole(t *testing.T) {
	analyzer := &stubAnalyzer{analysis: &agents.Analysis{
		Role:       agents.RoleRiskAssessment,
		Collection: "contract_25",
		Content:    "High severity: unlimited liability",
	}}
	srv := newTestServer(t, &stubIndexer{}, analyzer, nil)

	body := `{"collection_name":"contract_25","analysis_type":"risk_assessment"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, agents.RoleRiskAssessment, analyzer.lastRole)
	assert.Contains(t, rec.Body.String(), "unlimited liability")
}

func TestAnalyzeAllRoles(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubAnalyzer{}, nil)

	body := `{"collection_name":"contract_25","analysis_type":"all"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "summary")
}

func TestAnalyzeValidation(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubAnalyzer{}, nil)

	cases := []struct {
		name string
		body string
		code int
	}{
		{"missing collection", `{"analysis_type":"summary"}`, http.StatusBadRequest},
		{"unknown role", `{"collection_name":"c_1","analysis_type":"astrology"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestAnalyzeUnknownCollection(t *testing.T) {
	analyzer := &stubAnalyzer{err: fmt.Errorf("collection not found: contract_404")}
	srv := newTestServer(t, &stubIndexer{}, analyzer, nil)

	body := `{"collection_name":"contract_404","analysis_type":"summary"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalysisVersionsEndpoint(t *testing.T) {
	history := &stubHistory{versions: []storage.AnalysisVersion{
		{CollectionName: "contract_25", Role: "summary", Version: 2, Content: "v2"},
		{CollectionName: "contract_25", Role: "summary", Version: 1, Content: "v1"},
	}}
	srv := newTestServer(t, &stubIndexer{}, &stubAnalyzer{}, history)

	req := httptest.NewRequest(http.MethodGet, "/api/collections/contract_25/analyses?role=summary", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "v2")

	// Missing role parameter.
	req = httptest.NewRequest(http.MethodGet, "/api/collections/contract_25/analyses", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisVersionsWithoutHistory(t *testing.T) {
	srv := newTestServer(t, &stubIndexer{}, &stubAnalyzer{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/collections/contract_25/analyses?role=summary", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
