package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"tcees-validator/internal/domain"
)

type mockHandlerConfig struct {
	secret    string
	maxFileMB int64
}

func (c *mockHandlerConfig) GetServerPort() string       { return "0" }
func (c *mockHandlerConfig) GetLogLevel() string         { return "debug" }
func (c *mockHandlerConfig) GetAPISecret() string        { return c.secret }
func (c *mockHandlerConfig) GetMaxFileMB() int64         { return c.maxFileMB }
func (c *mockHandlerConfig) GetMaxFileSize() int64       { return c.maxFileMB << 20 }
func (c *mockHandlerConfig) GetPortalURL() string        { return domain.DefaultPortalURL }
func (c *mockHandlerConfig) IsQuickMode() bool           { return false }
func (c *mockHandlerConfig) IsChromeProxyDisabled() bool { return false }
func (c *mockHandlerConfig) ShouldSaveDebugHTML() bool   { return false }
func (c *mockHandlerConfig) GetDebugDir() string         { return "" }
func (c *mockHandlerConfig) GetMaxParallel() int         { return 3 }
func (c *mockHandlerConfig) GetAllowedOrigins() []string { return []string{"*"} }

// mockValidator records the staged paths it receives
type mockValidator struct {
	mu       sync.Mutex
	paths    []string
	existed  []bool
	contents []string
	opts     domain.ValidateOptions
}

func (m *mockValidator) record(path string, opts domain.ValidateOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := os.ReadFile(path)
	m.paths = append(m.paths, path)
	m.existed = append(m.existed, err == nil)
	m.contents = append(m.contents, string(data))
	m.opts = opts
}

func (m *mockValidator) ValidatePDF(ctx context.Context, path string, opts domain.ValidateOptions) *domain.ValidationResult {
	m.record(path, opts)
	return &domain.ValidationResult{
		FileName:       filepath.Base(path),
		ValidExtension: true,
		Verdict:        domain.VerdictValid,
		Score:          100,
	}
}

func (m *mockValidator) ValidateMany(ctx context.Context, paths []string, opts domain.ValidateOptions) []*domain.ValidationResult {
	results := make([]*domain.ValidationResult, len(paths))
	for i, p := range paths {
		results[i] = m.ValidatePDF(ctx, p, opts)
	}
	return results
}

type upload struct {
	field   string
	name    string
	content string
}

func multipartRequest(t *testing.T, target string, uploads ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, u := range uploads {
		part, err := mw.CreateFormFile(u.field, u.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(u.content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestHandler(maxFileMB int64) (*ValidationHandler, *mockValidator) {
	v := &mockValidator{}
	h := NewValidationHandler(v, &mockHandlerConfig{maxFileMB: maxFileMB}, NewMockHandlerLogger())
	return h, v
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rr.Body.String())
	}
	return resp
}

func TestValidationHandler_Health(t *testing.T) {
	h, _ := newTestHandler(20)
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"service":"tcees-validator","status":"ok"}` {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

func TestValidationHandler_Validate_Success(t *testing.T) {
	h, v := newTestHandler(20)
	req := multipartRequest(t, "/validate?quick=1", upload{field: "file", name: "Relatório.PDF", content: "%PDF-1.4 body"})
	rr := httptest.NewRecorder()

	h.Validate(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var result domain.ValidationResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.FileName != "Relatório.PDF" {
		t.Fatalf("expected upload name in result, got %q", result.FileName)
	}
	if result.Verdict != domain.VerdictValid {
		t.Fatalf("expected verdict %q, got %q", domain.VerdictValid, result.Verdict)
	}

	if len(v.paths) != 1 || !v.existed[0] {
		t.Fatalf("expected the staged file to exist during validation")
	}
	if v.contents[0] != "%PDF-1.4 body" {
		t.Fatalf("unexpected staged content: %q", v.contents[0])
	}
	if !strings.HasPrefix(filepath.Base(v.paths[0]), "tcees_") || filepath.Ext(v.paths[0]) != ".pdf" {
		t.Fatalf("unexpected staged name: %s", v.paths[0])
	}
	if !v.opts.QuickMode {
		t.Fatalf("expected quick mode from query")
	}
	if _, err := os.Stat(v.paths[0]); !os.IsNotExist(err) {
		t.Fatalf("expected staged file to be removed, stat err: %v", err)
	}
}

func TestValidationHandler_Validate_NoFile(t *testing.T) {
	h, v := newTestHandler(20)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{name: "not multipart", req: httptest.NewRequest(http.MethodPost, "/validate", strings.NewReader("x"))},
		{name: "wrong field", req: multipartRequest(t, "/validate", upload{field: "other", name: "a.pdf", content: "x"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Validate(rr, tt.req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
			}
			resp := decodeError(t, rr)
			if resp.ErrorCode != domain.CodeNoFile || resp.Verdict != domain.VerdictError {
				t.Fatalf("unexpected error body: %+v", resp)
			}
		})
	}
	if len(v.paths) != 0 {
		t.Fatalf("expected validator not to be called")
	}
}

func TestValidationHandler_Validate_NotPDF(t *testing.T) {
	h, v := newTestHandler(20)
	rr := httptest.NewRecorder()
	h.Validate(rr, multipartRequest(t, "/validate", upload{field: "file", name: "notes.txt", content: "hello"}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if resp := decodeError(t, rr); resp.ErrorCode != domain.CodeNotPDF {
		t.Fatalf("expected NOT_PDF, got %+v", resp)
	}
	if len(v.paths) != 0 {
		t.Fatalf("expected validator not to be called")
	}
}

func TestValidationHandler_Validate_TooLarge(t *testing.T) {
	h, v := newTestHandler(1)
	big := strings.Repeat("a", 3<<20)
	rr := httptest.NewRecorder()
	h.Validate(rr, multipartRequest(t, "/validate", upload{field: "file", name: "big.pdf", content: big}))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, rr.Code)
	}
	if resp := decodeError(t, rr); resp.ErrorCode != domain.CodeFileTooLarge {
		t.Fatalf("expected FILE_TOO_LARGE, got %+v", resp)
	}
	if len(v.paths) != 0 {
		t.Fatalf("expected validator not to be called")
	}
}

func TestValidationHandler_Validate_OverLimitWithinOverhead(t *testing.T) {
	h, _ := newTestHandler(1)
	content := strings.Repeat("a", (1<<20)+1024)
	rr := httptest.NewRecorder()
	h.Validate(rr, multipartRequest(t, "/validate", upload{field: "file", name: "big.pdf", content: content}))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, rr.Code)
	}
}

func TestValidationHandler_ValidateBatch_Success(t *testing.T) {
	h, v := newTestHandler(20)
	req := multipartRequest(t, "/validate/batch",
		upload{field: "files", name: "a.pdf", content: "A"},
		upload{field: "files", name: "b.pdf", content: "B"},
	)
	rr := httptest.NewRecorder()

	h.ValidateBatch(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var results []domain.ValidationResult
	if err := json.Unmarshal(rr.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 2 || results[0].FileName != "a.pdf" || results[1].FileName != "b.pdf" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if v.contents[0] != "A" || v.contents[1] != "B" {
		t.Fatalf("unexpected staged contents: %v", v.contents)
	}
	for _, p := range v.paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected staged file %s to be removed", p)
		}
	}
}

func TestValidationHandler_ValidateBatch_TooManyFiles(t *testing.T) {
	h, v := newTestHandler(20)
	req := multipartRequest(t, "/validate/batch",
		upload{field: "files", name: "a.pdf", content: "A"},
		upload{field: "files", name: "b.pdf", content: "B"},
		upload{field: "files", name: "c.pdf", content: "C"},
		upload{field: "files", name: "d.pdf", content: "D"},
	)
	rr := httptest.NewRecorder()

	h.ValidateBatch(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if resp := decodeError(t, rr); resp.ErrorCode != domain.CodeTooManyFiles {
		t.Fatalf("expected TOO_MANY_FILES, got %+v", resp)
	}
	if len(v.paths) != 0 {
		t.Fatalf("expected validator not to be called")
	}
}

func TestValidationHandler_ValidateBatch_RejectsNonPDF(t *testing.T) {
	h, v := newTestHandler(20)
	req := multipartRequest(t, "/validate/batch",
		upload{field: "files", name: "a.pdf", content: "A"},
		upload{field: "files", name: "b.docx", content: "B"},
	)
	rr := httptest.NewRecorder()

	h.ValidateBatch(rr, req)

	if resp := decodeError(t, rr); resp.ErrorCode != domain.CodeNotPDF {
		t.Fatalf("expected NOT_PDF, got %+v", resp)
	}
	if len(v.paths) != 0 {
		t.Fatalf("expected validator not to be called")
	}
}

func TestValidationHandler_ValidateBatch_NoFiles(t *testing.T) {
	h, _ := newTestHandler(20)
	rr := httptest.NewRecorder()
	h.ValidateBatch(rr, multipartRequest(t, "/validate/batch", upload{field: "file", name: "a.pdf", content: "A"}))

	if resp := decodeError(t, rr); resp.ErrorCode != domain.CodeNoFile {
		t.Fatalf("expected NO_FILE, got %+v", resp)
	}
}

func TestValidationHandler_CheckUploadCauses(t *testing.T) {
	h, _ := newTestHandler(1)

	appErr := h.checkUpload(&multipart.FileHeader{Filename: "notes.txt", Size: 10})
	if appErr == nil || !errors.Is(appErr, domain.ErrNotPDF) {
		t.Fatalf("expected NOT_PDF error caused by ErrNotPDF, got %v", appErr)
	}

	appErr = h.checkUpload(&multipart.FileHeader{Filename: "big.pdf", Size: 2 << 20})
	if appErr == nil || !errors.Is(appErr, domain.ErrFileTooLarge) {
		t.Fatalf("expected FILE_TOO_LARGE error caused by ErrFileTooLarge, got %v", appErr)
	}
	if appErr.Code != domain.CodeFileTooLarge {
		t.Fatalf("expected code %s, got %s", domain.CodeFileTooLarge, appErr.Code)
	}

	if appErr := h.checkUpload(&multipart.FileHeader{Filename: "ok.pdf", Size: 10}); appErr != nil {
		t.Fatalf("expected upload to pass, got %v", appErr)
	}
}

// recordingLogger keeps every key/value list passed to Info
type recordingLogger struct {
	MockHandlerLogger
	mu    sync.Mutex
	infos map[string][]interface{}
}

func (l *recordingLogger) Info(msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.infos == nil {
		l.infos = map[string][]interface{}{}
	}
	l.infos[msg] = fields
}

func (l *recordingLogger) field(msg, key string) interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	fields := l.infos[msg]
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i] == key {
			return fields[i+1]
		}
	}
	return nil
}

func TestValidationHandler_LogsRequestID(t *testing.T) {
	logger := &recordingLogger{}
	cfg := &mockHandlerConfig{maxFileMB: 20}
	h := NewValidationHandler(&mockValidator{}, cfg, logger)
	router := NewRouter(h, NewAPISecretMiddleware("", logger).Middleware, RequestIDMiddleware(logger), nil)

	req := multipartRequest(t, "/validate", upload{field: "file", name: "a.pdf", content: "A"})
	req.Header.Set("X-Request-ID", "req-42")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	for _, msg := range []string{"Validation requested", "Validation answered", "Request handled"} {
		if got := logger.field(msg, "request_id"); got != "req-42" {
			t.Fatalf("expected request_id req-42 on %q, got %v", msg, got)
		}
	}
}
