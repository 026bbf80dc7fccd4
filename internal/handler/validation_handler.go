package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"tcees-validator/internal/domain"
	apperrors "tcees-validator/pkg/errors"

	"github.com/google/uuid"
)

const (
	singleFileField = "file"
	batchFileField  = "files"

	// multipart parts above this spill to disk
	multipartMemory = 8 << 20
	// headroom for multipart boundaries and form fields
	multipartOverhead = 1 << 20
)

// ValidationHandler exposes the TCEES validator over HTTP
type ValidationHandler struct {
	validator   domain.Validator
	maxFileSize int64
	maxFileMB   int64
	tempDir     string
	logger      domain.Logger
}

// NewValidationHandler creates a new validation handler
func NewValidationHandler(validator domain.Validator, config domain.Config, logger domain.Logger) *ValidationHandler {
	return &ValidationHandler{
		validator:   validator,
		maxFileSize: config.GetMaxFileSize(),
		maxFileMB:   config.GetMaxFileMB(),
		tempDir:     os.TempDir(),
		logger:      logger,
	}
}

// Health reports that the service is up
func (h *ValidationHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": domain.ServiceName,
	})
}

// Validate handles POST /validate with one PDF in the "file" field.
// Validation outcomes, including portal failures, are returned with 200.
func (h *ValidationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	if appErr := h.parseForm(r); appErr != nil {
		writeAppError(w, appErr)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[singleFileField]
	if len(files) == 0 {
		writeAppError(w, noFileError())
		return
	}
	header := files[0]
	if appErr := h.checkUpload(header); appErr != nil {
		writeAppError(w, appErr)
		return
	}

	path, err := h.stageUpload(header)
	if err != nil {
		h.logger.Error("Failed to stage upload", err, "request_id", requestID(r), "file", header.Filename)
		writeAppError(w, apperrors.NewInternalError("Falha ao salvar o arquivo enviado.", err).WithCode(domain.CodeValidationFailure))
		return
	}
	defer h.removeStaged(path)

	h.logger.Info("Validation requested", "request_id", requestID(r), "file", uploadName(header), "size", header.Size)
	result := h.validator.ValidatePDF(r.Context(), path, h.options(r))
	result.FileName = uploadName(header)
	h.logger.Info("Validation answered",
		"request_id", requestID(r),
		"file", result.FileName,
		"resultado_final", result.Verdict,
		"erro_codigo", result.ErrorCode,
	)

	writeJSON(w, http.StatusOK, result)
}

// ValidateBatch handles POST /validate/batch with up to three PDFs in the "files" field
func (h *ValidationHandler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(domain.MaxBatchSize)*h.maxFileSize+multipartOverhead)
	if appErr := h.parseForm(r); appErr != nil {
		writeAppError(w, appErr)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[batchFileField]
	if len(files) == 0 {
		writeAppError(w, noFileError())
		return
	}
	if len(files) > domain.MaxBatchSize {
		h.logger.Warn("Batch rejected", "request_id", requestID(r), "files", len(files))
		writeAppError(w, apperrors.NewValidationError(
			fmt.Sprintf("Máximo de %d arquivos por lote.", domain.MaxBatchSize),
		).WithCode(domain.CodeTooManyFiles).WithCause(domain.ErrTooManyFiles))
		return
	}
	for _, header := range files {
		if appErr := h.checkUpload(header); appErr != nil {
			writeAppError(w, appErr)
			return
		}
	}

	paths := make([]string, 0, len(files))
	defer func() {
		for _, p := range paths {
			h.removeStaged(p)
		}
	}()
	for _, header := range files {
		path, err := h.stageUpload(header)
		if err != nil {
			h.logger.Error("Failed to stage upload", err, "request_id", requestID(r), "file", header.Filename)
			writeAppError(w, apperrors.NewInternalError("Falha ao salvar o arquivo enviado.", err).WithCode(domain.CodeValidationFailure))
			return
		}
		paths = append(paths, path)
	}

	h.logger.Info("Batch validation requested", "request_id", requestID(r), "files", len(paths))
	results := h.validator.ValidateMany(r.Context(), paths, h.options(r))
	for i, result := range results {
		if i < len(files) && result != nil {
			result.FileName = uploadName(files[i])
		}
	}

	writeJSON(w, http.StatusOK, results)
}

func (h *ValidationHandler) parseForm(r *http.Request) *apperrors.AppError {
	err := r.ParseMultipartForm(multipartMemory)
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		return h.tooLargeError()
	}
	h.logger.Debug("Invalid multipart request", "request_id", requestID(r), "error", err)
	return noFileError()
}

func (h *ValidationHandler) checkUpload(header *multipart.FileHeader) *apperrors.AppError {
	name := uploadName(header)
	if name == "" {
		return noFileError()
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return apperrors.NewValidationError("Apenas arquivos PDF são aceitos.").
			WithCode(domain.CodeNotPDF).
			WithCause(fmt.Errorf("%w: %s", domain.ErrNotPDF, name))
	}
	if header.Size > h.maxFileSize {
		return h.tooLargeError().WithCause(fmt.Errorf("%w: %s is %d bytes", domain.ErrFileTooLarge, name, header.Size))
	}
	return nil
}

// stageUpload copies the upload to a uniquely named temp file
func (h *ValidationHandler) stageUpload(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	path := filepath.Join(h.tempDir, "tcees_"+uuid.NewString()+".pdf")
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

func (h *ValidationHandler) removeStaged(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Warn("Failed to remove temp file", "path", path, "error", err)
	}
}

func (h *ValidationHandler) options(r *http.Request) domain.ValidateOptions {
	quick := strings.ToLower(r.URL.Query().Get("quick"))
	return domain.ValidateOptions{QuickMode: quick == "1" || quick == "true"}
}

func (h *ValidationHandler) tooLargeError() *apperrors.AppError {
	return apperrors.NewTooLargeError(
		fmt.Sprintf("Arquivo excede o limite de %d MB.", h.maxFileMB),
	).WithCode(domain.CodeFileTooLarge).WithCause(domain.ErrFileTooLarge)
}

func noFileError() *apperrors.AppError {
	return apperrors.NewValidationError("Nenhum arquivo enviado.").WithCode(domain.CodeNoFile)
}

func uploadName(header *multipart.FileHeader) string {
	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
