package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tcees-validator/internal/domain"
	apperrors "tcees-validator/pkg/errors"
)

const (
	fileInputSelector  = `input[type="file"]`
	debugHTMLPrefix    = "tcees_debug"
	errorShotPrefix    = "tcees_error_screenshot"
	artifactTimeout    = 10 * time.Second
	notFoundMessageFmt = "Arquivo não encontrado: %s"
)

// PollSettings controls how long the portal is given to render its verdict
type PollSettings struct {
	PageLoadWait      time.Duration
	RenderWait        time.Duration
	MaxWait           time.Duration
	PollInterval      time.Duration
	NavigationTimeout time.Duration
	FileInputTimeout  time.Duration
}

// PollSettingsFor returns the waits used in normal or quick mode
func PollSettingsFor(quick bool) PollSettings {
	s := PollSettings{
		PageLoadWait:      3 * time.Second,
		RenderWait:        4 * time.Second,
		MaxWait:           55 * time.Second,
		PollInterval:      2 * time.Second,
		NavigationTimeout: 25 * time.Second,
		FileInputTimeout:  15 * time.Second,
	}
	if quick {
		s.PageLoadWait = 2 * time.Second
		s.RenderWait = 2 * time.Second
		s.MaxWait = 30 * time.Second
	}
	return s
}

// ValidatorService drives the conformity portal and turns its page into a ValidationResult
type ValidatorService struct {
	driver    domain.PortalDriver
	preflight domain.Preflighter
	config    domain.Config
	logger    domain.Logger

	settings func(quick bool) PollSettings
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// Compile-time interface check
var _ domain.Validator = (*ValidatorService)(nil)

// NewValidatorService creates a new validator service
func NewValidatorService(
	driver domain.PortalDriver,
	preflight domain.Preflighter,
	config domain.Config,
	logger domain.Logger,
) *ValidatorService {
	return &ValidatorService{
		driver:    driver,
		preflight: preflight,
		config:    config,
		logger:    logger,
		settings:  PollSettingsFor,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// ValidatePDF submits one document to the portal and reads back the eight indicators.
// Failures are reported inside the returned record, never as a nil result.
func (s *ValidatorService) ValidatePDF(ctx context.Context, path string, opts domain.ValidateOptions) *domain.ValidationResult {
	name := filepath.Base(path)
	s.logger.Info("Validating document with TCEES", "file", name)

	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		err = fmt.Errorf("%s is a directory", path)
	}
	if err != nil {
		technical := fmt.Errorf("%w: %v", domain.ErrFileNotFound, err)
		s.logger.Warn("Document not found", "file", name, "error", technical)
		return domain.NewErrorResult(name, fmt.Sprintf(notFoundMessageFmt, path), domain.CodeFileNotFound, technical.Error())
	}

	settings := s.settings(opts.QuickMode || s.config.IsQuickMode())

	start := time.Now()
	session, err := s.driver.Open(ctx)
	if err != nil {
		return s.failure(ctx, nil, path, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Warn("Failed to close browser session", "file", name, "error", err)
			return
		}
		s.logger.Debug("Browser session closed", "file", name)
	}()
	s.logger.Debug("Browser session ready", "file", name, "elapsed", time.Since(start).String())

	statuses, err := s.submitAndPoll(ctx, session, path, settings)
	if err != nil {
		return s.failure(ctx, session, path, err)
	}

	return s.buildResult(ctx, session, path, info.Size(), statuses)
}

// submitAndPoll uploads the document and waits for two identical reads of the indicators
func (s *ValidatorService) submitAndPoll(
	ctx context.Context,
	session domain.PortalSession,
	path string,
	settings PollSettings,
) (domain.Statuses, error) {
	portalURL := s.config.GetPortalURL()
	s.logger.Debug("Opening portal", "url", portalURL)
	if err := session.Navigate(ctx, portalURL, settings.NavigationTimeout); err != nil {
		return nil, fmt.Errorf("navigate to portal: %w", err)
	}
	if err := s.sleep(ctx, settings.PageLoadWait); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	if err := session.UploadFile(ctx, fileInputSelector, absPath, settings.FileInputTimeout); err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}
	s.logger.Debug("Document uploaded, waiting for portal", "file", filepath.Base(path))

	var (
		waited        time.Duration
		stable        int
		lastSignature string
		parsed        domain.Statuses
	)

	for waited < settings.MaxWait {
		if err := s.sleep(ctx, settings.PollInterval); err != nil {
			return nil, err
		}
		waited += settings.PollInterval

		statuses := s.readLiveStatuses(ctx, session)
		if len(statuses) < domain.CheckCount {
			s.logger.Debug("Portal still processing", "waited", waited.String())
			continue
		}

		resolved := statuses.Resolved()
		if resolved < minResolvedStatuses {
			s.logger.Debug("Partial portal result", "resolved", resolved, "total", domain.CheckCount, "waited", waited.String())
			continue
		}

		signature := statuses.Signature()
		if signature == lastSignature {
			stable++
		} else {
			stable = 0
			lastSignature = signature
		}

		parsed = statuses
		if stable >= 1 {
			s.logger.Debug("Stable portal result detected", "signature", signature, "waited", waited.String())
			break
		}
	}

	if parsed == nil {
		s.logger.Warn("No stable portal result within the time limit; waiting for final render", "max_wait", settings.MaxWait.String())
		if err := s.sleep(ctx, settings.RenderWait); err != nil {
			return nil, err
		}
	}

	return parsed, nil
}

// readLiveStatuses queries the page with each selector and keeps the best-resolved read
func (s *ValidatorService) readLiveStatuses(ctx context.Context, session domain.PortalSession) domain.Statuses {
	var best domain.Statuses
	bestResolved := -1

	for _, selector := range statusSelectors {
		cells, err := session.CellsHTML(ctx, selector)
		if err != nil {
			continue
		}
		statuses := ClassifyCells(cells)
		if statuses == nil {
			continue
		}

		resolved := statuses.Resolved()
		if resolved > bestResolved {
			best = statuses
			bestResolved = resolved
		}
		if resolved >= minResolvedStatuses {
			return statuses
		}
	}

	return best
}

func (s *ValidatorService) buildResult(
	ctx context.Context,
	session domain.PortalSession,
	path string,
	size int64,
	statuses domain.Statuses,
) *domain.ValidationResult {
	result := &domain.ValidationResult{
		FileName:    filepath.Base(path),
		SizeBytes:   size,
		ValidatedAt: s.now().Format(domain.DateLayout),
		Verdict:     domain.VerdictError,
	}

	pageHTML, err := session.PageHTML(ctx)
	if err != nil {
		s.logger.Debug("Could not read page HTML", "error", err)
	}
	pageText, err := session.BodyText(ctx)
	if err != nil {
		s.logger.Debug("Could not read page text", "error", err)
	}

	if s.config.ShouldSaveDebugHTML() {
		s.saveDebugHTML(path, pageHTML)
	}

	if statuses == nil {
		statuses = s.readLiveStatuses(ctx, session)
	}
	if statuses == nil {
		statuses = ExtractStatusesFromHTML(pageHTML)
	}

	if !ApplyStatuses(result, statuses, pageText) {
		// minimal local facts so a parse failure does not read as every check failing
		result.ValidExtension = strings.EqualFold(filepath.Ext(path), ".pdf")
		result.FileSizeOK = size > 0
		result.Message = domain.UnparseableMessage
		result.Verdict = domain.VerdictError
		if s.preflight != nil {
			result.Preflight = s.preflight.Inspect(path)
		}
		s.logger.Warn("Failed to extract the eight TCEES indicators", "file", result.FileName)
	}

	result.Score = Score(result)
	s.logResult(result)
	return result
}

// failure turns an automation error into the coded error record
func (s *ValidatorService) failure(ctx context.Context, session domain.PortalSession, path string, err error) *domain.ValidationResult {
	appErr := ClassifyPortalError(err)
	name := filepath.Base(path)
	if apperrors.IsType(appErr, apperrors.ErrorTypeNetwork) {
		// the portal is unreachable from here, not a fault in this service
		s.logger.Warn("TCEES portal unreachable", "file", name, "code", appErr.Code, "error", err)
	} else {
		s.logger.Error("TCEES validation failed", err, "file", name, "code", appErr.Code)
	}

	if session != nil {
		s.saveScreenshot(ctx, session, path)
	}

	return domain.NewErrorResult(name, appErr.Message, appErr.Code, err.Error())
}

func (s *ValidatorService) saveScreenshot(ctx context.Context, session domain.PortalSession, path string) {
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), artifactTimeout)
	defer cancel()

	png, err := session.Screenshot(shotCtx)
	if err != nil {
		s.logger.Debug("Could not capture error screenshot", "error", err)
		return
	}
	target := filepath.Join(s.debugDir(path), artifactName(errorShotPrefix, path, ".png"))
	if err := os.WriteFile(target, png, 0o600); err != nil {
		s.logger.Warn("Could not save error screenshot", "path", target, "error", err)
		return
	}
	s.logger.Info("Error screenshot saved", "path", target)
}

func (s *ValidatorService) saveDebugHTML(path, pageHTML string) {
	target := filepath.Join(s.debugDir(path), artifactName(debugHTMLPrefix, path, ".html"))
	if err := os.WriteFile(target, []byte(pageHTML), 0o600); err != nil {
		s.logger.Warn("Could not save debug HTML", "path", target, "error", err)
		return
	}
	s.logger.Debug("Debug HTML saved", "path", target)
}

func (s *ValidatorService) debugDir(path string) string {
	if dir := s.config.GetDebugDir(); dir != "" {
		return dir
	}
	return filepath.Dir(path)
}

// artifactName suffixes prefix with the document base name
func artifactName(prefix, path, ext string) string {
	base := filepath.Base(path)
	return prefix + "_" + strings.TrimSuffix(base, filepath.Ext(base)) + ext
}

func (s *ValidatorService) logResult(r *domain.ValidationResult) {
	s.logger.Info("TCEES validation result",
		"file", r.FileName,
		"extensao_valida", r.ValidExtension,
		"sem_senha", r.NoPassword,
		"tamanho_arquivo_ok", r.FileSizeOK,
		"tamanho_pagina_ok", r.PageSizeOK,
		"assinado", r.Signed,
		"numero_assinaturas", r.SignatureCount,
		"autenticidade_ok", r.AuthenticityOK,
		"integridade_ok", r.IntegrityOK,
		"pesquisavel", r.Searchable,
		"resultado_final", r.Verdict,
		"pontuacao", r.Score,
	)
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
