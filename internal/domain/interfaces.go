package domain

import (
	"context"
	"time"
)

// Validator runs documents through the conformity portal
type Validator interface {
	ValidatePDF(ctx context.Context, path string, opts ValidateOptions) *ValidationResult
	ValidateMany(ctx context.Context, paths []string, opts ValidateOptions) []*ValidationResult
}

// ValidateOptions tunes a single validation run
type ValidateOptions struct {
	QuickMode bool
}

// PortalDriver opens browser sessions against the portal
type PortalDriver interface {
	Open(ctx context.Context) (PortalSession, error)
	Close() error
}

// PortalSession is one isolated browser page
type PortalSession interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	UploadFile(ctx context.Context, selector, path string, timeout time.Duration) error
	CellsHTML(ctx context.Context, selector string) ([]string, error)
	PageHTML(ctx context.Context) (string, error)
	BodyText(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Preflighter inspects a PDF locally without the portal
type Preflighter interface {
	Inspect(path string) *PreflightReport
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetLogLevel() string
	GetAPISecret() string
	GetMaxFileMB() int64
	GetMaxFileSize() int64
	GetPortalURL() string
	IsQuickMode() bool
	IsChromeProxyDisabled() bool
	ShouldSaveDebugHTML() bool
	GetDebugDir() string
	GetMaxParallel() int
	GetAllowedOrigins() []string
}
