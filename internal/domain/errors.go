package domain

import "errors"

// Domain errors
var (
	ErrFileNotFound      = errors.New("file not found")
	ErrNotPDF            = errors.New("only PDF files are accepted")
	ErrFileTooLarge      = errors.New("file too large")
	ErrTooManyFiles      = errors.New("too many files")
	ErrBrowserConnect    = errors.New("failed to connect to browser")
	ErrFileInputNotFound = errors.New("file input not found on portal page")
)
