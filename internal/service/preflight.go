package service

import (
	"errors"
	"strings"

	"tcees-validator/internal/domain"

	"github.com/gen2brain/go-fitz"
)

// preflightTextPages bounds how many pages are scanned for extractable text
const preflightTextPages = 5

// PDFPreflight inspects a PDF locally with MuPDF
type PDFPreflight struct {
	logger domain.Logger
}

// NewPDFPreflight creates a new preflight inspector
func NewPDFPreflight(logger domain.Logger) *PDFPreflight {
	return &PDFPreflight{logger: logger}
}

// Inspect opens the document and reports what can be learned without the portal
func (p *PDFPreflight) Inspect(path string) *domain.PreflightReport {
	report := &domain.PreflightReport{}

	doc, err := fitz.New(path)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			report.Encrypted = true
			return report
		}
		report.Error = err.Error()
		p.logger.Warn("PDF preflight failed to open document", "path", path, "error", err)
		return report
	}
	defer doc.Close()

	report.PageCount = doc.NumPage()

	for i := 0; i < report.PageCount; i++ {
		bounds, err := doc.Bound(i)
		if err != nil {
			p.logger.Debug("PDF preflight could not read page bounds", "page", i+1, "error", err)
			continue
		}
		if w := float64(bounds.Dx()); w > report.MaxWidthPt {
			report.MaxWidthPt = w
		}
		if h := float64(bounds.Dy()); h > report.MaxHeightPt {
			report.MaxHeightPt = h
		}
	}

	for i := 0; i < report.PageCount && i < preflightTextPages; i++ {
		text, err := doc.Text(i)
		if err != nil {
			p.logger.Debug("PDF preflight could not extract page text", "page", i+1, "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			report.Searchable = true
			break
		}
	}

	return report
}
