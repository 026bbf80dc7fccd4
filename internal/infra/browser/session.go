package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tcees-validator/internal/domain"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const bodyTimeout = 5 * time.Second

// Session is one incognito page bound to a single validation
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	release func()

	closeOnce sync.Once
	closeErr  error
}

// Compile-time interface check
var _ domain.PortalSession = (*Session)(nil)

// Navigate loads url and waits for DOMContentLoaded
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := s.page.Context(tctx)
	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return err
	}
	wait()
	return nil
}

// UploadFile waits for the file input and attaches path to it
func (s *Session) UploadFile(ctx context.Context, selector, path string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := s.page.Context(tctx).Element(selector)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrFileInputNotFound, err)
	}
	return el.SetFiles([]string{path})
}

// CellsHTML returns the inner HTML of every element matching selector.
// Cells whose markup can not be read come back empty.
func (s *Session) CellsHTML(ctx context.Context, selector string) ([]string, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	cells := make([]string, 0, len(els))
	for _, el := range els {
		v, err := el.Property("innerHTML")
		if err != nil {
			cells = append(cells, "")
			continue
		}
		cells = append(cells, v.Str())
	}
	return cells, nil
}

// PageHTML returns the serialized document
func (s *Session) PageHTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// BodyText returns the rendered text of the page body
func (s *Session) BodyText(ctx context.Context) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, bodyTimeout)
	defer cancel()

	body, err := s.page.Context(tctx).Element("body")
	if err != nil {
		return "", err
	}
	return body.Text()
}

// Screenshot captures the visible viewport as PNG
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(false, nil)
}

// Close closes the page and disposes its incognito context
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := s.page.Close(); err != nil {
			s.closeErr = err
		}
		if err := s.browser.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
		if s.release != nil {
			s.release()
		}
	})
	return s.closeErr
}
