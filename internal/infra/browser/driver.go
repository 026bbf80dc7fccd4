package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tcees-validator/internal/domain"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Options configures the shared browser
type Options struct {
	Bin          string
	DisableProxy bool
}

// Driver owns one headless Chromium and hands out isolated pages.
// The browser is started lazily and relaunched if the connection goes stale
// while no session is using it.
type Driver struct {
	opts   Options
	logger domain.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	active   int
}

// Compile-time interface check
var _ domain.PortalDriver = (*Driver)(nil)

// NewDriver creates a driver; no browser is started until the first Open
func NewDriver(opts Options, logger domain.Logger) *Driver {
	return &Driver{opts: opts, logger: logger}
}

func (d *Driver) startLocked(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if d.browser != nil {
		_, err := d.browser.Version()
		if !d.shouldRelaunch(err) {
			if err != nil {
				d.logger.Warn("Browser health check failed; keeping it for open sessions", "active", d.active, "error", err)
			}
			return nil
		}
		d.logger.Warn("Stale browser connection detected, relaunching", "error", err)
		_ = d.shutdownLocked()
	}

	bin := d.opts.Bin
	if bin == "" {
		bin = ResolveBinary()
	}
	if bin == "" {
		d.logger.Warn("No local Chrome/Chromium found; rod will download one")
	}

	start := time.Now()
	l := newLauncher(bin, d.opts.DisableProxy)
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return fmt.Errorf("%w: %v", domain.ErrBrowserConnect, err)
	}

	d.launcher = l
	d.browser = browser
	d.logger.Info("Headless browser ready", "bin", bin, "elapsed", time.Since(start).String())
	return nil
}

// Open starts a fresh incognito page for one validation
func (d *Driver) Open(ctx context.Context) (domain.PortalSession, error) {
	d.mu.Lock()
	if err := d.startLocked(ctx); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	browser := d.browser
	d.active++
	d.mu.Unlock()

	incognito, err := browser.Incognito()
	if err != nil {
		d.release()
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		d.release()
		return nil, fmt.Errorf("create page: %w", err)
	}

	return &Session{browser: incognito, page: page, release: d.release}, nil
}

// shouldRelaunch reports whether a failed health check may tear the browser down.
// Never while sessions are open.
func (d *Driver) shouldRelaunch(healthErr error) bool {
	return healthErr != nil && d.active == 0
}

func (d *Driver) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active > 0 {
		d.active--
	}
}

// Close shuts the browser down. It is safe to call more than once.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdownLocked()
}

func (d *Driver) shutdownLocked() error {
	var err error
	if d.browser != nil {
		err = d.browser.Close()
		d.browser = nil
	}
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
		d.launcher = nil
	}
	return err
}
