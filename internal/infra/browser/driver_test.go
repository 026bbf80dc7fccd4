package browser

import (
	"errors"
	"testing"
)

func TestDriver_KeepsBrowserWhileSessionsAreOpen(t *testing.T) {
	d := NewDriver(Options{}, nopLogger{})
	healthErr := errors.New("websocket: read timeout")

	if d.shouldRelaunch(nil) {
		t.Fatalf("a healthy browser must not be relaunched")
	}
	if !d.shouldRelaunch(healthErr) {
		t.Fatalf("an idle browser that fails its health check should be relaunched")
	}

	// two validations of a batch still hold pages
	d.active = 2
	if d.shouldRelaunch(healthErr) {
		t.Fatalf("expected browser to be kept while sessions are open")
	}

	d.release()
	if d.shouldRelaunch(healthErr) {
		t.Fatalf("expected browser to be kept while one session is open")
	}

	d.release()
	if !d.shouldRelaunch(healthErr) {
		t.Fatalf("expected relaunch once every session is released")
	}
}

func TestDriver_ReleaseNeverGoesNegative(t *testing.T) {
	d := NewDriver(Options{}, nopLogger{})
	d.release()
	if d.active != 0 {
		t.Fatalf("expected active count 0, got %d", d.active)
	}
}
