// Package browser runs the headless Chromium used to drive the conformity portal.
package browser

import (
	"os"
	"os/exec"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

var (
	binEnvKeys = []string{
		"ROD_BROWSER_BIN",
		"CHROME_BIN",
		"GOOGLE_CHROME_BIN",
		"CHROMIUM_BIN",
	}
	binNames = []string{
		"google-chrome",
		"google-chrome-stable",
		"chromium",
		"chromium-browser",
		"chrome",
	}
	binPaths = []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
	}
)

// binLookup groups the host lookups so resolution can be tested
type binLookup struct {
	getenv   func(string) string
	lookPath func(string) (string, error)
	exists   func(string) bool
	fallback func() (string, bool)
}

func hostLookup() binLookup {
	return binLookup{
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
		exists: func(p string) bool {
			_, err := os.Stat(p)
			return err == nil
		},
		fallback: launcher.LookPath,
	}
}

// ResolveBinary finds an installed Chrome/Chromium without downloading one.
// An empty result lets rod fetch its own browser.
func ResolveBinary() string {
	return resolveBinary(hostLookup())
}

func resolveBinary(l binLookup) string {
	for _, key := range binEnvKeys {
		if p := l.getenv(key); p != "" && l.exists(p) {
			return p
		}
	}
	for _, name := range binNames {
		if p, err := l.lookPath(name); err == nil && p != "" {
			return p
		}
	}
	for _, p := range binPaths {
		if l.exists(p) {
			return p
		}
	}
	if l.fallback != nil {
		if p, ok := l.fallback(); ok {
			return p
		}
	}
	return ""
}

type launchFlag struct {
	name   flags.Flag
	values []string
}

// launchFlags are tuned for small hosted containers
func launchFlags(disableProxy bool) []launchFlag {
	fl := []launchFlag{
		{name: "disable-dev-shm-usage"},
		{name: "disable-gpu"},
		{name: "disable-software-rasterizer"},
		{name: "disable-extensions"},
		{name: "disable-infobars"},
		{name: "disable-notifications"},
		{name: "blink-settings", values: []string{"imagesEnabled=false"}},
		{name: "window-size", values: []string{"1366,768"}},
		{name: "lang", values: []string{"pt-BR"}},
	}
	if disableProxy {
		fl = append(fl,
			launchFlag{name: "no-proxy-server"},
			launchFlag{name: "proxy-server", values: []string{"direct://"}},
			launchFlag{name: "proxy-bypass-list", values: []string{"*"}},
		)
	}
	return fl
}

func newLauncher(bin string, disableProxy bool) *launcher.Launcher {
	l := launcher.New().Headless(true).NoSandbox(true)
	if bin != "" {
		l = l.Bin(bin)
	}
	for _, f := range launchFlags(disableProxy) {
		l = l.Set(f.name, f.values...)
	}
	return l
}
