// Command tcees-validate checks local PDFs against the TCEES conformity portal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"tcees-validator/internal/config"
	"tcees-validator/internal/domain"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"
)

// Exit codes for tcees-validate.
const (
	ExitValid   = 0 // every document VALIDADO
	ExitInvalid = 1 // at least one document not validated, or a runtime failure
	ExitUsage   = 2 // invalid flags or arguments
)

var (
	ErrNoInput      = errors.New("no PDF given")
	ErrTooManyFiles = fmt.Errorf("at most %d PDFs per run", domain.MaxBatchSize)
	ErrFormat       = errors.New("format must be json or yaml")
)

// cliFlags holds the command line options.
type cliFlags struct {
	quick     bool
	format    string
	portalURL string
	debugHTML bool
}

// cliConfig overrides environment configuration with command line options.
type cliConfig struct {
	domain.Config
	portalURL string
	debugHTML bool
}

func (c cliConfig) GetPortalURL() string {
	if c.portalURL != "" {
		return c.portalURL
	}
	return c.Config.GetPortalURL()
}

func (c cliConfig) ShouldSaveDebugHTML() bool {
	return c.debugHTML || c.Config.ShouldSaveDebugHTML()
}

func main() {
	// .env is optional for the CLI
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags, files, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return ExitValid
	}
	if err != nil {
		fmt.Fprintf(stderr, "tcees-validate: %v\n", err)
		return ExitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container := config.NewContainerWithConfig(cliConfig{
		Config:    config.NewConfig(),
		portalURL: flags.portalURL,
		debugHTML: flags.debugHTML,
	})
	defer func() {
		if err := container.Close(); err != nil {
			container.GetLogger().Warn("Failed to close browser", "error", err)
		}
	}()

	results := validateAll(ctx, container.GetValidator(), files, domain.ValidateOptions{QuickMode: flags.quick})

	if err := render(stdout, results, flags.format); err != nil {
		fmt.Fprintf(stderr, "tcees-validate: %v\n", err)
		return ExitInvalid
	}
	return exitCodeFor(results)
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, []string, error) {
	f := &cliFlags{}
	fs := flag.NewFlagSet("tcees-validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: tcees-validate [flags] file.pdf [file.pdf ...]\n\n")
		fs.PrintDefaults()
	}

	fs.BoolVarP(&f.quick, "quick", "q", false, "use the shorter portal waits")
	fs.StringVarP(&f.format, "format", "f", "json", "output format: json or yaml")
	fs.StringVar(&f.portalURL, "portal-url", "", "override the conformity portal URL")
	fs.BoolVar(&f.debugHTML, "debug-html", false, "save the portal page HTML next to each PDF")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if f.format != "json" && f.format != "yaml" {
		return nil, nil, fmt.Errorf("%w: %q", ErrFormat, f.format)
	}

	files := fs.Args()
	if len(files) == 0 {
		return nil, nil, ErrNoInput
	}
	if len(files) > domain.MaxBatchSize {
		return nil, nil, ErrTooManyFiles
	}
	return f, files, nil
}

func validateAll(ctx context.Context, v domain.Validator, files []string, opts domain.ValidateOptions) []*domain.ValidationResult {
	if len(files) == 1 {
		return []*domain.ValidationResult{v.ValidatePDF(ctx, files[0], opts)}
	}
	return v.ValidateMany(ctx, files, opts)
}

// render prints one record as an object and several as a list
func render(w io.Writer, results []*domain.ValidationResult, format string) error {
	var payload interface{} = results
	if len(results) == 1 {
		payload = results[0]
	}

	switch format {
	case "yaml":
		out, err := yaml.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

func exitCodeFor(results []*domain.ValidationResult) int {
	if len(results) == 0 {
		return ExitInvalid
	}
	for _, r := range results {
		if r == nil || r.Verdict != domain.VerdictValid {
			return ExitInvalid
		}
	}
	return ExitValid
}
