// Command meds downloads, extracts and parses the Infarmed documents of a
// medication.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dosesegura/dose-segura/config"
	"github.com/dosesegura/dose-segura/infarmed"
	"github.com/dosesegura/dose-segura/logging"
	"github.com/dosesegura/dose-segura/metrics"
	"github.com/dosesegura/dose-segura/pdftext"
	"github.com/dosesegura/dose-segura/pipeline"
)

const usage = `Usage:
  meds <command> <medName> [options]

Commands:
  download <medName>   Search and download RCM/FI PDFs
  extract <medName>    Extract text from downloaded PDFs
  parse <medName>      Parse extracted text into JSON
  all <medName>        Run download, extract, and parse in sequence

Options:
  --out <path>         (parse only) Output path for JSON
  --infarmed-id <id>   (parse only) Filter by Infarmed ID
  --best-match         (parse only) Use best match from meta.json
  --metrics-file <path> Write ingestion metrics in Prometheus text format
`

var errUsage = errors.New("invalid arguments")

// invocation is a parsed command line
type invocation struct {
	command     string
	name        string
	parse       pipeline.ParseOptions
	metricsFile string
}

func parseArgs(args []string, stderr io.Writer) (*invocation, error) {
	if len(args) < 2 {
		return nil, errUsage
	}

	inv := &invocation{command: args[0], name: args[1]}
	switch inv.command {
	case "download", "extract", "parse", "all":
	default:
		return nil, fmt.Errorf("%w: unknown command: %s", errUsage, inv.command)
	}

	fs := flag.NewFlagSet("meds", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&inv.parse.Out, "out", "", "output path for JSON")
	fs.StringVar(&inv.parse.InfarmedID, "infarmed-id", "", "filter by Infarmed ID")
	fs.BoolVar(&inv.parse.BestMatch, "best-match", false, "use best match from meta.json")
	fs.StringVar(&inv.metricsFile, "metrics-file", "", "write metrics in Prometheus text format")
	if err := fs.Parse(args[2:]); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}

	return inv, nil
}

func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	overrides, err := infarmed.LoadOverrides(cfg.OverridesFile)
	if err != nil {
		return nil, err
	}

	downloader := infarmed.NewDownloader(
		infarmed.BrowserOpener(infarmed.BrowserOptions{
			PortalURL: cfg.PortalURL,
			Headless:  cfg.Headless,
		}),
		infarmed.Options{
			OutDir:            cfg.InfarmedDir,
			PortalURL:         cfg.PortalURL,
			Overrides:         overrides,
			RequestsPerSecond: cfg.PortalRequestsPerSec,
		},
	)

	return pipeline.New(cfg.InfarmedDir, downloader, pdftext.NewExtractor(cfg.PdftotextBin)), nil
}

func run(ctx context.Context, inv *invocation, p *pipeline.Pipeline) error {
	switch inv.command {
	case "download":
		_, err := p.Download(ctx, inv.name)
		return err
	case "extract":
		_, err := p.Extract(ctx, inv.name)
		return err
	case "parse":
		_, err := p.Parse(inv.name, inv.parse)
		return err
	case "all":
		_, err := p.All(ctx, inv.name, inv.parse)
		return err
	}
	return fmt.Errorf("unknown command: %s", inv.command)
}

func main() {
	inv, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if err != errUsage {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.InitLoggerWithConfig(cfg.LogDir, cfg.Env, cfg.LogLevel, cfg.LogRetentionWeeks, cfg.MaxLogFileSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	p, err := buildPipeline(cfg)
	if err == nil {
		err = run(ctx, inv, p)
	}
	stop()

	if inv.metricsFile != "" {
		if werr := metrics.WriteTextfile(inv.metricsFile); werr != nil {
			logging.Warn("Failed to write metrics", "error", werr)
		}
	}
	_ = logging.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
