// Command meds-formatter checks or fixes the wording of the bundled dataset.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dosesegura/dose-segura/config"
	"github.com/dosesegura/dose-segura/data"
	"github.com/dosesegura/dose-segura/formatter"
	"github.com/dosesegura/dose-segura/logging"
)

const usage = `Usage:
  meds-formatter [check|fix] [--dataset <path>]

Commands:
  check   Report formatting issues and missing content (default)
  fix     Apply formatting, add missing content and save the dataset
`

var errUsage = errors.New("invalid arguments")

type invocation struct {
	command string
	dataset string
}

func parseArgs(args []string, defaultDataset string, stderr io.Writer) (*invocation, error) {
	inv := &invocation{command: "check", dataset: defaultDataset}
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		inv.command = args[0]
		args = args[1:]
	}
	switch inv.command {
	case "check", "fix":
	default:
		return nil, fmt.Errorf("%w: unknown command: %s", errUsage, inv.command)
	}

	fs := flag.NewFlagSet("meds-formatter", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&inv.dataset, "dataset", inv.dataset, "path to the dataset JSON")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	return inv, nil
}

func run(inv *invocation, f *formatter.Formatter, out io.Writer, now time.Time) error {
	fmt.Fprintf(out, "Reading %s...\n", inv.dataset)
	ds, err := data.LoadDataset(inv.dataset)
	if err != nil {
		return err
	}

	if inv.command == "check" {
		printCheck(out, f.Check(ds))
		return nil
	}

	report := f.Fix(ds, now)
	if err := data.WriteDataset(inv.dataset, ds); err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	fmt.Fprintf(out, "Formatted %d entries, added %d missing entries\n", len(report.Issues), len(report.Missing))
	fmt.Fprintf(out, "Saved %s\n  Updated: %s\n", inv.dataset, ds.LastUpdated)
	return nil
}

func printCheck(out io.Writer, report *formatter.Report) {
	for _, issue := range report.Issues {
		fmt.Fprintf(out, "\n%s.%s[%d]:\n", issue.MedicationID, issue.Section, issue.Index)
		fmt.Fprintf(out, "  Current: %s\n", issue.Current)
		fmt.Fprintf(out, "  Formatted: %s\n", issue.Formatted)
	}
	if len(report.Issues) == 0 {
		fmt.Fprintln(out, "No formatting issues found")
	} else {
		fmt.Fprintf(out, "\nFound %d formatting issues.\nRun with \"fix\" to apply changes.\n", len(report.Issues))
	}

	for _, mc := range report.Missing {
		fmt.Fprintf(out, "  Missing: %s.%s: %s\n", mc.MedicationID, mc.Section, mc.Text)
	}
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	inv, err := parseArgs(os.Args[1:], cfg.DatasetPath, os.Stderr)
	if err != nil {
		if err != errUsage {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	logging.InitLoggerWithConfig(cfg.LogDir, cfg.Env, cfg.LogLevel, cfg.LogRetentionWeeks, cfg.MaxLogFileSize)
	err = run(inv, formatter.New(), os.Stdout, time.Now())
	_ = logging.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
