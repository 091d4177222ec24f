package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"pdfguard/guard"
	"pdfguard/policy"
	"pdfguard/provider"
	"pdfguard/report"
	"pdfguard/risk"
)

type Config struct {
	PolicyPath  string
	JSON        bool
	HTML        bool
	SanitizeDir string
	Summarize   bool
	OllamaURL   string
	Model       string
}

func main() {
	config := parseFlags()

	if err := run(config, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Config {
	var config Config
	flag.StringVar(&config.PolicyPath, "policy", "", "Path to a YAML scan policy")
	flag.BoolVar(&config.JSON, "json", false, "Emit the report as JSON")
	flag.BoolVar(&config.HTML, "html", false, "Emit the report as HTML")
	flag.StringVar(&config.SanitizeDir, "sanitize", "", "Write sanitized copies of flagged files into this directory")
	flag.BoolVar(&config.Summarize, "summarize", false, "Ask the configured model for a plain-language summary")
	flag.StringVar(&config.OllamaURL, "ollama-url", os.Getenv("OLLAMA_BASE_URL"), "Ollama server URL for -summarize")
	flag.StringVar(&config.Model, "model", "mistral", "Model to use for -summarize")
	flag.Parse()
	return config
}

func run(config Config, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("usage: pdfscan [flags] <pdf> [<pdf> ...]")
	}

	guardCfg := guard.Config{}
	if config.PolicyPath != "" {
		pol, err := policy.Load(config.PolicyPath)
		if err != nil {
			return err
		}
		guardCfg.Policy = pol
	}
	if config.Summarize {
		gen, err := provider.NewOllama(provider.OllamaConfig{
			Model:     config.Model,
			ServerURL: config.OllamaURL,
		})
		if err != nil {
			return err
		}
		guardCfg.Provider = gen
	}
	g, err := guard.New(guardCfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var bar *progressbar.ProgressBar
	if len(paths) > 1 && !config.JSON && !config.HTML {
		bar = progressbar.Default(int64(len(paths)), "scanning")
	}

	flagged := 0
	for _, path := range paths {
		if err := scanOne(ctx, g, config, path, &flagged); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if flagged > 0 {
		os.Exit(2)
	}
	return nil
}

func scanOne(ctx context.Context, g *guard.Guard, config Config, path string, flagged *int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	rep, err := g.Scan(ctx, data)
	if err != nil {
		return err
	}
	if rep.Verdict != risk.VerdictClean {
		*flagged++
	}

	view := report.FromScan(rep)
	switch {
	case config.JSON:
		out, err := view.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case config.HTML:
		out, err := view.HTML()
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	default:
		printHuman(path, rep)
	}

	if config.Summarize {
		summary, err := g.Summarize(ctx, rep)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s\n", summary)
	}

	if config.SanitizeDir != "" && rep.Verdict != risk.VerdictClean {
		out, err := g.Sanitize(ctx, data, rep)
		if err != nil {
			return err
		}
		dst := filepath.Join(config.SanitizeDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+".sanitized.pdf")
		if err := os.WriteFile(dst, out, 0o644); err != nil {
			return err
		}
		fmt.Printf("sanitized copy written to %s\n", dst)
	}
	return nil
}

func printHuman(path string, rep risk.Report) {
	verdict := rep.Verdict.String()
	switch rep.Verdict {
	case risk.VerdictClean:
		verdict = color.GreenString(verdict)
	case risk.VerdictWarning:
		verdict = color.YellowString(verdict)
	case risk.VerdictDangerous:
		verdict = color.RedString(verdict)
	}
	fmt.Printf("%s: %s\n", path, verdict)
	for _, ind := range rep.Indicators {
		sev := ind.Severity.String()
		if ind.Severity == risk.SeverityHigh {
			sev = color.RedString(sev)
		}
		fmt.Printf("  [%s] %s at %s: %s\n", sev, ind.Kind, ind.Ref, ind.Description)
	}
}
