package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ai-report-be/internal/bootstrap"
	"ai-report-be/internal/config"
	"ai-report-be/internal/entity"
	"ai-report-be/internal/pkg/logger"
	"ai-report-be/internal/repository/unitofwork"
	"ai-report-be/pkg/database"
	"ai-report-be/pkg/mapreduce"

	"github.com/fatih/color"
)

func main() {
	query := flag.String("q", "", "question the report should answer (required)")
	collection := flag.String("collection", entity.DefaultCollection, "document collection to retrieve from")
	docsFile := flag.String("docs", "", "JSON file with [{id,title,content}] to use instead of the database")
	concurrency := flag.Int("concurrency", 0, "override PIPELINE_MAX_CONCURRENCY")
	partial := flag.Bool("partial", false, "synthesize from finished documents when the run times out")
	verbose := flag.Bool("v", false, "log pipeline progress to the console")
	flag.Parse()

	if strings.TrimSpace(*query) == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	var log logger.ILogger = logger.NewNopLogger()
	if *verbose {
		zl := logger.NewZapLogger("", false)
		defer zl.Sync()
		log = zl
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipelineCfg := cfg.Pipeline.MapReduce()
	if *concurrency > 0 {
		pipelineCfg.MaxConcurrency = *concurrency
	}
	if *partial {
		pipelineCfg.AllowPartialOnTimeout = true
	}

	source, err := buildSource(cfg, *docsFile, *collection, log)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}

	provider, err := bootstrap.NewLLM(cfg, log)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	prompts := mapreduce.DefaultPrompts()
	if cfg.Ai.PromptsFile != "" {
		if prompts, err = mapreduce.LoadPrompts(cfg.Ai.PromptsFile); err != nil {
			color.Red("Failed: %v", err)
			os.Exit(1)
		}
	}

	color.Cyan("Running map-reduce report for %q (%s)\n", *query, *collection)

	report, err := mapreduce.RunPipeline(ctx, *query, pipelineCfg, mapreduce.Deps{
		Source:      source,
		Extractor:   mapreduce.NewLLMExtractor(provider, prompts),
		Synthesizer: mapreduce.NewLLMSynthesizer(provider, prompts, pipelineCfg.Separator),
		Logger:      log,
	})
	if err != nil {
		color.Red("Run failed [%s]: %v", mapreduce.KindOf(err), err)
		os.Exit(1)
	}

	printReport(os.Stdout, report)
}

func buildSource(cfg *config.Config, docsFile, collection string, log logger.ILogger) (mapreduce.DocumentSource, error) {
	if docsFile != "" {
		raw, err := os.ReadFile(docsFile)
		if err != nil {
			return nil, err
		}
		var docs []mapreduce.Document
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, fmt.Errorf("parse %s: %w", docsFile, err)
		}
		return mapreduce.StaticSource(docs), nil
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		return nil, err
	}
	uowFactory := unitofwork.NewRepositoryFactory(db)
	embedder := bootstrap.NewEmbeddingProvider(cfg, log)
	return bootstrap.NewSourceFactory(cfg.Retrieval, embedder, uowFactory, log)(collection), nil
}

const reportHeader = "### ROBUST MAP-REDUCE REPORT ###"

var (
	headerColor  = color.New(color.FgYellow)
	countsColor  = color.New(color.FgGreen)
	failureColor = color.New(color.FgRed)
	footerColor  = color.New(color.FgCyan)
)

func printReport(w io.Writer, report *mapreduce.Report) {
	headerColor.Fprintf(w, "\n%s\n\n", reportHeader)
	fmt.Fprintln(w, report.Text)

	fmt.Fprintln(w)
	countsColor.Fprintf(w, "Documents: %d | informative: %d | skipped: %d | failed: %d\n",
		report.Counts.Total,
		report.Counts.Informative,
		report.Counts.Skipped,
		report.Counts.Failed,
	)
	if report.ShortCircuited {
		headerColor.Fprintln(w, "No document contained relevant information; synthesis was skipped.")
	}
	for _, o := range report.Outcomes {
		if o.Status == mapreduce.StatusFailed {
			failureColor.Fprintf(w, "  failed %s after %d attempt(s): %s\n", o.DocumentID, o.Attempts, o.Err)
		}
	}
	footerColor.Fprintf(w, "Run %s finished in %s\n", report.RunID, report.Duration().Round(time.Millisecond))
}
