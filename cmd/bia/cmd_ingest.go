package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/loader"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/pipeline"
)

// handleIngest implements the ingest subcommand.
func handleIngest(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)

	var dataDir string
	var fromStdin bool
	var title string
	fs.StringVar(&dataDir, "data", "", "Override the configured data directory")
	fs.BoolVar(&fromStdin, "stdin", false, "Ingest a single document from stdin")
	fs.StringVar(&title, "title", "", "Title for the stdin document")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    bia ingest [options]

DESCRIPTION:
    Loads .txt and .md files from the data directory, chunks and embeds
    them, and writes the vector and keyword indexes. Re-ingesting a
    document replaces its previous chunks.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    bia ingest
    bia ingest -data ./reports
    cat notes.txt | bia ingest -stdin -title "Meeting notes"
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if dataDir != "" {
		cfg.Ingest.DataDir = dataDir
	}

	var docs []pipeline.Document
	var err error
	if fromStdin {
		doc, readErr := loader.FromReader(os.Stdin, title)
		if readErr != nil {
			log.Fatalf("Failed to read stdin: %v", readErr)
		}
		docs = []pipeline.Document{doc}
	} else {
		docs, err = loader.Load(cfg.Ingest)
		if err != nil {
			log.Fatalf("Failed to load documents: %v", err)
		}
	}
	if len(docs) == 0 {
		fmt.Fprintf(os.Stderr, "No documents found under %s\n", cfg.Ingest.DataDir)
		os.Exit(1)
	}

	app, err := newApp(cfg, false)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer app.close()

	progress := newIngestProgress(defaultProgressEnabled())
	progress.Start(len(docs))

	report := &pipeline.IngestReport{}
	for _, doc := range docs {
		r, err := app.pipeline.Ingest(context.Background(), []pipeline.Document{doc})
		if err != nil {
			log.Fatalf("Ingestion aborted: %v", err)
		}
		report.Documents += r.Documents
		report.Chunks += r.Chunks
		report.Failures = append(report.Failures, r.Failures...)
		progress.Increment()
	}
	progress.Finish()

	if err := app.saveIndex(); err != nil {
		log.Fatalf("Failed to persist index: %v", err)
	}

	fmt.Printf("Ingested %d document(s), %d chunk(s)\n", report.Documents, report.Chunks)
	if len(report.Failures) > 0 {
		fmt.Fprintf(os.Stderr, "%d document(s) failed:\n", len(report.Failures))
		for _, f := range report.Failures {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", f.DocumentID, f.Err)
		}
		os.Exit(1)
	}
}
