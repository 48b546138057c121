package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/retrieval"
)

// handleSearch implements the search subcommand: retrieval only, for
// inspecting what a query would feed into generation.
func handleSearch(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)

	var topK int
	var minScore float64
	var jsonOutput, showText bool
	fs.IntVar(&topK, "k", 0, "Number of results to return (default from config)")
	fs.Float64Var(&minScore, "min-score", 0, "Drop results scoring below this")
	fs.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	fs.BoolVar(&showText, "text", false, "Print chunk text with each result")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    bia search [options] "<query>"

EXAMPLES:
    bia search "cloud revenue"
    bia search "renewals" -k 10 -text
    bia search "cost drivers" -json
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: a search query is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	query := fs.Arg(0)

	app, err := newApp(cfg, false)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer app.close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	hits, err := app.pipeline.Search(ctx, retrieval.Query{
		Text:     query,
		K:        topK,
		MinScore: minScore,
	})
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	if jsonOutput {
		out, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode results: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	if len(hits) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, h := range hits {
		fmt.Printf("%2d. [%.3f] %s (document %s)\n", i+1, h.Score, h.ChunkID, h.DocumentID)
		if showText {
			fmt.Printf("    %s\n", h.Text)
		}
	}
}
