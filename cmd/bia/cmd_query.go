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

// handleQuery implements the query subcommand: full retrieval-augmented
// generation for one question.
func handleQuery(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)

	var topK int
	var minScore float64
	var timeout time.Duration
	var jsonOutput, showSources bool
	fs.IntVar(&topK, "k", 0, "Number of chunks to retrieve (default from config)")
	fs.Float64Var(&minScore, "min-score", 0, "Drop chunks scoring below this")
	fs.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall request deadline")
	fs.BoolVar(&jsonOutput, "json", false, "Output the answer and context as JSON")
	fs.BoolVar(&showSources, "sources", false, "Print the supporting chunks after the answer")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    bia query [options] "<question>"

EXAMPLES:
    bia query "how did cloud revenue develop in Q3?"
    bia query "top cost drivers" -k 8 -sources
    bia query "summarize renewals" -json
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: a question is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	question := fs.Arg(0)

	app, err := newApp(cfg, true)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer app.close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	answer, err := app.pipeline.Answer(ctx, retrieval.Query{
		Text:     question,
		K:        topK,
		MinScore: minScore,
	})
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	if jsonOutput {
		out, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode answer: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Println(answer.Text)
	if showSources {
		fmt.Println("\nSources:")
		for _, c := range answer.Context.Chunks {
			marker := ""
			if c.Truncated {
				marker = " (truncated)"
			}
			fmt.Printf("  [%.3f] %s%s\n", c.Score, c.ChunkID, marker)
		}
	}
}
