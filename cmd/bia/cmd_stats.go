package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
)

// handleStats implements the stats subcommand.
func handleStats(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)

	var jsonOutput, listDocs bool
	fs.BoolVar(&jsonOutput, "json", false, "Output statistics as JSON")
	fs.BoolVar(&listDocs, "docs", false, "List every ingested document")

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	app, err := newApp(cfg, false)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer app.close()

	ctx := context.Background()
	stats, err := app.docs.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}

	if jsonOutput {
		out := map[string]any{
			"documents":          stats.Documents,
			"chunks":             stats.Chunks,
			"avg_chunks_per_doc": stats.AvgChunksPerDoc,
			"index_entries":      app.idx.Len(),
			"distance_metric":    string(app.idx.Metric()),
			"dimensions":         app.idx.Dimensions(),
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode stats: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Documents:        %d\n", stats.Documents)
	fmt.Printf("Chunks:           %d\n", stats.Chunks)
	fmt.Printf("Avg chunks/doc:   %.1f\n", stats.AvgChunksPerDoc)
	fmt.Printf("Index entries:    %d\n", app.idx.Len())
	fmt.Printf("Distance metric:  %s\n", app.idx.Metric())
	fmt.Printf("Dimensions:       %d\n", app.idx.Dimensions())

	if listDocs {
		docs, err := app.docs.List(ctx)
		if err != nil {
			log.Fatalf("Failed to list documents: %v", err)
		}
		if len(docs) > 0 {
			fmt.Println("\nDocuments:")
			for _, d := range docs {
				fmt.Fprintf(os.Stdout, "  %-30s %4d chunk(s)  %s\n", d.ID, d.ChunkCount, d.IngestedAt.Format("2006-01-02 15:04"))
			}
		}
	}
}
