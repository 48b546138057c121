package main

import (
	"fmt"
	"log"
	"os"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
)

// handleInit writes the default config template.
func handleInit(configPath string) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			log.Fatalf("Failed to determine config path: %v", err)
		}
	}

	created, err := config.WriteDefaultTemplate(path)
	if err != nil {
		log.Fatalf("Failed to write config template: %v", err)
	}
	if !created {
		fmt.Fprintf(os.Stderr, "Config already exists at %s, leaving it unchanged\n", path)
		return
	}
	fmt.Printf("Created config at %s\n", path)
	fmt.Println("Set embedding.api_key (or OPENAI_API_KEY) before running 'bia ingest'.")
}
