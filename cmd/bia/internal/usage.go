package internal

import (
	"fmt"
	"os"
)

const Version = "0.3.0"

// PrintUsage writes the top-level help text to stderr.
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `bia - Business Intelligence Assistant

Version: %s

USAGE:
    bia [global options] <command> [command options]

GLOBAL OPTIONS:
    -config <path>
        Path to config file (default: ~/.bia/config/bia.yaml)

    -v, -version
        Show version information

    -h, -help
        Show this help message

COMMANDS:
    init
        Write a default config template

    ingest
        Load documents from the data directory and index them

    query
        Answer a question using retrieval-augmented generation

    search
        Retrieve matching chunks without generation (scores + sources)

    stats
        Show corpus and index statistics

EXAMPLES:
    # Write the config template, then set your API key
    bia init

    # Index the configured data directory
    bia ingest

    # Ingest a different directory
    bia ingest -data ./reports

    # Ask a question
    bia query "how did cloud revenue develop in Q3?"

    # Inspect retrieval only
    bia search "cloud revenue" -k 10
`, Version)
}
