package internal

import (
	"fmt"
	"os"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
)

// LoadConfig reads the config from path, or the default location when
// path is empty.
func LoadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// PrintConfigExample shows a minimal working config on stderr.
func PrintConfigExample() {
	path, _ := config.DefaultPath()

	fmt.Fprintf(os.Stderr, `Create a configuration file at %s:

embedding:
  api_key: your-openai-api-key   # or set OPENAI_API_KEY
  model: text-embedding-3-small
  dimensions: 1536

generation:
  model: gpt-4o-mini
  max_tokens: 512

index:
  distance_metric: cosine

retrieval:
  default_top_k: 5
  max_context_budget: 4000

ingest:
  data_dir: ./data

Or run 'bia init' to write a full template.
`, path)
}
