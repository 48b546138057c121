// Package lexical maintains a keyword index over chunk text, used to
// complement vector similarity in hybrid retrieval.
package lexical

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/index"
)

// Match is one keyword search result.
type Match struct {
	ChunkID string
	Score   float64
}

// Index wraps a bleve index keyed by chunk id.
type Index struct {
	idx bleve.Index
}

// chunkDoc is the indexed representation of a chunk.
type chunkDoc struct {
	Content    string `json:"content"`
	DocumentID string `json:"document_id"`
}

// Open opens the keyword index at dir, creating it if absent.
func Open(dir string) (*Index, error) {
	idx, err := bleve.Open(dir)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(dir, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}
	return &Index{idx: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "content"

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.Index = true
	docMapping.AddFieldMappingsAt("content", contentField)

	documentField := bleve.NewTextFieldMapping()
	documentField.Store = true
	documentField.Index = true
	documentField.Analyzer = "keyword"
	docMapping.AddFieldMappingsAt("document_id", documentField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// IndexEntries adds chunk text to the keyword index in one batch.
func (x *Index) IndexEntries(entries []index.Entry) error {
	batch := x.idx.NewBatch()
	for _, e := range entries {
		if err := batch.Index(e.ChunkID, chunkDoc{Content: e.Text, DocumentID: e.DocumentID}); err != nil {
			return fmt.Errorf("index chunk %s: %w", e.ChunkID, err)
		}
	}
	if err := x.idx.Batch(batch); err != nil {
		return fmt.Errorf("apply lexical batch: %w", err)
	}
	return nil
}

// RemoveDocument deletes every chunk indexed under documentID.
func (x *Index) RemoveDocument(documentID string) error {
	query := bleve.NewTermQuery(documentID)
	query.SetField("document_id")
	req := bleve.NewSearchRequestOptions(query, 10000, 0, false)
	res, err := x.idx.Search(req)
	if err != nil {
		return fmt.Errorf("lookup document chunks: %w", err)
	}

	batch := x.idx.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	if err := x.idx.Batch(batch); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}

// Search returns up to k chunks matching the query text, best first.
func (x *Index) Search(queryText string, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	query := bleve.NewMatchQuery(queryText)
	query.SetField("content")

	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := x.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	matches := make([]Match, 0, len(res.Hits))
	for _, hit := range res.Hits {
		matches = append(matches, Match{ChunkID: hit.ID, Score: hit.Score})
	}
	return matches, nil
}

// Close releases the underlying index.
func (x *Index) Close() error {
	return x.idx.Close()
}
