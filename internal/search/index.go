// Package search maintains a full-text index over every post the app
// has fetched, so search can reach beyond the page currently on screen.
package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"postboard/internal/gorest"
)

// Index wraps a Bleve search index.
type Index struct {
	index bleve.Index
}

// indexedPost is the document shape stored in the index.
type indexedPost struct {
	ID     string
	Title  string
	Body   string
	Author string
}

// Result is one search hit.
type Result struct {
	ID        string
	Title     string
	Author    string
	Score     float64
	Fragments map[string][]string // highlighted snippets
}

// Open opens or creates a Bleve index at path.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// buildIndexMapping maps post fields; titles get the English analyzer
// for stemming.
func buildIndexMapping() mapping.IndexMapping {
	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = "en"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("ID", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Title", titleFieldMapping)
	docMapping.AddFieldMappingsAt("Body", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Author", bleve.NewTextFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Close closes the index.
func (i *Index) Close() error {
	return i.index.Close()
}

// IndexPosts adds or updates a batch of posts.
func (i *Index) IndexPosts(posts []gorest.Post) error {
	batch := i.index.NewBatch()
	for _, p := range posts {
		doc := indexedPost{
			ID:    p.ID.String(),
			Title: p.Title,
			Body:  p.Body,
		}
		if p.Author != nil {
			doc.Author = p.Author.Name
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}

	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Delete removes a post from the index.
func (i *Index) Delete(id gorest.ID) error {
	return i.index.Delete(id.String())
}

// Search runs a query-string search (quotes, boolean operators, fuzzy
// ~) with highlighting.
func (i *Index) Search(queryStr string, limit int) ([]*Result, error) {
	query := bleve.NewQueryStringQuery(queryStr)

	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Fields = []string{"Title", "Author"}

	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var out []*Result
	for _, hit := range results.Hits {
		r := &Result{
			ID:        hit.ID,
			Score:     hit.Score,
			Fragments: hit.Fragments,
		}
		if title, ok := hit.Fields["Title"].(string); ok {
			r.Title = title
		}
		if author, ok := hit.Fields["Author"].(string); ok {
			r.Author = author
		}
		out = append(out, r)
	}

	return out, nil
}

// Count returns the number of posts in the index.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
