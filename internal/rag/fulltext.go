package rag

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/b08x/blueprints-rag/internal/store"
)

// fulltextIndex is an in-memory full-text index over blueprints. The hybrid
// search path consults it only when the combined scoring produces nothing
// above the threshold, so a query that misses every extracted term can
// still return degraded results.
type fulltextIndex struct {
	index bleve.Index
}

type fulltextDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

type fulltextHit struct {
	ID    string
	Score float64
}

func newFulltextIndex() (*fulltextIndex, error) {
	index, err := bleve.NewMemOnly(buildFulltextMapping())
	if err != nil {
		return nil, fmt.Errorf("create fulltext index: %w", err)
	}
	return &fulltextIndex{index: index}, nil
}

func buildFulltextMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "code"

	docMapping := bleve.NewDocumentMapping()

	nameField := bleve.NewTextFieldMapping()
	nameField.Store = true
	nameField.Index = true
	docMapping.AddFieldMappingsAt("name", nameField)

	descField := bleve.NewTextFieldMapping()
	descField.Store = false
	descField.Index = true
	docMapping.AddFieldMappingsAt("description", descField)

	codeField := bleve.NewTextFieldMapping()
	codeField.Store = false
	codeField.Index = true
	docMapping.AddFieldMappingsAt("code", codeField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func (f *fulltextIndex) IndexBlueprint(bp *store.Blueprint) error {
	return f.index.Index(bp.ID, fulltextDoc{
		Name:        bp.Name,
		Description: bp.Description,
		Code:        bp.Code,
	})
}

func (f *fulltextIndex) Delete(id string) error {
	return f.index.Delete(id)
}

// Search runs a disjunction over name, description and code, name boosted
// highest.
func (f *fulltextIndex) Search(query string, limit int) ([]fulltextHit, error) {
	if limit <= 0 {
		limit = 10
	}

	nameQuery := bleve.NewMatchQuery(query)
	nameQuery.SetField("name")
	nameQuery.SetBoost(2.0)
	descQuery := bleve.NewMatchQuery(query)
	descQuery.SetField("description")
	descQuery.SetBoost(1.5)
	codeQuery := bleve.NewMatchQuery(query)
	codeQuery.SetField("code")
	codeQuery.SetBoost(1.0)

	disjunction := bleve.NewDisjunctionQuery([]blevequery.Query{nameQuery, descQuery, codeQuery}...)
	req := bleve.NewSearchRequestOptions(disjunction, limit, 0, false)

	res, err := f.index.Search(req)
	if err != nil {
		return nil, err
	}

	hits := make([]fulltextHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, fulltextHit{ID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

func (f *fulltextIndex) Close() error {
	return f.index.Close()
}
