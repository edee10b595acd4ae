package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
)

const (
	// TextStopFilterName is the name of our custom stop word filter.
	TextStopFilterName = "text_stop"

	// TextAnalyzerName is the name of our custom text analyzer.
	TextAnalyzerName = "text_analyzer"
)

func init() {
	registry.RegisterTokenFilter(TextStopFilterName, textStopFilterConstructor)
}

// BleveKeywordIndex wraps Bleve v2 for BM25-style keyword search.
// Access filtering is expressed as a query conjunction, so the engine
// never scores chunks outside the filter. Bleve holds an exclusive
// BoltDB lock, so this backend is single-process only.
type BleveKeywordIndex struct {
	mu        sync.RWMutex
	index     bleve.Index
	path      string
	config    KeywordConfig
	closed    bool
	stopWords map[string]struct{}
}

// Verify interface implementation
var _ KeywordIndex = (*BleveKeywordIndex)(nil)

// bleveChunkDoc is the document structure for Bleve indexing.
type bleveChunkDoc struct {
	Content        string `json:"content"`
	Department     string `json:"department"`
	Classification string `json:"classification"`
}

// validateBleveIntegrity checks if a Bleve index is valid before opening.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Index doesn't exist, will be created
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// isCorruptionError checks if an error indicates Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		strings.Contains(errStr, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveKeywordIndex creates a new Bleve keyword index.
// If path is empty, creates an in-memory index. Validates index
// integrity before opening and auto-recovers from corruption.
func NewBleveKeywordIndex(path string, config KeywordConfig) (*BleveKeywordIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("keyword_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("keyword index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("keyword_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("keyword_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("keyword index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			slog.Info("keyword_index_cleared",
				slog.String("path", path),
				slog.String("reason", "open failed with corruption, please reindex"))

			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveKeywordIndex{
		index:     idx,
		path:      path,
		config:    config,
		stopWords: BuildStopWordMap(config.StopWords),
	}, nil
}

// createIndexMapping creates the Bleve index mapping. Content is
// analyzed for full-text search; department and classification are
// keyword fields matched exactly by the access filter.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			TextStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = TextAnalyzerName

	attrField := bleve.NewTextFieldMapping()
	attrField.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", contentField)
	docMapping.AddFieldMappingsAt("department", attrField)
	docMapping.AddFieldMappingsAt("classification", attrField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = TextAnalyzerName

	return indexMapping, nil
}

// Index adds entries to the index. Existing IDs are replaced.
func (b *BleveKeywordIndex) Index(ctx context.Context, entries []*IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, entry := range entries {
		doc := bleveChunkDoc{
			Content:        entry.Content,
			Department:     strings.ToLower(entry.Department),
			Classification: strings.ToLower(entry.Classification),
		}
		if err := batch.Index(entry.ChunkID, doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", entry.ChunkID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}

// Search returns chunks matching the query, restricted to the filter.
func (b *BleveKeywordIndex) Search(ctx context.Context, queryStr string, limit int, filter *access.Filter) ([]*KeywordResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	if filter != nil && filter.IsEmpty() {
		return []*KeywordResult{}, nil
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*KeywordResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	var searchQuery query.Query = matchQuery
	if filter != nil {
		searchQuery = bleve.NewConjunctionQuery(matchQuery, filterQuery(filter))
	}

	searchRequest := bleve.NewSearchRequest(searchQuery)
	searchRequest.Size = limit
	searchRequest.IncludeLocations = true // For matched terms

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*KeywordResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &KeywordResult{
			ChunkID:      hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}

	// Deterministic order: best first, equal scores by chunk id
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	return results, nil
}

// filterQuery expresses the access filter as a disjunction of
// per-pair (department AND classification) term conjunctions.
func filterQuery(filter *access.Filter) query.Query {
	pairs := filter.Pairs()
	clauses := make([]query.Query, 0, len(pairs))
	for _, p := range pairs {
		deptQuery := bleve.NewTermQuery(strings.ToLower(p.Department))
		deptQuery.SetField("department")
		classQuery := bleve.NewTermQuery(strings.ToLower(p.Classification))
		classQuery.SetField("classification")
		clauses = append(clauses, bleve.NewConjunctionQuery(deptQuery, classQuery))
	}
	return bleve.NewDisjunctionQuery(clauses...)
}

// Delete removes chunks from the index.
func (b *BleveKeywordIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	return nil
}

// AllIDs returns all chunk IDs in the index.
func (b *BleveKeywordIndex) AllIDs() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	matchAll := bleve.NewMatchAllQuery()
	docCount, _ := b.index.DocCount()

	req := bleve.NewSearchRequest(matchAll)
	req.Size = int(docCount)
	req.Fields = []string{} // Only need IDs, not content

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search for all IDs: %w", err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}

	return ids, nil
}

// Count returns the number of indexed chunks.
func (b *BleveKeywordIndex) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}

	docCount, _ := b.index.DocCount()
	return int(docCount)
}

// Save persists the index to disk.
// For Bleve, this is a no-op as changes are persisted automatically.
func (b *BleveKeywordIndex) Save(path string) error {
	return nil
}

// Close closes the index.
func (b *BleveKeywordIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// extractMatchedTerms extracts matched terms from a search hit.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field == "content" {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
	}

	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	return result
}

// textStopFilterConstructor creates the stop word filter for Bleve.
func textStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveTextStopFilter{
		stopWords: BuildStopWordMap(DefaultStopWords),
	}, nil
}

// bleveTextStopFilter implements analysis.TokenFilter for stop words.
type bleveTextStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *bleveTextStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
