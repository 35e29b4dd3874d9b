// Package index keeps finished transcripts in a bleve full-text index.
package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	runtimeIndexVersionKey = "tubescribe_index_version"
	runtimeIndexVersion    = "1"
	chunkCountKeyPrefix    = "tubescribe_chunks:"
)

// Transcript is a finished job as it is indexed: one document per chunk.
type Transcript struct {
	Base    string
	Source  string
	Path    string
	ChunkMS int64
	// OffsetMS is where chunk 0 starts in the source audio, non-zero when
	// the audio was trimmed before segmentation.
	OffsetMS int64
	Chunks   []string
	Created  time.Time
}

// SearchRequest filters a search. Bases restricts hits to those jobs.
type SearchRequest struct {
	Query  string
	Bases  []string
	Offset int
	Limit  int
}

// SearchHit is one matching chunk.
type SearchHit struct {
	Base    string  `json:"base"`
	Source  string  `json:"source"`
	Path    string  `json:"path"`
	Chunk   int     `json:"chunk"`
	StartMS int64   `json:"start_ms"`
	Text    string  `json:"text"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Index wraps a bleve index with concurrency control.
type Index struct {
	mu   sync.RWMutex
	idx  bleve.Index
	path string
}

// Open opens the index at path, creating it when absent.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index parent dir: %w", err)
	}

	var (
		idx bleve.Index
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		idx, err = bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open bleve index: %w", err)
		}
	} else if errors.Is(statErr, os.ErrNotExist) {
		idx, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("create bleve index: %w", err)
		}
	} else {
		return nil, fmt.Errorf("stat index: %w", statErr)
	}

	i := &Index{idx: idx, path: path}
	if _, err := i.EnsureVersion(); err != nil {
		idx.Close()
		return nil, err
	}
	return i, nil
}

// OpenMem returns an index that lives only in memory.
func OpenMem() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &Index{idx: idx}, nil
}

func (i *Index) Close() error {
	if i == nil {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.idx == nil {
		return nil
	}
	err := i.idx.Close()
	i.idx = nil
	return err
}

// EnsureVersion records the document schema version. It reports whether the
// stored version already matched.
func (i *Index) EnsureVersion() (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	current, _ := i.idx.GetInternal([]byte(runtimeIndexVersionKey))
	if string(current) == runtimeIndexVersion {
		return true, nil
	}
	if err := i.idx.SetInternal([]byte(runtimeIndexVersionKey), []byte(runtimeIndexVersion)); err != nil {
		return false, fmt.Errorf("store index version: %w", err)
	}
	return false, nil
}

// IndexTranscript replaces every document of t.Base with t's chunks.
func (i *Index) IndexTranscript(t Transcript) error {
	if strings.TrimSpace(t.Base) == "" {
		return errors.New("transcript base name is required")
	}
	if t.Created.IsZero() {
		t.Created = time.Now()
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.idx == nil {
		return errors.New("index not initialized")
	}

	countKey := []byte(chunkCountKeyPrefix + t.Base)
	batch := i.idx.NewBatch()
	if raw, _ := i.idx.GetInternal(countKey); len(raw) > 0 {
		if prev, err := strconv.Atoi(string(raw)); err == nil {
			for n := len(t.Chunks); n < prev; n++ {
				batch.Delete(docID(t.Base, n))
			}
		}
	}

	for n, text := range t.Chunks {
		doc := &document{
			Base:    t.Base,
			Source:  t.Source,
			Path:    t.Path,
			Chunk:   n,
			StartMS: t.OffsetMS + int64(n)*t.ChunkMS,
			Unix:    t.Created.Unix(),
			Content: text,
		}
		if err := batch.Index(docID(t.Base, n), doc); err != nil {
			return fmt.Errorf("batch index: %w", err)
		}
	}
	if err := i.idx.Batch(batch); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}
	return i.idx.SetInternal(countKey, []byte(strconv.Itoa(len(t.Chunks))))
}

// Search runs req and returns one page of hits with the total hit count.
func (i *Index) Search(req SearchRequest) ([]*SearchHit, int, error) {
	q := buildQuery(req.Query, req.Bases)
	if q == nil {
		return []*SearchHit{}, 0, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.idx == nil {
		return nil, 0, errors.New("index not initialized")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	offset := max(req.Offset, 0)

	sr := bleve.NewSearchRequestOptions(q, limit, offset, false)
	sr.Highlight = bleve.NewHighlightWithStyle("ansi")
	sr.Highlight.Fields = []string{"content"}
	sr.Fields = []string{"base", "source", "path", "chunk", "start_ms", "content"}

	result, err := i.idx.Search(sr)
	if err != nil {
		return nil, 0, fmt.Errorf("bleve search: %w", err)
	}

	hits := make([]*SearchHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		h := &SearchHit{
			Base:    fieldString(hit.Fields, "base"),
			Source:  fieldString(hit.Fields, "source"),
			Path:    fieldString(hit.Fields, "path"),
			Chunk:   int(fieldNumber(hit.Fields, "chunk")),
			StartMS: int64(fieldNumber(hit.Fields, "start_ms")),
			Text:    fieldString(hit.Fields, "content"),
			Score:   hit.Score,
		}
		if frags, ok := hit.Fragments["content"]; ok && len(frags) > 0 {
			h.Snippet = strings.Join(frags, " … ")
		}
		hits = append(hits, h)
	}
	return hits, int(result.Total), nil
}

type document struct {
	Base    string `json:"base"`
	Source  string `json:"source"`
	Path    string `json:"path"`
	Chunk   int    `json:"chunk"`
	StartMS int64  `json:"start_ms"`
	Unix    int64  `json:"unix"`
	Content string `json:"content"`
}

func docID(base string, chunk int) string {
	return base + ":" + strconv.Itoa(chunk)
}

func buildMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "standard"

	docMapping := mapping.NewDocumentMapping()

	contentField := mapping.NewTextFieldMapping()
	contentField.Analyzer = "standard"
	contentField.Store = true
	contentField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("content", contentField)

	for _, name := range []string{"base", "source", "path"} {
		f := mapping.NewTextFieldMapping()
		f.Analyzer = "keyword"
		f.Store = true
		f.IncludeInAll = false
		docMapping.AddFieldMappingsAt(name, f)
	}

	for _, name := range []string{"chunk", "start_ms", "unix"} {
		f := mapping.NewNumericFieldMapping()
		f.Store = true
		f.IncludeInAll = false
		docMapping.AddFieldMappingsAt(name, f)
	}

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func buildQuery(input string, bases []string) query.Query {
	content := buildContentQuery(input)
	if content == nil {
		return nil
	}
	filter := buildTermsFilter("base", bases)
	if filter == nil {
		return content
	}
	return query.NewConjunctionQuery([]query.Query{content, filter})
}

func buildContentQuery(input string) query.Query {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil
	}

	upper := strings.ToUpper(s)
	advanced := strings.ContainsAny(s, "\"*+-:") ||
		strings.Contains(upper, " AND ") ||
		strings.Contains(upper, " OR ")
	if advanced {
		return query.NewQueryStringQuery(s)
	}

	tokens := strings.Fields(s)
	conj := make([]query.Query, 0, len(tokens))
	for _, token := range tokens {
		mq := query.NewMatchQuery(token)
		mq.SetField("content")
		conj = append(conj, mq)
	}
	if len(conj) == 1 {
		return conj[0]
	}
	return query.NewConjunctionQuery(conj)
}

func buildTermsFilter(field string, values []string) query.Query {
	terms := make([]query.Query, 0, len(values))
	for _, val := range values {
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			continue
		}
		tq := query.NewTermQuery(trimmed)
		tq.SetField(field)
		terms = append(terms, tq)
	}
	switch len(terms) {
	case 0:
		return nil
	case 1:
		return terms[0]
	default:
		return query.NewDisjunctionQuery(terms)
	}
}

func fieldString(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return s
}

func fieldNumber(fields map[string]any, name string) float64 {
	f, _ := fields[name].(float64)
	return f
}
