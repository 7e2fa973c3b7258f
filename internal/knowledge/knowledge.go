// Package knowledge stores reference documents that post generation uses to
// ground prompts.
package knowledge

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Document is a single knowledge-base entry.
type Document struct {
	ID      string   `json:"id" yaml:"id" db:"id"`
	Title   string   `json:"title" yaml:"title" db:"title"`
	Content string   `json:"content" yaml:"content" db:"content"`
	Tags    []string `json:"tags,omitempty" yaml:"tags" db:"-"`
	Source  string   `json:"source,omitempty" yaml:"source" db:"source"`
}

// Result is a document with its relevance score.
type Result struct {
	Document
	Score float64 `json:"score"`
}

// Searcher finds documents relevant to a query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Store is a Searcher that accepts new documents.
type Store interface {
	Searcher
	Add(ctx context.Context, docs ...Document) error
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "with": {}, "your": {},
}

// Terms splits s into lowercase words, dropping stopwords and one-letter words.
func Terms(s string) []string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if len([]rune(w)) < 2 {
			continue
		}
		if _, ok := stopwords[w]; ok {
			continue
		}
		out = append(out, w)
	}
	return out
}

type indexed struct {
	doc   Document
	title map[string]int
	body  map[string]int
	size  int
}

// Memory is an in-process keyword index. Scores are BM25 over title, tags and
// content, with title and tag hits weighted double.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]*indexed
	df   map[string]int
	all  int
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty index.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]*indexed),
		df:   make(map[string]int),
	}
}

// Add indexes docs, replacing documents with the same ID.
func (m *Memory) Add(ctx context.Context, docs ...Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range docs {
		if d.ID == "" {
			d.ID = Slug(d.Title)
		}
		if old, ok := m.docs[d.ID]; ok {
			m.forget(old)
		}
		ix := &indexed{doc: d, title: counts(d.Title + " " + strings.Join(d.Tags, " ")), body: counts(d.Content)}
		for _, n := range ix.title {
			ix.size += n
		}
		for _, n := range ix.body {
			ix.size += n
		}
		for term := range union(ix.title, ix.body) {
			m.df[term]++
		}
		m.all += ix.size
		m.docs[d.ID] = ix
	}
	return nil
}

func (m *Memory) forget(ix *indexed) {
	for term := range union(ix.title, ix.body) {
		if m.df[term]--; m.df[term] <= 0 {
			delete(m.df, term)
		}
	}
	m.all -= ix.size
	delete(m.docs, ix.doc.ID)
}

// Len returns the number of documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Search returns up to limit documents sharing at least one term with query,
// best first.
func (m *Memory) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := float64(len(m.docs))
	if n == 0 {
		return nil, nil
	}
	avg := float64(m.all) / n

	var results []Result
	for _, ix := range m.docs {
		score := 0.0
		for _, term := range terms {
			tf := float64(2*ix.title[term] + ix.body[term])
			if tf == 0 {
				continue
			}
			df := float64(m.df[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			score += idf * tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(ix.size)/avg))
		}
		if score > 0 {
			results = append(results, Result{Document: ix.doc, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func counts(s string) map[string]int {
	out := make(map[string]int)
	for _, t := range Terms(s) {
		out[t]++
	}
	return out
}

func union(a, b map[string]int) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// Slug derives an ID from a title.
func Slug(s string) string {
	return strings.Join(Terms(s), "-")
}

// Context formats results as a prompt section, truncating each document to
// maxChars.
func Context(results []Result, maxChars int) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		content := strings.TrimSpace(r.Content)
		if maxChars > 0 && len([]rune(content)) > maxChars {
			content = string([]rune(content)[:maxChars]) + "..."
		}
		b.WriteString("## ")
		b.WriteString(r.Title)
		b.WriteString("\n")
		b.WriteString(content)
	}
	return b.String()
}
