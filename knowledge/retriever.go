package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// ErrRetrieval is returned when knowledge could not be searched. Callers
// treat it as "no sources found".
var ErrRetrieval = errors.New("knowledge: retrieval failed")

// Default search bounds.
const (
	DefaultLimit    = 3
	DefaultMaxChars = 2000

	// DefaultMinCoverage is the share of query terms an entry must contain
	// when none of them appears in its title.
	DefaultMinCoverage = 0.5
)

// Source identifies an entry that contributed to a Result.
type Source struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
}

// Result is the output of a knowledge search.
type Result struct {
	Text        string   `json:"text"`
	SourceCount int      `json:"source_count"`
	Sources     []Source `json:"sources"`
}

// Searcher is the retrieval contract consumed by the worker.
type Searcher interface {
	Search(ctx context.Context, tenantID, query string, limit, maxChars int) (*Result, error)
}

// Retriever ranks a tenant's entries by term overlap with the query.
type Retriever struct {
	store       Store
	logger      *slog.Logger
	minCoverage float64
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithMinCoverage sets the share of query terms, in (0, 1], an entry must
// contain to count as a source without a title match.
func WithMinCoverage(c float64) RetrieverOption {
	return func(r *Retriever) {
		if c > 0 && c <= 1 {
			r.minCoverage = c
		}
	}
}

// NewRetriever creates a Retriever over store.
func NewRetriever(store Store, logger *slog.Logger, opts ...RetrieverOption) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retriever{store: store, logger: logger, minCoverage: DefaultMinCoverage}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type scored struct {
	entry *Entry
	score int
}

// match is how one entry overlaps the query terms.
type match struct {
	score     int
	matched   int
	titleHits int
}

// Search returns up to limit relevant entries, their contents concatenated
// and capped at maxChars runes. Stopwords and one-letter words are not
// search terms. An entry is relevant when a term appears in its title or
// when it contains at least the minimum coverage of the terms. Title
// matches weigh double in the ranking.
func (r *Retriever) Search(ctx context.Context, tenantID, query string, limit, maxChars int) (*Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	terms := SearchTerms(query)
	if len(terms) == 0 {
		return &Result{}, nil
	}

	entries, err := r.store.ListEntries(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	var hits []scored
	for _, e := range entries {
		m := score(terms, e)
		if m.titleHits == 0 && float64(m.matched) < r.minCoverage*float64(len(terms)) {
			continue
		}
		if m.score > 0 {
			hits = append(hits, scored{entry: e, score: m.score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].entry.Title < hits[j].entry.Title
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	res := &Result{Sources: make([]Source, 0, len(hits))}
	var b strings.Builder
	budget := maxChars
	for _, h := range hits {
		if budget <= 0 {
			break
		}
		chunk := h.entry.Title + "\n" + h.entry.Content + "\n\n"
		if runes := []rune(chunk); len(runes) > budget {
			chunk = string(runes[:budget])
		}
		budget -= len([]rune(chunk))
		b.WriteString(chunk)

		res.Sources = append(res.Sources, Source{
			ID:       h.entry.ID.String(),
			Title:    h.entry.Title,
			Category: h.entry.Category,
		})
	}
	res.Text = strings.TrimSpace(b.String())
	res.SourceCount = len(res.Sources)

	r.logger.DebugContext(ctx, "knowledge search",
		"tenant_id", tenantID,
		"terms", len(terms),
		"candidates", len(entries),
		"sources", res.SourceCount,
	)
	return res, nil
}

func score(terms []string, e *Entry) match {
	title := tokenSet(e.Title)
	body := tokenSet(e.Category + " " + e.Content)

	var m match
	for _, tok := range terms {
		_, inTitle := title[tok]
		_, inBody := body[tok]
		if inTitle {
			m.score += 2
			m.titleHits++
		}
		if inBody {
			m.score++
		}
		if inTitle || inBody {
			m.matched++
		}
	}
	return m
}

func tokenSet(text string) map[string]struct{} {
	toks := Tokenize(text)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}
