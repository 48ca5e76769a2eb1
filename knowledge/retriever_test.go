package knowledge_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/xraph/replydesk/id"
	"github.com/xraph/replydesk/knowledge"
)

type sliceStore struct {
	entries []*knowledge.Entry
	err     error
}

func (s *sliceStore) PutEntry(_ context.Context, e *knowledge.Entry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *sliceStore) GetEntry(context.Context, id.ID) (*knowledge.Entry, error) {
	return nil, errors.New("not implemented")
}

func (s *sliceStore) DeleteEntry(context.Context, id.ID) error { return nil }

func (s *sliceStore) ListEntries(_ context.Context, tenantID string) ([]*knowledge.Entry, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*knowledge.Entry
	for _, e := range s.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func entry(tenant, title, category, content string) *knowledge.Entry {
	return &knowledge.Entry{
		ID:       id.NewEntryID(),
		TenantID: tenant,
		Title:    title,
		Category: category,
		Content:  content,
	}
}

func seededStore() *sliceStore {
	return &sliceStore{entries: []*knowledge.Entry{
		entry("t1", "Shipping fees", "logistics", "Standard shipping is free over 1000 NTD."),
		entry("t1", "退款政策", "policy", "商品到貨七天內可申請退款。"),
		entry("t1", "Opening hours", "store", "We are open 10am to 9pm."),
		entry("t2", "Shipping fees", "logistics", "Other tenant content."),
	}}
}

func TestSearchRanksTitleMatches(t *testing.T) {
	r := knowledge.NewRetriever(seededStore(), nil)

	res, err := r.Search(context.Background(), "t1", "shipping fee", 3, 500)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.SourceCount != 1 {
		t.Fatalf("SourceCount = %d, want 1", res.SourceCount)
	}
	if res.Sources[0].Title != "Shipping fees" || res.Sources[0].Category != "logistics" {
		t.Fatalf("source = %+v", res.Sources[0])
	}
	if !strings.Contains(res.Text, "free over 1000") {
		t.Fatalf("text missing content: %q", res.Text)
	}
	if strings.Contains(res.Text, "Other tenant") {
		t.Fatal("search leaked another tenant's entry")
	}
}

func TestSearchChineseBigram(t *testing.T) {
	r := knowledge.NewRetriever(seededStore(), nil)

	res, err := r.Search(context.Background(), "t1", "我想退款", 3, 500)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.SourceCount != 1 || res.Sources[0].Title != "退款政策" {
		t.Fatalf("Sources = %+v", res.Sources)
	}
}

func TestSearchNoMatch(t *testing.T) {
	r := knowledge.NewRetriever(seededStore(), nil)

	res, err := r.Search(context.Background(), "t1", "warranty", 3, 500)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.SourceCount != 0 || res.Text != "" {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestSearchLimitAndMaxChars(t *testing.T) {
	store := &sliceStore{}
	for i := 0; i < 5; i++ {
		store.entries = append(store.entries, entry("t1", "FAQ", "faq", strings.Repeat("答案", 100)))
	}
	r := knowledge.NewRetriever(store, nil)

	res, err := r.Search(context.Background(), "t1", "faq", 2, 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.SourceCount != 1 {
		t.Fatalf("SourceCount = %d, want 1 (budget exhausted by first entry)", res.SourceCount)
	}
	if n := utf8.RuneCountInString(res.Text); n > 50 {
		t.Fatalf("text has %d runes, want <= 50", n)
	}

	res, err = r.Search(context.Background(), "t1", "faq", 2, 10000)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.SourceCount != 2 {
		t.Fatalf("SourceCount = %d, want 2", res.SourceCount)
	}
}

func TestSearchStoreErrorWrapsRetrieval(t *testing.T) {
	r := knowledge.NewRetriever(&sliceStore{err: errors.New("db down")}, nil)

	_, err := r.Search(context.Background(), "t1", "shipping", 3, 500)
	if !errors.Is(err, knowledge.ErrRetrieval) {
		t.Fatalf("err = %v, want ErrRetrieval", err)
	}
}

func TestSearchIgnoresStopwordOverlap(t *testing.T) {
	r := knowledge.NewRetriever(seededStore(), nil)

	// "is", "the" and "to" all occur in entry contents.
	res, err := r.Search(context.Background(), "t1", "is my dog allowed to go in the park", 3, 500)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.SourceCount != 0 {
		t.Fatalf("SourceCount = %d, want 0: %+v", res.SourceCount, res.Sources)
	}
}

func TestSearchBodyMatchNeedsCoverage(t *testing.T) {
	store := &sliceStore{entries: []*knowledge.Entry{
		entry("t1", "Store info", "store", "Parking is available in the basement garage."),
	}}

	tests := []struct {
		name     string
		coverage float64
		query    string
		want     int
	}{
		{"all terms in body", 0, "basement parking", 1},
		{"half the terms", 0, "parking fee", 1},
		{"one of three terms", 0, "parking fee refund", 0},
		{"one of three with low bar", 0.3, "parking fee refund", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []knowledge.RetrieverOption
			if tt.coverage > 0 {
				opts = append(opts, knowledge.WithMinCoverage(tt.coverage))
			}
			r := knowledge.NewRetriever(store, nil, opts...)

			res, err := r.Search(context.Background(), "t1", tt.query, 3, 500)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if res.SourceCount != tt.want {
				t.Fatalf("SourceCount = %d, want %d", res.SourceCount, tt.want)
			}
		})
	}
}

func TestSearchTerms(t *testing.T) {
	got := knowledge.SearchTerms("Is the X1 shipping fee in NT$ ok? 我想退款")
	want := []string{"x1", "shipping", "fee", "nt", "ok", "我想", "想退", "退款"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("SearchTerms = %v, want %v", got, want)
	}
	if terms := knowledge.SearchTerms("is it a"); len(terms) != 0 {
		t.Fatalf("stopwords survived: %v", terms)
	}
}
