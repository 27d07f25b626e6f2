package memory

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/personify-ai/chat-platform/internal/apperr"
	"github.com/personify-ai/chat-platform/internal/model"
)

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (model.Vector, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return model.Vector{0.1, 0.2, 0.3}, nil
}

type fakeSearcher struct {
	calls   int
	results []model.MemoryResult
	err     error

	gotQuery    string
	hadDeadline bool
}

func (f *fakeSearcher) HybridSearch(ctx context.Context, conversationID, searchQuery string, queryVector model.Vector,
	pageSize int, lexicalWeight, minScore float64) ([]model.MemoryResult, error) {
	f.calls++
	f.gotQuery = searchQuery
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestSanitizeTerms(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		want  []string
	}{
		{"plain words", []string{"hello", "world"}, []string{"hello", "world"}},
		{"punctuation stripped", []string{"hello!", "wor,ld?"}, []string{"hello", "world"}},
		{"fully symbolic dropped", []string{"!!!", "???", "ok"}, []string{"ok"}},
		{"whitespace preserved inside", []string{"two words"}, []string{"two words"}},
		{"empty input", nil, []string{}},
		{"non-ascii stripped", []string{"héllo…"}, []string{"hllo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeTerms(tt.terms)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SanitizeTerms(%v) = %v, want %v", tt.terms, got, tt.want)
			}
		})
	}
}

func TestNewRetrieverValidatesOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"valid", Options{PageSize: 25, LexicalWeight: 0.5, Timeout: time.Second}, false},
		{"page size zero", Options{PageSize: 0, LexicalWeight: 0.5, Timeout: time.Second}, true},
		{"page size too large", Options{PageSize: 101, LexicalWeight: 0.5, Timeout: time.Second}, true},
		{"weight negative", Options{PageSize: 25, LexicalWeight: -0.1, Timeout: time.Second}, true},
		{"weight above one", Options{PageSize: 25, LexicalWeight: 1.1, Timeout: time.Second}, true},
		{"min score negative", Options{PageSize: 25, LexicalWeight: 0.5, MinScore: -1, Timeout: time.Second}, true},
		{"no timeout", Options{PageSize: 25, LexicalWeight: 0.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRetriever(&fakeEmbedder{}, &fakeSearcher{}, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRetriever(%+v) error = %v, wantErr %v", tt.opts, err, tt.wantErr)
			}
		})
	}
}

func TestRetrieveEmptyTermsSkipsCollaborators(t *testing.T) {
	embedder := &fakeEmbedder{}
	searcher := &fakeSearcher{}
	r, err := NewRetriever(embedder, searcher, Options{PageSize: 25, LexicalWeight: 0.5, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	for _, terms := range [][]string{nil, {}, {"!!!", "???"}} {
		blocks, err := r.Retrieve(context.Background(), "conv-1", terms)
		if err != nil {
			t.Fatalf("Retrieve(%v) error = %v", terms, err)
		}
		if len(blocks) != 0 {
			t.Errorf("Retrieve(%v) = %v, want empty", terms, blocks)
		}
	}
	if embedder.calls != 0 || searcher.calls != 0 {
		t.Errorf("collaborators touched: embedder=%d searcher=%d, want 0", embedder.calls, searcher.calls)
	}
}

func TestRetrieveJoinsSanitizedTerms(t *testing.T) {
	searcher := &fakeSearcher{}
	r, err := NewRetriever(&fakeEmbedder{}, searcher, Options{PageSize: 25, LexicalWeight: 0.5, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "conv-1", []string{"dragon!", "cave?"}); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if searcher.gotQuery != "dragon cave" {
		t.Errorf("search query = %q, want %q", searcher.gotQuery, "dragon cave")
	}
}

func TestRetrieveRendersLabeledBlocks(t *testing.T) {
	searcher := &fakeSearcher{results: []model.MemoryResult{
		{UserMessage: "where is the sword", CharMessage: "in the old keep", Score: 0.9},
		{UserMessage: "", CharMessage: "the gates are closed at dusk", Score: 0.8},
	}}
	r, err := NewRetriever(&fakeEmbedder{}, searcher, Options{PageSize: 25, LexicalWeight: 0.5, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	blocks, err := r.Retrieve(context.Background(), "conv-1", []string{"sword"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	want := []string{
		"{{user}}: where is the sword\n{{char}}: in the old keep",
		"{{char}}: the gates are closed at dusk",
	}
	if !reflect.DeepEqual(blocks, want) {
		t.Errorf("blocks = %q, want %q", blocks, want)
	}
}

func TestRetrieveFiltersBelowMinScore(t *testing.T) {
	searcher := &fakeSearcher{results: []model.MemoryResult{
		{UserMessage: "kept", CharMessage: "kept", Score: 0.6},
		{UserMessage: "dropped", CharMessage: "dropped", Score: 0.2},
	}}
	r, err := NewRetriever(&fakeEmbedder{}, searcher, Options{PageSize: 25, LexicalWeight: 0.5, MinScore: 0.5, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	blocks, err := r.Retrieve(context.Background(), "conv-1", []string{"anything"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(blocks) != 1 || !strings.Contains(blocks[0], "kept") {
		t.Errorf("blocks = %q, want only the high-score block", blocks)
	}
}

func TestRetrieveOrdersByDescendingScore(t *testing.T) {
	searcher := &fakeSearcher{results: []model.MemoryResult{
		{UserMessage: "second", CharMessage: "second", Score: 0.7},
		{UserMessage: "first", CharMessage: "first", Score: 0.9},
		{UserMessage: "third", CharMessage: "third", Score: 0.4},
	}}
	r, err := NewRetriever(&fakeEmbedder{}, searcher, Options{PageSize: 25, LexicalWeight: 0.5, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	blocks, err := r.Retrieve(context.Background(), "conv-1", []string{"anything"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(blocks))
	}
	for i, want := range []string{"first", "second", "third"} {
		if !strings.Contains(blocks[i], want) {
			t.Errorf("blocks[%d] = %q, want the %q result", i, blocks[i], want)
		}
	}
}

func TestRetrieveCarriesDeadline(t *testing.T) {
	searcher := &fakeSearcher{}
	r, err := NewRetriever(&fakeEmbedder{}, searcher, Options{PageSize: 25, LexicalWeight: 0.5, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "conv-1", []string{"anything"}); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if !searcher.hadDeadline {
		t.Errorf("hybrid search call carried no deadline")
	}
}

func TestRetrieveTimeoutIsRetrievalError(t *testing.T) {
	tests := []struct {
		name     string
		embedder *fakeEmbedder
		searcher *fakeSearcher
	}{
		{"embed exceeds deadline", &fakeEmbedder{err: context.DeadlineExceeded}, &fakeSearcher{}},
		{"search exceeds deadline", &fakeEmbedder{}, &fakeSearcher{err: context.DeadlineExceeded}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRetriever(tt.embedder, tt.searcher, Options{PageSize: 25, LexicalWeight: 0.5, Timeout: time.Second})
			if err != nil {
				t.Fatalf("NewRetriever() error = %v", err)
			}

			_, err = r.Retrieve(context.Background(), "conv-1", []string{"anything"})
			if apperr.CodeOf(err) != apperr.CodeRetrieval {
				t.Errorf("error code = %v, want %v", apperr.CodeOf(err), apperr.CodeRetrieval)
			}
		})
	}
}

func TestRetrievePropagatesEmbedderError(t *testing.T) {
	wantErr := errors.New("embedding provider down")
	r, err := NewRetriever(&fakeEmbedder{err: wantErr}, &fakeSearcher{}, Options{PageSize: 25, LexicalWeight: 0.5, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	_, err = r.Retrieve(context.Background(), "conv-1", []string{"anything"})
	if !errors.Is(err, wantErr) {
		t.Errorf("Retrieve() error = %v, want %v", err, wantErr)
	}
}
