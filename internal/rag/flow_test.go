package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/harborseal/harborseal/internal/docstore"
	"github.com/harborseal/harborseal/internal/schema"
)

type fakeIndex struct {
	has       bool
	hasErr    error
	passages  []docstore.Passage
	searchErr error
	queries   []string
	ks        []int
}

func (f *fakeIndex) HasDocuments(ctx context.Context) (bool, error) {
	return f.has, f.hasErr
}

func (f *fakeIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]docstore.Passage, error) {
	f.queries = append(f.queries, query)
	f.ks = append(f.ks, k)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.passages, nil
}

type fakeModel struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeModel) Chat(ctx context.Context, messages schema.Messages, tools []map[string]any, opts schema.ChatOptions) (schema.LLMResponse, error) {
	for _, m := range messages.Messages {
		f.prompts = append(f.prompts, m.Text())
	}
	if f.err != nil {
		return schema.LLMResponse{}, f.err
	}
	answer := f.answer
	return schema.LLMResponse{Content: &answer}, nil
}

func (f *fakeModel) DefaultModel() string { return "test-model" }

func newTestFlow(index *fakeIndex, model *fakeModel) *Flow {
	return NewFlow(index, model, schema.NewChatOptions("test-model", 500, 0.7), 0)
}

func TestAnswerEmptyIndex(t *testing.T) {
	index := &fakeIndex{has: false}
	model := &fakeModel{answer: "should never be used"}

	res := newTestFlow(index, model).Answer(context.Background(), "anything there?")
	if res.Answer != noDocumentsAnswer {
		t.Errorf("unexpected answer: %q", res.Answer)
	}
	if res.Sources == nil || len(res.Sources) != 0 {
		t.Errorf("expected empty sources, got %#v", res.Sources)
	}
	if len(model.prompts) != 0 {
		t.Error("the model should not be called when the index is empty")
	}
	if len(index.queries) != 0 {
		t.Error("no retrieval should run against an empty index")
	}
}

func TestAnswerGroundsPromptOnPassages(t *testing.T) {
	index := &fakeIndex{has: true, passages: []docstore.Passage{
		{Content: "Seals sleep up to twelve hours a day.", SourceFile: "seals.md"},
		{Content: "Harbor seals haul out on rocky shores.", SourceFile: "habitat.md"},
	}}
	model := &fakeModel{answer: "About twelve hours."}

	res := newTestFlow(index, model).Answer(context.Background(), "How long do seals sleep?")
	if res.Answer != "About twelve hours." {
		t.Errorf("unexpected answer: %q", res.Answer)
	}
	if len(index.ks) != 1 || index.ks[0] != 5 {
		t.Errorf("expected default k of 5, got %v", index.ks)
	}
	if len(model.prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(model.prompts))
	}
	prompt := model.prompts[0]
	for _, want := range []string{
		"Seals sleep up to twelve hours a day.",
		"Harbor seals haul out on rocky shores.",
		"How long do seals sleep?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt is missing %q:\n%s", want, prompt)
		}
	}
}

func TestAnswerDedupsSourcesByFile(t *testing.T) {
	index := &fakeIndex{has: true, passages: []docstore.Passage{
		{Content: "first hit", SourceFile: "a.txt"},
		{Content: "second hit", SourceFile: "b.txt"},
		{Content: "third hit, same file again", SourceFile: "a.txt"},
		{Content: "fourth hit", SourceFile: "c.txt"},
		{Content: "fifth hit, b again", SourceFile: "b.txt"},
	}}
	model := &fakeModel{answer: "ok"}

	res := newTestFlow(index, model).Answer(context.Background(), "q")
	if len(res.Sources) != 3 {
		t.Fatalf("expected 3 distinct sources, got %d: %#v", len(res.Sources), res.Sources)
	}
	order := []string{res.Sources[0].File, res.Sources[1].File, res.Sources[2].File}
	if order[0] != "a.txt" || order[1] != "b.txt" || order[2] != "c.txt" {
		t.Errorf("sources out of first-hit order: %v", order)
	}
	if res.Sources[0].Content != "first hit" {
		t.Errorf("source preview should come from the best-matching passage, got %q", res.Sources[0].Content)
	}
}

func TestAnswerTruncatesLongPreviews(t *testing.T) {
	long := strings.Repeat("x", 400)
	index := &fakeIndex{has: true, passages: []docstore.Passage{
		{Content: long, SourceFile: "big.txt"},
	}}
	model := &fakeModel{answer: "ok"}

	res := newTestFlow(index, model).Answer(context.Background(), "q")
	if len(res.Sources) != 1 {
		t.Fatalf("expected one source, got %d", len(res.Sources))
	}
	preview := res.Sources[0].Content
	if !strings.HasSuffix(preview, "...") {
		t.Errorf("long preview should end with ellipsis, got %q", preview)
	}
	if got := len([]rune(preview)); got != sourcePreviewLen+3 {
		t.Errorf("preview length = %d, want %d", got, sourcePreviewLen+3)
	}
}

func TestAnswerNamesUnknownSources(t *testing.T) {
	index := &fakeIndex{has: true, passages: []docstore.Passage{
		{Content: "orphan passage", SourceFile: ""},
	}}
	model := &fakeModel{answer: "ok"}

	res := newTestFlow(index, model).Answer(context.Background(), "q")
	if len(res.Sources) != 1 || res.Sources[0].File != "unknown" {
		t.Errorf("expected a single unknown source, got %#v", res.Sources)
	}
}

func TestAnswerSearchFailureBecomesAnswer(t *testing.T) {
	index := &fakeIndex{has: true, searchErr: errors.New("index corrupted")}
	model := &fakeModel{answer: "never"}

	res := newTestFlow(index, model).Answer(context.Background(), "q")
	if !strings.Contains(res.Answer, "Query failed") || !strings.Contains(res.Answer, "index corrupted") {
		t.Errorf("unexpected failure answer: %q", res.Answer)
	}
	if len(res.Sources) != 0 {
		t.Errorf("failure answers carry no sources, got %#v", res.Sources)
	}
	if len(model.prompts) != 0 {
		t.Error("the model should not be called after a search failure")
	}
}

func TestAnswerModelFailureBecomesAnswer(t *testing.T) {
	index := &fakeIndex{has: true, passages: []docstore.Passage{
		{Content: "something", SourceFile: "a.txt"},
	}}
	model := &fakeModel{err: fmt.Errorf("model unavailable")}

	res := newTestFlow(index, model).Answer(context.Background(), "q")
	if !strings.Contains(res.Answer, "Query failed") || !strings.Contains(res.Answer, "model unavailable") {
		t.Errorf("unexpected failure answer: %q", res.Answer)
	}
	if len(res.Sources) != 0 {
		t.Errorf("failure answers carry no sources, got %#v", res.Sources)
	}
}

func TestAnswerStoreProbeFailureBecomesAnswer(t *testing.T) {
	index := &fakeIndex{hasErr: errors.New("database locked")}
	model := &fakeModel{answer: "never"}

	res := newTestFlow(index, model).Answer(context.Background(), "q")
	if !strings.Contains(res.Answer, "Query failed") || !strings.Contains(res.Answer, "database locked") {
		t.Errorf("unexpected failure answer: %q", res.Answer)
	}
}

func TestAnswerStripsThinkBlocks(t *testing.T) {
	index := &fakeIndex{has: true, passages: []docstore.Passage{
		{Content: "something", SourceFile: "a.txt"},
	}}
	model := &fakeModel{answer: "<think>reasoning out loud</think>  the real answer"}

	res := newTestFlow(index, model).Answer(context.Background(), "q")
	if res.Answer != "the real answer" {
		t.Errorf("think block should be stripped, got %q", res.Answer)
	}
}
