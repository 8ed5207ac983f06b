// Package rag implements the retrieval provider: question answering over
// the indexed document set, served to the dispatch loop over the provider
// protocol.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harborseal/harborseal/internal/docstore"
	"github.com/harborseal/harborseal/internal/schema"
	"github.com/harborseal/harborseal/internal/shared/textutil"
)

const (
	defaultTopK       = 5
	sourcePreviewLen  = 150
	noDocumentsAnswer = "No documents indexed yet. Add documents before querying."
)

// Index is the slice of the document store the flow needs.
type Index interface {
	HasDocuments(ctx context.Context) (bool, error)
	SimilaritySearch(ctx context.Context, query string, k int) ([]docstore.Passage, error)
}

// Flow answers questions over the indexed document set: retrieve the most
// similar passages, ground a model call on them, report answer plus
// deduplicated sources.
type Flow struct {
	index Index
	model schema.ModelClient
	opts  schema.ChatOptions
	topK  int
}

// NewFlow wires a flow to its index and model. topK <= 0 falls back to the
// default of 5 retrieved passages.
func NewFlow(index Index, model schema.ModelClient, opts schema.ChatOptions, topK int) *Flow {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Flow{
		index: index,
		model: model,
		opts:  opts,
		topK:  topK,
	}
}

// Result is the structured answer returned to callers. It is always
// well-formed: failures are reported inside Answer, never raised.
type Result struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Source identifies one distinct source file with a passage preview.
type Source struct {
	File    string `json:"file"`
	Content string `json:"content"`
}

// Answer runs the retrieval flow for one question. An empty index yields
// the fixed no-documents answer without retrieving; any failure along the
// way becomes an error answer with empty sources.
func (f *Flow) Answer(ctx context.Context, question string) Result {
	has, err := f.index.HasDocuments(ctx)
	if err != nil {
		return failure(err)
	}
	if !has {
		return Result{Answer: noDocumentsAnswer, Sources: []Source{}}
	}

	passages, err := f.index.SimilaritySearch(ctx, question, f.topK)
	if err != nil {
		return failure(err)
	}

	grounding := make([]string, 0, len(passages))
	for _, p := range passages {
		grounding = append(grounding, p.Content)
	}
	prompt := fmt.Sprintf(
		"Answer the question using the context below.\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:",
		strings.Join(grounding, "\n\n"), question,
	)

	messages := schema.NewMessages()
	messages.AddUser(prompt)

	resp, err := f.model.Chat(ctx, messages, nil, f.opts)
	if err != nil {
		return failure(err)
	}
	answer := ""
	if resp.Content != nil {
		answer = strings.TrimSpace(textutil.StripThink(*resp.Content))
	}

	return Result{Answer: answer, Sources: dedupSources(passages)}
}

// dedupSources keeps one entry per distinct source file, first hit wins,
// with a preview of that file's best-matching passage.
func dedupSources(passages []docstore.Passage) []Source {
	seen := make(map[string]bool, len(passages))
	sources := make([]Source, 0, len(passages))
	for _, p := range passages {
		file := textutil.StringOrDefault(p.SourceFile, "unknown")
		if seen[file] {
			continue
		}
		seen[file] = true
		sources = append(sources, Source{
			File:    file,
			Content: textutil.Truncate(p.Content, sourcePreviewLen),
		})
	}
	return sources
}

func failure(err error) Result {
	slog.Warn("Retrieval query failed", "error", err)
	return Result{Answer: fmt.Sprintf("Query failed: %v", err), Sources: []Source{}}
}
