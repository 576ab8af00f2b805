// Package engine answers natural-language questions from retrieved document
// context. It retrieves top-K candidates, filters them by similarity
// threshold, and generates the answer with a completion provider when one is
// configured, falling back to a deterministic summary when none is. Answer
// never returns an error; every failure maps to a fixed user-facing message.
package engine

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/completion"
	"github.com/fyrsmithlabs/ragd/internal/repository"
)

var engineTracer = otel.Tracer("ragd.engine")

// Default retrieval parameters, applied when Config leaves them zero.
const (
	DefaultTopK                = 3
	DefaultSimilarityThreshold = 0.7
)

// Fixed user-facing answers. Tests and API consumers match on these exactly,
// so they must not change between releases.
const (
	// MsgNoDocuments is returned when retrieval yields no candidates at all.
	MsgNoDocuments = "I couldn't find any relevant information to answer your question."

	// MsgNotRelevant is returned when candidates exist but none clears the
	// similarity threshold.
	MsgNotRelevant = "I found some documents, but they don't seem closely related to your question. Could you try rephrasing?"

	// MsgProcessingError is returned when retrieval itself fails.
	MsgProcessingError = "I encountered an error while processing your question. Please try again."

	// MockAnswerNote trails every answer produced without a language model.
	MockAnswerNote = "Note: This is a mock response. Set OPENAI_API_KEY environment variable to use GPT for better answers."
)

const promptTemplate = "Based on the following context, please answer the question. " +
	"If the context doesn't contain enough information to answer the question, " +
	"please say so clearly.\n\n" +
	"Context:\n%s\n\n" +
	"Question: %s\n\n" +
	"Answer:"

// Retriever supplies ranked document context for a question. It is satisfied
// by *repository.Repository.
type Retriever interface {
	SearchSimilar(ctx context.Context, query string, topK int) ([]repository.Document, error)
	Count(ctx context.Context) int64
}

var _ Retriever = (*repository.Repository)(nil)

// Config holds the retrieval parameters. Zero values fall back to the
// defaults above.
type Config struct {
	TopK                int
	SimilarityThreshold float32
}

func (c *Config) applyDefaults() {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
}

// Engine is the answering orchestrator. It is stateless across calls and safe
// for concurrent use as long as its collaborators are.
type Engine struct {
	retriever Retriever
	completer completion.Provider
	topK      int
	threshold float32
	logger    *zap.Logger
}

// NewEngine builds an engine over the given retriever and completion
// provider. A nil completer behaves like completion.Noop, so callers that
// skipped provider construction still get fallback answers.
func NewEngine(retriever Retriever, completer completion.Provider, cfg Config, logger *zap.Logger) (*Engine, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if completer == nil {
		completer = &completion.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	return &Engine{
		retriever: retriever,
		completer: completer,
		topK:      cfg.TopK,
		threshold: cfg.SimilarityThreshold,
		logger:    logger,
	}, nil
}

// Answer produces an answer string for the question. It never returns an
// error: retrieval failures map to MsgProcessingError, completion failures
// fall back to the mock answer.
func (e *Engine) Answer(ctx context.Context, question string) string {
	ctx, span := engineTracer.Start(ctx, "engine.answer")
	defer span.End()

	candidates, err := e.retriever.SearchSimilar(ctx, question, e.topK)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("answer.path", "error"))
		e.logger.Error("question processing failed", zap.Error(err))
		return MsgProcessingError
	}
	span.SetAttributes(attribute.Int("answer.candidates", len(candidates)))

	if len(candidates) == 0 {
		span.SetAttributes(attribute.String("answer.path", "no_documents"))
		return MsgNoDocuments
	}

	relevant := make([]repository.Document, 0, len(candidates))
	for _, doc := range candidates {
		if doc.Score >= e.threshold {
			relevant = append(relevant, doc)
		}
	}
	span.SetAttributes(attribute.Int("answer.relevant", len(relevant)))

	if len(relevant) == 0 {
		span.SetAttributes(attribute.String("answer.path", "below_threshold"))
		return MsgNotRelevant
	}

	if e.completer.Available() {
		answer, genErr := e.completer.Generate(ctx, buildPrompt(question, relevant))
		if genErr == nil {
			span.SetAttributes(attribute.String("answer.path", "completion"))
			return answer
		}
		span.RecordError(genErr)
		e.logger.Warn("completion failed, using the mock answer", zap.Error(genErr))
	}

	span.SetAttributes(attribute.String("answer.path", "mock"))
	return mockAnswer(relevant)
}

// SystemInfo reports the engine's operational status. It never fails: a
// count failure surfaces as zero via the retriever's own fail-safe.
func (e *Engine) SystemInfo(ctx context.Context) SystemInfo {
	return SystemInfo{
		DocumentCount:       e.retriever.Count(ctx),
		CompletionAvailable: e.completer.Available(),
		TopK:                e.topK,
		SimilarityThreshold: e.threshold,
	}
}

// SystemInfo is a point-in-time status summary.
type SystemInfo struct {
	DocumentCount       int64   `json:"document_count"`
	CompletionAvailable bool    `json:"completion_available"`
	TopK                int     `json:"top_k"`
	SimilarityThreshold float32 `json:"similarity_threshold"`
}

func (si SystemInfo) String() string {
	available := "No"
	if si.CompletionAvailable {
		available = "Yes"
	}
	return fmt.Sprintf("RAG System Status:\n"+
		"- Documents in database: %d\n"+
		"- LLM available: %s\n"+
		"- Top-K retrieval: %d\n"+
		"- Similarity threshold: %.2f",
		si.DocumentCount, available, si.TopK, si.SimilarityThreshold)
}

func buildPrompt(question string, docs []repository.Document) string {
	paragraphs := make([]string, len(docs))
	for i, doc := range docs {
		paragraphs[i] = "Document: " + doc.Content
	}
	return fmt.Sprintf(promptTemplate, strings.Join(paragraphs, "\n\n"), question)
}

func mockAnswer(docs []repository.Document) string {
	var b strings.Builder
	b.WriteString("Based on the retrieved documents, here's what I found:\n\n")
	for i, doc := range docs {
		fmt.Fprintf(&b, "%d. %s (Similarity: %.2f)\n", i+1, doc.Content, doc.Score)
	}
	b.WriteString("\n" + MockAnswerNote)
	return b.String()
}
