package respond

import (
	"context"
	"log"
	"strings"
	"time"

	"ai-paperchat-be/internal/constant"
	"ai-paperchat-be/pkg/llm"
	"ai-paperchat-be/pkg/rag/fault"
	"ai-paperchat-be/pkg/rag/index"
	"ai-paperchat-be/pkg/rag/prompt"

	"github.com/google/uuid"
)

// Retriever is the slice of the retrieval index the responder needs.
type Retriever interface {
	Query(ctx context.Context, sessionID uuid.UUID, text string, k int) ([]index.Match, error)
}

const groundedTemperature = 0.2 // low variance keeps answers close to the excerpts

// Input is one routed user turn plus its conversation window.
type Input struct {
	SessionID uuid.UUID
	Route     string
	Payload   string
	History   []llm.Message
}

// AssistantTurn is the produced assistant message. Citations hold the cited
// chunk ids in rank order; Grounded says whether retrieved excerpts backed
// the text.
type AssistantTurn struct {
	Text      string
	Route     string
	Grounded  bool
	Citations []uuid.UUID
}

// Responder turns a routed payload into an assistant reply. It never
// fabricates grounding: an empty retrieval produces the fixed insufficient
// grounding reply without a model call, and a model failure surfaces as a
// retryable fault instead of an invented answer.
type Responder struct {
	retriever Retriever
	provider  llm.LLMProvider
	topK      int
	timeout   time.Duration
	logger    *log.Logger
}

func NewResponder(retriever Retriever, provider llm.LLMProvider, topK int, timeout time.Duration, logger *log.Logger) *Responder {
	if topK <= 0 {
		topK = 4
	}
	return &Responder{
		retriever: retriever,
		provider:  provider,
		topK:      topK,
		timeout:   timeout,
		logger:    logger,
	}
}

func (r *Responder) Respond(ctx context.Context, in Input) (*AssistantTurn, error) {
	if in.Route == constant.ChatRouteRetrieval {
		return r.respondGrounded(ctx, in)
	}
	return r.respondDirect(ctx, in)
}

func (r *Responder) respondDirect(ctx context.Context, in Input) (*AssistantTurn, error) {
	messages := prompt.NewDirectBuilder(in.Payload, in.History).Build()

	text, err := r.generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	return &AssistantTurn{
		Text:  text,
		Route: constant.ChatRouteDirect,
	}, nil
}

func (r *Responder) respondGrounded(ctx context.Context, in Input) (*AssistantTurn, error) {
	matches, err := r.retriever.Query(ctx, in.SessionID, in.Payload, r.topK)
	if err != nil {
		return nil, fault.Wrap(fault.KindGenerationUnavailable, "retrieval is unavailable", err).
			WithHint("retry once the embedding provider is reachable").
			AsRetryable()
	}

	if len(matches) == 0 {
		r.logger.Printf("[RESPOND] No grounding for session %s, returning fixed reply", in.SessionID)
		return &AssistantTurn{
			Text:  constant.InsufficientGroundingReply,
			Route: constant.ChatRouteRetrieval,
		}, nil
	}

	messages := prompt.NewGroundedBuilder(in.Payload, matches, in.History).Build()
	text, err := r.generate(ctx, messages, llm.WithTemperature(groundedTemperature))
	if err != nil {
		return nil, err
	}

	citations := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		citations = append(citations, m.ChunkID)
	}

	r.logger.Printf("[RESPOND] Grounded answer for session %s on %d excerpts", in.SessionID, len(matches))
	return &AssistantTurn{
		Text:      text,
		Route:     constant.ChatRouteRetrieval,
		Grounded:  true,
		Citations: citations,
	}, nil
}

// generate runs the model call under the configured timeout. Failures and
// empty completions both map to the retryable unavailable fault; the caller
// decides whether to resubmit, never this layer.
func (r *Responder) generate(ctx context.Context, messages []llm.Message, options ...llm.Option) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	text, err := r.provider.Chat(ctx, messages, options...)
	if err != nil {
		return "", fault.Wrap(fault.KindGenerationUnavailable, "the model did not produce a response", err).
			WithHint("retry the same message").
			AsRetryable()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fault.New(fault.KindGenerationUnavailable, "the model returned an empty response").
			WithHint("retry the same message").
			AsRetryable()
	}
	return text, nil
}
