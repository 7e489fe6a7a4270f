package prompt

import (
	"fmt"
	"strings"

	"ai-paperchat-be/internal/constant"
	"ai-paperchat-be/pkg/llm"
	"ai-paperchat-be/pkg/rag/index"
)

// GroundedBuilder assembles the message list for a retrieval-grounded turn.
// Excerpts are numbered in rank order; the numbers are what the model cites,
// so they must line up with the citation list the caller reports.
type GroundedBuilder struct {
	query   string
	matches []index.Match
	history []llm.Message
}

func NewGroundedBuilder(query string, matches []index.Match, history []llm.Message) *GroundedBuilder {
	return &GroundedBuilder{
		query:   query,
		matches: matches,
		history: history,
	}
}

// Build returns system instructions with the numbered excerpts, the recent
// conversation, then the user's question.
func (b *GroundedBuilder) Build() []llm.Message {
	var system strings.Builder
	system.WriteString(constant.PaperGroundedSystemPrompt)
	b.writeExcerpts(&system)

	messages := make([]llm.Message, 0, len(b.history)+2)
	messages = append(messages, llm.Message{
		Role:    constant.ChatMessageRoleSystem,
		Content: system.String(),
	})
	messages = append(messages, b.history...)
	messages = append(messages, llm.Message{
		Role:    constant.ChatMessageRoleUser,
		Content: b.query,
	})
	return messages
}

func (b *GroundedBuilder) writeExcerpts(system *strings.Builder) {
	for i, m := range b.matches {
		system.WriteString(fmt.Sprintf("--- EXCERPT %d ---\n", i+1))
		system.WriteString(strings.TrimSpace(m.Content))
		system.WriteString("\n\n")
	}
}

// DirectBuilder assembles the message list for an ungrounded turn.
type DirectBuilder struct {
	query   string
	history []llm.Message
}

func NewDirectBuilder(query string, history []llm.Message) *DirectBuilder {
	return &DirectBuilder{
		query:   query,
		history: history,
	}
}

func (b *DirectBuilder) Build() []llm.Message {
	messages := make([]llm.Message, 0, len(b.history)+2)
	messages = append(messages, llm.Message{
		Role:    constant.ChatMessageRoleSystem,
		Content: constant.DirectChatSystemPrompt,
	})
	messages = append(messages, b.history...)
	messages = append(messages, llm.Message{
		Role:    constant.ChatMessageRoleUser,
		Content: b.query,
	})
	return messages
}
