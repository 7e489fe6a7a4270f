package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	// Routes a chat message can resolve to. "direct" goes straight to the
	// model, "retrieval" answers from the session's ready papers.
	ChatRouteDirect    = "direct"
	ChatRouteRetrieval = "retrieval"

	// Command tokens recognized at the start of a chat message.
	CommandTokenPaper = "@paper"
	CommandTokenAI    = "@ai"

	// Paper processing statuses. pending -> embedding -> ready | failed.
	PaperStatusPending   = "pending"
	PaperStatusEmbedding = "embedding"
	PaperStatusReady     = "ready"
	PaperStatusFailed    = "failed"

	PaperSourceText = "text"
	PaperSourcePDF  = "pdf"

	// Embedding task types (nomic / gemini semantics)
	EmbeddingTaskQuery    = "RETRIEVAL_QUERY"
	EmbeddingTaskDocument = "RETRIEVAL_DOCUMENT"

	// Ollama Configuration
	OllamaDefaultBaseURL = "http://localhost:11434"
	OllamaDefaultModel   = "llama3.1:8b"

	// Reply when retrieval finds nothing to ground on. No model call
	// happens for an empty retrieval, so the wording is stable.
	InsufficientGroundingReply = "I couldn't find anything in this session's papers to answer that. " +
		"Try attaching more papers, or ask with @ai to answer without paper grounding."

	// GROUNDED ANSWERING (Structured Text for 8B Compliance)
	PaperGroundedSystemPrompt = `### SYSTEM INSTRUCTIONS
Role: Research Paper Assistant
Task: Answer the user's question using ONLY the excerpts provided.

### CRITICAL RULES (MUST FOLLOW)
1. CITATION FORMAT:
   - You MUST cite with "Excerpt [N]" (e.g., "Excerpt [2]") for every fact.
   - ALWAYS use the number from the excerpt headers (e.g. --- EXCERPT 2 ---).
2. MULTIPLE EXCERPTS:
   - Synthesize relevant excerpts into one coherent answer. Blend them.
3. ACCURACY:
   - If the excerpts contain the answer, give it.
   - If they do NOT, say "The attached papers don't cover that."

### RESPONSE STYLE
- Direct, concise, and helpful.
- No meta-talk ("Here is the answer...").

=== PAPER EXCERPTS ===
`

	DirectChatSystemPrompt = `You are a helpful research assistant. Answer from general knowledge and the conversation so far. Be direct and honest; do not invent citations or pretend to have read papers that were not provided.`
)
