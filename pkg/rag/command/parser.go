package command

import (
	"strings"
	"unicode"

	"ai-paperchat-be/internal/constant"
	"ai-paperchat-be/pkg/rag/fault"
)

// Route represents where a chat message is sent after parsing
type Route string

const (
	RouteDirect    Route = "direct"    // Pure LLM without paper grounding
	RouteRetrieval Route = "retrieval" // Answer from the session's ready papers
)

// ParsedMessage contains routing information extracted from a chat message
type ParsedMessage struct {
	OriginalText string // Full original text
	Payload      string // Text without the command token
	Route        Route  // direct or retrieval
	Explicit     bool   // true when a command token picked the route
}

// RouteFromString maps a configured route name to a Route, falling back
// to direct for anything unrecognized.
func RouteFromString(s string) Route {
	if strings.EqualFold(strings.TrimSpace(s), string(RouteRetrieval)) {
		return RouteRetrieval
	}
	return RouteDirect
}

// Parse extracts routing information from a chat message.
// Supports:
//   - @paper <text> → retrieval route, answer grounded in session papers
//   - @ai <text>    → direct route, plain model answer
//   - <text>        → configured default route
//
// Tokens are case-insensitive and only count when they start the message
// and end at a whitespace boundary ("@paperclip ..." is plain text).
// A recognized token with nothing after it is an error: the user asked
// for a routed command but gave us nothing to route.
func Parse(text string, defaultRoute Route) (*ParsedMessage, error) {
	trimmed := strings.TrimSpace(text)

	// 1. Check for @paper (retrieval command)
	if parsed, ok, err := parseToken(text, trimmed, constant.CommandTokenPaper, RouteRetrieval); ok {
		return parsed, err
	}

	// 2. Check for @ai (direct command)
	if parsed, ok, err := parseToken(text, trimmed, constant.CommandTokenAI, RouteDirect); ok {
		return parsed, err
	}

	// 3. Default: free text, configured route
	return &ParsedMessage{
		OriginalText: text,
		Payload:      trimmed,
		Route:        defaultRoute,
	}, nil
}

// parseToken tries one command token against the message. ok=false means
// the token did not match and parsing should continue.
func parseToken(original, trimmed, token string, route Route) (*ParsedMessage, bool, error) {
	if !strings.HasPrefix(strings.ToLower(trimmed), token) {
		return nil, false, nil
	}
	rest := trimmed[len(token):]
	if rest != "" && !startsWithSpace(rest) {
		// Token glued to more letters ("@paperclip"): not a command.
		return nil, false, nil
	}
	payload := strings.TrimSpace(rest)
	if payload == "" {
		return nil, true, fault.New(fault.KindInvalidCommand, "command "+token+" needs a message after it").
			WithHint("write the question after the command, e.g. \"" + token + " summarize the methods section\"")
	}
	return &ParsedMessage{
		OriginalText: original,
		Payload:      payload,
		Route:        route,
		Explicit:     true,
	}, true, nil
}

func startsWithSpace(s string) bool {
	for _, r := range s {
		return unicode.IsSpace(r)
	}
	return false
}
