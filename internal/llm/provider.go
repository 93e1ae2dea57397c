// Package llm generates assistant responses for highlight threads, audit
// clarifications and the chat box.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Respond generates an assistant reply for the given request
	Respond(ctx context.Context, req ReplyRequest) (*ReplyResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ReplyRequest contains the input for a reply generation call
type ReplyRequest struct {
	// System is the system prompt framing the assistant's role
	System string

	// UserText is the reviewer's comment or question
	UserText string

	// Context carries surrounding material (highlighted passage, article
	// excerpts) the model should ground its answer on
	Context string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// ReplyResponse contains the LLM's output
type ReplyResponse struct {
	// Text is the generated reply
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	// Timeout for API requests
	Timeout time.Duration

	// MaxTokens for response generation
	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30 * time.Second,
		MaxTokens: 1000,
	}
}

const defaultSystemPrompt = "You are a geo-compliance review assistant. Answer reviewer questions about regulatory obligations concisely, citing the provided context where possible. If the context does not cover the question, say so."

// BuildPrompt constructs the user-turn prompt from the reviewer's text and
// any grounding context.
func BuildPrompt(req ReplyRequest) string {
	var b strings.Builder
	if req.Context != "" {
		fmt.Fprintf(&b, "Context:\n%s\n\n", req.Context)
	}
	fmt.Fprintf(&b, "Reviewer comment:\n%s\n", req.UserText)
	b.WriteString("\nRespond with a short, actionable compliance note.")
	return b.String()
}
