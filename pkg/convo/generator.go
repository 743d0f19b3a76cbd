package convo

import (
	"context"
	"log/slog"
	"strings"

	"github.com/waifuisalie/Talking-Buddy/pkg/inference"
	"github.com/waifuisalie/Talking-Buddy/pkg/memory"
	"github.com/waifuisalie/Talking-Buddy/pkg/speech"
)

// Responder turns recent conversation history (ending with the newest
// user turn) into a spoken response. Every call must drive exactly one
// playback session, even when generation fails, so the machine always
// receives a completion for the turn.
type Responder interface {
	Respond(ctx context.Context, turns []memory.Turn) (speech.Result, error)
}

// DefaultErrorReply is spoken when generation fails outright.
const DefaultErrorReply = "Sorry, I encountered an error while processing your request."

// Generator is the standard Responder: it prompts the inference
// provider with the recent history and streams the reply through the
// speech pipeline. Providers without streaming support fall back to a
// complete chat call.
type Generator struct {
	provider    inference.Provider
	pipeline    *speech.Pipeline
	system      string
	errorReply  string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSystemPrompt sets the system prompt sent ahead of the history.
// Empty (the default) sends none, which works better with small models.
func WithSystemPrompt(prompt string) GeneratorOption {
	return func(g *Generator) { g.system = prompt }
}

// WithErrorReply sets the sentence spoken when generation fails.
func WithErrorReply(reply string) GeneratorOption {
	return func(g *Generator) {
		if reply != "" {
			g.errorReply = reply
		}
	}
}

// WithMaxTokens caps the response length per request.
func WithMaxTokens(n int) GeneratorOption {
	return func(g *Generator) { g.maxTokens = n }
}

// WithTemperature sets the sampling temperature per request.
func WithTemperature(t float64) GeneratorOption {
	return func(g *Generator) { g.temperature = t }
}

// WithGeneratorLogger replaces the logger.
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGenerator creates a Responder backed by provider and pipeline.
func NewGenerator(provider inference.Provider, pipeline *speech.Pipeline, opts ...GeneratorOption) *Generator {
	g := &Generator{
		provider:   provider,
		pipeline:   pipeline,
		errorReply: DefaultErrorReply,
		logger:     slog.Default().With("component", "generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Respond generates and speaks a reply to the newest user turn.
func (g *Generator) Respond(ctx context.Context, turns []memory.Turn) (speech.Result, error) {
	req := &inference.ChatRequest{
		Messages:    g.messages(turns),
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	if g.provider.Capabilities().Streaming {
		stream, err := g.provider.Stream(ctx, req)
		if err != nil {
			return g.apologize(ctx, err)
		}
		return g.pipeline.SpeakStream(ctx, stream)
	}

	resp, err := g.provider.Chat(ctx, req)
	if err != nil {
		return g.apologize(ctx, err)
	}
	return g.pipeline.Speak(ctx, resp.Message.Content)
}

// apologize speaks the error reply so the turn still produces a
// playback session, and returns the original error.
func (g *Generator) apologize(ctx context.Context, cause error) (speech.Result, error) {
	g.logger.Warn("generation failed, speaking error reply", "error", cause)
	res, err := g.pipeline.Speak(ctx, g.errorReply)
	if err != nil {
		g.logger.Warn("error reply failed too", "error", err)
	}
	return res, cause
}

// messages renders history turns as chat messages, with the optional
// system prompt first.
func (g *Generator) messages(turns []memory.Turn) []inference.Message {
	msgs := make([]inference.Message, 0, len(turns)+1)
	if strings.TrimSpace(g.system) != "" {
		msgs = append(msgs, inference.NewSystemMessage(g.system))
	}
	for _, t := range turns {
		switch t.Role {
		case memory.RoleAssistant:
			msgs = append(msgs, inference.NewAssistantMessage(t.Text))
		default:
			msgs = append(msgs, inference.NewUserMessage(t.Text))
		}
	}
	return msgs
}

// Ensure Generator implements Responder.
var _ Responder = (*Generator)(nil)
