//go:build integration

package inference

import (
	"context"
	"os"
	"testing"
	"time"
)

// Integration tests against a running Ollama server.
// Run with: go test -tags=integration -v ./pkg/inference/...

func TestOllamaIntegration(t *testing.T) {
	baseURL := os.Getenv("BUDDY_OLLAMA_URL")
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	model := os.Getenv("BUDDY_MODEL")
	if model == "" {
		model = "gemma3-ptbr"
	}

	client, err := NewClient(
		WithBaseURL(baseURL),
		WithModel(model),
	)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	// Quick health check to see if Ollama is running
	if err := client.Health(ctx); err != nil {
		t.Skip("Ollama not running: " + err.Error())
	}

	t.Run("Chat", func(t *testing.T) {
		resp, err := client.Chat(ctx, &ChatRequest{
			Messages: []Message{
				NewSystemMessage("Você é um assistente. Seja muito breve."),
				NewUserMessage("Diga 'olá' e nada mais."),
			},
			MaxTokens: 10,
		})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}

		if resp.Message.Content == "" {
			t.Error("Expected non-empty response")
		}
		t.Logf("Response: %s", resp.Message.Content)
		t.Logf("Tokens: %d prompt, %d completion", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	})

	t.Run("Stream", func(t *testing.T) {
		stream, err := client.Stream(ctx, &ChatRequest{
			Messages: []Message{
				NewUserMessage("Conte de 1 a 5, um número por linha."),
			},
			MaxTokens: 100,
		})
		if err != nil {
			t.Fatalf("Stream failed: %v", err)
		}
		defer stream.Close()

		var chunks int
		var content string
		for {
			chunk, err := stream.Recv()
			if err != nil {
				t.Fatalf("Stream recv error: %v", err)
			}
			if chunk.Done {
				break
			}
			chunks++
			content += chunk.Delta
		}

		t.Logf("Received %d chunks, total content: %s", chunks, content)
		if chunks == 0 {
			t.Error("Expected at least one chunk")
		}
	})
}

func TestChainIntegration(t *testing.T) {
	baseURL := os.Getenv("BUDDY_OLLAMA_URL")
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}

	real, err := NewClient(WithBaseURL(baseURL))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer real.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	if err := real.Health(ctx); err != nil {
		t.Skip("Ollama not running: " + err.Error())
	}

	// Failing mock first, then the real server
	failing := WithError(ErrProviderUnavailable)

	chain, err := NewChain(failing, real)
	if err != nil {
		t.Fatalf("Failed to create chain: %v", err)
	}
	defer chain.Close()

	resp, err := chain.Chat(ctx, &ChatRequest{
		Messages: []Message{
			NewUserMessage("Diga 'funciona' e nada mais."),
		},
		MaxTokens: 20,
	})
	if err != nil {
		t.Fatalf("Chain chat failed: %v", err)
	}

	t.Logf("Chain response (via fallback): %s", resp.Message.Content)
}
