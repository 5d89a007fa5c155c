package external

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/mediguard-server/internal/domain"
)

// systemPrompt seeds every on-device session.
const systemPrompt = "You are MediGuard AI, a concise, privacy-preserving pharmacist assistant. Output in strict JSON when asked."

// LocalModelClient is the on-device language-model session. The runtime is a
// loopback server speaking the OpenAI chat-completions protocol (Ollama,
// llamafile, LM Studio); no key leaves the machine. Session readiness is
// probed rather than assumed, mirroring the availability check the host
// shell performs before handing the core a session.
type LocalModelClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
	ready   atomic.Bool
}

// NewLocalModelClient creates a client for the configured local runtime.
// The returned session is not ready until Probe succeeds.
func NewLocalModelClient(config domain.LocalModelConfig) *LocalModelClient {
	client := openai.NewClient(
		option.WithBaseURL(strings.TrimRight(config.BaseURL, "/")),
		// Local runtimes ignore the key but the protocol requires one.
		option.WithAPIKey("on-device"),
		option.WithMaxRetries(0),
	)
	return &LocalModelClient{
		client:  client,
		model:   config.Model,
		timeout: config.Timeout,
	}
}

// Probe checks that the runtime answers and marks the session ready. Safe to
// call repeatedly; the status stream republishes the outcome.
func (m *LocalModelClient) Probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := m.client.Models.List(probeCtx)
	m.ready.Store(err == nil)
	if err != nil {
		return fmt.Errorf("local model runtime not reachable: %w", err)
	}
	return nil
}

// Ready reports whether the last probe found the runtime reachable.
func (m *LocalModelClient) Ready() bool {
	return m.ready.Load()
}

// Prompt sends one user turn to the session and returns the raw reply text.
func (m *LocalModelClient) Prompt(ctx context.Context, text string) (string, error) {
	if !m.ready.Load() {
		return "", fmt.Errorf("local model session is not ready")
	}

	promptCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		promptCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	resp, err := m.client.Chat.Completions.New(promptCtx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(m.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		// A failed call usually means the runtime went away; flip the
		// readiness flag so the cascade skips the session next time.
		m.ready.Store(false)
		return "", fmt.Errorf("local model prompt failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("local model returned no choices")
	}

	reply := resp.Choices[0].Message.Content
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("local model returned empty reply")
	}
	return reply, nil
}

// Correct implements the optional grammar-correction capability on top of
// the same session. Callers swallow errors; the uncorrected text passes
// through unchanged on any failure.
func (m *LocalModelClient) Correct(ctx context.Context, text string) (string, error) {
	out, err := m.Prompt(ctx, fmt.Sprintf("Fix spelling and grammar only. Keep terms unchanged if already valid medical/drug names:\n%s", text))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
