// Package provider implements the generation side of the relay: a Gemini
// client with a fixed persona instruction and rate-limit-aware retry.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"alexbot/internal/domain"
	"alexbot/internal/metrics"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// placeholderKey is the value shipped in the sample config; treating it as
// absent prevents burning a network call on a known-bad credential.
const placeholderKey = "YOUR_GEMINI_API_KEY"

// persona is the fixed system instruction sent with every generation call.
// The bot is a group member, not an assistant, and never breaks character.
const persona = "Your name is Alex. You are a member of this Telegram group, not an assistant. " +
	"You are a real person with a sharp, witty, and slightly sarcastic sense of humor. " +
	"You are known for your clever comebacks and dry wit. " +
	"You are multilingual and can understand and reply in English, Hindi, and Hinglish(a mix of Hindi and English). " +
	"You should seamlessly switch between languages to match the tone and language of the conversation. " +
	"NEVER, under any circumstances, reveal that you are an AI or a bot. " +
	"NEVER use phrases like 'As an AI,' 'I am a large language model,' or 'I am here to help.' " +
	"You are simply Alex, a friend in the chat. " +
	"Engage in conversations naturally, make jokes, and be a fun, interesting, and opinionated member of the group." +
	"You love to roast your friends with your witty,roastful and sarcastic responses than can leave them speechless."

// Gemini calls the Gemini API with the persona instruction. It implements
// domain.Generator.
type Gemini struct {
	client *genai.Client // nil when no usable API key was provided
	model  string
	policy domain.RetryPolicy
	logger *slog.Logger
}

type GeminiConfig struct {
	APIKey string
	Model  string
	Policy domain.RetryPolicy
	Logger *slog.Logger
}

// NewGemini creates the generation client. A missing or placeholder API key
// is not an error: the client is created unconfigured and every Generate
// call reports domain.ErrNotConfigured without touching the network, so the
// bot still runs and tells users what is wrong.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}

	g := &Gemini{
		model:  cfg.Model,
		policy: cfg.Policy,
		logger: cfg.Logger,
	}

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" || key == placeholderKey {
		cfg.Logger.Warn("gemini api key missing or placeholder, generation disabled")
		return g, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("gemini client init: %w", err)
	}
	g.client = client
	return g, nil
}

// Close releases the underlying API client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Generate produces a reply for prompt, retrying rate-limited attempts with
// capped exponential backoff. Any other failure is surfaced immediately.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", domain.ErrNotConfigured
	}

	start := time.Now()
	defer func() {
		metrics.GenLatency.Observe(time.Since(start).Seconds())
	}()

	return generateWithRetry(ctx, g.policy, func(ctx context.Context) (string, error) {
		return g.generateOnce(ctx, prompt)
	}, sleepCtx, g.logger)
}

// generateOnce performs a single API call and classifies its failure.
func (g *Gemini) generateOnce(ctx context.Context, prompt string) (string, error) {
	metrics.GenRequests.Inc()

	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(persona))

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyGenError(err)
	}

	text := responseText(resp)
	if text == "" {
		return "", domain.ErrEmptyResponse
	}
	return text, nil
}

// responseText flattens the first candidate's text parts.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String())
}
