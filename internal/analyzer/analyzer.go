// Package analyzer produces structured AI summaries of extracted file text.
//
// The exported contract is deliberately forgiving: weak model output is
// repaired (fallback models, then locally generated keywords) so that only a
// total failure, with every model erroring or returning nothing, surfaces as
// an error to the analysis worker.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/devanshpatel/filevault/internal/config"
	"github.com/devanshpatel/filevault/internal/types"
)

// minKeywords is the quality bar for model output; fewer keywords than this
// triggers the next model, and finally the local generator.
const minKeywords = 3

// contentPreviewLimit caps how much extracted text is sent to the model.
const contentPreviewLimit = 4000

// Analyzer turns extracted text into a structured analysis.
type Analyzer interface {
	Analyze(ctx context.Context, text, filename string) (*types.AIAnalysis, error)
	Available() bool
	Models() []string
}

// completionClient is the one model call the analyzer needs. The production
// implementation wraps the OpenAI-compatible chat API; tests substitute fakes.
type completionClient interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

type openAIClient struct {
	client *openai.Client
}

func (c *openAIClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   1024,
		TopP:        0.9,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Client analyzes text through an OpenAI-compatible chat API (Groq by
// default), trying fallback models and a local keyword generator before
// giving up.
type Client struct {
	completer completionClient
	models    []string // default model first, then fallbacks
	available bool
}

// NewClient builds the analyzer from config. Without an API key the analyzer
// is constructed unavailable and the analysis worker is not started.
func NewClient(cfg *config.Config) *Client {
	models := append([]string{cfg.AI.DefaultModel}, cfg.AI.FallbackModels...)

	if cfg.AI.APIKey == "" {
		return &Client{models: models, available: false}
	}

	apiCfg := openai.DefaultConfig(cfg.AI.APIKey)
	if cfg.AI.BaseURL != "" {
		apiCfg.BaseURL = cfg.AI.BaseURL
	}

	return &Client{
		completer: &openAIClient{client: openai.NewClientWithConfig(apiCfg)},
		models:    models,
		available: true,
	}
}

func (c *Client) Available() bool {
	return c.available
}

func (c *Client) Models() []string {
	return c.models
}

// Analyze runs the model sequence over the text. The default model goes
// first; a result with fewer than minKeywords keywords sends the text to the
// next model. When every model under-delivers, the best result is kept and
// its keywords replaced with locally generated ones.
func (c *Client) Analyze(ctx context.Context, text, filename string) (*types.AIAnalysis, error) {
	if !c.available {
		return nil, errors.New("analyzer is not available")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("no text to analyze")
	}

	prompt := buildPrompt(text, filename)

	var best *types.AIAnalysis
	var lastErr error

	for _, model := range c.models {
		raw, err := c.completer.Complete(ctx, model, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		if raw == "" {
			lastErr = errors.New("model returned empty response")
			continue
		}

		analysis := parseAnalysis(raw, filename)
		analysis.AnalysisDate = time.Now().UTC().Format(time.RFC3339)
		analysis.ModelUsed = model
		analysis.KeywordsSource = types.KeywordsSourceModel

		if len(analysis.Keywords) >= minKeywords {
			return analysis, nil
		}
		if best == nil {
			best = analysis
		}
	}

	if best == nil {
		if lastErr != nil {
			return nil, fmt.Errorf("all models failed: %w", lastErr)
		}
		return nil, errors.New("all models failed")
	}

	// Every model under-delivered on keywords; derive them from the text,
	// falling back to the filename when the text yields no usable tokens,
	// so a weak model never fails the record.
	generated := GenerateKeywords(text, 10)
	if len(generated) == 0 {
		generated = filenameKeywords(filename)
	}
	best.Keywords = generated
	best.KeywordsSource = types.KeywordsSourceGenerated
	return best, nil
}

func buildPrompt(text, filename string) string {
	preview := text
	if len(preview) > contentPreviewLimit {
		// Cut on a rune boundary so the preview never ends mid-character.
		cut := contentPreviewLimit
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}

	return fmt.Sprintf(`Analyze the following content from the file %q and provide:

1. A concise 2-3 sentence summary
2. 5-10 relevant keywords or key phrases as a JSON array
3. A brief one-sentence caption

Return your response as a JSON object with the following structure:
{
  "summary": "your summary here",
  "keywords": ["keyword1", "keyword2", ...],
  "caption": "your caption here"
}

Content to analyze:
%s

JSON Response:`, filename, preview)
}
