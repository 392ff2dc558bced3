package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiSystemInstruction = "You are a translation engine. Translate the user's text into the requested " +
	"target language. Reply with the translated text only: no quotes, no notes, no explanations."

// Gemini translates through a Gemini generative model
type Gemini struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

// NewGemini creates a Gemini client authenticated with apiKey
func NewGemini(ctx context.Context, apiKey, model string, log *slog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: model, log: log}, nil
}

// Close releases the underlying client
func (g *Gemini) Close() error {
	return g.client.Close()
}

func geminiPrompt(text, source, target string) string {
	from := "the detected source language"
	if source != "" && source != "auto" {
		from = fmt.Sprintf("language code %q", source)
	}
	return fmt.Sprintf("Translate from %s into language code %q:\n\n%s", from, target, text)
}

func (g *Gemini) Translate(ctx context.Context, text, source, target string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(geminiSystemInstruction)},
	}
	temp := float32(0)
	model.GenerationConfig = genai.GenerationConfig{Temperature: &temp}

	resp, err := model.GenerateContent(ctx, genai.Text(geminiPrompt(text, source, target)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		} else {
			g.log.Debug("gemini response part was not text", "type", fmt.Sprintf("%T", part))
		}
	}

	result := strings.TrimSpace(out.String())
	if result == "" {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return result, nil
}
