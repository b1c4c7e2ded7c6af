package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Translator turns Polish free text into English
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// PassThrough returns the input unchanged
type PassThrough struct{}

// Translate implements Translator
func (PassThrough) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}

// GeminiTranslator translates through the Gemini API and caches results
type GeminiTranslator struct {
	client *genai.Client
	model  *genai.GenerativeModel

	mu    sync.Mutex
	cache map[string]string
}

// NewGeminiTranslator creates a translator backed by Gemini
func NewGeminiTranslator(ctx context.Context, apiKey, modelName string) (*GeminiTranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	return &GeminiTranslator{
		client: client,
		model:  model,
		cache:  make(map[string]string),
	}, nil
}

// Close closes the client connection
func (g *GeminiTranslator) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

// Translate implements Translator
func (g *GeminiTranslator) Translate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	g.mu.Lock()
	if cached, ok := g.cache[text]; ok {
		g.mu.Unlock()
		return cached, nil
	}
	g.mu.Unlock()

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt(text)))
	if err != nil {
		return "", fmt.Errorf("gemini translation error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	translated := strings.TrimSpace(out.String())

	g.mu.Lock()
	g.cache[text] = translated
	g.mu.Unlock()
	return translated, nil
}

func prompt(text string) string {
	return "Translate the following warehouse damage report text from Polish to English. " +
		"Reply with the translation only.\n\n" + text
}

// OrOriginal translates text and falls back to the source on failure
func OrOriginal(ctx context.Context, t Translator, text string) string {
	if t == nil || strings.TrimSpace(text) == "" {
		return text
	}
	out, err := t.Translate(ctx, text)
	if err != nil || out == "" {
		return text
	}
	return out
}
