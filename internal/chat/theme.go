package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/botarena/botarena/internal/gemini"
	"github.com/botarena/botarena/pkg/models"
)

const themeSystemPrompt = `You design color themes for chat arenas.
Given a mood description, respond with a single JSON object and nothing else:
{"name": "...", "primary": "#rrggbb", "secondary": "#rrggbb", "background": "#rrggbb", "surface": "#rrggbb", "accent": "#rrggbb", "font_family": "..."}`

// MalformedThemeError reports that the model returned something that does
// not parse as a theme payload. The raw payload is kept for diagnostics.
type MalformedThemeError struct {
	Payload string
	Err     error
}

func (e *MalformedThemeError) Error() string {
	return fmt.Sprintf("malformed theme payload: %v", e.Err)
}

func (e *MalformedThemeError) Unwrap() error { return e.Err }

// ThemeGenerator asks the model for an arena theme.
type ThemeGenerator struct {
	text TextGenerator
}

func NewThemeGenerator(text TextGenerator) *ThemeGenerator {
	return &ThemeGenerator{text: text}
}

// Generate produces a theme for the given mood. A provider failure returns
// the underlying error; an unparseable payload returns *MalformedThemeError.
func (g *ThemeGenerator) Generate(ctx context.Context, mood string) (*models.ThemeSpec, error) {
	result, err := g.text.Generate(ctx, gemini.GenerateRequest{
		Model:  EnhanceModel,
		System: themeSystemPrompt,
		Input:  mood,
	})
	if err != nil {
		return nil, fmt.Errorf("theme generation: %w", err)
	}

	payload := stripFence(result.Text)
	var theme models.ThemeSpec
	if err := json.Unmarshal([]byte(payload), &theme); err != nil {
		return nil, &MalformedThemeError{Payload: payload, Err: err}
	}
	if theme.Name == "" || theme.Primary == "" || theme.Background == "" {
		return nil, &MalformedThemeError{Payload: payload, Err: fmt.Errorf("missing required fields")}
	}
	return &theme, nil
}

// stripFence unwraps a ```json fenced payload when the model adds one.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
