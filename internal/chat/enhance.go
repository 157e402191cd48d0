package chat

import (
	"context"
	"strings"

	"github.com/botarena/botarena/internal/gemini"
	"github.com/rs/zerolog/log"
)

const enhanceSystemPrompt = `You rewrite rough bot instructions into a clear, specific system prompt.
Keep the author's intent and persona. Return only the rewritten instruction text, no preamble.`

// EnhanceModel is the fixed low-latency model used by the enhance helper.
const EnhanceModel = "gemini-2.5-flash-lite"

// Enhancer rewrites draft instruction text through the model.
type Enhancer struct {
	text TextGenerator
}

func NewEnhancer(text TextGenerator) *Enhancer {
	return &Enhancer{text: text}
}

// Enhance returns a polished rendition of the draft. On any failure, or an
// empty rewrite, it logs and returns the original text unchanged; callers
// never see an error from this path.
func (e *Enhancer) Enhance(ctx context.Context, draft string) string {
	if strings.TrimSpace(draft) == "" {
		return draft
	}
	result, err := e.text.Generate(ctx, gemini.GenerateRequest{
		Model:  EnhanceModel,
		System: enhanceSystemPrompt,
		Input:  draft,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Enhance failed, keeping original text")
		return draft
	}
	polished := strings.TrimSpace(result.Text)
	if polished == "" {
		return draft
	}
	return polished
}
