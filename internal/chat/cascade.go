package chat

import (
	"context"
	"fmt"
	"regexp"

	"github.com/botarena/botarena/internal/catalog"
	"github.com/botarena/botarena/internal/gemini"
	"github.com/botarena/botarena/pkg/models"
	"github.com/rs/zerolog/log"
)

// imageIntentRe matches user input that reads as a request for an image.
var imageIntentRe = regexp.MustCompile(`(?i)\b(generate|create|draw|visualize|make|paint)\b.*\b(image|picture|photo|illustration|drawing|art|logo)\b|(?i)\b(image|picture|photo)\s+of\b`)

// WantsImage reports whether the user input matches the image intent
// pattern.
func WantsImage(input string) bool {
	return imageIntentRe.MatchString(input)
}

// ImageGenerator is the image variant of the model-invocation collaborator.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req gemini.ImageRequest) (*models.ImagePayload, error)
}

// Cascade runs the bounded image fallback chain: the configured model first,
// then the model's in-family fallback when the vendor family is known, then
// the universal default backend. At most two fallback hops are attempted.
type Cascade struct {
	generator ImageGenerator
	catalog   *catalog.Catalog
}

// NewCascade creates a cascade over the given generator and catalog.
func NewCascade(g ImageGenerator, c *catalog.Catalog) *Cascade {
	return &Cascade{generator: g, catalog: c}
}

// Generate attempts the image request, rerouting through the fallback chain
// on failure. Each reroute emits one telemetry step naming the reason. The
// error from the final hop is terminal for the image request only.
func (c *Cascade) Generate(ctx context.Context, req gemini.ImageRequest, recorder *StepRecorder) (*models.ImagePayload, error) {
	chain := []string{req.Model}
	if fb, ok := c.catalog.FamilyFallback(req.Model); ok {
		chain = append(chain, fb)
	}
	if chain[len(chain)-1] != catalog.UniversalImageFallback {
		chain = append(chain, catalog.UniversalImageFallback)
	}
	// Two fallback hops at most.
	if len(chain) > 3 {
		chain = chain[:3]
	}

	var lastErr error
	for i, model := range chain {
		if i > 0 && recorder != nil {
			recorder.Record(models.StepImageGen,
				fmt.Sprintf("Rerouting to %s", model),
				fmt.Sprintf("%s failed: %v", chain[i-1], lastErr))
		}

		attempt := req
		attempt.Model = model
		img, err := c.generator.GenerateImage(ctx, attempt)
		if err == nil {
			return img, nil
		}
		lastErr = err
		log.Warn().Str("model", model).Err(err).Msg("Image generation attempt failed")
	}

	return nil, fmt.Errorf("image cascade exhausted: %w", lastErr)
}
