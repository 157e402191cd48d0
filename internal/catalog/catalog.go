// Package catalog provides the model capability database for BotArena.
//
// The catalog is a thread-safe in-memory lookup seeded with built-in
// defaults. It serves two consumers:
//
//  1. The bot builder, which shows selectable text models and their limits.
//  2. The image cascade, which asks for a model's vendor family and the
//     designated in-family fallback when a generation attempt fails.
package catalog

import (
	"sync"
)

// UniversalImageFallback is the one backend every failed cascade ends on.
const UniversalImageFallback = "imagen-3.0-generate-002"

// DefaultTextModel is assigned to bots created without an explicit model.
const DefaultTextModel = "gemini-2.5-flash"

// TextModel describes a selectable chat model.
type TextModel struct {
	ID               string `json:"id"`
	DisplayName      string `json:"display_name"`
	ContextWindow    int    `json:"context_window"`
	MaxOutputTokens  int    `json:"max_output_tokens"`
	SupportsThinking bool   `json:"supports_thinking"`
}

// ImageFamily groups image models of one vendor family and names the
// in-family fallback tried after a first failure.
type ImageFamily struct {
	Name     string   `json:"name"`
	Models   []string `json:"models"`
	Fallback string   `json:"fallback"`
}

// Catalog is a thread-safe model capability database.
type Catalog struct {
	mu       sync.RWMutex
	text     map[string]*TextModel
	families []ImageFamily
}

// New creates a catalog seeded with the built-in defaults.
func New() *Catalog {
	c := &Catalog{
		text: make(map[string]*TextModel),
	}
	c.loadBuiltinDefaults()
	return c
}

// LookupText returns capability data for a text model, or nil if unknown.
func (c *Catalog) LookupText(id string) *TextModel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.text[id]
}

// ListText returns all known text models.
func (c *Catalog) ListText() []*TextModel {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*TextModel, 0, len(c.text))
	for _, tm := range c.text {
		result = append(result, tm)
	}
	return result
}

// Register adds or updates a text model entry.
func (c *Catalog) Register(tm *TextModel) {
	c.mu.Lock()
	c.text[tm.ID] = tm
	c.mu.Unlock()
}

// FamilyFallback returns the designated in-family fallback for an image
// model. The second return is false when the model belongs to no known
// vendor family, or is already its family's fallback.
func (c *Catalog) FamilyFallback(model string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, fam := range c.families {
		for _, m := range fam.Models {
			if m == model && fam.Fallback != model {
				return fam.Fallback, true
			}
		}
	}
	return "", false
}

// ImageFamilies returns the configured vendor families.
func (c *Catalog) ImageFamilies() []ImageFamily {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ImageFamily, len(c.families))
	copy(out, c.families)
	return out
}

// loadBuiltinDefaults registers the well-known models so the catalog works
// with zero configuration.
func (c *Catalog) loadBuiltinDefaults() {
	defaults := []*TextModel{
		{ID: "gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro",
			ContextWindow: 1048576, MaxOutputTokens: 65536, SupportsThinking: true},
		{ID: "gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash",
			ContextWindow: 1048576, MaxOutputTokens: 65536, SupportsThinking: true},
		{ID: "gemini-2.5-flash-lite", DisplayName: "Gemini 2.5 Flash Lite",
			ContextWindow: 1048576, MaxOutputTokens: 65536},
		{ID: "gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash",
			ContextWindow: 1048576, MaxOutputTokens: 8192},
	}

	c.mu.Lock()
	for _, d := range defaults {
		c.text[d.ID] = d
	}
	c.families = []ImageFamily{
		{
			Name:     "imagen",
			Models:   []string{"imagen-4.0-generate-001", "imagen-4.0-ultra-generate-001", "imagen-3.0-generate-002"},
			Fallback: "imagen-3.0-generate-002",
		},
		{
			Name:     "gemini-image",
			Models:   []string{"gemini-2.5-flash-image", "gemini-2.0-flash-preview-image-generation"},
			Fallback: "gemini-2.0-flash-preview-image-generation",
		},
	}
	c.mu.Unlock()
}
