package chat

import (
	"regexp"
	"strings"

	"github.com/botarena/botarena/pkg/models"
	"github.com/google/uuid"
)

// DefaultMinArtifactLength is the body length below which a fenced block is
// treated as a non-substantive snippet and ignored.
const DefaultMinArtifactLength = 150

// artifactLanguages is the whitelist of fence tags that qualify for
// extraction.
var artifactLanguages = map[string]bool{
	"html":       true,
	"css":        true,
	"javascript": true,
	"js":         true,
	"typescript": true,
	"ts":         true,
	"json":       true,
	"python":     true,
}

// fenceRe matches a tagged fenced code block. Deliberately simple: nested or
// escaped fences inside a block body are not handled.
var fenceRe = regexp.MustCompile("(?s)```([a-zA-Z]+)\n(.*?)```")

var artifactTitles = map[string]string{
	"html":       "HTML Document",
	"css":        "Stylesheet",
	"javascript": "JavaScript Module",
	"js":         "JavaScript Module",
	"typescript": "TypeScript Module",
	"ts":         "TypeScript Module",
	"json":       "JSON Document",
	"python":     "Python Script",
}

// ArtifactExtractor scans finished response text for fenced code blocks and
// materializes the qualifying ones as artifacts.
type ArtifactExtractor struct {
	MinLength int
}

// NewArtifactExtractor creates an extractor with the default length
// threshold.
func NewArtifactExtractor() *ArtifactExtractor {
	return &ArtifactExtractor{MinLength: DefaultMinArtifactLength}
}

// Extract returns the artifacts found in text, in source order. Returns nil
// when the capability is disabled for the bot. Pure function; callers decide
// whether to open a preview.
func (e *ArtifactExtractor) Extract(text string, enabled bool) []models.Artifact {
	if !enabled {
		return nil
	}

	minLen := e.MinLength
	if minLen <= 0 {
		minLen = DefaultMinArtifactLength
	}

	var artifacts []models.Artifact
	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		lang := strings.ToLower(m[1])
		if !artifactLanguages[lang] {
			continue
		}
		body := m[2]
		if len(body) < minLen {
			continue
		}
		artifacts = append(artifacts, models.Artifact{
			ID:       uuid.NewString(),
			Title:    artifactTitles[lang],
			Language: lang,
			Content:  strings.TrimSpace(body),
		})
	}
	return artifacts
}
