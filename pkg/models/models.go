// Package models defines the shared data model for the BotArena backend:
// conversation turns, bot configurations, artifacts, telemetry steps and the
// records persisted in the bucket store.
package models

import (
	"fmt"
	"time"
)

// ── Conversation Turn (Message) ──────────────────────────────

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Variant tags for dual-response messages.
const (
	VariantA = "A"
	VariantB = "B"
)

// Message is one conversation turn. A message is immutable once appended,
// except for SelectedVariant which a user may set after the fact.
// Messages live in the session only; they are never written to the bucket
// store.
type Message struct {
	ID          string      `json:"id"`
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	DualContent string      `json:"dual_content,omitempty"` // competing variant B from dual-response mode

	// SelectedVariant is "A" or "B" once the user has picked a winner of a
	// dual response. Empty means no selection yet.
	SelectedVariant string `json:"selected_variant,omitempty"`

	Steps      []TelemetryStep `json:"steps,omitempty"`
	Artifacts  []Artifact      `json:"artifacts,omitempty"`
	Thoughts   string          `json:"thoughts,omitempty"` // reasoning trace, never mixed into Content
	Model      string          `json:"model,omitempty"`    // resolved model id for assistant turns
	TokenCount int             `json:"token_count,omitempty"`
	Image      *ImagePayload   `json:"image,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasDual reports whether this message carries two competing variants.
func (m *Message) HasDual() bool {
	return m.DualContent != ""
}

// SelectVariant records the user's pick on a dual-response message.
// Returns an error if the message has no dual content or the tag is not
// one of "A"/"B".
func (m *Message) SelectVariant(tag string) error {
	if !m.HasDual() {
		return fmt.Errorf("message %s has no dual content", m.ID)
	}
	if tag != VariantA && tag != VariantB {
		return fmt.Errorf("invalid variant %q: must be %q or %q", tag, VariantA, VariantB)
	}
	m.SelectedVariant = tag
	return nil
}

// ImagePayload is an inline image returned by the image backend.
type ImagePayload struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
	Model    string `json:"model"`
}

// ── Artifact ─────────────────────────────────────────────────

// Artifact is a code/document fragment extracted from a turn's output.
// Immutable once extracted; owned by the message that produced it.
type Artifact struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

// ValidateArtifacts checks the per-message artifact invariant: every
// artifact id must be unique within the message's artifact list.
func ValidateArtifacts(arts []Artifact) error {
	seen := make(map[string]bool, len(arts))
	for _, a := range arts {
		if seen[a.ID] {
			return fmt.Errorf("duplicate artifact id %s", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// ── Telemetry Step ───────────────────────────────────────────

type StepCategory string

const (
	StepUplink    StepCategory = "uplink"
	StepRetrieval StepCategory = "retrieval"
	StepReasoning StepCategory = "reasoning"
	StepToolExec  StepCategory = "tool-exec"
	StepSynthesis StepCategory = "synthesis"
	StepImageGen  StepCategory = "image-gen"
	StepEntropy   StepCategory = "entropy-analysis"
)

// TelemetryStep is one structured log entry describing an internal stage of
// turn processing. Shown to the user as diagnostic narration; discarded when
// the turn view closes.
type TelemetryStep struct {
	ID        string       `json:"id"`
	Category  StepCategory `json:"category"`
	Label     string       `json:"label"`
	Detail    string       `json:"detail,omitempty"`
	Timestamp time.Time    `json:"timestamp"`

	// Optional numeric metrics
	LatencyMS  int64   `json:"latency_ms,omitempty"`
	Throughput float64 `json:"throughput,omitempty"`
	Resource   float64 `json:"resource,omitempty"`
}

// ── Bot Configuration ────────────────────────────────────────

// ImageConfig is a bot's image-generation sub-configuration.
type ImageConfig struct {
	Enabled     bool     `json:"enabled"`
	Model       string   `json:"model"`
	StylePrompt string   `json:"style_prompt,omitempty"`
	StyleTags   []string `json:"style_tags,omitempty"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
}

// FeatureToggles are per-bot behavioral switches.
type FeatureToggles struct {
	DualResponse      bool `json:"dual_response"`
	MultiAgentConsult bool `json:"multi_agent_consult"`
	ShowThoughts      bool `json:"show_thoughts"`
}

// BotConfig is a catalog-owned bot preset. Created empty, mutated by the
// builder, persisted as a whole record keyed by id.
type BotConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`

	// Instruction blocks, concatenated in fixed order by the assembler.
	SystemInstructions string `json:"system_instructions"`
	PositiveDirectives string `json:"positive_directives,omitempty"`
	NegativeDirectives string `json:"negative_directives,omitempty"`
	Reminder           string `json:"reminder,omitempty"`

	// Model routing parameters.
	Model           string   `json:"model"`
	Temperature     float64  `json:"temperature"`
	TopP            float64  `json:"top_p"`
	MaxOutputTokens int      `json:"max_output_tokens"`
	ThinkingBudget  int      `json:"thinking_budget"`
	StopSequences   []string `json:"stop_sequences,omitempty"`
	ContextBudget   int      `json:"context_budget"`

	Image ImageConfig `json:"image"`

	Tools         []string       `json:"tools,omitempty"`          // enabled tool identifiers
	KnowledgeRefs []string       `json:"knowledge_refs,omitempty"` // referenced knowledge asset ids
	Features      FeatureToggles `json:"features"`

	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToolArtifactEngine is the tool identifier that enables code artifact
// extraction for a bot.
const ToolArtifactEngine = "artifact-engine"

// HasTool reports whether the given tool identifier is enabled for the bot.
func (b *BotConfig) HasTool(id string) bool {
	for _, t := range b.Tools {
		if t == id {
			return true
		}
	}
	return false
}

// ── Knowledge Asset ──────────────────────────────────────────

type AssetSourceType string

const (
	AssetURL   AssetSourceType = "url"
	AssetPDF   AssetSourceType = "pdf"
	AssetDoc   AssetSourceType = "doc"
	AssetImage AssetSourceType = "image"
)

type IndexingStatus string

const (
	IndexPending IndexingStatus = "pending"
	IndexReady   IndexingStatus = "ready"
	IndexFailed  IndexingStatus = "failed"
)

// KnowledgeAsset is an explicitly uploaded or linked knowledge source.
// Created and deleted by user action only; no background lifecycle.
type KnowledgeAsset struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Source    AssetSourceType `json:"source"`
	Ref       string          `json:"ref"` // raw source reference (url, file name)
	SizeBytes int64           `json:"size_bytes,omitempty"`
	Status    IndexingStatus  `json:"status"`
	Owner     string          `json:"owner"`
	CreatedAt time.Time       `json:"created_at"`
}

// ── Arena ────────────────────────────────────────────────────

// Arena is a saved chat workspace binding a bot preset to a display
// configuration.
type Arena struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BotID     string    `json:"bot_id"`
	Theme     string    `json:"theme,omitempty"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ── Wallet & Entitlements (simulated) ────────────────────────

// WalletLink records a simulated wallet connection. There is no real signing
// flow; the address is fabricated by the wallet service.
type WalletLink struct {
	Owner    string    `json:"owner"`
	Address  string    `json:"address"`
	Network  string    `json:"network"`
	LinkedAt time.Time `json:"linked_at"`
}

// Entitlement is a feature grant for a user.
type Entitlement struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Feature   string    `json:"feature"`
	GrantedAt time.Time `json:"granted_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// ── Usage & Snippets ─────────────────────────────────────────

// UsageEvent is one recorded model invocation for usage accounting.
type UsageEvent struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	BotID      string    `json:"bot_id"`
	Model      string    `json:"model"`
	TokenCount int       `json:"token_count"`
	ImageCount int       `json:"image_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// APISnippet is a saved API-key integration snippet.
type APISnippet struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Label     string    `json:"label"`
	Language  string    `json:"language"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ── User ─────────────────────────────────────────────────────

// User is a local profile record. Authentication is mocked; the user id
// comes from a request header with a local default.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// ── Session ──────────────────────────────────────────────────

// Session is one multi-turn conversation with a bot. Sessions live in
// memory only; history is not written to the bucket store.
type Session struct {
	ID        string    `json:"id"`
	BotID     string    `json:"bot_id"`
	Owner     string    `json:"owner"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ── Theme ────────────────────────────────────────────────────

// ThemeSpec is a generated visual theme for an arena.
type ThemeSpec struct {
	Name       string `json:"name"`
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Background string `json:"background"`
	Surface    string `json:"surface"`
	Accent     string `json:"accent"`
	FontFamily string `json:"font_family,omitempty"`
}
