package chat

import (
	"fmt"
	"strings"

	"github.com/botarena/botarena/pkg/models"
)

// tokensPerChar is the deliberately conservative cost heuristic used for the
// context budget walk. It is not a tokenizer.
const tokensPerChar = 0.3

// operatingModeTag is the fixed mode marker appended to every system prompt.
const operatingModeTag = "MODE: arena-chat"

// knowledgePlaceholder stands in for the knowledge block when the bot
// references no assets.
const knowledgePlaceholder = "No knowledge sources attached. Answer from general knowledge."

const artifactNoticeEnabled = "The artifact engine is active: substantial code you produce in fenced blocks " +
	"will be extracted into standalone, previewable artifacts."

const artifactNoticeDisabled = "The artifact engine is inactive for this bot; keep code inline."

// Assembler builds the system prompt and trims history to the context
// budget. Pure over its inputs; the only side effect is one telemetry step
// reporting the pruning outcome.
type Assembler struct {
	recorder *StepRecorder
}

// NewAssembler creates an assembler reporting to the given recorder.
func NewAssembler(recorder *StepRecorder) *Assembler {
	return &Assembler{recorder: recorder}
}

// SystemPrompt concatenates the bot's instruction blocks in fixed order.
// Empty blocks are omitted; present blocks are joined by blank lines.
func (a *Assembler) SystemPrompt(bot *models.BotConfig, assets []models.KnowledgeAsset) string {
	blocks := []string{
		strings.TrimSpace(bot.SystemInstructions),
	}
	if d := strings.TrimSpace(bot.PositiveDirectives); d != "" {
		blocks = append(blocks, "FOCUS ON:\n"+d)
	}
	if d := strings.TrimSpace(bot.NegativeDirectives); d != "" {
		blocks = append(blocks, "AVOID:\n"+d)
	}
	blocks = append(blocks, knowledgeBlock(assets))
	if bot.HasTool(models.ToolArtifactEngine) {
		blocks = append(blocks, artifactNoticeEnabled)
	} else {
		blocks = append(blocks, artifactNoticeDisabled)
	}
	blocks = append(blocks, "Active model: "+bot.Model)
	blocks = append(blocks, operatingModeTag)
	if r := strings.TrimSpace(bot.Reminder); r != "" {
		blocks = append(blocks, "REMINDER:\n"+r)
	}

	var nonEmpty []string
	for _, b := range blocks {
		if b != "" {
			nonEmpty = append(nonEmpty, b)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

// knowledgeBlock renders the referenced assets with a per-asset header, or
// the literal placeholder when none are selected.
func knowledgeBlock(assets []models.KnowledgeAsset) string {
	if len(assets) == 0 {
		return "KNOWLEDGE CONTEXT:\n" + knowledgePlaceholder
	}
	var b strings.Builder
	b.WriteString("KNOWLEDGE CONTEXT:")
	for _, a := range assets {
		fmt.Fprintf(&b, "\n--- %s (%s) ---\n%s", a.Name, a.Source, a.Ref)
	}
	return b.String()
}

// EstimateTokens approximates the token cost of one turn's content.
func EstimateTokens(content string) int {
	return int(float64(len(content)) * tokensPerChar)
}

// TrimHistory walks the history newest to oldest, keeping turns while the
// running estimate stays under budget, and stops at the first turn that
// would exceed it. Older turns are dropped whole, never truncated. The
// returned subsequence preserves chronological order and is always a
// contiguous suffix of the input.
func (a *Assembler) TrimHistory(history []models.Message, budget int) ([]models.Message, int) {
	var kept []models.Message
	total := 0
	for i := len(history) - 1; i >= 0; i-- {
		cost := EstimateTokens(history[i].Content)
		if total+cost > budget {
			break
		}
		total += cost
		kept = append(kept, history[i])
	}

	// Restore chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	if a.recorder != nil {
		a.recorder.Record(models.StepRetrieval,
			"Context window assembled",
			fmt.Sprintf("%d of %d turns retained (~%d tokens, budget %d)", len(kept), len(history), total, budget))
	}
	return kept, total
}
