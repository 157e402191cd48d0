// Package chat implements the conversation turn processor: context
// assembly, model invocation with stream accumulation, the image fallback
// cascade and artifact extraction.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/botarena/botarena/internal/gemini"
	"github.com/botarena/botarena/internal/store"
	"github.com/botarena/botarena/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TurnState is the lifecycle of one turn.
type TurnState string

const (
	TurnPending   TurnState = "pending"
	TurnStreaming TurnState = "streaming"
	TurnCompleted TurnState = "completed"
	TurnCancelled TurnState = "cancelled"
	TurnFailed    TurnState = "failed"
)

// SignalDegradationMessage is the fixed user-facing text appended as a
// system-role turn when text generation fails. Never retried.
const SignalDegradationMessage = "Signal degradation detected. The uplink dropped before the response completed. Please resend your message."

// TextGenerator is the text variant of the model-invocation collaborator.
type TextGenerator interface {
	GenerateStream(ctx context.Context, req gemini.GenerateRequest, onChunk func(gemini.Chunk)) (*gemini.GenerateResult, error)
	Generate(ctx context.Context, req gemini.GenerateRequest) (*gemini.GenerateResult, error)
}

// TurnRequest carries everything needed to process one turn.
type TurnRequest struct {
	Bot     *models.BotConfig
	History []models.Message
	Assets  []models.KnowledgeAsset // knowledge assets referenced by the bot
	Input   string
	Owner   string

	// OnPartial receives the cumulative visible text after every fragment;
	// consumers always see the full-so-far string, never deltas.
	OnPartial func(cumulative string)

	// OnThought receives the cumulative reasoning trace, kept separate from
	// the visible text.
	OnThought func(cumulative string)
}

// TurnResult is the settled outcome of one turn.
type TurnResult struct {
	State   TurnState
	Message models.Message
	Steps   []models.TelemetryStep
}

// Processor drives one conversation turn end to end.
type Processor struct {
	text      TextGenerator
	cascade   *Cascade
	extractor *ArtifactExtractor
	usage     store.UsageStore // optional; nil disables usage accounting
}

// NewProcessor creates a turn processor.
func NewProcessor(text TextGenerator, cascade *Cascade, usage store.UsageStore) *Processor {
	return &Processor{
		text:      text,
		cascade:   cascade,
		extractor: NewArtifactExtractor(),
		usage:     usage,
	}
}

// ProcessTurn runs the pipeline: assemble context, stream the model
// response (image cascade alongside when triggered), extract artifacts.
//
// Failures settle into the result rather than an error: a provider failure
// produces a failed turn carrying the fixed system-role message, and
// cancellation produces a cancelled turn with the partial buffer discarded.
// A terminal image failure is a telemetry record only and never aborts the
// text portion.
func (p *Processor) ProcessTurn(ctx context.Context, req TurnRequest) *TurnResult {
	start := time.Now()
	recorder := NewStepRecorder()
	recorder.Record(models.StepUplink, "Transmission received", fmt.Sprintf("model %s", req.Bot.Model))

	assembler := NewAssembler(recorder)
	system := assembler.SystemPrompt(req.Bot, req.Assets)
	history, _ := assembler.TrimHistory(req.History, req.Bot.ContextBudget)

	// The image cascade runs alongside text streaming. Its terminal failure
	// must not abort the turn.
	var (
		imageWG  sync.WaitGroup
		imageRes *models.ImagePayload
	)
	if req.Bot.Image.Enabled && p.cascade != nil && WantsImage(req.Input) {
		recorder.Record(models.StepImageGen, "Image intent detected", req.Bot.Image.Model)
		imageWG.Add(1)
		go func() {
			defer imageWG.Done()
			img, err := p.cascade.Generate(ctx, gemini.ImageRequest{
				Prompt:      imagePrompt(req.Input, req.Bot.Image),
				Model:       req.Bot.Image.Model,
				AspectRatio: req.Bot.Image.AspectRatio,
			}, recorder)
			if err != nil {
				recorder.Record(models.StepImageGen, "Image generation exhausted", err.Error())
				return
			}
			imageRes = img
		}()
	}

	genReq := gemini.GenerateRequest{
		Model:           req.Bot.Model,
		System:          system,
		History:         history,
		Input:           req.Input,
		Temperature:     req.Bot.Temperature,
		TopP:            req.Bot.TopP,
		MaxOutputTokens: req.Bot.MaxOutputTokens,
		ThinkingBudget:  req.Bot.ThinkingBudget,
		StopSequences:   req.Bot.StopSequences,
	}

	recorder.Record(models.StepReasoning, "Streaming response", "")

	var visible, thoughts strings.Builder
	result, err := p.text.GenerateStream(ctx, genReq, func(c gemini.Chunk) {
		if c.Thought {
			thoughts.WriteString(c.Text)
			if req.OnThought != nil {
				req.OnThought(thoughts.String())
			}
			return
		}
		visible.WriteString(c.Text)
		if req.OnPartial != nil {
			req.OnPartial(visible.String())
		}
	})

	// The image request runs to completion (it has its own bounded cascade)
	// before the turn settles, whatever happened to the text.
	imageWG.Wait()

	if err != nil {
		if ctx.Err() != nil {
			log.Info().Str("bot", req.Bot.ID).Msg("Turn cancelled, partial buffer discarded")
			return &TurnResult{State: TurnCancelled, Steps: recorder.Steps()}
		}
		log.Error().Err(err).Str("bot", req.Bot.ID).Msg("Text generation failed")
		failure := models.Message{
			ID:        uuid.NewString(),
			Role:      models.RoleSystem,
			Content:   SignalDegradationMessage,
			Image:     imageRes,
			Steps:     recorder.Steps(),
			CreatedAt: time.Now().UTC(),
		}
		return &TurnResult{State: TurnFailed, Message: failure, Steps: failure.Steps}
	}

	msg := models.Message{
		ID:         uuid.NewString(),
		Role:       models.RoleAssistant,
		Content:    result.Text,
		Model:      result.Model,
		TokenCount: result.TokenCount,
		Image:      imageRes,
		CreatedAt:  time.Now().UTC(),
	}
	if msg.TokenCount == 0 {
		msg.TokenCount = EstimateTokens(result.Text)
	}
	if req.Bot.Features.ShowThoughts {
		msg.Thoughts = result.Thoughts
	}

	// Dual-response mode: a second, independent variant. Its failure leaves
	// a single-variant message rather than failing the turn.
	if req.Bot.Features.DualResponse {
		alt, altErr := p.text.Generate(ctx, genReq)
		if altErr != nil {
			log.Warn().Err(altErr).Str("bot", req.Bot.ID).Msg("Dual variant generation failed")
		} else {
			msg.DualContent = alt.Text
			recorder.Record(models.StepEntropy, "Dual variants generated",
				fmt.Sprintf("A: %d chars, B: %d chars", len(msg.Content), len(msg.DualContent)))
		}
	}

	if arts := p.extractor.Extract(msg.Content, req.Bot.HasTool(models.ToolArtifactEngine)); len(arts) > 0 {
		msg.Artifacts = arts
		recorder.Record(models.StepToolExec, "Artifacts extracted", fmt.Sprintf("%d blocks", len(arts)))
	}

	recorder.RecordLatency(models.StepSynthesis, "Response synthesized",
		fmt.Sprintf("%d tokens", msg.TokenCount), time.Since(start))
	msg.Steps = recorder.Steps()

	p.recordUsage(ctx, req, &msg)

	return &TurnResult{State: TurnCompleted, Message: msg, Steps: msg.Steps}
}

// imagePrompt applies the bot's image style configuration to the user
// request.
func imagePrompt(input string, cfg models.ImageConfig) string {
	parts := []string{input}
	if cfg.StylePrompt != "" {
		parts = append(parts, cfg.StylePrompt)
	}
	if len(cfg.StyleTags) > 0 {
		parts = append(parts, strings.Join(cfg.StyleTags, ", "))
	}
	return strings.Join(parts, ". ")
}

func (p *Processor) recordUsage(ctx context.Context, req TurnRequest, msg *models.Message) {
	if p.usage == nil {
		return
	}
	images := 0
	if msg.Image != nil {
		images = 1
	}
	event := &models.UsageEvent{
		ID:         uuid.NewString(),
		Owner:      req.Owner,
		BotID:      req.Bot.ID,
		Model:      msg.Model,
		TokenCount: msg.TokenCount,
		ImageCount: images,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.usage.CreateUsageEvent(ctx, event); err != nil {
		log.Warn().Err(err).Msg("Cannot record usage event")
	}
}
