package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/botarena/botarena/internal/catalog"
	"github.com/botarena/botarena/internal/gemini"
	"github.com/botarena/botarena/pkg/models"
)

// fakeText replays scripted chunks and returns the scripted result. The
// alt fields drive the second, non-streamed variant.
type fakeText struct {
	chunks []gemini.Chunk
	result *gemini.GenerateResult
	err    error

	alt      *gemini.GenerateResult
	altErr   error
	altCalls int
}

func (f *fakeText) GenerateStream(ctx context.Context, _ gemini.GenerateRequest, onChunk func(gemini.Chunk)) (*gemini.GenerateResult, error) {
	for _, c := range f.chunks {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		onChunk(c)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeText) Generate(context.Context, gemini.GenerateRequest) (*gemini.GenerateResult, error) {
	f.altCalls++
	return f.alt, f.altErr
}

type usageLog struct {
	events []models.UsageEvent
}

func (u *usageLog) ListUsageEvents(context.Context, string, int) ([]models.UsageEvent, error) {
	return u.events, nil
}

func (u *usageLog) CreateUsageEvent(_ context.Context, event *models.UsageEvent) error {
	u.events = append(u.events, *event)
	return nil
}

func testBot() *models.BotConfig {
	return &models.BotConfig{
		ID:            "bot-1",
		Name:          "Fox Painter",
		Model:         "gemini-2.5-flash",
		ContextBudget: 4096,
	}
}

func TestProcessTurn_CumulativePartials(t *testing.T) {
	gen := &fakeText{
		chunks: []gemini.Chunk{{Text: "The quick "}, {Text: "brown fox."}},
		result: &gemini.GenerateResult{Text: "The quick brown fox.", Model: "gemini-2.5-flash"},
	}
	p := NewProcessor(gen, nil, nil)

	var partials []string
	res := p.ProcessTurn(context.Background(), TurnRequest{
		Bot:       testBot(),
		Input:     "tell me about foxes",
		OnPartial: func(s string) { partials = append(partials, s) },
	})

	if res.State != TurnCompleted {
		t.Fatalf("state = %s, want completed", res.State)
	}
	want := []string{"The quick ", "The quick brown fox."}
	if len(partials) != len(want) {
		t.Fatalf("partials = %v, want %v", partials, want)
	}
	for i := range want {
		if partials[i] != want[i] {
			t.Errorf("partial[%d] = %q, want %q", i, partials[i], want[i])
		}
	}
	if res.Message.Content != "The quick brown fox." {
		t.Errorf("content = %q", res.Message.Content)
	}
	if res.Message.Role != models.RoleAssistant {
		t.Errorf("role = %s, want assistant", res.Message.Role)
	}
}

func TestProcessTurn_ThoughtsKeptOutOfVisibleText(t *testing.T) {
	gen := &fakeText{
		chunks: []gemini.Chunk{
			{Text: "Considering fox biology.", Thought: true},
			{Text: "Foxes are canids."},
		},
		result: &gemini.GenerateResult{
			Text:     "Foxes are canids.",
			Thoughts: "Considering fox biology.",
			Model:    "gemini-2.5-flash",
		},
	}
	p := NewProcessor(gen, nil, nil)

	bot := testBot()
	bot.Features.ShowThoughts = true

	var partials, thoughts []string
	res := p.ProcessTurn(context.Background(), TurnRequest{
		Bot:       bot,
		Input:     "are foxes canids?",
		OnPartial: func(s string) { partials = append(partials, s) },
		OnThought: func(s string) { thoughts = append(thoughts, s) },
	})

	for _, p := range partials {
		if strings.Contains(p, "Considering") {
			t.Errorf("thought leaked into visible stream: %q", p)
		}
	}
	if len(thoughts) != 1 || thoughts[0] != "Considering fox biology." {
		t.Errorf("thoughts = %v", thoughts)
	}
	if res.Message.Thoughts != "Considering fox biology." {
		t.Errorf("message thoughts = %q", res.Message.Thoughts)
	}
}

func TestProcessTurn_ThoughtsHiddenWhenToggleOff(t *testing.T) {
	gen := &fakeText{
		result: &gemini.GenerateResult{Text: "ok", Thoughts: "secret", Model: "m"},
	}
	p := NewProcessor(gen, nil, nil)

	res := p.ProcessTurn(context.Background(), TurnRequest{Bot: testBot(), Input: "hi"})
	if res.Message.Thoughts != "" {
		t.Errorf("thoughts surfaced despite toggle off: %q", res.Message.Thoughts)
	}
}

func TestProcessTurn_ImageDeliveredAlongsideText(t *testing.T) {
	gen := &fakeText{
		result: &gemini.GenerateResult{Text: "Here is your fox.", Model: "gemini-2.5-flash"},
	}
	imgGen := &scriptedImageGen{failing: map[string]bool{}}
	p := NewProcessor(gen, NewCascade(imgGen, catalog.New()), nil)

	bot := testBot()
	bot.Image = models.ImageConfig{Enabled: true, Model: "imagen-4.0-generate-001"}

	res := p.ProcessTurn(context.Background(), TurnRequest{
		Bot:   bot,
		Input: "generate an image of a red fox",
	})

	if res.State != TurnCompleted {
		t.Fatalf("state = %s, want completed", res.State)
	}
	if res.Message.Image == nil {
		t.Fatal("expected an image on the settled turn")
	}
	if res.Message.Image.Model != "imagen-4.0-generate-001" {
		t.Errorf("image model = %q", res.Message.Image.Model)
	}
}

func TestProcessTurn_ImageSurvivesTextFailure(t *testing.T) {
	gen := &fakeText{err: errors.New("upstream 500")}
	imgGen := &scriptedImageGen{failing: map[string]bool{}}
	p := NewProcessor(gen, NewCascade(imgGen, catalog.New()), nil)

	bot := testBot()
	bot.Image = models.ImageConfig{Enabled: true, Model: "imagen-4.0-generate-001"}

	res := p.ProcessTurn(context.Background(), TurnRequest{
		Bot:   bot,
		Input: "draw a picture of a red fox",
	})

	if res.State != TurnFailed {
		t.Fatalf("state = %s, want failed", res.State)
	}
	if res.Message.Role != models.RoleSystem {
		t.Errorf("failure turn role = %s, want system", res.Message.Role)
	}
	if res.Message.Content != SignalDegradationMessage {
		t.Errorf("failure turn content = %q", res.Message.Content)
	}
	if res.Message.Image == nil {
		t.Error("image result dropped because text failed")
	}
}

func TestProcessTurn_ImageFailureNeverAbortsText(t *testing.T) {
	gen := &fakeText{
		result: &gemini.GenerateResult{Text: "Description of a fox.", Model: "gemini-2.5-flash"},
	}
	imgGen := &scriptedImageGen{failing: map[string]bool{
		"gemini-2.5-flash-image":                    true,
		"gemini-2.0-flash-preview-image-generation": true,
		catalog.UniversalImageFallback:              true,
	}}
	p := NewProcessor(gen, NewCascade(imgGen, catalog.New()), nil)

	bot := testBot()
	bot.Image = models.ImageConfig{Enabled: true, Model: "gemini-2.5-flash-image"}

	res := p.ProcessTurn(context.Background(), TurnRequest{
		Bot:   bot,
		Input: "create an image of a red fox",
	})

	if res.State != TurnCompleted {
		t.Fatalf("state = %s, want completed despite image exhaustion", res.State)
	}
	if res.Message.Image != nil {
		t.Error("expected no image after cascade exhaustion")
	}
	exhausted := false
	for _, s := range res.Steps {
		if s.Category == models.StepImageGen && strings.Contains(s.Label, "exhausted") {
			exhausted = true
		}
	}
	if !exhausted {
		t.Error("expected a terminal image-gen telemetry record")
	}
}

func TestProcessTurn_CancellationDiscardsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &fakeText{
		chunks: []gemini.Chunk{{Text: "never delivered"}},
		err:    context.Canceled,
	}
	p := NewProcessor(gen, nil, nil)

	res := p.ProcessTurn(ctx, TurnRequest{Bot: testBot(), Input: "hi"})
	if res.State != TurnCancelled {
		t.Fatalf("state = %s, want cancelled", res.State)
	}
	if res.Message.Content != "" {
		t.Errorf("cancelled turn kept a message: %q", res.Message.Content)
	}
}

func TestProcessTurn_DualResponseVariants(t *testing.T) {
	gen := &fakeText{
		result: &gemini.GenerateResult{Text: "Variant A answer.", Model: "gemini-2.5-flash"},
		alt:    &gemini.GenerateResult{Text: "Variant B answer.", Model: "gemini-2.5-flash"},
	}
	p := NewProcessor(gen, nil, nil)

	bot := testBot()
	bot.Features.DualResponse = true

	res := p.ProcessTurn(context.Background(), TurnRequest{Bot: bot, Input: "hi"})
	if gen.altCalls != 1 {
		t.Fatalf("alt generations = %d, want 1", gen.altCalls)
	}
	msg := res.Message
	if !msg.HasDual() {
		t.Fatal("expected a dual-content message")
	}
	if msg.DualContent != "Variant B answer." {
		t.Errorf("dual content = %q", msg.DualContent)
	}

	// Selecting B keeps A's text intact for later re-selection.
	if err := msg.SelectVariant(models.VariantB); err != nil {
		t.Fatalf("select B: %v", err)
	}
	if msg.SelectedVariant != models.VariantB {
		t.Errorf("selected = %q, want B", msg.SelectedVariant)
	}
	if msg.Content != "Variant A answer." || msg.DualContent != "Variant B answer." {
		t.Errorf("selection mutated variant text: %q / %q", msg.Content, msg.DualContent)
	}
}

func TestProcessTurn_DualVariantFailureLeavesSingle(t *testing.T) {
	gen := &fakeText{
		result: &gemini.GenerateResult{Text: "only answer", Model: "m"},
		altErr: errors.New("quota"),
	}
	p := NewProcessor(gen, nil, nil)

	bot := testBot()
	bot.Features.DualResponse = true

	res := p.ProcessTurn(context.Background(), TurnRequest{Bot: bot, Input: "hi"})
	if res.State != TurnCompleted {
		t.Fatalf("state = %s", res.State)
	}
	if res.Message.HasDual() {
		t.Error("failed alt generation still produced dual content")
	}
}

func TestProcessTurn_ArtifactsRequireTool(t *testing.T) {
	body := "```html\n" + strings.Repeat("<p>fox</p>\n", 20) + "```"
	gen := &fakeText{
		result: &gemini.GenerateResult{Text: "Here: " + body, Model: "m"},
	}

	bot := testBot()
	p := NewProcessor(gen, nil, nil)
	res := p.ProcessTurn(context.Background(), TurnRequest{Bot: bot, Input: "page please"})
	if len(res.Message.Artifacts) != 0 {
		t.Fatalf("artifacts extracted without the tool enabled")
	}

	bot.Tools = []string{models.ToolArtifactEngine}
	res = p.ProcessTurn(context.Background(), TurnRequest{Bot: bot, Input: "page please"})
	if len(res.Message.Artifacts) != 1 {
		t.Fatalf("artifacts = %d, want 1", len(res.Message.Artifacts))
	}
	if res.Message.Artifacts[0].Language != "html" {
		t.Errorf("language = %q", res.Message.Artifacts[0].Language)
	}
}

func TestProcessTurn_RecordsUsage(t *testing.T) {
	gen := &fakeText{
		result: &gemini.GenerateResult{Text: "hello", Model: "gemini-2.5-flash", TokenCount: 42},
	}
	usage := &usageLog{}
	p := NewProcessor(gen, nil, usage)

	p.ProcessTurn(context.Background(), TurnRequest{Bot: testBot(), Input: "hi", Owner: "alice"})

	if len(usage.events) != 1 {
		t.Fatalf("usage events = %d, want 1", len(usage.events))
	}
	ev := usage.events[0]
	if ev.Owner != "alice" || ev.BotID != "bot-1" || ev.TokenCount != 42 {
		t.Errorf("event = %+v", ev)
	}
}
