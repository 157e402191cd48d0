package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/botarena/botarena/internal/gemini"
)

func TestEnhance_ReturnsRewrite(t *testing.T) {
	gen := &fakeText{alt: &gemini.GenerateResult{Text: "  You are a precise fox expert.  "}}
	e := NewEnhancer(gen)

	got := e.Enhance(context.Background(), "be a fox guy")
	if got != "You are a precise fox expert." {
		t.Errorf("enhanced = %q", got)
	}
}

func TestEnhance_FailureKeepsOriginal(t *testing.T) {
	gen := &fakeText{altErr: errors.New("quota exceeded")}
	e := NewEnhancer(gen)

	got := e.Enhance(context.Background(), "be a fox guy")
	if got != "be a fox guy" {
		t.Errorf("got %q, want original text back", got)
	}
}

func TestEnhance_EmptyRewriteKeepsOriginal(t *testing.T) {
	gen := &fakeText{alt: &gemini.GenerateResult{Text: "   "}}
	e := NewEnhancer(gen)

	got := e.Enhance(context.Background(), "draft")
	if got != "draft" {
		t.Errorf("got %q, want original text back", got)
	}
}

func TestThemeGenerator_ParsesFencedPayload(t *testing.T) {
	gen := &fakeText{alt: &gemini.GenerateResult{
		Text: "```json\n{\"name\":\"Dusk\",\"primary\":\"#aa3366\",\"secondary\":\"#223344\",\"background\":\"#101018\",\"surface\":\"#181824\",\"accent\":\"#ffcc00\"}\n```",
	}}
	g := NewThemeGenerator(gen)

	theme, err := g.Generate(context.Background(), "moody sunset")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if theme.Name != "Dusk" || theme.Primary != "#aa3366" {
		t.Errorf("theme = %+v", theme)
	}
}

func TestThemeGenerator_MalformedPayload(t *testing.T) {
	gen := &fakeText{alt: &gemini.GenerateResult{Text: "sorry, I cannot do colors"}}
	g := NewThemeGenerator(gen)

	_, err := g.Generate(context.Background(), "moody")
	var malformed *MalformedThemeError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want MalformedThemeError", err)
	}
	if malformed.Payload == "" {
		t.Error("expected the raw payload to be preserved")
	}
}

func TestThemeGenerator_MissingFieldsIsMalformed(t *testing.T) {
	gen := &fakeText{alt: &gemini.GenerateResult{Text: `{"name":"Bare"}`}}
	g := NewThemeGenerator(gen)

	_, err := g.Generate(context.Background(), "minimal")
	var malformed *MalformedThemeError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want MalformedThemeError", err)
	}
}
