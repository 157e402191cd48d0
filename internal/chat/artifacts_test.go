package chat

import (
	"fmt"
	"strings"
	"testing"
)

func fenced(lang, body string) string {
	return fmt.Sprintf("```%s\n%s\n```", lang, body)
}

// jsonBody returns a valid JSON object of at least n characters.
func jsonBody(n int) string {
	return `{"items": "` + strings.Repeat("x", n) + `"}`
}

func TestExtract_QualifyingJSONBlock(t *testing.T) {
	e := NewArtifactExtractor()
	body := jsonBody(200)
	text := "Here is the config:\n" + fenced("json", body) + "\nDone."

	arts := e.Extract(text, true)
	if len(arts) != 1 {
		t.Fatalf("extracted %d artifacts, want 1", len(arts))
	}
	if arts[0].Language != "json" {
		t.Errorf("Language = %q, want %q", arts[0].Language, "json")
	}
	if arts[0].Content != strings.TrimSpace(body) {
		t.Errorf("Content = %q, want trimmed body", arts[0].Content)
	}
	if arts[0].ID == "" || arts[0].Title == "" {
		t.Error("artifact must carry a fresh id and a generated title")
	}
}

func TestExtract_ShortBlockIgnored(t *testing.T) {
	e := NewArtifactExtractor()
	text := fenced("html", strings.Repeat("<p>hi</p>", 5)) // 45 chars, below threshold

	if arts := e.Extract(text, true); len(arts) != 0 {
		t.Errorf("extracted %d artifacts from a short block, want 0", len(arts))
	}
}

func TestExtract_TwoBlocksInSourceOrder(t *testing.T) {
	e := NewArtifactExtractor()
	cssBody := strings.Repeat(".box { color: red; }\n", 10)
	text := "First:\n" + fenced("python", strings.Repeat("print('hello')\n", 12)) +
		"\nSecond:\n" + fenced("css", cssBody)

	arts := e.Extract(text, true)
	if len(arts) != 2 {
		t.Fatalf("extracted %d artifacts, want 2", len(arts))
	}
	if arts[0].Language != "python" || arts[1].Language != "css" {
		t.Errorf("order = [%s %s], want source order [python css]", arts[0].Language, arts[1].Language)
	}
	if arts[0].ID == arts[1].ID {
		t.Error("artifact ids must be distinct")
	}
}

func TestExtract_DisabledReturnsNothing(t *testing.T) {
	e := NewArtifactExtractor()
	text := fenced("json", jsonBody(300))

	if arts := e.Extract(text, false); arts != nil {
		t.Errorf("extraction while disabled returned %d artifacts", len(arts))
	}
}

func TestExtract_UnlistedLanguageIgnored(t *testing.T) {
	e := NewArtifactExtractor()
	text := fenced("rust", strings.Repeat("fn main() {}\n", 20))

	if arts := e.Extract(text, true); len(arts) != 0 {
		t.Errorf("extracted %d artifacts for an unlisted language, want 0", len(arts))
	}
}

func TestExtract_UppercaseTagIsLowercased(t *testing.T) {
	e := NewArtifactExtractor()
	text := fenced("JSON", jsonBody(200))

	arts := e.Extract(text, true)
	if len(arts) != 1 {
		t.Fatalf("extracted %d artifacts, want 1", len(arts))
	}
	if arts[0].Language != "json" {
		t.Errorf("Language = %q, want lowercased %q", arts[0].Language, "json")
	}
}

func TestExtract_TunableThreshold(t *testing.T) {
	e := &ArtifactExtractor{MinLength: 10}
	text := fenced("css", ".a { color: blue; }")

	if arts := e.Extract(text, true); len(arts) != 1 {
		t.Fatalf("lowered threshold should extract the small block")
	}
}
