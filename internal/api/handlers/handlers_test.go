package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/botarena/botarena/internal/api"
	"github.com/botarena/botarena/internal/api/handlers"
	"github.com/botarena/botarena/internal/catalog"
	"github.com/botarena/botarena/internal/chat"
	"github.com/botarena/botarena/internal/config"
	"github.com/botarena/botarena/internal/gemini"
	"github.com/botarena/botarena/internal/sessions"
	"github.com/botarena/botarena/internal/store"
	"github.com/botarena/botarena/pkg/models"
)

// stubText replays a scripted stream for Chat and a scripted one-shot
// result for Enhance/Theme.
type stubText struct {
	chunks  []gemini.Chunk
	result  *gemini.GenerateResult
	err     error
	oneShot *gemini.GenerateResult
	oneErr  error
}

func (s *stubText) GenerateStream(_ context.Context, _ gemini.GenerateRequest, onChunk func(gemini.Chunk)) (*gemini.GenerateResult, error) {
	for _, c := range s.chunks {
		onChunk(c)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubText) Generate(context.Context, gemini.GenerateRequest) (*gemini.GenerateResult, error) {
	return s.oneShot, s.oneErr
}

type stubImage struct{ err error }

func (s *stubImage) GenerateImage(_ context.Context, req gemini.ImageRequest) (*models.ImagePayload, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.ImagePayload{MIMEType: "image/png", Data: "aW1n", Model: req.Model}, nil
}

func newTestServer(t *testing.T, text *stubText) *httptest.Server {
	t.Helper()
	st := store.NewMemoryStore(t.TempDir())
	t.Cleanup(func() { st.Close() })

	h := handlers.New(st, catalog.New(), sessions.NewMemorySessionStore(), text, &stubImage{})
	srv := httptest.NewServer(api.NewRouter(&config.Config{Version: "test"}, h))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode: %v", err)
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func createBot(t *testing.T, srv *httptest.Server, bot models.BotConfig) models.BotConfig {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/v1/bots", bot)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create bot: status %d", resp.StatusCode)
	}
	var created models.BotConfig
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode bot: %v", err)
	}
	return created
}

func TestBotLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, &stubText{})

	created := createBot(t, srv, models.BotConfig{Name: "Fox Expert"})
	if created.ID == "" {
		t.Fatal("expected a generated bot id")
	}
	if created.Model != catalog.DefaultTextModel {
		t.Errorf("default model = %q", created.Model)
	}
	if created.ContextBudget <= 0 {
		t.Error("expected a context budget default")
	}

	resp, err := http.Get(srv.URL + "/api/v1/bots/" + created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/v1/bots/no-such-bot")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing bot status = %d, want 404", resp.StatusCode)
	}
}

// sseFrames parses an event-stream body into event-name/payload pairs.
func sseFrames(t *testing.T, body *bufio.Scanner) [][2]string {
	t.Helper()
	var frames [][2]string
	var event string
	for body.Scan() {
		line := body.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			frames = append(frames, [2]string{event, strings.TrimPrefix(line, "data: ")})
		}
	}
	return frames
}

func TestChatStreamsCumulativeDeltas(t *testing.T) {
	text := &stubText{
		chunks: []gemini.Chunk{{Text: "Foxes "}, {Text: "are canids."}},
		result: &gemini.GenerateResult{Text: "Foxes are canids.", Model: "gemini-2.5-flash", TokenCount: 5},
	}
	srv := newTestServer(t, text)
	bot := createBot(t, srv, models.BotConfig{Name: "Fox Expert"})

	resp := postJSON(t, srv.URL+"/api/v1/bots/"+bot.ID+"/chat", handlers.ChatRequest{Input: "tell me about foxes"})
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	if resp.Header.Get("X-Session-Id") == "" {
		t.Error("expected a session id header")
	}

	frames := sseFrames(t, bufio.NewScanner(resp.Body))
	var deltas []string
	var turn string
	for _, f := range frames {
		switch f[0] {
		case "delta":
			var payload struct {
				Text string `json:"text"`
			}
			json.Unmarshal([]byte(f[1]), &payload)
			deltas = append(deltas, payload.Text)
		case "turn":
			turn = f[1]
		}
	}

	want := []string{"Foxes ", "Foxes are canids."}
	if len(deltas) != len(want) {
		t.Fatalf("deltas = %v, want %v", deltas, want)
	}
	for i := range want {
		if deltas[i] != want[i] {
			t.Errorf("delta[%d] = %q, want %q", i, deltas[i], want[i])
		}
	}

	var settled struct {
		State   string         `json:"state"`
		Message models.Message `json:"message"`
	}
	if err := json.Unmarshal([]byte(turn), &settled); err != nil {
		t.Fatalf("decode turn frame: %v", err)
	}
	if settled.State != string(chat.TurnCompleted) {
		t.Errorf("state = %q", settled.State)
	}
	if settled.Message.Content != "Foxes are canids." {
		t.Errorf("content = %q", settled.Message.Content)
	}
}

func TestChatFailureEmitsSignalDegradationTurn(t *testing.T) {
	srv := newTestServer(t, &stubText{err: errors.New("upstream 500")})
	bot := createBot(t, srv, models.BotConfig{Name: "Fox Expert"})

	resp := postJSON(t, srv.URL+"/api/v1/bots/"+bot.ID+"/chat", handlers.ChatRequest{Input: "hi"})
	defer resp.Body.Close()

	frames := sseFrames(t, bufio.NewScanner(resp.Body))
	if len(frames) == 0 {
		t.Fatal("expected a turn frame")
	}
	last := frames[len(frames)-1]
	if last[0] != "turn" {
		t.Fatalf("last frame = %q", last[0])
	}
	var settled struct {
		State   string         `json:"state"`
		Message models.Message `json:"message"`
	}
	json.Unmarshal([]byte(last[1]), &settled)
	if settled.State != string(chat.TurnFailed) {
		t.Errorf("state = %q, want failed", settled.State)
	}
	if settled.Message.Role != models.RoleSystem {
		t.Errorf("role = %q, want system", settled.Message.Role)
	}
	if settled.Message.Content != chat.SignalDegradationMessage {
		t.Errorf("content = %q", settled.Message.Content)
	}
}

func TestVariantSelectionEndpoint(t *testing.T) {
	text := &stubText{
		chunks:  []gemini.Chunk{{Text: "Variant A."}},
		result:  &gemini.GenerateResult{Text: "Variant A.", Model: "m"},
		oneShot: &gemini.GenerateResult{Text: "Variant B.", Model: "m"},
	}
	srv := newTestServer(t, text)
	bot := createBot(t, srv, models.BotConfig{
		Name:     "Dual Bot",
		Features: models.FeatureToggles{DualResponse: true},
	})

	resp := postJSON(t, srv.URL+"/api/v1/bots/"+bot.ID+"/chat", handlers.ChatRequest{Input: "hi"})
	sessionID := resp.Header.Get("X-Session-Id")
	frames := sseFrames(t, bufio.NewScanner(resp.Body))
	resp.Body.Close()

	var settled struct {
		Message models.Message `json:"message"`
	}
	json.Unmarshal([]byte(frames[len(frames)-1][1]), &settled)
	if settled.Message.DualContent == "" {
		t.Fatal("expected a dual-content message")
	}

	url := srv.URL + "/api/v1/sessions/" + sessionID + "/messages/" + settled.Message.ID + "/variant"
	resp = postJSON(t, url, map[string]string{"variant": "B"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select status = %d", resp.StatusCode)
	}
	var msg models.Message
	json.NewDecoder(resp.Body).Decode(&msg)
	if msg.SelectedVariant != models.VariantB {
		t.Errorf("selected = %q", msg.SelectedVariant)
	}

	resp = postJSON(t, url, map[string]string{"variant": "C"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid tag status = %d, want 400", resp.StatusCode)
	}
}

func TestEnhanceFallsBackToOriginal(t *testing.T) {
	srv := newTestServer(t, &stubText{oneErr: errors.New("quota")})

	resp := postJSON(t, srv.URL+"/api/v1/enhance", map[string]string{"text": "be a fox guy"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out map[string]string
	json.NewDecoder(resp.Body).Decode(&out)
	if out["text"] != "be a fox guy" {
		t.Errorf("text = %q, want original back", out["text"])
	}
}

func TestThemeEndpointSurfacesMalformedPayload(t *testing.T) {
	srv := newTestServer(t, &stubText{oneShot: &gemini.GenerateResult{Text: "no json here"}})

	resp := postJSON(t, srv.URL+"/api/v1/themes", map[string]string{"mood": "dusk"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}
