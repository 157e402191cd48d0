// Package gemini implements the model-invocation collaborator: a thin HTTP
// client for the Gemini generateContent API with SSE streaming, plus the
// image-generation variant returning inline base64 payloads.
//
// Text generation is never retried here. A provider or network error is
// returned to the caller, which surfaces it as a single failure turn.
package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/botarena/botarena/internal/config"
	"github.com/botarena/botarena/pkg/models"
	"github.com/rs/zerolog/log"
)

// Client talks to the Gemini REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Gemini client from configuration.
func NewClient(cfg config.GeminiConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GenerateRequest describes one text generation call.
type GenerateRequest struct {
	Model           string
	System          string
	History         []models.Message // role-tagged prior turns, oldest first
	Input           string           // the new user input
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
	ThinkingBudget  int
	StopSequences   []string
}

// Chunk is one streamed fragment. Thought fragments carry the model's
// reasoning trace and must never be mixed into the visible answer.
type Chunk struct {
	Text    string
	Thought bool
}

// GenerateResult is the settled outcome of a generation call.
type GenerateResult struct {
	Text       string
	Thoughts   string
	Model      string // resolved model identifier reported by the provider
	TokenCount int
}

// ImageRequest describes one image generation call.
type ImageRequest struct {
	Prompt      string
	Model       string
	AspectRatio string
}

func (c *Client) buildRequest(req GenerateRequest) wireRequest {
	contents := make([]wireContent, 0, len(req.History)+1)
	for _, m := range req.History {
		role := "user"
		switch m.Role {
		case models.RoleAssistant:
			role = "model"
		case models.RoleSystem:
			// System-role turns (failure notices) are display-only.
			continue
		}
		contents = append(contents, wireContent{Role: role, Parts: []wirePart{{Text: m.Content}}})
	}
	contents = append(contents, wireContent{Role: "user", Parts: []wirePart{{Text: req.Input}}})

	wr := wireRequest{
		Contents: contents,
		GenerationConfig: wireGenerationConfig{
			Temperature:     &req.Temperature,
			TopP:            &req.TopP,
			MaxOutputTokens: req.MaxOutputTokens,
			StopSequences:   req.StopSequences,
		},
	}
	if req.System != "" {
		wr.SystemInstruction = &wireContent{Parts: []wirePart{{Text: req.System}}}
	}
	if req.ThinkingBudget > 0 {
		wr.GenerationConfig.ThinkingConfig = &wireThinkingConfig{
			ThinkingBudget:  req.ThinkingBudget,
			IncludeThoughts: true,
		}
	}
	return wr
}

// GenerateStream issues a streaming generation request. Every fragment is
// passed to onChunk as it arrives; the returned result holds the fully
// accumulated text and thought trace. The call is complete only when the
// provider signals end-of-stream; cancellation via ctx returns ctx.Err()
// and no partial result.
func (c *Client) GenerateStream(ctx context.Context, req GenerateRequest, onChunk func(Chunk)) (*GenerateResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini: API key not configured")
	}

	start := time.Now()
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, req.Model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var text, thoughts strings.Builder
	result := &GenerateResult{Model: req.Model}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk wireResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // tolerate malformed keepalive frames
		}
		if chunk.Error != nil {
			return nil, fmt.Errorf("gemini: API error: %s", chunk.Error.Message)
		}
		if chunk.ModelVersion != "" {
			result.Model = chunk.ModelVersion
		}
		if chunk.UsageMetadata.TotalTokenCount > 0 {
			result.TokenCount = chunk.UsageMetadata.TotalTokenCount
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		for _, part := range chunk.Candidates[0].Content.Parts {
			if part.Text == "" {
				continue
			}
			if part.Thought {
				thoughts.WriteString(part.Text)
			} else {
				text.WriteString(part.Text)
			}
			if onChunk != nil {
				onChunk(Chunk{Text: part.Text, Thought: part.Thought})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("gemini: stream error: %w", err)
	}

	result.Text = strings.TrimSpace(text.String())
	result.Thoughts = strings.TrimSpace(thoughts.String())

	log.Debug().
		Str("model", result.Model).
		Int("tokens", result.TokenCount).
		Dur("elapsed", time.Since(start)).
		Msg("Gemini stream completed")
	return result, nil
}

// Generate issues a non-streaming generation request. Used by the helpers
// (enhance, theme) that need one settled string.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini: API key not configured")
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, req.Model, c.apiKey)
	wres, err := c.post(ctx, url, body)
	if err != nil {
		return nil, err
	}

	if len(wres.Candidates) == 0 || len(wres.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini: no completion returned")
	}

	var text, thoughts strings.Builder
	for _, part := range wres.Candidates[0].Content.Parts {
		if part.Thought {
			thoughts.WriteString(part.Text)
		} else {
			text.WriteString(part.Text)
		}
	}

	model := req.Model
	if wres.ModelVersion != "" {
		model = wres.ModelVersion
	}
	return &GenerateResult{
		Text:       strings.TrimSpace(text.String()),
		Thoughts:   strings.TrimSpace(thoughts.String()),
		Model:      model,
		TokenCount: wres.UsageMetadata.TotalTokenCount,
	}, nil
}

// GenerateImage requests one image and returns the inline payload. Imagen
// family models use the :predict surface; Gemini image models go through
// generateContent with an IMAGE response modality.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*models.ImagePayload, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini: API key not configured")
	}
	if strings.HasPrefix(req.Model, "imagen-") {
		return c.predictImage(ctx, req)
	}

	wr := wireRequest{
		Contents: []wireContent{{Role: "user", Parts: []wirePart{{Text: req.Prompt}}}},
		GenerationConfig: wireGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	if req.AspectRatio != "" {
		wr.GenerationConfig.ImageConfig = &wireImageConfig{AspectRatio: req.AspectRatio}
	}
	body, err := json.Marshal(wr)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, req.Model, c.apiKey)
	wres, err := c.post(ctx, url, body)
	if err != nil {
		return nil, err
	}

	for _, cand := range wres.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return &models.ImagePayload{
					MIMEType: part.InlineData.MIMEType,
					Data:     part.InlineData.Data,
					Model:    req.Model,
				}, nil
			}
		}
	}
	return nil, fmt.Errorf("gemini: no image returned by %s", req.Model)
}

func (c *Client) predictImage(ctx context.Context, req ImageRequest) (*models.ImagePayload, error) {
	body, err := json.Marshal(wirePredictRequest{
		Instances:  []wirePredictInstance{{Prompt: req.Prompt}},
		Parameters: wirePredictParams{SampleCount: 1, AspectRatio: req.AspectRatio},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:predict?key=%s", c.baseURL, req.Model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var pres wirePredictResponse
	if err := json.Unmarshal(raw, &pres); err != nil {
		return nil, fmt.Errorf("gemini: parse response: %w", err)
	}
	if pres.Error != nil {
		return nil, fmt.Errorf("gemini: API error: %s", pres.Error.Message)
	}
	if len(pres.Predictions) == 0 || pres.Predictions[0].BytesBase64Encoded == "" {
		return nil, fmt.Errorf("gemini: no image returned by %s", req.Model)
	}

	mime := pres.Predictions[0].MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return &models.ImagePayload{
		MIMEType: mime,
		Data:     pres.Predictions[0].BytesBase64Encoded,
		Model:    req.Model,
	}, nil
}

func (c *Client) post(ctx context.Context, url string, body []byte) (*wireResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var wres wireResponse
	if err := json.Unmarshal(raw, &wres); err != nil {
		return nil, fmt.Errorf("gemini: parse response: %w", err)
	}
	if wres.Error != nil {
		return nil, fmt.Errorf("gemini: API error: %s", wres.Error.Message)
	}
	return &wres, nil
}
