package gemini

// Wire types for the generativelanguage.googleapis.com REST API.

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text       string          `json:"text,omitempty"`
	Thought    bool            `json:"thought,omitempty"`
	InlineData *wireInlineData `json:"inlineData,omitempty"`
}

type wireInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireThinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget,omitempty"`
	IncludeThoughts bool `json:"includeThoughts,omitempty"`
}

type wireImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type wireGenerationConfig struct {
	Temperature        *float64            `json:"temperature,omitempty"`
	TopP               *float64            `json:"topP,omitempty"`
	MaxOutputTokens    int                 `json:"maxOutputTokens,omitempty"`
	StopSequences      []string            `json:"stopSequences,omitempty"`
	ThinkingConfig     *wireThinkingConfig `json:"thinkingConfig,omitempty"`
	ResponseModalities []string            `json:"responseModalities,omitempty"`
	ImageConfig        *wireImageConfig    `json:"imageConfig,omitempty"`
}

type wireRequest struct {
	Contents          []wireContent        `json:"contents"`
	SystemInstruction *wireContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  wireGenerationConfig `json:"generationConfig"`
}

type wireCandidate struct {
	Content      wireContent `json:"content"`
	FinishReason string      `json:"finishReason,omitempty"`
}

type wireUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	ThoughtsTokenCount   int `json:"thoughtsTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type wireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type wireResponse struct {
	Candidates    []wireCandidate `json:"candidates"`
	UsageMetadata wireUsage       `json:"usageMetadata"`
	ModelVersion  string          `json:"modelVersion,omitempty"`
	Error         *wireError      `json:"error,omitempty"`
}

// Imagen models use the :predict surface instead of :generateContent.

type wirePredictRequest struct {
	Instances  []wirePredictInstance `json:"instances"`
	Parameters wirePredictParams     `json:"parameters"`
}

type wirePredictInstance struct {
	Prompt string `json:"prompt"`
}

type wirePredictParams struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type wirePredictResponse struct {
	Predictions []struct {
		MIMEType           string `json:"mimeType"`
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
	} `json:"predictions"`
	Error *wireError `json:"error,omitempty"`
}
