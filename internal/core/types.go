package core

import (
	"strings"
	"time"
)

// Role identifies the author of a chat message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// PartType identifies the kind of a message content part.
const (
	PartText  = "text"
	PartImage = "image"
)

// ContentPart is a single element of a multimodal message: either plain
// text or a reference to an image (URL or data URI).
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Message represents a single message in the chat.
// Plain-text messages set Content; multimodal messages set Parts instead.
type Message struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`
}

// Multimodal reports whether the message carries structured content parts.
func (m Message) Multimodal() bool {
	return len(m.Parts) > 0
}

// HasImages reports whether any content part references an image.
func (m Message) HasImages() bool {
	for _, p := range m.Parts {
		if p.Type == PartImage {
			return true
		}
	}
	return false
}

// Text flattens the message to plain text. Image parts are dropped; text
// parts are joined in order. Used when sending to non-vision models.
func (m Message) Text() string {
	if !m.Multimodal() {
		return m.Content
	}
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type != PartText {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// Flatten returns a copy of the message with Parts collapsed into Content.
func (m Message) Flatten() Message {
	return Message{Role: m.Role, Content: m.Text()}
}

// ResponseFormat hints to the provider how output should be shaped.
const (
	FormatText = "text"
	FormatJSON = "json_object"
)

// ChatOptions holds per-request generation parameters. All fields are
// optional; zero values mean "provider default".
type ChatOptions struct {
	Temperature    *float64      `json:"temperature,omitempty"`
	MaxTokens      *int          `json:"max_tokens,omitempty"`
	TopP           *float64      `json:"top_p,omitempty"`
	Stop           []string      `json:"stop,omitempty"`
	ResponseFormat string        `json:"response_format,omitempty"`
	Timeout        time.Duration `json:"-"`
	// Model overrides the task chain's model selection when set.
	Model string `json:"-"`
}

// TemperatureOrDefault returns the configured temperature or def when unset.
func (o *ChatOptions) TemperatureOrDefault(def float64) float64 {
	if o == nil || o.Temperature == nil {
		return def
	}
	return *o.Temperature
}

// FinishReason values normalized across providers.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
)

// TokenUsage holds normalized token counts and the computed cost for one call.
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

// ChatResponse is the normalized chat completion response.
type ChatResponse struct {
	Content      string     `json:"content"`
	Model        string     `json:"model"`
	Provider     string     `json:"provider"`
	FinishReason string     `json:"finish_reason"`
	Usage        TokenUsage `json:"usage"`
	Cached       bool       `json:"cached"`
}

// TaskType selects a provider/model fallback chain and the cost/rate-limit
// attribution bucket for a request.
type TaskType string

const (
	TaskAssistantChat   TaskType = "assistant-chat"
	TaskReceiptOCR      TaskType = "receipt-ocr"
	TaskProductMatching TaskType = "product-matching"
	TaskListParsing     TaskType = "list-parsing"
)

// Valid reports whether the task type is one of the known labels.
func (t TaskType) Valid() bool {
	switch t {
	case TaskAssistantChat, TaskReceiptOCR, TaskProductMatching, TaskListParsing:
		return true
	}
	return false
}
