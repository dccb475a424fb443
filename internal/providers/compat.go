package providers

import (
	"cartai/internal/core"
)

// The DeepSeek, OpenAI, and Gemini chat endpoints all speak the OpenAI
// chat-completions wire format, so the adapters share one set of wire
// types and translate to/from core types here.

// CompatRequest is the OpenAI-compatible chat completion request body.
type CompatRequest struct {
	Model          string          `json:"model"`
	Messages       []CompatMessage `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	TopP           *float64        `json:"top_p,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	ResponseFormat *CompatFormat   `json:"response_format,omitempty"`
}

// CompatFormat is the response_format hint ({"type":"json_object"}).
type CompatFormat struct {
	Type string `json:"type"`
}

// CompatMessage carries either a plain string or an ordered list of
// content parts in the Content field, matching the vendor wire format.
type CompatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// compatContentPart is one element of a multimodal content array.
type compatContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *compatImageURL `json:"image_url,omitempty"`
}

type compatImageURL struct {
	URL string `json:"url"`
}

// CompatResponse is the OpenAI-compatible chat completion response body.
type CompatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// BuildCompatRequest translates core messages and options into the shared
// wire format. When vision is false, multimodal messages are silently
// flattened to text so image parts never reach a model that cannot read
// them.
func BuildCompatRequest(model string, messages []core.Message, opts *core.ChatOptions, vision bool) *CompatRequest {
	req := &CompatRequest{
		Model:    model,
		Messages: make([]CompatMessage, 0, len(messages)),
	}
	if opts != nil {
		req.Temperature = opts.Temperature
		req.MaxTokens = opts.MaxTokens
		req.TopP = opts.TopP
		req.Stop = opts.Stop
		if opts.ResponseFormat == core.FormatJSON {
			req.ResponseFormat = &CompatFormat{Type: core.FormatJSON}
		}
	}

	for _, msg := range messages {
		if !msg.Multimodal() || !vision {
			req.Messages = append(req.Messages, CompatMessage{
				Role:    msg.Role,
				Content: msg.Text(),
			})
			continue
		}

		parts := make([]compatContentPart, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			switch p.Type {
			case core.PartImage:
				parts = append(parts, compatContentPart{
					Type:     "image_url",
					ImageURL: &compatImageURL{URL: p.ImageURL},
				})
			default:
				parts = append(parts, compatContentPart{Type: "text", Text: p.Text})
			}
		}
		req.Messages = append(req.Messages, CompatMessage{Role: msg.Role, Content: parts})
	}

	return req
}

// NormalizeCompatResponse maps a wire response back to the normalized
// core.ChatResponse, computing cost from the static pricing table.
func NormalizeCompatResponse(resp *CompatResponse, providerType, requestedModel string, cost func(model string, in, out int) float64) *core.ChatResponse {
	out := &core.ChatResponse{
		Model:        resp.Model,
		Provider:     providerType,
		FinishReason: core.FinishStop,
	}
	if out.Model == "" {
		out.Model = requestedModel
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		if fr := resp.Choices[0].FinishReason; fr != "" {
			out.FinishReason = fr
		}
	}
	out.Usage = core.TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	if out.Usage.TotalTokens == 0 {
		out.Usage.TotalTokens = out.Usage.InputTokens + out.Usage.OutputTokens
	}
	out.Usage.Cost = cost(out.Model, out.Usage.InputTokens, out.Usage.OutputTokens)
	return out
}
