package orchestrator

import "cartai/internal/core"

// Candidate is one (provider, model) pair in a task's fallback chain.
type Candidate struct {
	Provider string
	Model    string
}

// Chain is the ordered candidate list for a task type, plus per-task
// request defaults.
type Chain struct {
	Candidates []Candidate
	// Temperature applies when the caller does not set one
	Temperature float64
	// CaptureTraining stores (input, output) pairs on success for later
	// model evaluation
	CaptureTraining bool
}

// Primary returns the chain's first candidate.
func (c Chain) Primary() Candidate {
	if len(c.Candidates) == 0 {
		return Candidate{}
	}
	return c.Candidates[0]
}

// DefaultChains maps each task type to its fallback chain. DeepSeek leads
// the text-only chains on price; vision tasks lead with Gemini.
func DefaultChains() map[core.TaskType]Chain {
	return map[core.TaskType]Chain{
		core.TaskAssistantChat: {
			Candidates: []Candidate{
				{Provider: "deepseek", Model: "deepseek-chat"},
				{Provider: "openai", Model: "gpt-4o-mini"},
				{Provider: "gemini", Model: "gemini-2.0-flash"},
			},
			Temperature: 0.7,
		},
		core.TaskReceiptOCR: {
			Candidates: []Candidate{
				{Provider: "gemini", Model: "gemini-2.0-flash"},
				{Provider: "openai", Model: "gpt-4o"},
			},
			Temperature:     0.1,
			CaptureTraining: true,
		},
		core.TaskProductMatching: {
			Candidates: []Candidate{
				{Provider: "deepseek", Model: "deepseek-chat"},
				{Provider: "gemini", Model: "gemini-2.0-flash-lite"},
			},
			Temperature:     0.1,
			CaptureTraining: true,
		},
		core.TaskListParsing: {
			Candidates: []Candidate{
				{Provider: "deepseek", Model: "deepseek-chat"},
				{Provider: "openai", Model: "gpt-4.1-mini"},
			},
			Temperature: 0.2,
		},
	}
}
