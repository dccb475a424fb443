package core

import "testing"

func TestMessageText(t *testing.T) {
	t.Run("plain content passes through", func(t *testing.T) {
		m := Message{Role: RoleUser, Content: "hello"}
		if m.Text() != "hello" {
			t.Errorf("got %q", m.Text())
		}
		if m.Multimodal() {
			t.Error("plain message reported multimodal")
		}
	})

	t.Run("image parts are dropped", func(t *testing.T) {
		m := Message{Role: RoleUser, Parts: []ContentPart{
			{Type: PartText, Text: "what is on"},
			{Type: PartImage, ImageURL: "https://example.com/receipt.jpg"},
			{Type: PartText, Text: "this receipt?"},
		}}
		if got := m.Text(); got != "what is on\nthis receipt?" {
			t.Errorf("got %q", got)
		}
		if !m.HasImages() {
			t.Error("HasImages must see the image part")
		}
	})

	t.Run("flatten collapses parts", func(t *testing.T) {
		m := Message{Role: RoleUser, Parts: []ContentPart{
			{Type: PartText, Text: "just text"},
		}}
		flat := m.Flatten()
		if flat.Multimodal() {
			t.Error("flattened message still multimodal")
		}
		if flat.Content != "just text" || flat.Role != RoleUser {
			t.Errorf("got %+v", flat)
		}
	})
}

func TestChatOptionsTemperatureOrDefault(t *testing.T) {
	var opts *ChatOptions
	if got := opts.TemperatureOrDefault(0.7); got != 0.7 {
		t.Errorf("nil options must return default, got %v", got)
	}
	temp := 0.2
	opts = &ChatOptions{Temperature: &temp}
	if got := opts.TemperatureOrDefault(0.7); got != 0.2 {
		t.Errorf("got %v", got)
	}
}

func TestTaskTypeValid(t *testing.T) {
	for _, task := range []TaskType{TaskAssistantChat, TaskReceiptOCR, TaskProductMatching, TaskListParsing} {
		if !task.Valid() {
			t.Errorf("%s must be valid", task)
		}
	}
	if TaskType("made-up").Valid() {
		t.Error("unknown task type must be invalid")
	}
}
