package anthropic

import (
	"context"
	"testing"

	"github.com/arrowrift/flowengine/components/llm"
)

type fakeAnthropicClient struct {
	systemPrompt string
	messages     []llm.Message
	out          llm.ChatOut
	err          error
}

func (f *fakeAnthropicClient) createMessage(ctx context.Context, systemPrompt string, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error) {
	f.systemPrompt = systemPrompt
	f.messages = messages
	return f.out, f.err
}

func TestChatModel_DefaultsModelNameWhenEmpty(t *testing.T) {
	m := NewChatModel("key", "")
	if m.modelName != "claude-3-5-sonnet-20241022" {
		t.Fatalf("expected the default Claude model, got %q", m.modelName)
	}
}

func TestChatModel_LiftsSystemMessagesOutOfTheConversation(t *testing.T) {
	client := &fakeAnthropicClient{out: llm.ChatOut{Text: "hi"}}
	m := &ChatModel{modelName: "claude-3-5-sonnet-20241022", client: client}

	out, err := m.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be concise"},
		{Role: llm.RoleUser, Content: "hello"},
	}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out.Text != "hi" {
		t.Fatalf("expected the client's response to pass through, got %q", out.Text)
	}
	if client.systemPrompt != "be concise" {
		t.Fatalf("expected the system message lifted out, got %q", client.systemPrompt)
	}
	if len(client.messages) != 1 || client.messages[0].Content != "hello" {
		t.Fatalf("expected only the user message in the conversation, got %v", client.messages)
	}
}

func TestExtractSystemPrompt_ConcatenatesMultipleSystemMessages(t *testing.T) {
	prompt, conv := extractSystemPrompt([]llm.Message{
		{Role: llm.RoleSystem, Content: "first"},
		{Role: llm.RoleSystem, Content: "second"},
		{Role: llm.RoleUser, Content: "hi"},
	})
	if prompt != "first\n\nsecond" {
		t.Fatalf("expected concatenated system prompt, got %q", prompt)
	}
	if len(conv) != 1 {
		t.Fatalf("expected system messages excluded from the conversation, got %v", conv)
	}
}

func TestStringSlice_HandlesStringAndAnySlices(t *testing.T) {
	if got := stringSlice([]string{"a", "b"}); len(got) != 2 {
		t.Fatalf("expected 2 entries, got %v", got)
	}
	if got := stringSlice([]any{"a", 1, "b"}); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected non-string entries dropped, got %v", got)
	}
	if got := stringSlice(nil); got != nil {
		t.Fatalf("expected nil for nil input, got %v", got)
	}
}

func TestConvertToolInput_WrapsNonMapValues(t *testing.T) {
	if got := convertToolInput(map[string]any{"a": 1}); got["a"] != 1 {
		t.Fatalf("expected the map to pass through, got %v", got)
	}
	if got := convertToolInput("raw-string"); got["_raw"] != "raw-string" {
		t.Fatalf("expected non-map input wrapped under _raw, got %v", got)
	}
	if got := convertToolInput(nil); got != nil {
		t.Fatalf("expected nil input to produce nil, got %v", got)
	}
}
