package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arrowrift/flowengine/components/llm"
)

type fakeOpenAIClient struct {
	calls int
	errs  []error
	outs  []llm.ChatOut
}

func (f *fakeOpenAIClient) createChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (llm.ChatOut, error) {
	idx := f.calls
	f.calls++
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	var out llm.ChatOut
	if idx < len(f.outs) {
		out = f.outs[idx]
	}
	return out, err
}

func TestChatModel_DefaultsModelNameWhenEmpty(t *testing.T) {
	m := NewChatModel("key", "")
	if m.modelName != "gpt-4o" {
		t.Fatalf("expected default model gpt-4o, got %q", m.modelName)
	}
}

func TestChatModel_RetriesTransientErrorsThenSucceeds(t *testing.T) {
	client := &fakeOpenAIClient{
		errs: []error{errors.New("503 service unavailable"), errors.New("503 service unavailable")},
		outs: []llm.ChatOut{{}, {}, {Text: "ok"}},
	}
	m := &ChatModel{modelName: "gpt-4o", client: client, maxRetries: 3, retryDelay: time.Millisecond}

	out, err := m.Chat(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out.Text != "ok" {
		t.Fatalf("expected the eventual success response, got %q", out.Text)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", client.calls)
	}
}

func TestChatModel_GivesUpAfterMaxRetriesOnPersistentTransientError(t *testing.T) {
	client := &fakeOpenAIClient{
		errs: []error{
			errors.New("timeout"), errors.New("timeout"), errors.New("timeout"), errors.New("timeout"),
		},
	}
	m := &ChatModel{modelName: "gpt-4o", client: client, maxRetries: 3, retryDelay: time.Millisecond}

	_, err := m.Chat(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if client.calls != 4 {
		t.Fatalf("expected maxRetries+1 attempts, got %d", client.calls)
	}
}

func TestChatModel_NonTransientErrorFailsImmediately(t *testing.T) {
	client := &fakeOpenAIClient{errs: []error{errors.New("invalid api key")}}
	m := &ChatModel{modelName: "gpt-4o", client: client, maxRetries: 3, retryDelay: time.Millisecond}

	_, err := m.Chat(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if client.calls != 1 {
		t.Fatalf("expected no retries for a non-transient error, got %d calls", client.calls)
	}
}

func TestParseToolInput_ParsesValidJSON(t *testing.T) {
	got := parseToolInput(`{"query": "weather", "count": 3}`)
	if got["query"] != "weather" {
		t.Fatalf("expected query=weather, got %v", got)
	}
	if got["count"] != float64(3) {
		t.Fatalf("expected count=3, got %v", got["count"])
	}
}

func TestParseToolInput_FallsBackToRawOnMalformedJSON(t *testing.T) {
	got := parseToolInput("{not valid json")
	if got["_raw"] != "{not valid json" {
		t.Fatalf("expected the raw string preserved under _raw, got %v", got)
	}
}

func TestParseToolInput_EmptyStringYieldsNil(t *testing.T) {
	if got := parseToolInput(""); got != nil {
		t.Fatalf("expected nil for an empty arguments string, got %v", got)
	}
}
