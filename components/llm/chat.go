// Package llm provides an example Component wrapping chat-style LLM
// providers (spec.md §1 explicitly excludes concrete components from the
// core; this is a reference implementation exercising the Component
// contract, grounded on the teacher's graph/model package).
package llm

import (
	"context"
	"fmt"

	"github.com/arrowrift/flowengine/flow"
)

// ChatModel abstracts a chat-completion provider, mirroring the teacher's
// model.ChatModel so the anthropic/openai/google adapter packages carry
// over unchanged in shape.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn in a chat-style conversation.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ChatOut is a chat completion result: text, tool calls, or both.
type ChatOut struct {
	Text         string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
}

// ToolCall is one tool invocation the model requested.
type ToolCall struct {
	Name  string
	Input map[string]any
}

// ChatComponent adapts a ChatModel to flow.Component (spec.md §4.7):
// Process reads a message list from Context.Data at MessagesPath,
// calls the model, and writes the ChatOut back under OutputPath.
// Model name is supplied to NewChatComponent for cost attribution; the
// model itself decides which underlying provider model it actually calls.
type ChatComponent struct {
	model        ChatModel
	modelName    string
	cost         *CostTracker
	messagesPath string
	toolsPath    string
	outputPath   string
}

// NewChatComponent builds a Component around an already-configured
// ChatModel. cost may be nil to disable cost tracking.
func NewChatComponent(m ChatModel, modelName string, cost *CostTracker) *ChatComponent {
	return &ChatComponent{
		model:        m,
		modelName:    modelName,
		cost:         cost,
		messagesPath: "messages",
		outputPath:   "llm_response",
	}
}

// Init applies optional path overrides: messages_path, tools_path,
// output_path (all default as set by NewChatComponent).
func (c *ChatComponent) Init(config map[string]flow.Value) error {
	if v, ok := config["messages_path"].(string); ok && v != "" {
		c.messagesPath = v
	}
	if v, ok := config["tools_path"].(string); ok && v != "" {
		c.toolsPath = v
	}
	if v, ok := config["output_path"].(string); ok && v != "" {
		c.outputPath = v
	}
	return nil
}

func (c *ChatComponent) Setup(fctx *flow.Context) error    { return nil }
func (c *ChatComponent) Teardown(fctx *flow.Context) error { return nil }

func (c *ChatComponent) ValidateConfig() []string {
	if c.model == nil {
		return []string{"llm component: no ChatModel configured"}
	}
	return nil
}

func (c *ChatComponent) HealthCheck(ctx context.Context) bool {
	return c.model != nil
}

// Process sends the configured message list to the model and records the
// response (and, if a CostTracker is attached, its token usage) back into
// Context.Data.
func (c *ChatComponent) Process(ctx context.Context, fctx *flow.Context) error {
	if err := flow.CheckDeadline(fctx); err != nil {
		return err
	}

	messages, err := readMessages(fctx, c.messagesPath)
	if err != nil {
		return err
	}
	tools := readTools(fctx, c.toolsPath)

	out, err := c.model.Chat(ctx, messages, tools)
	if err != nil {
		return fmt.Errorf("llm chat: %w", err)
	}

	if c.cost != nil {
		c.cost.RecordLLMCall(c.modelName, out.InputTokens, out.OutputTokens, "")
	}

	fctx.Set(c.outputPath, chatOutToValue(out))
	return nil
}

func readMessages(fctx *flow.Context, path string) ([]Message, error) {
	raw, ok := fctx.Get(path).([]flow.Value)
	if !ok {
		return nil, fmt.Errorf("llm component: %q is not a list of messages", path)
	}
	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]flow.Value)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		messages = append(messages, Message{Role: role, Content: content})
	}
	return messages, nil
}

func readTools(fctx *flow.Context, path string) []ToolSpec {
	if path == "" {
		return nil
	}
	raw, ok := fctx.Get(path).([]flow.Value)
	if !ok {
		return nil
	}
	tools := make([]ToolSpec, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]flow.Value)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		desc, _ := m["description"].(string)
		schema, _ := m["schema"].(map[string]flow.Value)
		tools = append(tools, ToolSpec{Name: name, Description: desc, Schema: schema})
	}
	return tools
}

func chatOutToValue(out ChatOut) map[string]flow.Value {
	calls := make([]flow.Value, len(out.ToolCalls))
	for i, tc := range out.ToolCalls {
		input := make(map[string]flow.Value, len(tc.Input))
		for k, v := range tc.Input {
			input[k] = v
		}
		calls[i] = map[string]flow.Value{"name": tc.Name, "input": input}
	}
	return map[string]flow.Value{
		"text":       out.Text,
		"tool_calls": calls,
	}
}
