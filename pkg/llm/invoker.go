package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/TriBrain/TweetAgent/pkg/logging"
)

const defaultMaxToolRounds = 4

// ToolHandler executes one tool call requested by the model and returns the
// textual result handed back on the next round.
type ToolHandler func(ctx context.Context, arguments json.RawMessage) (string, error)

// InvokableTool pairs a tool definition with its handler.
type InvokableTool struct {
	Tool
	Handler ToolHandler
}

// InvokeRequest describes one full model invocation: a system prompt with
// {placeholder} variables, optional tools and an optional structured output
// schema the final answer must conform to.
type InvokeRequest struct {
	SystemPrompt string
	Variables    map[string]string
	Tools        []InvokableTool

	// StructuredSchema is a JSON schema for the expected response object.
	// When set, the decoded object is unmarshalled into StructuredOutput.
	StructuredSchema map[string]interface{}
	StructuredOutput interface{}
}

// InvokeResult carries the raw final message plus whether structured decoding
// succeeded. Structured extraction fails soft: a schema mismatch yields
// Structured=false, never an error.
type InvokeResult struct {
	RawMessage string
	Structured bool
}

// Invoker drives multi-round conversations against a Provider: prompt
// templating, tool execution and best-effort structured output decoding.
type Invoker struct {
	provider Provider
	logger   logging.Logger
}

func NewInvoker(provider Provider, logger logging.Logger) *Invoker {
	return &Invoker{provider: provider, logger: logger}
}

// FullyInvoke runs the model until it stops requesting tools, then attempts
// structured extraction when a schema was provided.
func (inv *Invoker) FullyInvoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	if inv == nil || inv.provider == nil {
		return nil, fmt.Errorf("llm invoker is not configured")
	}

	system := ApplyVariables(req.SystemPrompt, req.Variables)
	if req.StructuredSchema != nil {
		schemaJSON, err := json.Marshal(req.StructuredSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal structured schema: %w", err)
		}
		system += "\n\nRespond with a single JSON object conforming to this JSON schema, without any surrounding text:\n" + string(schemaJSON)
	}

	messages := []Message{{Role: "system", Content: system}}
	tools := make([]Tool, 0, len(req.Tools))
	handlers := make(map[string]ToolHandler, len(req.Tools))
	for _, tool := range req.Tools {
		tools = append(tools, tool.Tool)
		handlers[tool.Name] = tool.Handler
	}

	var completion Completion
	for round := 0; round < defaultMaxToolRounds; round++ {
		var err error
		completion, err = inv.provider.Complete(ctx, messages, tools)
		if err != nil {
			return nil, fmt.Errorf("llm completion failed: %w", err)
		}
		if len(completion.ToolCalls) == 0 {
			break
		}

		messages = append(messages, Message{
			Role:      "assistant",
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		for _, call := range completion.ToolCalls {
			handler, ok := handlers[call.Name]
			result := ""
			if !ok {
				result = fmt.Sprintf("unknown tool %s", call.Name)
			} else if output, err := handler(ctx, json.RawMessage(call.Arguments)); err != nil {
				inv.logger.WithError(err).WithField("tool", call.Name).Warn("Tool execution failed")
				result = fmt.Sprintf("tool %s failed: %v", call.Name, err)
			} else {
				result = output
			}
			messages = append(messages, Message{
				Role:       "tool",
				Name:       call.Name,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}

	result := &InvokeResult{RawMessage: completion.Content}
	if req.StructuredSchema != nil && req.StructuredOutput != nil {
		result.Structured = decodeStructured(completion.Content, req.StructuredOutput)
		if !result.Structured {
			inv.logger.WithField("raw_length", len(completion.Content)).Warn("Structured response extraction failed")
		}
	}
	return result, nil
}

// ApplyVariables substitutes {name} placeholders in a prompt template.
func ApplyVariables(prompt string, variables map[string]string) string {
	for key, value := range variables {
		prompt = strings.ReplaceAll(prompt, "{"+key+"}", value)
	}
	return prompt
}

// decodeStructured pulls the first JSON object out of the raw response. Models
// occasionally wrap the object in prose or code fences.
func decodeStructured(raw string, target interface{}) bool {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(raw[start:end+1]), target) == nil
}
