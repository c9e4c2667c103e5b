package domain

import (
	"fmt"
	"time"
)

// ToolName identifies a registered sandbox tool.
type ToolName string

const (
	ToolCalculator  ToolName = "calculator"
	ToolDocAnalyzer ToolName = "document-analyzer"
)

// CalculatorArgs is the validated input for the calculator tool: a
// restricted arithmetic expression, never code.
type CalculatorArgs struct {
	Expression string `json:"expression"`
}

// AnalyzerArgs is the validated input for the document analyzer: a
// natural-language question about the ingested document inventory.
type AnalyzerArgs struct {
	Question string `json:"question"`
}

// ToolCall is a tagged variant with exactly one argument case set,
// matching its Name. Calls are schema-validated before dispatch.
type ToolCall struct {
	Name       ToolName
	Calculator *CalculatorArgs
	Analyzer   *AnalyzerArgs
}

// Validate checks the tag/arguments pairing of a tool call.
func (tc *ToolCall) Validate() error {
	switch tc.Name {
	case ToolCalculator:
		if tc.Calculator == nil || tc.Analyzer != nil {
			return ErrInvalidToolArgs
		}
		if tc.Calculator.Expression == "" {
			return ErrInvalidToolArgs
		}
	case ToolDocAnalyzer:
		if tc.Analyzer == nil || tc.Calculator != nil {
			return ErrInvalidToolArgs
		}
		if tc.Analyzer.Question == "" {
			return ErrInvalidToolArgs
		}
	default:
		return ErrUnknownTool
	}
	return nil
}

// ToolSpec describes a registered tool to the model.
type ToolSpec struct {
	Name        ToolName
	Description string
}

// ToolResult is the ephemeral outcome of one tool invocation. It is
// audit-logged but never persisted as first-class state.
type ToolResult struct {
	Name     ToolName      `json:"name"`
	Output   string        `json:"output,omitempty"`
	Err      string        `json:"error,omitempty"`
	Rejected bool          `json:"rejected,omitempty"`
	Duration time.Duration `json:"duration"`
}

// AgentMessageRole identifies the producer of an agent transcript entry.
type AgentMessageRole string

const (
	AgentRoleSystem    AgentMessageRole = "system"
	AgentRoleUser      AgentMessageRole = "user"
	AgentRoleAssistant AgentMessageRole = "assistant"
	AgentRoleTool      AgentMessageRole = "tool"
)

// AgentMessage is one transcript entry exchanged with the model during
// an agent turn. ToolCall is set on assistant messages that request a
// tool; ToolName tags tool-result messages.
type AgentMessage struct {
	Role     AgentMessageRole
	Content  string
	ToolCall *ToolCall
	ToolName ToolName
	CallID   string
}

// ModelAction is what the model decided to do next: either a final
// answer or exactly one tool call.
type ModelAction struct {
	Final    string
	ToolCall *ToolCall
	CallID   string
	Model    string
}

// IsFinal reports whether the action terminates the loop.
func (a ModelAction) IsFinal() bool {
	return a.ToolCall == nil
}

// AgentResult is the outcome of one bounded agent turn. Partial is set
// when the loop hit its iteration or wall-clock bound before the model
// produced a final answer.
type AgentResult struct {
	Answer     string        `json:"answer"`
	Steps      []ToolResult  `json:"steps,omitempty"`
	Iterations int           `json:"iterations"`
	Partial    bool          `json:"partial"`
	Model      string        `json:"model,omitempty"`
	Latency    time.Duration `json:"latency"`
}

// Prompt is an assembled, injection-filtered prompt with its three
// trust zones kept separate until rendering.
type Prompt struct {
	System        string
	Context       string
	History       string
	Question      string
	Citations     []Citation
	DroppedChunks int
}

// Render produces the final prompt text. Zone order and labels are
// fixed; untrusted content only ever appears under CONTEXT or USER
// QUESTION.
func (p Prompt) Render() string {
	if p.History != "" {
		return fmt.Sprintf("SYSTEM:\n%s\n\nCONTEXT:\n%s\n\nCONVERSATION:\n%s\n\nUSER QUESTION:\n%s\n\nFINAL ANSWER:", p.System, p.Context, p.History, p.Question)
	}
	return fmt.Sprintf("SYSTEM:\n%s\n\nCONTEXT:\n%s\n\nUSER QUESTION:\n%s\n\nFINAL ANSWER:", p.System, p.Context, p.Question)
}
