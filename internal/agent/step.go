package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Step kinds as they appear in the "step" field.
const (
	KindPlan    = "plan"
	KindTool    = "tool"
	KindObserve = "observe"
	KindOutput  = "output"
)

// Step is one decoded model reply. The set of implementations is closed:
// PlanStep, ToolStep, ObserveStep and OutputStep.
type Step interface {
	Kind() string
	isStep()
}

// PlanStep carries the model's reasoning about how to answer.
type PlanStep struct {
	Thought string
}

// ToolStep asks the loop to run a tool.
type ToolStep struct {
	ToolName  string
	ToolInput map[string]any
}

// ObserveStep is the model's analysis of the last tool result.
type ObserveStep struct {
	Observation string
}

// OutputStep ends the run with the final answer.
type OutputStep struct {
	FinalAnswer string
}

func (PlanStep) Kind() string    { return KindPlan }
func (ToolStep) Kind() string    { return KindTool }
func (ObserveStep) Kind() string { return KindObserve }
func (OutputStep) Kind() string  { return KindOutput }

func (PlanStep) isStep()    {}
func (ToolStep) isStep()    {}
func (ObserveStep) isStep() {}
func (OutputStep) isStep()  {}

// ParseError reports a reply that is not a valid step.
type ParseError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid step: %s: %v", e.Reason, e.Err)
	}
	return "invalid step: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type envelope struct {
	CurrentStep json.RawMessage `json:"current_step"`
}

type rawStep struct {
	Step        string          `json:"step"`
	Thought     *string         `json:"thought"`
	ToolName    *string         `json:"tool_name"`
	ToolInput   json.RawMessage `json:"tool_input"`
	Observation *string         `json:"observation"`
	FinalAnswer *string         `json:"final_answer"`
}

// ParseStep decodes {"current_step": {"step": ..., ...}} from a model reply.
// A surrounding Markdown code fence is ignored.
func ParseStep(raw string) (Step, error) {
	cleaned := stripCodeFence(raw)

	var env envelope
	if err := json.Unmarshal([]byte(cleaned), &env); err != nil {
		return nil, &ParseError{Raw: raw, Reason: "malformed JSON", Err: err}
	}
	if len(env.CurrentStep) == 0 || bytes.Equal(bytes.TrimSpace(env.CurrentStep), []byte("null")) {
		return nil, &ParseError{Raw: raw, Reason: "missing current_step"}
	}

	var rs rawStep
	if err := json.Unmarshal(env.CurrentStep, &rs); err != nil {
		return nil, &ParseError{Raw: raw, Reason: "malformed current_step", Err: err}
	}

	switch rs.Step {
	case KindPlan:
		if rs.Thought == nil {
			return nil, missingField(raw, rs.Step, "thought")
		}
		return PlanStep{Thought: *rs.Thought}, nil

	case KindTool:
		if rs.ToolName == nil {
			return nil, missingField(raw, rs.Step, "tool_name")
		}
		input, err := decodeToolInput(rs.ToolInput)
		if err != nil {
			return nil, &ParseError{Raw: raw, Reason: "tool_input must be an object", Err: err}
		}
		return ToolStep{ToolName: *rs.ToolName, ToolInput: input}, nil

	case KindObserve:
		if rs.Observation == nil {
			return nil, missingField(raw, rs.Step, "observation")
		}
		return ObserveStep{Observation: *rs.Observation}, nil

	case KindOutput:
		if rs.FinalAnswer == nil {
			return nil, missingField(raw, rs.Step, "final_answer")
		}
		return OutputStep{FinalAnswer: *rs.FinalAnswer}, nil

	case "":
		return nil, &ParseError{Raw: raw, Reason: "missing step kind"}

	default:
		return nil, &ParseError{Raw: raw, Reason: fmt.Sprintf("unknown step %q", rs.Step)}
	}
}

func missingField(raw, kind, field string) *ParseError {
	return &ParseError{Raw: raw, Reason: fmt.Sprintf("%s step requires %s", kind, field)}
}

func decodeToolInput(data json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("got %s", describeJSON(trimmed))
	}
	var input map[string]any
	if err := json.Unmarshal(trimmed, &input); err != nil {
		return nil, err
	}
	return input, nil
}

func describeJSON(data []byte) string {
	if len(data) == 0 {
		return "nothing"
	}
	switch data[0] {
	case '[':
		return "an array"
	case '"':
		return "a string"
	case 'n':
		return "null"
	case 't', 'f':
		return "a boolean"
	default:
		return "a number"
	}
}

// stripCodeFence removes a leading ```json or ``` and a trailing ```.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
