package agent

import (
	"strings"

	"nimbus/internal/tool"
)

const promptHeader = `You are a helpful AI Weather Agent that uses Chain of Thought reasoning.
You must respond in JSON format following these steps:

STEP 1 - PLAN: Think about what the user needs and plan your approach.
Response format: {"current_step": {"step": "plan", "thought": "your reasoning here"}}

STEP 2 - TOOL: Decide which tool to use and with what parameters.
Response format: {"current_step": {"step": "tool", "tool_name": "tool_name", "tool_input": {"param": "value"}}}

STEP 3 - OBSERVE: After I provide the tool result, analyze it.
Response format: {"current_step": {"step": "observe", "observation": "what you learned from the tool"}}

STEP 4 - OUTPUT: Provide your final answer to the user.
Response format: {"current_step": {"step": "output", "final_answer": "your complete answer"}}
`

const promptFooter = "Always respond with valid JSON. Think step by step."

// Loop feedback appended as user messages.
const (
	msgInvalidJSON  = "Please respond with valid JSON format."
	msgAfterPlan    = "Good plan! Now proceed to select a tool."
	msgToolResult   = "Tool Result: %s\n\nNow analyze this result in an 'observe' step."
	msgAfterObserve = "Good observation! Now provide your final answer in an 'output' step."
)

// BuildSystemPrompt renders the step protocol and the catalog of tools in
// registry, followed by any tool best practices.
func BuildSystemPrompt(registry *tool.Registry) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\nAvailable Tools:\n")

	catalog := registry.Catalog()
	if catalog == "" {
		catalog = "(none)"
	}
	b.WriteString(catalog)
	b.WriteString("\n\n")

	if practices := registry.GetToolBestPractices(); practices != "" {
		b.WriteString(practices)
		b.WriteString("\n\n")
	}

	b.WriteString(promptFooter)
	return b.String()
}
