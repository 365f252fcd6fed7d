package handlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"nimbus/internal/hook"
)

// ToolConfirmHandler prompts user for confirmation before executing a tool
type ToolConfirmHandler struct {
	reader    *bufio.Reader
	writer    io.Writer
	toolNames map[string]bool // Only confirm these tools (empty = all)
}

// NewToolConfirmHandler creates a new tool confirmation handler
func NewToolConfirmHandler(tools ...string) *ToolConfirmHandler {
	return NewToolConfirmHandlerWithIO(os.Stdin, os.Stdout, tools...)
}

// NewToolConfirmHandlerWithIO creates a handler with custom IO (for testing)
func NewToolConfirmHandlerWithIO(reader io.Reader, writer io.Writer, tools ...string) *ToolConfirmHandler {
	toolNames := make(map[string]bool)
	for _, t := range tools {
		toolNames[t] = true
	}
	return &ToolConfirmHandler{
		reader:    bufio.NewReader(reader),
		writer:    writer,
		toolNames: toolNames,
	}
}

func (h *ToolConfirmHandler) Name() string {
	return "tool_confirm"
}

func (h *ToolConfirmHandler) Points() []hook.HookPoint {
	return []hook.HookPoint{hook.BeforeToolExecution}
}

func (h *ToolConfirmHandler) Priority() int {
	return 100
}

func (h *ToolConfirmHandler) Handle(ctx context.Context, data *hook.HookData) (*hook.Feedback, error) {
	if len(h.toolNames) > 0 && !h.toolNames[data.ToolName] {
		return hook.AllowFeedback(), nil
	}

	params := data.GetString("params")

	fmt.Fprintf(h.writer, "\n\033[33m⚠️  Tool '%s' requires confirmation:\033[0m\n", data.ToolName)
	if params != "" {
		fmt.Fprintf(h.writer, "    Parameters: %s\n", params)
	}
	fmt.Fprintf(h.writer, "\nAllow? [y/N]: ")

	line, err := h.reader.ReadString('\n')
	if err != nil && line == "" {
		return hook.DenyFeedback("No input received"), nil
	}

	input := strings.TrimSpace(strings.ToLower(line))

	switch input {
	case "y", "yes":
		fmt.Fprintf(h.writer, "\033[32m✓ Allowed\033[0m\n\n")
		return hook.AllowFeedback(), nil
	default:
		fmt.Fprintf(h.writer, "\033[31m✗ Denied\033[0m\n\n")
		return hook.DenyFeedback("User denied tool execution"), nil
	}
}
