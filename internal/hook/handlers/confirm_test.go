package handlers

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"nimbus/internal/hook"
)

func confirmData(toolName string) *hook.HookData {
	return hook.NewHookData(hook.BeforeToolExecution, toolName).Set("params", `{"city":"Paris"}`)
}

func TestToolConfirmAllows(t *testing.T) {
	var out bytes.Buffer
	h := NewToolConfirmHandlerWithIO(strings.NewReader("yes\n"), &out)

	feedback, err := h.Handle(context.Background(), confirmData("get_weather"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !feedback.Allow {
		t.Error("expected allow for 'yes'")
	}
	if !strings.Contains(out.String(), "Tool 'get_weather' requires confirmation") {
		t.Errorf("expected prompt, got %q", out.String())
	}
	if !strings.Contains(out.String(), `Parameters: {"city":"Paris"}`) {
		t.Errorf("expected parameters in prompt, got %q", out.String())
	}
}

func TestToolConfirmDenies(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"explicit no", "n\n", "User denied tool execution"},
		{"anything else", "maybe\n", "User denied tool execution"},
		{"no input", "", "No input received"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			h := NewToolConfirmHandlerWithIO(strings.NewReader(tt.input), &out)

			feedback, err := h.Handle(context.Background(), confirmData("get_weather"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if feedback.Allow {
				t.Error("expected deny")
			}
			if feedback.Message != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, feedback.Message)
			}
		})
	}
}

func TestToolConfirmSkipsUnlistedTools(t *testing.T) {
	var out bytes.Buffer
	h := NewToolConfirmHandlerWithIO(strings.NewReader(""), &out, "get_forecast")

	feedback, err := h.Handle(context.Background(), confirmData("get_weather"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !feedback.Allow {
		t.Error("unlisted tool should be allowed without prompting")
	}
	if out.Len() != 0 {
		t.Errorf("expected no prompt, got %q", out.String())
	}
}

func TestToolConfirmAnswersAcrossCalls(t *testing.T) {
	var out bytes.Buffer
	h := NewToolConfirmHandlerWithIO(strings.NewReader("y\nn\n"), &out)

	first, _ := h.Handle(context.Background(), confirmData("get_weather"))
	second, _ := h.Handle(context.Background(), confirmData("get_forecast"))
	if !first.Allow || second.Allow {
		t.Errorf("expected allow then deny, got %v then %v", first.Allow, second.Allow)
	}
}
