package hook

import (
	"context"
	"errors"
	"testing"
)

type recordingHandler struct {
	name     string
	priority int
	allow    bool
	calls    *[]string
}

func (h *recordingHandler) Name() string        { return h.name }
func (h *recordingHandler) Points() []HookPoint { return []HookPoint{BeforeToolExecution} }
func (h *recordingHandler) Priority() int       { return h.priority }

func (h *recordingHandler) Handle(ctx context.Context, data *HookData) (*Feedback, error) {
	*h.calls = append(*h.calls, h.name)
	if !h.allow {
		return DenyFeedback(h.name + " said no"), nil
	}
	return AllowFeedback(), nil
}

func TestTriggerWithoutHandlersAllows(t *testing.T) {
	m := NewManager()

	feedback, err := m.Trigger(context.Background(), NewHookData(BeforeToolExecution, "get_weather"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !feedback.Allow {
		t.Error("expected allow with no handlers")
	}
}

func TestTriggerRunsByPriorityAndStopsOnDeny(t *testing.T) {
	var calls []string
	m := NewManager()
	m.Register(&recordingHandler{name: "low", priority: 1, allow: true, calls: &calls})
	m.Register(&recordingHandler{name: "high", priority: 100, allow: false, calls: &calls})

	feedback, err := m.Trigger(context.Background(), NewHookData(BeforeToolExecution, "get_weather"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feedback.Allow {
		t.Error("expected deny")
	}
	if feedback.Message != "high said no" {
		t.Errorf("unexpected message: %q", feedback.Message)
	}
	if len(calls) != 1 || calls[0] != "high" {
		t.Errorf("expected only the high-priority handler to run, got %v", calls)
	}

	names := m.ListHandlers(BeforeToolExecution)
	if len(names) != 2 || names[0] != "high" || names[1] != "low" {
		t.Errorf("unexpected handler order: %v", names)
	}
}

func TestTriggerPropagatesHandlerError(t *testing.T) {
	m := NewManager()
	boom := errors.New("boom")
	m.Register(&HandlerFunc{
		HandlerName: "failing",
		Point:       OnAgentStart,
		Fn: func(ctx context.Context, data *HookData) (*Feedback, error) {
			return nil, boom
		},
	})

	if !m.HasHandlers(OnAgentStart) {
		t.Fatal("expected handler to be registered")
	}
	if _, err := m.Trigger(context.Background(), NewHookData(OnAgentStart, "")); !errors.Is(err, boom) {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestNilManagerAllows(t *testing.T) {
	var m *Manager
	feedback, err := m.Trigger(context.Background(), NewHookData(AfterToolExecution, "x"))
	if err != nil || !feedback.Allow {
		t.Errorf("nil manager should allow, got %v %v", feedback, err)
	}
	if m.HasHandlers(AfterToolExecution) {
		t.Error("nil manager has no handlers")
	}
}

func TestHookDataAccessors(t *testing.T) {
	d := NewHookData(AfterToolExecution, "get_weather").
		Set("params", `{"city":"Paris"}`).
		Set("count", 3)

	if d.GetString("params") != `{"city":"Paris"}` {
		t.Error("GetString returned wrong value")
	}
	if d.GetString("count") != "" {
		t.Error("GetString should return empty for non-string values")
	}
	if d.Get("count") != 3 {
		t.Error("Get returned wrong value")
	}
}
