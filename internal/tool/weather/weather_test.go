package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"nimbus/internal/tool"
)

type recordedRequest struct {
	Path   string
	Format string
}

func newWeatherServer(t *testing.T, status int, body string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, recordedRequest{Path: r.URL.Path, Format: r.URL.Query().Get("format")})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestCurrentTool_Success(t *testing.T) {
	srv, requests := newWeatherServer(t, http.StatusOK, "Sunny +20°C\n")
	weather := NewCurrentTool(NewClient(srv.URL, 0))

	result, err := weather.Execute(context.Background(), json.RawMessage(`{"city":"Paris"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Output != "The weather in Paris is Sunny +20°C" {
		t.Errorf("unexpected output: %q", result.Output)
	}

	if len(*requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*requests))
	}
	req := (*requests)[0]
	if req.Path != "/paris" {
		t.Errorf("expected lowercase city path, got %s", req.Path)
	}
	if req.Format != "%C %t" {
		t.Errorf("unexpected format: %q", req.Format)
	}
}

func TestCurrentTool_Non200(t *testing.T) {
	srv, _ := newWeatherServer(t, http.StatusServiceUnavailable, "busy")
	weather := NewCurrentTool(NewClient(srv.URL, 0))

	result, err := weather.Execute(context.Background(), json.RawMessage(`{"city":"Paris"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure on 503")
	}
	if result.Output != "Something went wrong fetching weather data" {
		t.Errorf("unexpected output: %q", result.Output)
	}
}

func TestCurrentTool_InvalidParams(t *testing.T) {
	weather := NewCurrentTool(NewClient("http://127.0.0.1:1", 0))

	tests := []struct {
		name   string
		params string
		want   string
	}{
		{"missing city", `{}`, "missing required parameter: city"},
		{"unknown key", `{"city":"Paris","country":"FR"}`, "unknown field"},
		{"wrong type", `{"city":42}`, "cannot unmarshal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := weather.Execute(context.Background(), json.RawMessage(tt.params))
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if result.Success {
				t.Fatal("expected failure")
			}
			if !strings.Contains(result.Error, tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, result.Error)
			}
		})
	}
}

func TestCurrentTool_TransportError(t *testing.T) {
	srv, _ := newWeatherServer(t, http.StatusOK, "")
	url := srv.URL
	srv.Close()

	weather := NewCurrentTool(NewClient(url, 0))
	result, err := weather.Execute(context.Background(), json.RawMessage(`{"city":"Paris"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success || result.Output != "" {
		t.Errorf("transport error should be a bare tool error, got %+v", result)
	}
	if !strings.Contains(result.Error, "weather request failed") {
		t.Errorf("unexpected error: %q", result.Error)
	}
}

func TestForecastTool_Success(t *testing.T) {
	srv, requests := newWeatherServer(t, http.StatusOK, "Paris: ⛅️ +18°C")
	forecast := NewForecastTool(NewClient(srv.URL, 0))

	result, err := forecast.Execute(context.Background(), json.RawMessage(`{"city":"Paris","days":2}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Output != "Weather forecast for Paris: Paris: ⛅️ +18°C" {
		t.Errorf("unexpected output: %q", result.Output)
	}
	if result.Data["days"] != 2 {
		t.Errorf("expected days=2, got %v", result.Data["days"])
	}
	if (*requests)[0].Format != "3" {
		t.Errorf("unexpected format: %q", (*requests)[0].Format)
	}
}

func TestForecastTool_DefaultDays(t *testing.T) {
	srv, _ := newWeatherServer(t, http.StatusOK, "ok")
	forecast := NewForecastTool(NewClient(srv.URL, 0))

	result, _ := forecast.Execute(context.Background(), json.RawMessage(`{"city":"Oslo"}`))
	if result.Data["days"] != defaultForecastDays {
		t.Errorf("expected default days, got %v", result.Data["days"])
	}
}

func TestForecastTool_RejectsNonPositiveDays(t *testing.T) {
	srv, requests := newWeatherServer(t, http.StatusOK, "ok")
	forecast := NewForecastTool(NewClient(srv.URL, 0))

	for _, params := range []string{`{"city":"Oslo","days":0}`, `{"city":"Oslo","days":-2}`, `{"city":"Oslo","days":1.5}`} {
		result, _ := forecast.Execute(context.Background(), json.RawMessage(params))
		if result.Success {
			t.Errorf("%s: expected failure", params)
		}
	}
	if len(*requests) != 0 {
		t.Errorf("invalid params must not reach the service, got %d requests", len(*requests))
	}
}

func TestForecastTool_Non200(t *testing.T) {
	srv, _ := newWeatherServer(t, http.StatusNotFound, "")
	forecast := NewForecastTool(NewClient(srv.URL, 0))

	result, _ := forecast.Execute(context.Background(), json.RawMessage(`{"city":"Atlantis"}`))
	if result.Output != "Something went wrong fetching forecast data" {
		t.Errorf("unexpected output: %q", result.Output)
	}
}

func TestClient_EscapesCity(t *testing.T) {
	srv, requests := newWeatherServer(t, http.StatusOK, "ok")
	client := NewClient(srv.URL+"/", 0)

	if _, err := client.Fetch(context.Background(), "New York", formatCurrent); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if (*requests)[0].Path != "/new york" {
		t.Errorf("unexpected path: %q", (*requests)[0].Path)
	}
	if client.BaseURL() != srv.URL {
		t.Errorf("trailing slash should be trimmed, got %s", client.BaseURL())
	}
}

func TestTools_ThroughExecutor(t *testing.T) {
	srv, _ := newWeatherServer(t, http.StatusOK, "Clear +5°C")
	registry, err := tool.NewRegistry(Tools(NewClient(srv.URL, 0))...)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	registry.Seal()
	executor := tool.NewExecutor(registry)

	got := executor.Execute(context.Background(), "get_weather", map[string]any{"city": "Paris"})
	if got != "The weather in Paris is Clear +5°C" {
		t.Errorf("unexpected result: %q", got)
	}

	got = executor.Execute(context.Background(), "get_weather", map[string]any{})
	if got != "Error executing tool: invalid parameters: missing required parameter: city" {
		t.Errorf("unexpected result: %q", got)
	}

	catalog := registry.Catalog()
	want := `- get_forecast: Get weather forecast for a city. Parameters: {"city": "city name", "days": "number of days (optional, default 3)"}
- get_weather: Get current weather for a city. Parameters: {"city": "city name"}`
	if catalog != want {
		t.Errorf("unexpected catalog:\n%s", catalog)
	}
}
