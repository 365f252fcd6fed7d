package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"nimbus/internal/tool"
)

const defaultForecastDays = 3

// Tools returns the built-in weather tools sharing one client.
func Tools(client *Client) []tool.Tool {
	return []tool.Tool{
		NewCurrentTool(client),
		NewForecastTool(client),
	}
}

// CurrentTool implements get_weather.
type CurrentTool struct {
	client *Client
}

func NewCurrentTool(client *Client) *CurrentTool {
	return &CurrentTool{client: client}
}

func (t *CurrentTool) Name() string {
	return "get_weather"
}

func (t *CurrentTool) Description() string {
	return "Get current weather for a city"
}

func (t *CurrentTool) BestPractices() string {
	return ""
}

func (t *CurrentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{
				"type":        "string",
				"description": "city name",
			},
		},
		"required":             []string{"city"},
		"additionalProperties": false,
	}
}

func (t *CurrentTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p struct {
		City string `json:"city"`
	}
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}
	if strings.TrimSpace(p.City) == "" {
		return invalidParams(errors.New("missing required parameter: city")), nil
	}

	report, err := t.client.Fetch(ctx, p.City, formatCurrent)
	if err != nil {
		return fetchFailure(err, "Something went wrong fetching weather data"), nil
	}

	return &tool.Result{
		Success: true,
		Output:  fmt.Sprintf("The weather in %s is %s", p.City, report),
		Data: map[string]any{
			"city":   p.City,
			"report": report,
		},
	}, nil
}

// ForecastTool implements get_forecast.
type ForecastTool struct {
	client *Client
}

func NewForecastTool(client *Client) *ForecastTool {
	return &ForecastTool{client: client}
}

func (t *ForecastTool) Name() string {
	return "get_forecast"
}

func (t *ForecastTool) Description() string {
	return "Get weather forecast for a city"
}

func (t *ForecastTool) BestPractices() string {
	return `**get_forecast**: use it only when the user asks about upcoming days.
For "now" or "today" questions prefer get_weather.`
}

func (t *ForecastTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{
				"type":        "string",
				"description": "city name",
			},
			"days": map[string]any{
				"type":        "integer",
				"description": "number of days (optional, default 3)",
				"minimum":     1,
			},
		},
		"required":             []string{"city"},
		"additionalProperties": false,
	}
}

func (t *ForecastTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var p struct {
		City string `json:"city"`
		Days *int   `json:"days"`
	}
	if err := decodeParams(params, &p); err != nil {
		return invalidParams(err), nil
	}
	if strings.TrimSpace(p.City) == "" {
		return invalidParams(errors.New("missing required parameter: city")), nil
	}

	days := defaultForecastDays
	if p.Days != nil {
		if *p.Days < 1 {
			return invalidParams(fmt.Errorf("days must be a positive integer, got %d", *p.Days)), nil
		}
		days = *p.Days
	}

	// wttr.in's one-line format has no day count; days is accepted for
	// the model's benefit and reported back in Data.
	report, err := t.client.Fetch(ctx, p.City, formatForecast)
	if err != nil {
		return fetchFailure(err, "Something went wrong fetching forecast data"), nil
	}

	return &tool.Result{
		Success: true,
		Output:  fmt.Sprintf("Weather forecast for %s: %s", p.City, report),
		Data: map[string]any{
			"city":   p.City,
			"days":   days,
			"report": report,
		},
	}, nil
}

// decodeParams rejects unknown keys and wrong types.
func decodeParams(params json.RawMessage, v any) error {
	if len(bytes.TrimSpace(params)) == 0 {
		params = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func invalidParams(err error) *tool.Result {
	return &tool.Result{
		Success: false,
		Error:   fmt.Sprintf("invalid parameters: %v", err),
	}
}

// fetchFailure keeps the fixed apology text for bad statuses; transport
// errors surface as tool errors.
func fetchFailure(err error, apology string) *tool.Result {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return &tool.Result{
			Success: false,
			Output:  apology,
			Error:   err.Error(),
		}
	}
	return &tool.Result{
		Success: false,
		Error:   err.Error(),
	}
}
