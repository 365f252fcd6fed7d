package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Run outcomes recorded on nimbus.runs.
const (
	OutcomeAnswered    = "answered"
	OutcomeExhausted   = "max_iterations"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
)

// Instruments holds the counters updated by the loop and the tool executor.
// A nil *Instruments is valid and records nothing.
type Instruments struct {
	runs          metric.Int64Counter
	iterations    metric.Int64Counter
	toolCalls     metric.Int64Counter
	parseFailures metric.Int64Counter
	retries       metric.Int64Counter
}

// NewInstruments creates counters on mp, or on the global provider when mp is nil.
func NewInstruments(mp metric.MeterProvider) (*Instruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	runs, err := meter.Int64Counter("nimbus.runs",
		metric.WithDescription("Agent runs by outcome"))
	if err != nil {
		return nil, err
	}
	iterations, err := meter.Int64Counter("nimbus.iterations",
		metric.WithDescription("Completion round trips made by the loop"))
	if err != nil {
		return nil, err
	}
	toolCalls, err := meter.Int64Counter("nimbus.tool.calls",
		metric.WithDescription("Tool invocations by tool and success"))
	if err != nil {
		return nil, err
	}
	parseFailures, err := meter.Int64Counter("nimbus.parse.failures",
		metric.WithDescription("Model replies that did not decode into a step"))
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter("nimbus.ratelimit.retries",
		metric.WithDescription("Completion retries caused by rate limiting"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		runs:          runs,
		iterations:    iterations,
		toolCalls:     toolCalls,
		parseFailures: parseFailures,
		retries:       retries,
	}, nil
}

func (i *Instruments) RecordRun(ctx context.Context, outcome string) {
	if i == nil {
		return
	}
	i.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (i *Instruments) RecordIteration(ctx context.Context) {
	if i == nil {
		return
	}
	i.iterations.Add(ctx, 1)
}

func (i *Instruments) RecordToolCall(ctx context.Context, toolName string, success bool) {
	if i == nil {
		return
	}
	i.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", toolName),
		attribute.Bool("success", success),
	))
}

func (i *Instruments) RecordParseFailure(ctx context.Context) {
	if i == nil {
		return
	}
	i.parseFailures.Add(ctx, 1)
}

func (i *Instruments) RecordRetry(ctx context.Context) {
	if i == nil {
		return
	}
	i.retries.Add(ctx, 1)
}
