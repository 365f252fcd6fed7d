package agent

import (
	"context"
	"errors"

	"nimbus/internal/llm"
	"nimbus/internal/tool"
)

// DefaultMaxIterations bounds completion requests per run.
const DefaultMaxIterations = 10

// ErrMaxIterations is returned when a run ends without an output step.
var ErrMaxIterations = errors.New("max iterations reached without a final answer")

// Agent answers a single query. A non-nil error means no answer.
type Agent interface {
	Name() string
	Run(ctx context.Context, query string) (*Output, error)
}

// Output is the result of a run that produced an answer.
type Output struct {
	RunID      string
	Answer     string
	Messages   []llm.Message
	Steps      []Step
	ToolCalls  []*tool.CallResult
	Iterations int
}

type Config struct {
	MaxIterations int
	Temperature   float32
	MaxTokens     int
	Retry         llm.RetryPolicy
}

// DefaultConfig returns ten iterations and the default retry policy.
func DefaultConfig() *Config {
	return &Config{
		MaxIterations: DefaultMaxIterations,
		Retry:         llm.DefaultRetryPolicy(),
	}
}
