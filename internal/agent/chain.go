package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nimbus/internal/hook"
	"nimbus/internal/llm"
	"nimbus/internal/logger"
	"nimbus/internal/telemetry"
	"nimbus/internal/tool"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ChainOfThought drives the plan, tool, observe, output protocol against a
// chat model. Runs are independent; a ChainOfThought is not meant to be
// used by concurrent runs.
type ChainOfThought struct {
	llmClient    llm.Client
	executor     *tool.Executor
	systemPrompt string
	config       *Config
	logger       *logger.Logger
	hookManager  *hook.Manager
	instruments  *telemetry.Instruments
}

// NewChainOfThought builds the agent. The system prompt is rendered once
// from the executor's registry.
func NewChainOfThought(client llm.Client, executor *tool.Executor, cfg *Config) *ChainOfThought {
	resolved := DefaultConfig()
	if cfg != nil {
		c := *cfg
		if c.MaxIterations <= 0 {
			c.MaxIterations = DefaultMaxIterations
		}
		if c.Retry.MaxAttempts == 0 {
			retry := llm.DefaultRetryPolicy()
			retry.OnRetry = c.Retry.OnRetry
			retry.Sleep = c.Retry.Sleep
			c.Retry = retry
		}
		resolved = &c
	}

	return &ChainOfThought{
		llmClient:    client,
		executor:     executor,
		systemPrompt: BuildSystemPrompt(executor.Registry()),
		config:       resolved,
		logger:       logger.Discard(),
	}
}

func (a *ChainOfThought) Name() string {
	return "weather"
}

// SystemPrompt returns the prompt that opens every transcript.
func (a *ChainOfThought) SystemPrompt() string {
	return a.systemPrompt
}

func (a *ChainOfThought) SetLogger(log *logger.Logger) {
	if log == nil {
		log = logger.Discard()
	}
	a.logger = log
}

// SetHookManager sets the hook manager for agent lifecycle hooks
func (a *ChainOfThought) SetHookManager(manager *hook.Manager) {
	a.hookManager = manager
}

func (a *ChainOfThought) SetInstruments(inst *telemetry.Instruments) {
	a.instruments = inst
}

// Run answers query. It returns ErrMaxIterations when no output step
// arrives in time and an error wrapping llm.ErrRateLimited when retries run
// out; in both cases there is no answer.
func (a *ChainOfThought) Run(ctx context.Context, query string) (*Output, error) {
	runID := uuid.NewString()
	ctx, span := telemetry.Tracer().Start(ctx, "Agent.Run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("llm.model", a.llmClient.Model()),
		attribute.Int("agent.max_iterations", a.config.MaxIterations),
	))
	defer span.End()

	execCtx := NewExecutionContext(a.logger, runID, a.config.MaxIterations)
	execCtx.Logger.SessionStart(runID, query)

	feedback, err := a.hookManager.Trigger(ctx, hook.NewHookData(hook.OnAgentStart, "").
		Set("run_id", runID).
		Set("query", query))
	if err != nil {
		return nil, a.finish(ctx, span, execCtx, nil, fmt.Errorf("agent start hook failed: %w", err))
	}
	if !feedback.Allow {
		return nil, a.finish(ctx, span, execCtx, nil, fmt.Errorf("run denied: %s", feedback.Message))
	}

	out, err := a.loop(ctx, execCtx, query)
	return out, a.finish(ctx, span, execCtx, out, err)
}

func (a *ChainOfThought) loop(ctx context.Context, execCtx *ExecutionContext, query string) (*Output, error) {
	messages := []llm.Message{
		llm.NewMessage(llm.RoleSystem, a.systemPrompt),
		llm.NewMessage(llm.RoleUser, query),
	}
	out := &Output{RunID: execCtx.RunID}

	for iteration := 1; iteration <= a.config.MaxIterations; iteration++ {
		execCtx.Iteration = iteration
		out.Iterations = iteration
		a.instruments.RecordIteration(ctx)
		execCtx.LogProgress()

		resp, err := a.complete(ctx, execCtx, messages)
		if err != nil {
			return nil, err
		}

		reply := resp.Message.Content
		messages = append(messages, llm.NewMessage(llm.RoleAssistant, reply))

		step, err := ParseStep(reply)
		if err != nil {
			execCtx.Logger.ParseFailure(err, reply)
			a.instruments.RecordParseFailure(ctx)
			messages = append(messages, llm.NewMessage(llm.RoleUser, msgInvalidJSON))
			continue
		}
		out.Steps = append(out.Steps, step)

		switch s := step.(type) {
		case PlanStep:
			execCtx.Logger.Plan(s.Thought)
			messages = append(messages, llm.NewMessage(llm.RoleUser, msgAfterPlan))

		case ToolStep:
			execCtx.LogToolCall(s.ToolName, s.ToolInput)
			call := a.executor.Call(ctx, s.ToolName, s.ToolInput)
			execCtx.LogToolResult(call)
			out.ToolCalls = append(out.ToolCalls, call)
			messages = append(messages, llm.NewMessage(llm.RoleUser, fmt.Sprintf(msgToolResult, call.Text)))

		case ObserveStep:
			execCtx.Logger.Observe(s.Observation)
			messages = append(messages, llm.NewMessage(llm.RoleUser, msgAfterObserve))

		case OutputStep:
			execCtx.Logger.FinalAnswer(s.FinalAnswer)
			out.Answer = s.FinalAnswer
			out.Messages = messages
			return out, nil

		default:
			// Unreachable while Step stays closed
			return nil, fmt.Errorf("unhandled step kind %q", step.Kind())
		}
	}

	execCtx.Logger.Warn("⚠️ Max iterations reached without a final answer")
	return nil, fmt.Errorf("%w (%d)", ErrMaxIterations, a.config.MaxIterations)
}

// complete sends the transcript through the retry policy.
func (a *ChainOfThought) complete(ctx context.Context, execCtx *ExecutionContext, messages []llm.Message) (*llm.ChatResponse, error) {
	policy := a.config.Retry
	userOnRetry := policy.OnRetry
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		execCtx.Logger.RateLimited(attempt, policy.MaxAttempts, delay)
		a.instruments.RecordRetry(ctx)
		if userOnRetry != nil {
			userOnRetry(err, attempt, delay)
		}
	}

	resp, err := llm.Retry(ctx, policy, func(ctx context.Context) (*llm.ChatResponse, error) {
		return a.llmClient.Chat(ctx, &llm.ChatRequest{
			Messages:    messages,
			Temperature: a.config.Temperature,
			MaxTokens:   a.config.MaxTokens,
		})
	})
	if err != nil {
		if errors.Is(err, llm.ErrRateLimited) {
			execCtx.Logger.Error("❌ Rate limit exceeded after %d attempts. Please wait a minute and try again.", policy.MaxAttempts)
			return nil, err
		}
		execCtx.Logger.Error("LLM call failed: %v", err)
		return nil, fmt.Errorf("LLM call failed: %w", err)
	}
	return resp, nil
}

// finish records the outcome of a run and fires the end hook.
func (a *ChainOfThought) finish(ctx context.Context, span trace.Span, execCtx *ExecutionContext, out *Output, runErr error) error {
	outcome := telemetry.OutcomeAnswered
	switch {
	case runErr == nil:
	case errors.Is(runErr, ErrMaxIterations):
		outcome = telemetry.OutcomeExhausted
	case errors.Is(runErr, llm.ErrRateLimited):
		outcome = telemetry.OutcomeRateLimited
	default:
		outcome = telemetry.OutcomeFailed
	}

	span.SetAttributes(
		attribute.String("agent.outcome", outcome),
		attribute.Int("agent.iterations", execCtx.Iteration),
		attribute.Int("agent.tool_calls", execCtx.ToolCallCount),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	a.instruments.RecordRun(ctx, outcome)

	data := hook.NewHookData(hook.OnAgentEnd, "").
		Set("run_id", execCtx.RunID).
		Set("outcome", outcome)
	if out != nil {
		data.Set("answer", out.Answer)
	}
	if runErr != nil {
		data.Set("error", runErr)
	}
	// End hooks observe only
	_, _ = a.hookManager.Trigger(ctx, data)

	execCtx.Logger.SessionEnd(execCtx.Elapsed(), execCtx.Iteration, execCtx.ToolCallCount)
	return runErr
}
