package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"nimbus/internal/agent"
	"nimbus/internal/cli"
	"nimbus/internal/config"
	"nimbus/internal/hook"
	"nimbus/internal/hook/handlers"
	"nimbus/internal/llm"
	"nimbus/internal/llm/openai"
	"nimbus/internal/logger"
	"nimbus/internal/mcp"
	"nimbus/internal/telemetry"
	"nimbus/internal/tool"
	"nimbus/internal/tool/weather"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var version = "dev"

const userPrompt = "🧑 > "

var (
	configPath    string
	apiKey        string
	apiBaseURL    string
	model         string
	maxIterations int
	verbose       bool
	noColor       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nimbus",
		Short: "Chain-of-thought weather agent",
		Long: `nimbus answers weather questions by letting a chat model plan, call
weather tools, observe the results and give a final answer.

Run without arguments for an interactive session.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runInteractive,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default: search ./nimbus.yaml, ./configs, ~/.config/nimbus, /etc/nimbus)")
	flags.StringVar(&apiKey, "api-key", "", "API key (default: GOOGLE_API_KEY, GEMINI_API_KEY or OPENAI_API_KEY)")
	flags.StringVar(&apiBaseURL, "base-url", "", "OpenAI-compatible API base URL")
	flags.StringVar(&model, "model", "", "Model to use")
	flags.IntVar(&maxIterations, "max-iterations", 0, "Maximum completion requests per question")
	flags.BoolVar(&verbose, "verbose", false, "Enable verbose output (debug mode)")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")

	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to the agent",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the weather tools as an MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE:  runMCP,
	}

	rootCmd.AddCommand(askCmd, toolsCmd, mcpCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInteractive(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	reader, err := cli.NewReadlineReader(userPrompt, historyFile())
	if err != nil {
		return err
	}
	defer reader.Close()

	a, err := setup(ctx, os.Stdout, cli.NewLineSource(reader, userPrompt))
	if err != nil {
		return err
	}
	defer a.Close()

	ag, err := a.newAgent()
	if err != nil {
		return err
	}

	out := cli.NewWriter(os.Stdout)
	out.SetColorMode(!noColor)
	return cli.NewConsole(reader, ag, out).Run(ctx)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, os.Stdout, os.Stdin)
	if err != nil {
		return err
	}
	defer a.Close()

	ag, err := a.newAgent()
	if err != nil {
		return err
	}

	if _, err := ag.Run(ctx, strings.Join(args, " ")); err != nil {
		return fmt.Errorf("no answer: %s", cli.Describe(err))
	}
	return nil
}

func runTools(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context(), os.Stderr, os.Stdin)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cli.NewWriter(os.Stdout)
	out.SetColorMode(!noColor)
	for _, t := range a.registry.List() {
		out.WriteColored(t.Name(), cli.ColorCyan)
		out.WriteLine(fmt.Sprintf("  %s", t.Description()))
		out.WriteColoredLine(fmt.Sprintf("    parameters: %s", tool.ParameterSummary(t.Parameters())), cli.ColorGray)
	}
	return nil
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol, so logs go to stderr and no confirm prompts
	a, err := setup(ctx, os.Stderr, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	a.log.Info("Serving %d tools over MCP stdio", a.registry.Len())
	return mcp.Serve(ctx, a.executor, &sdkmcp.StdioTransport{})
}

// app holds everything built from config for one command
type app struct {
	cfg         *config.Config
	log         *logger.Logger
	registry    *tool.Registry
	executor    *tool.Executor
	hookManager *hook.Manager
	instruments *telemetry.Instruments
	mcpManager  *mcp.Manager
	shutdown    telemetry.ShutdownFunc
}

// setup loads config, tools, hooks and telemetry. A nil confirmIn
// disables tool confirmation prompts.
func setup(ctx context.Context, logOut io.Writer, confirmIn io.Reader) (*app, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logLevel := logger.LevelInfo
	if verbose {
		logLevel = logger.LevelDebug
	}
	log := logger.NewLogger(logOut, logLevel)
	if noColor {
		log.SetColorMode(false)
	}

	shutdown, err := telemetry.Init("nimbus", version, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}
	instruments, err := telemetry.NewInstruments(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	a := &app{
		cfg:         cfg,
		log:         log,
		instruments: instruments,
		shutdown:    shutdown,
	}

	// Built-in tools first, then MCP tools, then freeze
	registry, err := tool.NewRegistry(weather.Tools(weather.NewClient(cfg.Weather.BaseURL, cfg.Weather.Timeout))...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = registry

	if len(cfg.MCP.Servers) > 0 {
		a.mcpManager = mcp.NewManager(registry)
		if err := a.mcpManager.Initialize(ctx, cfg.MCP); err != nil {
			log.Warn("MCP: %v", err)
		}
		log.Debug("MCP servers connected: %v", a.mcpManager.ListServers())
	}
	registry.Seal()
	log.Debug("Registered %d tools: %s", registry.Len(), strings.Join(registry.Names(), ", "))

	a.hookManager = hook.NewManager()
	if len(cfg.Hooks.ToolConfirm) > 0 && confirmIn != nil {
		a.hookManager.Register(handlers.NewToolConfirmHandlerWithIO(confirmIn, logOut, cfg.Hooks.ToolConfirm...))
		log.Debug("Tool confirmation enabled for: %s", strings.Join(cfg.Hooks.ToolConfirm, ", "))
	}

	a.executor = tool.NewExecutor(registry)
	a.executor.SetHookManager(a.hookManager)
	a.executor.SetInstruments(instruments)

	return a, nil
}

// newAgent builds the chat client and the chain-of-thought agent
func (a *app) newAgent() (*agent.ChainOfThought, error) {
	key, err := a.cfg.ResolveAPIKey(apiKey)
	if err != nil {
		return nil, err
	}

	a.log.Debug("Creating LLM client (model: %s, base: %s)", a.cfg.LLM.Model, a.cfg.LLM.BaseURL)
	client := openai.NewClient(key, a.cfg.LLM.Model, a.cfg.LLM.BaseURL)

	ag := agent.NewChainOfThought(client, a.executor, &agent.Config{
		MaxIterations: a.cfg.Agent.MaxIterations,
		Retry: llm.RetryPolicy{
			MaxAttempts: a.cfg.Retry.MaxAttempts,
			BaseDelay:   a.cfg.Retry.BaseDelay,
			MaxDelay:    a.cfg.Retry.MaxDelay,
			Multiplier:  2.0,
		},
	})
	ag.SetLogger(a.log)
	ag.SetHookManager(a.hookManager)
	ag.SetInstruments(a.instruments)

	a.log.Debug("Agent created with max_iterations=%d", a.cfg.Agent.MaxIterations)
	return ag, nil
}

// Close disconnects MCP servers and flushes telemetry
func (a *app) Close() {
	if a.mcpManager != nil {
		if err := a.mcpManager.Close(); err != nil {
			a.log.Warn("MCP shutdown: %v", err)
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			a.log.Warn("Telemetry shutdown: %v", err)
		}
	}
}

// loadConfig reads the config file and applies flag overrides
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadWithDefaults()
	}
	if err != nil {
		return nil, err
	}

	if apiBaseURL != "" {
		cfg.LLM.BaseURL = apiBaseURL
	}
	if model != "" {
		cfg.LLM.Model = model
	}
	if maxIterations != 0 {
		cfg.Agent.MaxIterations = maxIterations
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "nimbus")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}
