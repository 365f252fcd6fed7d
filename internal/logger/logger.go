package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Level represents the log level
type Level int

const (
	LevelDebug Level = iota // Debug information (only shown with --verbose)
	LevelInfo               // Important steps
	LevelTool               // Tool call related
	LevelAgent              // Agent reasoning steps
	LevelError              // Error messages
)

// ANSI color codes for terminal output
const (
	ColorReset   = "\033[0m"
	ColorRed     = "\033[31m"
	ColorGreen   = "\033[32m"
	ColorYellow  = "\033[33m"
	ColorBlue    = "\033[34m"
	ColorMagenta = "\033[35m"
	ColorCyan    = "\033[36m"
	ColorGray    = "\033[90m"
	ColorBold    = "\033[1m"
)

// Logger renders agent progress to a terminal
type Logger struct {
	writer    io.Writer
	level     Level
	showTime  bool
	colorMode bool
}

// NewLogger creates a new Logger instance
func NewLogger(w io.Writer, level Level) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{
		writer:    w,
		level:     level,
		showTime:  true,
		colorMode: true,
	}
}

// Discard returns a logger that writes nowhere
func Discard() *Logger {
	l := NewLogger(io.Discard, LevelError)
	l.colorMode = false
	return l
}

// SetColorMode enables or disables colored output
func (l *Logger) SetColorMode(enabled bool) {
	l.colorMode = enabled
}

// SetShowTime enables or disables timestamp display
func (l *Logger) SetShowTime(enabled bool) {
	l.showTime = enabled
}

// Writer returns the underlying output
func (l *Logger) Writer() io.Writer {
	return l.writer
}

// Debug logs debug information (only shown in verbose mode)
func (l *Logger) Debug(format string, args ...any) {
	if l.level <= LevelDebug {
		l.log(ColorGray, "DEBUG", format, args...)
	}
}

// Info logs general information
func (l *Logger) Info(format string, args ...any) {
	if l.level <= LevelInfo {
		l.log(ColorBlue, "INFO", format, args...)
	}
}

// Warn logs recoverable problems
func (l *Logger) Warn(format string, args ...any) {
	if l.level <= LevelAgent {
		l.log(ColorYellow, "WARN", format, args...)
	}
}

// Error logs error messages
func (l *Logger) Error(format string, args ...any) {
	l.log(ColorRed, "ERROR", format, args...)
}

// Plan logs the model's reasoning for a plan step
func (l *Logger) Plan(thought string) {
	if l.level <= LevelAgent {
		l.printSection(ColorMagenta, "📋 Plan", thought)
	}
}

// Observe logs the model's analysis of a tool result
func (l *Logger) Observe(observation string) {
	if l.level <= LevelAgent {
		l.printSection(ColorBlue, "👁️ Observe", observation)
	}
}

// FinalAnswer logs the answer that ends a run
func (l *Logger) FinalAnswer(answer string) {
	l.printBanner(ColorGreen, "🤖 Final Answer", answer)
}

// ParseFailure logs a reply that could not be decoded into a step
func (l *Logger) ParseFailure(err error, raw string) {
	if l.level <= LevelAgent {
		l.log(ColorYellow, "WARN", "Failed to parse response, retrying: %v", err)
	}
	l.Debug("Raw response: %s", raw)
}

// RateLimited logs a backoff wait before the next completion attempt
func (l *Logger) RateLimited(attempt, maxAttempts int, wait time.Duration) {
	if l.level <= LevelAgent {
		l.log(ColorYellow, "WAIT", "⏳ Rate limited. Waiting %s before retry (%d/%d)...", wait, attempt, maxAttempts)
	}
}

// ToolCall logs a tool call with its parameters
func (l *Logger) ToolCall(toolName string, params string) {
	if l.level <= LevelTool {
		formattedParams := l.formatJSON(params)
		l.printSection(ColorCyan, fmt.Sprintf("🔧 Tool Call: %s", toolName), formattedParams)
	}
}

// ToolResult logs a tool execution result
func (l *Logger) ToolResult(toolName string, success bool, output string, duration time.Duration) {
	if l.level <= LevelTool {
		status := "✅ Success"
		color := ColorGreen
		if !success {
			status = "❌ Failed"
			color = ColorRed
		}

		// Limit output to maximum 2 lines and 500 characters
		const maxLines = 2
		const maxLength = 500

		lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
		displayOutput := output
		truncatedLines := false

		if len(lines) > maxLines {
			displayOutput = strings.Join(lines[:maxLines], "\n")
			truncatedLines = true
		}

		if len(displayOutput) > maxLength {
			displayOutput = displayOutput[:maxLength] + "..."
		} else if truncatedLines {
			displayOutput += "\n..."
		}

		header := fmt.Sprintf("📊 Tool Result: %s [%s] (%s)", toolName, status, duration.Round(time.Millisecond))
		l.printSection(color, header, displayOutput)
	}
}

// SessionStart logs the beginning of an agent run
func (l *Logger) SessionStart(runID, query string) {
	title := "🧑 User"
	if runID != "" {
		l.Debug("Run %s started", runID)
	}
	l.printBanner(ColorCyan, title, query)
}

// SessionEnd logs the completion of an agent run with statistics
func (l *Logger) SessionEnd(duration time.Duration, iterations, toolCallCount int) {
	summary := fmt.Sprintf("Duration: %s | Iterations: %d | Tool Calls: %d",
		duration.Round(time.Millisecond), iterations, toolCallCount)
	l.Info("%s", summary)
}

// log is the core logging method
func (l *Logger) log(color, level, format string, args ...any) {
	timestamp := ""
	if l.showTime {
		timestamp = time.Now().Format("15:04:05") + " "
	}

	msg := fmt.Sprintf(format, args...)

	if l.colorMode {
		fmt.Fprintf(l.writer, "%s%s[%s]%s %s\n",
			color, timestamp, level, ColorReset, msg)
	} else {
		fmt.Fprintf(l.writer, "%s[%s] %s\n", timestamp, level, msg)
	}
}

// printSection prints a formatted section with header and content
func (l *Logger) printSection(color, header, content string) {
	separator := strings.Repeat("─", 60)

	if l.colorMode {
		fmt.Fprintf(l.writer, "\n%s%s%s%s\n", ColorBold, color, header, ColorReset)
		fmt.Fprintf(l.writer, "%s%s%s\n", color, separator, ColorReset)
		fmt.Fprintf(l.writer, "%s\n", content)
		fmt.Fprintf(l.writer, "%s%s%s\n\n", color, separator, ColorReset)
	} else {
		fmt.Fprintf(l.writer, "\n%s\n%s\n%s\n%s\n\n", header, separator, content, separator)
	}
}

// printBanner prints a prominent banner for the user query and final answer
func (l *Logger) printBanner(color, title, subtitle string) {
	separator := strings.Repeat("═", 60)

	if l.colorMode {
		fmt.Fprintf(l.writer, "\n%s%s%s%s\n", ColorBold, color, separator, ColorReset)
		fmt.Fprintf(l.writer, "%s%s%s: %s%s\n", ColorBold, color, title, subtitle, ColorReset)
		fmt.Fprintf(l.writer, "%s%s%s%s\n\n", ColorBold, color, separator, ColorReset)
	} else {
		fmt.Fprintf(l.writer, "\n%s\n%s: %s\n%s\n\n", separator, title, subtitle, separator)
	}
}

// formatJSON formats JSON strings adaptively based on length
// Short JSON (< 80 chars) stays compact, long JSON gets pretty-printed
func (l *Logger) formatJSON(jsonStr string) string {
	compact := strings.TrimSpace(jsonStr)

	if len(compact) < 80 {
		return compact
	}

	var obj any
	if err := json.Unmarshal([]byte(compact), &obj); err != nil {
		return compact
	}

	pretty, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return compact
	}

	return string(pretty)
}
