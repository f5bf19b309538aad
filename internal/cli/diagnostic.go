// Package cli formats startup errors — bad config files, unreachable
// exchanges, wallet setup mistakes — as a short diagnostic block with a
// source excerpt, a caret pointing at the offending field, and an optional
// help line, in place of a bare Go error string. The formatting logic is
// kept deliberately small: a fixed-width frame around one source line
// plus a caret, not a general-purpose span renderer.
package cli

import (
	"fmt"
	"strings"
)

// ConfigError reports a problem with one field of a loaded YAML config,
// pointing at the offending line when it is known.
type ConfigError struct {
	Message string
	Source  string // the raw config file contents
	Line    int    // 1-indexed line the error applies to, 0 if unknown
	Help    string
}

// NewConfigError builds a ConfigError against source, reporting the error
// at line (1-indexed; pass 0 if no specific line applies).
func NewConfigError(message, source string, line int) *ConfigError {
	return &ConfigError{Message: message, Source: source, Line: line}
}

// WithHelp attaches a one-line remediation hint and returns the receiver.
func (e *ConfigError) WithHelp(help string) *ConfigError {
	e.Help = help
	return e
}

// Error satisfies the error interface with the plain message, so
// ConfigError composes with %w and errors.Is/As like any other error.
func (e *ConfigError) Error() string {
	return e.Message
}

// Render renders the full diagnostic block: code, message, a framed source
// excerpt around Line, and the help line if set.
func (e *ConfigError) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "error[edgelord::config]: %s\n", e.Message)
	if e.Line > 0 {
		renderExcerpt(&b, e.Source, e.Line)
	}
	if e.Help != "" {
		fmt.Fprintf(&b, "  help: %s\n", e.Help)
	}
	return b.String()
}

// StrategyError reports a misconfigured or incompatible strategy setup —
// no source span, just a message and an optional hint.
type StrategyError struct {
	Message string
	Help    string
}

// NewStrategyError builds a StrategyError.
func NewStrategyError(message string) *StrategyError {
	return &StrategyError{Message: message}
}

// WithHelp attaches a remediation hint and returns the receiver.
func (e *StrategyError) WithHelp(help string) *StrategyError {
	e.Help = help
	return e
}

func (e *StrategyError) Error() string { return e.Message }

// Render renders the diagnostic block for a StrategyError.
func (e *StrategyError) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "error[edgelord::strategy]: %s\n", e.Message)
	if e.Help != "" {
		fmt.Fprintf(&b, "  help: %s\n", e.Help)
	}
	return b.String()
}

// ConnectionError reports a failure to reach an exchange endpoint.
type ConnectionError struct {
	Message string
}

// NewConnectionError builds a ConnectionError.
func NewConnectionError(message string) *ConnectionError {
	return &ConnectionError{Message: message}
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed: %s", e.Message)
}

// Render renders the diagnostic block for a ConnectionError.
func (e *ConnectionError) Render() string {
	return fmt.Sprintf(
		"error[edgelord::connection]: connection failed: %s\n  help: check your network connection and exchange status\n",
		e.Message,
	)
}

// WalletError reports a problem deriving or using signing credentials.
type WalletError struct {
	Message string
	Help    string
}

// NewWalletError builds a WalletError.
func NewWalletError(message string) *WalletError {
	return &WalletError{Message: message}
}

// WithHelp attaches a remediation hint and returns the receiver.
func (e *WalletError) WithHelp(help string) *WalletError {
	e.Help = help
	return e
}

func (e *WalletError) Error() string {
	return fmt.Sprintf("wallet error: %s", e.Message)
}

// Render renders the diagnostic block for a WalletError.
func (e *WalletError) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "error[edgelord::wallet]: wallet error: %s\n", e.Message)
	if e.Help != "" {
		fmt.Fprintf(&b, "  help: %s\n", e.Help)
	}
	return b.String()
}

// renderExcerpt writes the source line at line (1-indexed), framed by its
// line number and one line of context on each side where available, with
// a caret line pointing under it.
func renderExcerpt(b *strings.Builder, source string, line int) {
	lines := strings.Split(source, "\n")
	if line < 1 || line > len(lines) {
		return
	}
	start := line - 2
	if start < 0 {
		start = 0
	}
	end := line + 1
	if end > len(lines) {
		end = len(lines)
	}
	for i := start; i < end; i++ {
		marker := "  "
		if i == line-1 {
			marker = "> "
		}
		fmt.Fprintf(b, "%s%4d | %s\n", marker, i+1, lines[i])
		if i == line-1 {
			fmt.Fprintf(b, "       | %s\n", strings.Repeat("^", len(strings.TrimRight(lines[i], " \t"))))
		}
	}
}

// Render dispatches to the Render method of any diagnostic error this
// package defines, falling back to err.Error() for anything else — so
// callers at the top of main() can render whatever Load/Validate returned
// without a type switch of their own.
func Render(err error) string {
	switch e := err.(type) {
	case *ConfigError:
		return e.Render()
	case *StrategyError:
		return e.Render()
	case *ConnectionError:
		return e.Render()
	case *WalletError:
		return e.Render()
	default:
		return fmt.Sprintf("error: %s\n", err.Error())
	}
}
