// Package logging configures slog for promptlab and gates verbose output
// behind debug categories.
//
// Categories (PROMPTLAB_DEBUG, comma separated): providers, workshop,
// storage, api, config, all. Level (PROMPTLAB_LOG_LEVEL): ERROR, WARN,
// INFO, DEBUG, TRACE.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LevelTrace sits below slog.LevelDebug. Full request bodies are only logged here.
const LevelTrace = slog.LevelDebug - 4

var (
	mu         sync.RWMutex
	categories = parseCategories(os.Getenv("PROMPTLAB_DEBUG"))
)

// Init installs the default slog handler writing to w. Environment values
// take precedence over the configured ones.
func Init(w io.Writer, configCategories, configLevel string) {
	cats := os.Getenv("PROMPTLAB_DEBUG")
	if cats == "" {
		cats = configCategories
	}

	mu.Lock()
	categories = parseCategories(cats)
	mu.Unlock()

	level := os.Getenv("PROMPTLAB_LOG_LEVEL")
	if level == "" {
		level = configLevel
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// Enabled reports whether debug output is active for the category.
func Enabled(category string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categories["all"] || categories[category]
}

// Log emits a debug record tagged with the category when it is enabled.
func Log(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace record tagged with the category when it is enabled.
func Trace(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Truncate shortens s to maxLen bytes and appends "..." when it was cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
