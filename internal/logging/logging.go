// Package logging provides categorized, zap-backed logging for the AXON
// toolchain: one named child logger per pipeline stage (lex, parse, check,
// ir, exec, tool, model, memory, anchor, cli), all built from a single
// process-wide base logger configured once at startup.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a pipeline stage a logger is scoped to.
type Category string

const (
	CategoryCLI    Category = "cli"
	CategoryLex    Category = "lex"
	CategoryParse  Category = "parse"
	CategoryCheck  Category = "check"
	CategoryIR     Category = "ir"
	CategoryExec   Category = "exec"
	CategoryTool   Category = "tool"
	CategoryModel  Category = "model"
	CategoryMemory Category = "memory"
	CategoryAnchor Category = "anchor"
)

var (
	mu     sync.RWMutex
	base   *zap.Logger
	named  = map[Category]*zap.Logger{}
	inited bool
)

// Init builds the process-wide base logger. verbose lowers the level to
// debug; jsonFormat switches the encoding from console to JSON (useful when
// a trace is piped into another tool). Safe to call more than once; the
// last call wins.
func Init(verbose, jsonFormat bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if !jsonFormat {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	mu.Lock()
	base = l
	named = map[Category]*zap.Logger{}
	inited = true
	mu.Unlock()

	return l, nil
}

// Get returns the cached named logger for a category, lazily deriving it
// from the base logger. Before Init is called, Get falls back to zap's
// no-op logger so that library code never needs a nil check.
func Get(cat Category) *zap.Logger {
	mu.RLock()
	if !inited {
		mu.RUnlock()
		return zap.NewNop()
	}
	if l, ok := named[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := named[cat]; ok {
		return l
	}
	l := base.Named(string(cat))
	named[cat] = l
	return l
}

// Sync flushes every named logger plus the base logger. Call once at
// process shutdown; zap.Logger.Sync commonly errors on stderr/stdout
// (ENOTTY), which callers are expected to ignore.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if !inited {
		return
	}
	for _, l := range named {
		_ = l.Sync()
	}
	_ = base.Sync()
}
