// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logx emits one-line, greppable log records of the form
//
//	[OK] [PUBMED] fetched citations (pmid=25186741 count=12)
//
// on top of zerolog. Console output uses the bracketed format; setting
// JSON mode routes raw zerolog events to the writer instead, which is what
// the stage-completion analytics stream consumes.
package logx

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Status prefixes. INFO is implied and not printed.
const (
	StatusOK   = "OK"
	StatusFail = "FAIL"
	StatusSkip = "SKIP"
	StatusWarn = "WARN"
)

// Logger tags events with a source or stage name.
type Logger struct {
	zl     zerolog.Logger
	source string
}

// New builds a Logger writing bracketed lines to w. When json is true the
// underlying zerolog JSON stream is written as-is.
func New(w io.Writer, json bool) Logger {
	if !json {
		w = &lineWriter{out: w}
	}
	return Logger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() Logger {
	return Logger{zl: zerolog.Nop()}
}

// WithSource returns a copy tagged with an upper-cased source name.
func (l Logger) WithSource(source string) Logger {
	l.source = strings.ToUpper(source)
	return l
}

// KV is a single structured field.
type KV struct {
	Key   string
	Value any
}

// F builds a field.
func F(key string, value any) KV { return KV{Key: key, Value: value} }

func (l Logger) emit(level zerolog.Level, status, msg string, fields []KV) {
	ev := l.zl.WithLevel(level)
	if l.source != "" {
		ev = ev.Str("source", l.source)
	}
	if status != "" {
		ev = ev.Str("status", status)
	}
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}

// OK logs a success line.
func (l Logger) OK(msg string, fields ...KV) {
	l.emit(zerolog.InfoLevel, StatusOK, msg, fields)
}

// Fail logs a failure line. Failures here are recoverable by design; fatal
// conditions surface as returned errors, not log levels.
func (l Logger) Fail(msg string, fields ...KV) {
	l.emit(zerolog.ErrorLevel, StatusFail, msg, fields)
}

// Skip logs a line for deliberately bypassed work.
func (l Logger) Skip(msg string, fields ...KV) {
	l.emit(zerolog.InfoLevel, StatusSkip, msg, fields)
}

// Warn logs a degraded-but-continuing line.
func (l Logger) Warn(msg string, fields ...KV) {
	l.emit(zerolog.WarnLevel, StatusWarn, msg, fields)
}

// Info logs a plain line without a status prefix.
func (l Logger) Info(msg string, fields ...KV) {
	l.emit(zerolog.InfoLevel, "", msg, fields)
}

// lineWriter renders zerolog JSON events as bracketed single lines.
type lineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(p, &fields); err != nil {
		// Pass through anything we cannot decode.
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.out.Write(p)
	}

	var b strings.Builder
	if status, _ := fields["status"].(string); status != "" {
		fmt.Fprintf(&b, "[%s] ", status)
	}
	if source, _ := fields["source"].(string); source != "" {
		fmt.Fprintf(&b, "[%s] ", source)
	}
	msg, _ := fields["message"].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		switch k {
		case "status", "source", "message", "level", "time":
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) > 0 {
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%s=%v", k, fields[k])
		}
		b.WriteByte(')')
	}
	b.WriteByte('\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.out, b.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}
