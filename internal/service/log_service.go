package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/rs/zerolog"
)

const (
	defaultTail = 100
	maxTail     = 5000
	maxLineSize = 1 << 20
)

// LogEntry is one line of the JSON log file
type LogEntry struct {
	Time    string
	Level   string
	Message string
	Fields  string
}

type logService struct {
	path string
}

func newLogService(path string) *logService {
	return &logService{path: path}
}

// Tail returns the last n entries at or above level, oldest first. An empty
// level keeps every entry.
func (s *logService) Tail(ctx context.Context, n int, level string) ([]LogEntry, error) {
	if s.path == "" {
		return nil, fmt.Errorf("log file not configured: %w", apperr.ErrResourceNotFound)
	}
	if n <= 0 {
		n = defaultTail
	}
	if n > maxTail {
		n = maxTail
	}

	threshold := zerolog.TraceLevel
	if level != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil || lvl == zerolog.NoLevel {
			return nil, fmt.Errorf("log level %q: %w", level, apperr.ErrIllegalArgument)
		}
		threshold = lvl
	}

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]LogEntry, 0, n)
	next := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, lvl := parseLogLine(scanner.Text())
		if lvl < threshold || (level != "" && lvl == zerolog.NoLevel) {
			continue
		}
		if len(ring) < n {
			ring = append(ring, entry)
			continue
		}
		ring[next] = entry
		next = (next + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return append(ring[next:], ring[:next]...), nil
}

// parseLogLine decodes a zerolog JSON line. Other lines are kept verbatim at
// no level.
func parseLogLine(line string) (LogEntry, zerolog.Level) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{Message: line}, zerolog.NoLevel
	}

	entry := LogEntry{}
	lvl := zerolog.NoLevel
	if v, ok := raw[zerolog.LevelFieldName].(string); ok {
		entry.Level = v
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			lvl = parsed
		}
	}
	if v, ok := raw[zerolog.TimestampFieldName].(string); ok {
		entry.Time = v
	}
	if v, ok := raw[zerolog.MessageFieldName].(string); ok {
		entry.Message = v
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		switch k {
		case zerolog.LevelFieldName, zerolog.TimestampFieldName, zerolog.MessageFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, raw[k]))
	}
	entry.Fields = strings.Join(parts, " ")
	return entry, lvl
}
