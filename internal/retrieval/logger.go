package retrieval

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"recall/internal/logger"
)

type QueryLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	Query      string        `json:"query"`
	NumResults int           `json:"num_results"`
	Duration   time.Duration `json:"duration_ns"`
	LatencyMs  int64         `json:"latency_ms"`
	QueryID    string        `json:"query_id,omitempty"`
}

// QueryLogger appends one JSON line per successful search. It is an audit
// trail, separate from the application log.
type QueryLogger struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewQueryLogger(w io.Writer) *QueryLogger {
	return &QueryLogger{writer: w}
}

func NewFileQueryLogger(path string) (*QueryLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path is from application config, not user input
	if err != nil {
		return nil, err
	}
	return NewQueryLogger(f), nil
}

func (l *QueryLogger) Log(ctx context.Context, entry QueryLogEntry) {
	entry.Timestamp = time.Now()
	entry.LatencyMs = entry.Duration.Milliseconds()
	entry.QueryID = logger.QueryID(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.NewEncoder(l.writer).Encode(entry); err != nil {
		slog.Error("failed to write query log entry", "error", err)
	}
}
