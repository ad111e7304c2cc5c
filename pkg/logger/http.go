package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/fx"
)

// HTTPLogger writes one access log line per request in combined-ish format.
// Lines go to HTTP_LOG_PATH when set, otherwise they are discarded.
type HTTPLogger struct {
	mu  sync.Mutex
	out io.Writer
}

// NewHTTPLogger opens the access log file and closes it on shutdown
func NewHTTPLogger(lc fx.Lifecycle) (*HTTPLogger, error) {
	path := os.Getenv("HTTP_LOG_PATH")
	if path == "" {
		return &HTTPLogger{out: io.Discard}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create http log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open http log: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return f.Close()
		},
	})

	return &HTTPLogger{out: f}, nil
}

// NewHTTPLoggerWriter creates an HTTPLogger writing to w (used in tests)
func NewHTTPLoggerWriter(w io.Writer) *HTTPLogger {
	return &HTTPLogger{out: w}
}

// LogRequest appends a single access log line
func (l *HTTPLogger) LogRequest(ip, method, uri string, status int, latency time.Duration, userAgent, requestID string) {
	if l == nil || l.out == nil {
		return
	}

	line := fmt.Sprintf("%s - [%s] %q %d %s %q rid=%s\n",
		ip,
		time.Now().UTC().Format(time.RFC3339),
		method+" "+uri,
		status,
		latency.Round(time.Microsecond),
		userAgent,
		requestID,
	)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, line)
}
