package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// AbuseLogWriter drains the security topic into an append-only log file. The
// line format is a contract with the external ban daemon that pattern-matches
// it; field order and layout must stay stable across releases.
type AbuseLogWriter struct {
	bus    *Bus
	file   *os.File
	logger *slog.Logger
	done   chan struct{}
}

func NewAbuseLogWriter(bus *Bus, path string, logger *slog.Logger) (*AbuseLogWriter, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open abuse log %s: %w", path, err)
	}

	return &AbuseLogWriter{
		bus:    bus,
		file:   file,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Run consumes events until ctx is cancelled or the bus closes.
func (w *AbuseLogWriter) Run(ctx context.Context) error {
	messages, err := w.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to security topic: %w", err)
	}

	go func() {
		defer close(w.done)

		for msg := range messages {
			var event SecurityEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				w.logger.Error("failed to decode security event", "error", err)
				msg.Ack()
				continue
			}

			if _, err := fmt.Fprintln(w.file, FormatLine(event)); err != nil {
				w.logger.Error("failed to append abuse log line", "error", err)
			}
			msg.Ack()
		}
	}()

	return nil
}

// FormatLine renders one abuse-log line. Fixed field order; optional fields
// are omitted entirely rather than rendered empty.
func FormatLine(event SecurityEvent) string {
	line := fmt.Sprintf("%s kind=%s ip=%s",
		event.Timestamp.UTC().Format(time.RFC3339), event.Kind, event.IP)
	if event.Address != "" {
		line += " address=" + event.Address
	}
	if event.Path != "" {
		line += " path=" + event.Path
	}
	if event.Reason != "" {
		line += " reason=" + event.Reason
	}
	return line
}

// Close waits for the drain goroutine and closes the log file. The bus must
// be closed first so the subscription channel terminates.
func (w *AbuseLogWriter) Close() error {
	<-w.done
	return w.file.Close()
}
