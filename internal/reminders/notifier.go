package reminders

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// LogNotifier writes fired alarms to the log and, optionally, to a terminal.
type LogNotifier struct {
	logger *zap.Logger

	mu  sync.Mutex
	out io.Writer
}

// NewLogNotifier creates a notifier. out may be nil.
func NewLogNotifier(logger *zap.Logger, out io.Writer) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger, out: out}
}

func (n *LogNotifier) Notify(ctx context.Context, p Payload) error {
	n.logger.Info("Reminder",
		zap.String("kind", string(p.Kind)),
		zap.String("key", p.Key),
		zap.String("title", p.Title),
		zap.String("message", p.Message),
	)

	if n.out == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.out, "🔔 %s: %s\n", p.Title, p.Message)
	return err
}
