// Package notify pushes selected bot events to chat channels (Telegram,
// Discord). A failing channel never blocks delivery to the others.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// DefaultEvents are forwarded when no explicit event list is configured.
var DefaultEvents = []domain.EventType{
	domain.EventPositionOpened,
	domain.EventPositionClosed,
	domain.EventOrderFailed,
}

// Notifier dispatches events to every Sender, filtered by event type.
type Notifier struct {
	senders []Sender
	events  map[domain.EventType]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list means DefaultEvents.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventType]bool)
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.EventType(e)] = true
		}
	}
	if len(allowed) == 0 {
		for _, e := range DefaultEvents {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Wants reports whether evt's type passes the filter.
func (n *Notifier) Wants(t domain.EventType) bool {
	return n.events[t]
}

// Notify formats evt and sends it if its type passes the filter.
func (n *Notifier) Notify(ctx context.Context, evt domain.Event) error {
	if !n.Wants(evt.Type) {
		return nil
	}
	title, message := Format(evt)
	return n.dispatch(ctx, title, message)
}

// dispatch sends to every sender and joins their errors.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
