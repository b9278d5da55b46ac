// Package notify delivers drop and offer alerts. Delivery is best-effort:
// a failed send is reported to the caller, which logs it and moves on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/containrrr/shoutrrr"
	"github.com/containrrr/shoutrrr/pkg/router"
	"github.com/containrrr/shoutrrr/pkg/types"
)

// Sender is what the tracker needs from a notification channel.
type Sender interface {
	Send(ctx context.Context, title, body string) error
}

// Title and body of the connectivity check.
const (
	TestTitle = "Price Tracker Test"
	TestBody  = "Notifications are working correctly!"
)

// New returns a shoutrrr-backed sender for urls, or Nop when none are set.
func New(urls []string, logger *slog.Logger) (Sender, error) {
	if len(urls) == 0 {
		return Nop{}, nil
	}
	s, err := NewShoutrrr(urls, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Shoutrrr fans a message out to every configured service URL
// (ntfy://, pushover://, discord://, smtp://, ...).
type Shoutrrr struct {
	router *router.ServiceRouter
	logger *slog.Logger
	count  int
}

// NewShoutrrr validates every URL up front so a typo fails at startup
// rather than at the first price drop.
func NewShoutrrr(urls []string, logger *slog.Logger) (*Shoutrrr, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("notify.NewShoutrrr: %w", err)
	}
	return &Shoutrrr{router: r, logger: logger, count: len(urls)}, nil
}

// Send delivers to every service; the error joins each failed delivery.
func (s *Shoutrrr) Send(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notify.Shoutrrr.Send: %w", err)
	}
	errs := s.router.Send(body, &types.Params{"title": title})
	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("notify.Shoutrrr.Send: %d of %d targets failed: %w", len(failed), s.count, errors.Join(failed...))
	}
	s.logger.DebugContext(ctx, "notification sent", "title", title, "targets", s.count)
	return nil
}

// Nop discards every message.
type Nop struct{}

// Send implements Sender.
func (Nop) Send(context.Context, string, string) error { return nil }

// Test sends the fixed connectivity-check message.
func Test(ctx context.Context, s Sender) error {
	return s.Send(ctx, TestTitle, TestBody)
}
