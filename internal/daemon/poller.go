package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"seasonbot/internal/logging"
	"seasonbot/internal/services/telegram"
)

const (
	pollBackoffMin = time.Second
	pollBackoffMax = 30 * time.Second
)

// UpdateSource is the long-poll half of the Bot API.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

// Poller feeds long-polled updates to a Dispatcher.
type Poller struct {
	source     UpdateSource
	dispatcher *Dispatcher
	timeout    time.Duration
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewPoller builds a poller using timeout as the long-poll window.
func NewPoller(source UpdateSource, dispatcher *Dispatcher, timeout time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		source:     source,
		dispatcher: dispatcher,
		timeout:    timeout,
		logger:     logging.NewComponentLogger(logger, "poller"),
		sleep:      sleepContext,
	}
}

// Run polls until ctx is cancelled. Failed polls back off exponentially,
// honouring the API's retry_after hint when present.
func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	backoff := pollBackoffMin
	p.logger.Info("polling for updates", logging.Duration("timeout", p.timeout))
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := p.source.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := backoff
			var apiErr *telegram.APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				wait = time.Duration(apiErr.RetryAfter) * time.Second
			}
			logging.WarnWithContext(p.logger, "getUpdates failed", "poll_failed",
				logging.Error(err),
				logging.Duration("retry_in", wait),
				logging.String(logging.FieldImpact, "updates delayed"),
				logging.String(logging.FieldErrorHint, "check network access and the bot token"))
			if err := p.sleep(ctx, wait); err != nil {
				return nil
			}
			backoff = min(backoff*2, pollBackoffMax)
			continue
		}
		backoff = pollBackoffMin

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.dispatcher.Submit(ctx, u)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
