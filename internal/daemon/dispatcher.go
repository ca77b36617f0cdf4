package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"seasonbot/internal/bot"
	"seasonbot/internal/logging"
	"seasonbot/internal/services"
	"seasonbot/internal/services/telegram"
)

// Handler consumes decoded updates.
type Handler interface {
	Dispatch(ctx context.Context, env bot.Envelope) (bot.Route, error)
}

// Dispatcher runs updates concurrently across senders while keeping each
// sender's updates in arrival order. At most limit senders are served at
// once; Submit blocks when the pool is full.
type Dispatcher struct {
	handler     Handler
	botUsername string
	logger      *slog.Logger

	group errgroup.Group

	mu      sync.Mutex
	pending map[int64][]bot.Envelope
}

// NewDispatcher builds a dispatcher. A limit below one means one.
func NewDispatcher(handler Handler, botUsername string, limit int, logger *slog.Logger) *Dispatcher {
	if limit < 1 {
		limit = 1
	}
	d := &Dispatcher{
		handler:     handler,
		botUsername: botUsername,
		logger:      logging.NewComponentLogger(logger, "dispatcher"),
		pending:     make(map[int64][]bot.Envelope),
	}
	d.group.SetLimit(limit)
	return d
}

// Submit queues u for handling under ctx. It reports false when the update
// is not something the bot handles.
func (d *Dispatcher) Submit(ctx context.Context, u telegram.Update) bool {
	env, ok := bot.Decode(u, d.botUsername)
	if !ok {
		d.logger.Debug("update ignored", logging.Int64(logging.FieldUpdateID, u.UpdateID))
		return false
	}

	d.mu.Lock()
	queue, active := d.pending[env.SenderID]
	d.pending[env.SenderID] = append(queue, env)
	d.mu.Unlock()
	if active {
		return true
	}

	d.group.Go(func() error {
		d.drain(ctx, env.SenderID)
		return nil
	})
	return true
}

// Pending is the number of senders with queued or running updates.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Wait blocks until every submitted update has been handled.
func (d *Dispatcher) Wait() {
	_ = d.group.Wait()
}

func (d *Dispatcher) drain(ctx context.Context, senderID int64) {
	for {
		d.mu.Lock()
		queue := d.pending[senderID]
		if len(queue) == 0 {
			delete(d.pending, senderID)
			d.mu.Unlock()
			return
		}
		env := queue[0]
		d.pending[senderID] = queue[1:]
		d.mu.Unlock()

		d.handle(ctx, env)
	}
}

func (d *Dispatcher) handle(ctx context.Context, env bot.Envelope) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	ctx = services.WithUpdateID(ctx, env.UpdateID)
	ctx = services.WithUserID(ctx, env.SenderID)
	ctx = services.WithChatID(ctx, env.ChatID)
	logger := logging.WithContext(ctx, d.logger)

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "update handler panicked", "dispatch_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldImpact, "update dropped"))
		}
	}()

	start := time.Now()
	route, err := d.handler.Dispatch(ctx, env)
	attrs := []logging.Attr{
		logging.String("route", string(route)),
		logging.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logger.Debug("update handled", logging.Args(attrs...)...)
}
