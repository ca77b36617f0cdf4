package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"seasonbot/internal/config"
	"seasonbot/internal/logging"
)

// Daemon ties update intake to the dispatcher and enforces single-instance
// execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	dispatcher *Dispatcher
	poller     *Poller
	api        *APIServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	Mode           string
	LockFilePath   string
	APIAddress     string
	PendingSenders int
}

// New constructs a daemon. poller is nil in webhook mode; api is nil when no
// bind address is configured.
func New(cfg *config.Config, dispatcher *Dispatcher, poller *Poller, api *APIServer, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || dispatcher == nil {
		return nil, errors.New("daemon requires config and dispatcher")
	}
	if cfg.Bot.Mode == config.ModeWebhook && api == nil {
		return nil, errors.New("webhook mode requires paths.api_bind")
	}
	if cfg.Bot.Mode == config.ModePolling && poller == nil {
		return nil, errors.New("polling mode requires a poller")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		dispatcher: dispatcher,
		poller:     poller,
		api:        api,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and begins update intake.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another seasonbot instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.cancel = cancel
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		if d.poller != nil {
			_ = d.poller.Run(runCtx)
			return
		}
		<-runCtx.Done()
	}()

	d.running.Store(true)
	d.logger.Info("seasonbot daemon started",
		logging.String("mode", d.cfg.Bot.Mode),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop halts intake, waits for in-flight updates and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.cancel()
	<-d.done
	d.api.Stop()
	d.dispatcher.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start reports a running instance"))
	}
	d.running.Store(false)
	d.logger.Info("seasonbot daemon stopped")
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:        d.running.Load(),
		Mode:           d.cfg.Bot.Mode,
		LockFilePath:   d.lockPath,
		APIAddress:     d.api.Addr(),
		PendingSenders: d.dispatcher.Pending(),
	}
}
