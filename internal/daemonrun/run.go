package daemonrun

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"seasonbot/internal/bot"
	"seasonbot/internal/catalog"
	"seasonbot/internal/config"
	"seasonbot/internal/daemon"
	"seasonbot/internal/delivery"
	"seasonbot/internal/logging"
	"seasonbot/internal/services/telegram"
	"seasonbot/internal/session"
	"seasonbot/internal/subscription"
)

const sessionSweepInterval = time.Minute

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the bot and blocks until SIGINT/SIGTERM or cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.ValidateRuntime(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.LogPath()},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := catalog.Open(signalCtx, cfg)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		return err
	}
	defer store.Close()

	sessions, closeSessions, err := openSessions(signalCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	client, err := telegram.New(cfg.Bot.Token, cfg.Bot.APIURL,
		telegram.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}))
	if err != nil {
		return fmt.Errorf("create bot api client: %w", err)
	}
	me, err := client.GetMe(signalCtx)
	if err != nil {
		logging.ErrorWithContext(logger, "bot api unreachable", "bot_api_unreachable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check bot.token and network access to the Bot API"))
		return fmt.Errorf("get bot identity: %w", err)
	}
	username := cfg.Bot.Username
	if username == "" {
		username = me.Username
	}
	logger.Info("bot identity resolved",
		logging.String("username", username),
		logging.Int64("bot_id", me.ID),
		logging.Int("admins", len(cfg.Bot.Admins)),
		logging.String("storage_backend", cfg.Storage.Backend),
		logging.String("sessions_backend", cfg.Sessions.Backend))

	router, err := bot.NewRouter(bot.Deps{
		Admins:      cfg.Bot.Admins,
		BotUsername: username,
		Store:       store,
		Ingest:      session.NewMachine(sessions, store, session.WithLogger(logger)),
		Gate:        subscription.NewGate(store, client, cfg.LookupTimeout(), logger),
		Delivery: delivery.NewSequencer(client, cfg.DeliveryInterval(), cfg.Delivery.PartLabel,
			delivery.WithLogger(logger)),
		Transport: client,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	dispatcher := daemon.NewDispatcher(router, username, cfg.Bot.MaxConcurrentUpdates, logger)
	health := func(ctx context.Context) error {
		_, err := store.ListChannels(ctx)
		return err
	}
	api := daemon.NewAPIServer(cfg, dispatcher, health, logger)

	var poller *daemon.Poller
	switch cfg.Bot.Mode {
	case config.ModeWebhook:
		if err := registerWebhook(signalCtx, client, cfg, logger); err != nil {
			return err
		}
	default:
		if err := client.DeleteWebhook(signalCtx); err != nil {
			return fmt.Errorf("clear webhook before polling: %w", err)
		}
		poller = daemon.NewPoller(client, dispatcher, cfg.PollTimeout(), logger)
	}

	d, err := daemon.New(cfg, dispatcher, poller, api, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Stop()

	<-signalCtx.Done()
	logger.Info("seasonbot shutting down")
	return nil
}

// openSessions picks the session backend. The memory store is swept in the
// background; Redis expires entries on its own.
// registerWebhook points the Bot API at this instance and reads the
// registration back.
func registerWebhook(ctx context.Context, client *telegram.Client, cfg *config.Config, logger *slog.Logger) error {
	hookURL := strings.TrimRight(cfg.Webhook.PublicURL, "/") + cfg.Webhook.Path
	if err := client.SetWebhook(ctx, hookURL, cfg.Webhook.SecretToken); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}
	info, err := client.GetWebhookInfo(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "webhook registration not confirmed", "webhook_info_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "updates may not arrive until the Bot API is reachable"))
		return nil
	}
	if info.URL != hookURL {
		return fmt.Errorf("register webhook: bot api reports %q, expected %q", info.URL, hookURL)
	}
	if info.LastErrorMessage != "" {
		logging.WarnWithContext(logger, "bot api reported webhook delivery errors", "webhook_delivery_error",
			logging.String("last_error", info.LastErrorMessage),
			logging.String(logging.FieldErrorHint, "check webhook.public_url reaches paths.api_bind"))
	}
	logger.Info("webhook registered",
		logging.String("url", hookURL),
		logging.Int("pending_updates", info.PendingUpdateCount))
	return nil
}

func openSessions(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Store, func(), error) {
	switch cfg.Sessions.Backend {
	case config.SessionsRedis:
		store, err := session.OpenRedis(ctx, cfg)
		if err != nil {
			logger.Error("open redis session store", logging.Error(err))
			return nil, nil, err
		}
		return store, func() { closeQuietly(store) }, nil
	default:
		store := session.NewMemoryStore(cfg.IdleTimeout())
		sweepCtx, stop := context.WithCancel(ctx)
		go store.Run(sweepCtx, sessionSweepInterval)
		return store, stop, nil
	}
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
