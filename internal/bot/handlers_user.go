package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"seasonbot/internal/logging"
	"seasonbot/internal/services"
)

func (r *Router) handleWelcome(ctx context.Context, req *request) error {
	return r.reply(ctx, req, msgWelcome, nil)
}

// handleDeepLink serves /start <key>.
func (r *Router) handleDeepLink(ctx context.Context, req *request) error {
	key, _, _ := strings.Cut(req.cmd.Args, " ")
	return r.deliverSeason(ctx, req, key)
}

func (r *Router) handleViewSeason(ctx context.Context, req *request) error {
	return r.deliverSeason(ctx, req, req.key)
}

// deliverSeason sends every file of the season in order. An unknown key is
// a user-facing outcome, not an error.
func (r *Router) deliverSeason(ctx context.Context, req *request, key string) error {
	// Imported catalogs may hold keys Normalize would no longer produce, so
	// the store is the only authority on what exists.
	if key == "" {
		return r.notFound(ctx, req)
	}
	season, err := r.deps.Store.GetSeason(ctx, key)
	if errors.Is(err, services.ErrNotFound) {
		return r.notFound(ctx, req)
	}
	if err != nil {
		return err
	}

	// Delivery can outlast the callback answer deadline.
	r.answerNow(ctx, req)
	if err := r.reply(ctx, req, fmt.Sprintf(msgLoading, esc(season.Title)), nil); err != nil {
		return err
	}

	sent, err := r.deps.Delivery.Deliver(ctx, req.ChatID, season.Files)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "season delivery interrupted", "delivery_interrupted",
			logging.String(logging.FieldSeasonKey, season.Key),
			logging.Int("sent", sent),
			logging.Int("total", len(season.Files)),
			logging.Error(err))
		// The chat may be unreachable; a failed notice is not worth surfacing.
		_ = r.reply(ctx, req, fmt.Sprintf(msgDeliveryCut, sent, len(season.Files)), nil)
	}
	return nil
}

func (r *Router) notFound(ctx context.Context, req *request) error {
	if req.isCallback() {
		req.answerWith(msgNotFound, true)
		return nil
	}
	return r.reply(ctx, req, msgNotFound, nil)
}

func (r *Router) handleListSeasons(ctx context.Context, req *request) error {
	seasons, err := r.deps.Store.ListSeasons(ctx)
	if err != nil {
		return err
	}
	if len(seasons) == 0 {
		return r.reply(ctx, req, msgNoSeasons, nil)
	}
	return r.reply(ctx, req, msgSeasonList, seasonKeyboard(seasons, prefixView))
}

// handleCheckSubscription re-evaluates membership. On success the
// subscribe prompt is replaced by the season list.
func (r *Router) handleCheckSubscription(ctx context.Context, req *request) error {
	if !r.IsAdmin(req.SenderID) && !r.deps.Gate.IsSubscribed(ctx, req.SenderID) {
		req.answerWith(msgNotSubscribed, true)
		return nil
	}
	seasons, err := r.deps.Store.ListSeasons(ctx)
	if err != nil {
		return err
	}
	if len(seasons) == 0 {
		return r.replaceOrReply(ctx, req, msgSubscribeConfirm, nil)
	}
	return r.replaceOrReply(ctx, req, msgSubscribeConfirm+"\n\n"+msgSeasonList, seasonKeyboard(seasons, prefixView))
}
