package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"seasonbot/internal/catalog"
	"seasonbot/internal/logging"
	"seasonbot/internal/services"
	"seasonbot/internal/services/telegram"
	"seasonbot/internal/session"
)

// Transport is the outbound half of the Bot API the handlers use.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts telegram.SendOptions) (telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, opts telegram.SendOptions) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error
}

// Gate answers forced-subscription checks.
type Gate interface {
	IsSubscribed(ctx context.Context, userID int64) bool
	Channels(ctx context.Context) ([]catalog.Channel, error)
}

// Deliverer streams a season's files to a chat.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, files []catalog.File) (int, error)
}

// Ingest is the admin ingestion state machine.
type Ingest interface {
	Current(ctx context.Context, userID int64) (session.Session, error)
	StartCreate(ctx context.Context, userID int64, name string) (session.Session, catalog.Season, error)
	StartEdit(ctx context.Context, userID int64, key string) (session.Session, catalog.Season, error)
	Handle(ctx context.Context, userID int64, in session.Input, payload string) (session.Step, error)
}

// Deps are the collaborators a Router needs. Everything except Logger is
// required.
type Deps struct {
	Admins      []int64
	BotUsername string
	Store       catalog.Store
	Ingest      Ingest
	Gate        Gate
	Delivery    Deliverer
	Transport   Transport
	Logger      *slog.Logger
}

// Route names the handler an envelope was dispatched to.
type Route string

const (
	RouteNone              Route = ""
	RouteForbidden         Route = "forbidden"
	RouteSubscribeFirst    Route = "subscribe_first"
	RouteDeepLink          Route = "deep_link"
	RouteWelcome           Route = "welcome"
	RouteAddSeason         Route = "add_season"
	RouteEditSeason        Route = "edit_season"
	RouteAddChannel        Route = "add_channel"
	RouteRemoveChannel     Route = "remove_channel"
	RouteListChannels      Route = "list_channels"
	RouteAdminList         Route = "admin_list"
	RouteSetCaption        Route = "set_caption"
	RouteFile              Route = "ingest_file"
	RouteCaption           Route = "ingest_caption"
	RouteSkip              Route = "ingest_skip"
	RouteDone              Route = "ingest_done"
	RouteViewSeason        Route = "view_season"
	RouteAdminView         Route = "admin_view"
	RouteEditCallback      Route = "edit_callback"
	RouteDeleteCallback    Route = "delete_callback"
	RouteAdminListCallback Route = "admin_list_callback"
	RouteCheckSubscription Route = "check_subscription"
	RouteListSeasons       Route = "list_seasons"
)

// Callback data prefixes and literals.
const (
	prefixView      = "view_"
	prefixAdminView = "admin_view_"
	prefixEdit      = "edit_"
	prefixDelete    = "delete_"
	dataCheckSub    = "check_subscription"
	dataAdminList   = "admin_list"
)

// request is the per-dispatch state handlers share.
type request struct {
	Envelope
	cmd Command
	cb  Callback
	// key is the season key carried by a callback.
	key string

	answer   string
	alert    bool
	answered bool
}

func (r *request) isCallback() bool {
	_, ok := r.Event.(Callback)
	return ok
}

// answerWith sets the callback answer sent when dispatch finishes.
func (r *request) answerWith(text string, alert bool) {
	r.answer = text
	r.alert = alert
}

type handler func(ctx context.Context, req *request) error

// guard returns true to let the request through. A denying guard has
// already replied and names the route taken instead.
type guard func(ctx context.Context, req *request) (bool, Route, error)

type match struct {
	route  Route
	guards []guard
	handle handler
}

// Router dispatches envelopes.
type Router struct {
	deps          Deps
	admins        map[int64]struct{}
	logger        *slog.Logger
	adminCommands map[string]match
}

// NewRouter validates deps and builds a Router.
func NewRouter(deps Deps) (*Router, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("router requires a catalog store")
	case deps.Ingest == nil:
		return nil, errors.New("router requires an ingestion machine")
	case deps.Gate == nil:
		return nil, errors.New("router requires a subscription gate")
	case deps.Delivery == nil:
		return nil, errors.New("router requires a delivery sequencer")
	case deps.Transport == nil:
		return nil, errors.New("router requires a transport")
	}
	r := &Router{
		deps:   deps,
		admins: make(map[int64]struct{}, len(deps.Admins)),
		logger: logging.NewComponentLogger(deps.Logger, "router"),
	}
	for _, id := range deps.Admins {
		r.admins[id] = struct{}{}
	}
	admin := []guard{r.requireAdmin}
	r.adminCommands = map[string]match{
		"add_season":     {RouteAddSeason, admin, r.handleAddSeason},
		"edit_season":    {RouteEditSeason, admin, r.handleEditSeason},
		"add_channel":    {RouteAddChannel, admin, r.handleAddChannel},
		"remove_channel": {RouteRemoveChannel, admin, r.handleRemoveChannel},
		"list_channels":  {RouteListChannels, admin, r.handleListChannels},
		"admin_list":     {RouteAdminList, admin, r.handleAdminList},
		"set_caption":    {RouteSetCaption, admin, r.handleSetCaption},
	}
	return r, nil
}

// IsAdmin reports whether userID is on the admin allow-list.
func (r *Router) IsAdmin(userID int64) bool {
	_, ok := r.admins[userID]
	return ok
}

// Dispatch routes env to at most one handler and returns the route taken.
// Expected outcomes (unknown season, duplicate name, denied access) are
// replied to in chat and are not errors. Unexpected failures are logged,
// answered with a generic message and returned.
func (r *Router) Dispatch(ctx context.Context, env Envelope) (Route, error) {
	req := &request{Envelope: env}
	logger := logging.WithContext(ctx, r.logger)

	m, err := r.resolve(ctx, req)
	if err != nil {
		r.fail(ctx, req, err)
		r.finishCallback(ctx, req)
		return RouteNone, err
	}
	if m.handle == nil {
		r.finishCallback(ctx, req)
		return RouteNone, nil
	}

	for _, g := range m.guards {
		ok, denied, err := g(ctx, req)
		if err != nil {
			r.fail(ctx, req, err)
			r.finishCallback(ctx, req)
			return denied, err
		}
		if !ok {
			logger.Debug("update denied", logging.String("route", string(m.route)), logging.String("outcome", string(denied)))
			r.finishCallback(ctx, req)
			return denied, nil
		}
	}

	err = m.handle(ctx, req)
	if err != nil {
		r.fail(ctx, req, err)
	}
	r.finishCallback(ctx, req)
	logger.Debug("update dispatched", logging.String("route", string(m.route)))
	return m.route, err
}

// resolve picks the first matching route.
func (r *Router) resolve(ctx context.Context, req *request) (match, error) {
	gated := []guard{r.requireSubscription}
	switch ev := req.Event.(type) {
	case Command:
		req.cmd = ev
		if ev.Name == "start" {
			if ev.Args != "" {
				return match{RouteDeepLink, gated, r.handleDeepLink}, nil
			}
			return match{RouteWelcome, gated, r.handleWelcome}, nil
		}
		if m, ok := r.adminCommands[ev.Name]; ok {
			return m, nil
		}
		switch ev.Name {
		case "done":
			return r.stateScoped(ctx, req, session.InputDone)
		case "skip":
			return r.stateScoped(ctx, req, session.InputSkip)
		case "list_seasons":
			return match{RouteListSeasons, gated, r.handleListSeasons}, nil
		}

	case FileUpload:
		if ev.Kind == FileVideo {
			return r.stateScoped(ctx, req, session.InputFile)
		}

	case Text:
		return r.stateScoped(ctx, req, session.InputCaption)

	case Callback:
		req.cb = ev
		return r.resolveCallback(req), nil
	}
	return match{}, nil
}

// stateScoped matches only when the sender's session declares in.
func (r *Router) stateScoped(ctx context.Context, req *request, in session.Input) (match, error) {
	if !r.IsAdmin(req.SenderID) {
		return match{}, nil
	}
	s, err := r.deps.Ingest.Current(ctx, req.SenderID)
	if err != nil {
		return match{}, err
	}
	if !s.State.Accepts(in) {
		return match{}, nil
	}
	switch in {
	case session.InputFile:
		return match{RouteFile, nil, r.handleFile}, nil
	case session.InputCaption:
		return match{RouteCaption, nil, r.handleCaption}, nil
	case session.InputSkip:
		return match{RouteSkip, nil, r.handleSkip}, nil
	default:
		return match{RouteDone, nil, r.handleDone}, nil
	}
}

func (r *Router) resolveCallback(req *request) match {
	admin := []guard{r.requireAdmin}
	data := req.cb.Data
	switch {
	case data == dataCheckSub:
		return match{RouteCheckSubscription, nil, r.handleCheckSubscription}
	case data == dataAdminList:
		return match{RouteAdminListCallback, admin, r.handleAdminListCallback}
	case strings.HasPrefix(data, prefixAdminView):
		req.key = strings.TrimPrefix(data, prefixAdminView)
		return match{RouteAdminView, admin, r.handleAdminView}
	case strings.HasPrefix(data, prefixView):
		req.key = strings.TrimPrefix(data, prefixView)
		return match{RouteViewSeason, []guard{r.requireSubscription}, r.handleViewSeason}
	case strings.HasPrefix(data, prefixEdit):
		req.key = strings.TrimPrefix(data, prefixEdit)
		return match{RouteEditCallback, admin, r.handleEditCallback}
	case strings.HasPrefix(data, prefixDelete):
		req.key = strings.TrimPrefix(data, prefixDelete)
		return match{RouteDeleteCallback, admin, r.handleDeleteCallback}
	}
	return match{}
}

// reply sends an HTML message to the request's chat.
func (r *Router) reply(ctx context.Context, req *request, text string, markup *telegram.InlineKeyboardMarkup) error {
	_, err := r.deps.Transport.SendMessage(ctx, req.ChatID, text, telegram.SendOptions{
		ParseMode:   telegram.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "router", "send message", "", err)
	}
	return nil
}

// replaceOrReply edits the callback's message in place, falling back to a
// new message when there is nothing to edit or the edit is rejected.
func (r *Router) replaceOrReply(ctx context.Context, req *request, text string, markup *telegram.InlineKeyboardMarkup) error {
	if req.cb.MessageID != 0 {
		err := r.deps.Transport.EditMessageText(ctx, req.ChatID, req.cb.MessageID, text, telegram.SendOptions{
			ParseMode:   telegram.ParseModeHTML,
			ReplyMarkup: markup,
		})
		if err == nil {
			return nil
		}
		logging.WithContext(ctx, r.logger).Debug("edit message failed, sending new one", logging.Error(err))
	}
	return r.reply(ctx, req, text, markup)
}

// answerNow answers the callback immediately, e.g. before a long delivery.
func (r *Router) answerNow(ctx context.Context, req *request) {
	if !req.isCallback() || req.answered {
		return
	}
	req.answered = true
	if err := r.deps.Transport.AnswerCallbackQuery(ctx, req.cb.ID, req.answer, req.alert); err != nil {
		logging.WithContext(ctx, r.logger).Debug("answer callback failed", logging.Error(err))
	}
}

// finishCallback guarantees every callback is answered exactly once.
func (r *Router) finishCallback(ctx context.Context, req *request) {
	r.answerNow(ctx, req)
}

// fail logs an unexpected error and tells the user something went wrong
// without exposing the cause.
func (r *Router) fail(ctx context.Context, req *request, err error) {
	logging.ErrorWithContext(logging.WithContext(ctx, r.logger), "update handling failed", "dispatch_failed",
		logging.String("kind", string(services.Classify(err))),
		logging.Error(err))
	if req.isCallback() {
		if !req.answered {
			req.answerWith(msgInternal, true)
		}
		return
	}
	if sendErr := r.reply(ctx, req, msgInternal, nil); sendErr != nil {
		logging.WithContext(ctx, r.logger).Debug("internal error reply failed", logging.Error(sendErr))
	}
}
