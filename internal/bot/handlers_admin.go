package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"seasonbot/internal/catalog"
	"seasonbot/internal/logging"
	"seasonbot/internal/services"
)

func (r *Router) handleAddSeason(ctx context.Context, req *request) error {
	name := req.cmd.Args
	if name == "" {
		return r.reply(ctx, req, msgAddSeasonUsage, nil)
	}
	_, season, err := r.deps.Ingest.StartCreate(ctx, req.SenderID, name)
	switch {
	case errors.Is(err, services.ErrAlreadyExists):
		return r.reply(ctx, req, msgSeasonExists, nil)
	case errors.Is(err, services.ErrValidation):
		return r.reply(ctx, req, fmt.Sprintf(msgInvalidName, catalog.MaxKeyLength-len(catalog.KeyPrefix)), nil)
	case err != nil:
		return err
	}
	logging.WithContext(ctx, r.logger).Info("season created", logging.String(logging.FieldSeasonKey, season.Key))
	return r.reply(ctx, req, fmt.Sprintf(msgSeasonCreated, esc(catalog.DeepLink(r.deps.BotUsername, season.Key))), nil)
}

func (r *Router) handleEditSeason(ctx context.Context, req *request) error {
	if req.cmd.Args == "" {
		return r.reply(ctx, req, msgEditSeasonUsage, nil)
	}
	key, err := catalog.KeyFromInput(req.cmd.Args)
	if err != nil {
		return r.reply(ctx, req, msgNotFound, nil)
	}
	return r.startEdit(ctx, req, key)
}

func (r *Router) handleEditCallback(ctx context.Context, req *request) error {
	return r.startEdit(ctx, req, req.key)
}

func (r *Router) startEdit(ctx context.Context, req *request, key string) error {
	_, season, err := r.deps.Ingest.StartEdit(ctx, req.SenderID, key)
	if errors.Is(err, services.ErrNotFound) {
		return r.notFound(ctx, req)
	}
	if err != nil {
		return err
	}
	return r.reply(ctx, req, fmt.Sprintf(msgEditStarted, esc(season.Title)), nil)
}

func (r *Router) handleAdminList(ctx context.Context, req *request) error {
	seasons, err := r.deps.Store.ListSeasons(ctx)
	if err != nil {
		return err
	}
	if len(seasons) == 0 {
		return r.reply(ctx, req, msgNoSeasons, nil)
	}
	return r.reply(ctx, req, msgAdminList, seasonKeyboard(seasons, prefixAdminView))
}

// handleAdminListCallback is the panel's back button.
func (r *Router) handleAdminListCallback(ctx context.Context, req *request) error {
	seasons, err := r.deps.Store.ListSeasons(ctx)
	if err != nil {
		return err
	}
	if len(seasons) == 0 {
		return r.replaceOrReply(ctx, req, msgNoSeasons, nil)
	}
	return r.replaceOrReply(ctx, req, msgAdminList, seasonKeyboard(seasons, prefixAdminView))
}

func (r *Router) handleAdminView(ctx context.Context, req *request) error {
	season, err := r.deps.Store.GetSeason(ctx, req.key)
	if errors.Is(err, services.ErrNotFound) {
		return r.notFound(ctx, req)
	}
	if err != nil {
		return err
	}
	text := fmt.Sprintf(msgAdminActions, esc(season.Title), len(season.Files),
		esc(catalog.DeepLink(r.deps.BotUsername, season.Key)))
	return r.replaceOrReply(ctx, req, text, adminActionsKeyboard(season.Key))
}

func (r *Router) handleDeleteCallback(ctx context.Context, req *request) error {
	season, err := r.deps.Store.GetSeason(ctx, req.key)
	if err == nil {
		err = r.deps.Store.DeleteSeason(ctx, req.key)
	}
	if errors.Is(err, services.ErrNotFound) {
		return r.notFound(ctx, req)
	}
	if err != nil {
		return err
	}
	logging.WithContext(ctx, r.logger).Info("season deleted", logging.String(logging.FieldSeasonKey, req.key))
	return r.replaceOrReply(ctx, req, fmt.Sprintf(msgDeleted, esc(season.Title)), nil)
}

// handleSetCaption serves /set_caption <season> <part> <caption>. Parts are
// numbered from 1 as shown in delivered captions.
func (r *Router) handleSetCaption(ctx context.Context, req *request) error {
	name, rest, _ := strings.Cut(req.cmd.Args, " ")
	partText, caption, _ := strings.Cut(strings.TrimSpace(rest), " ")
	caption = strings.TrimSpace(caption)
	part, err := strconv.Atoi(partText)
	if name == "" || caption == "" || err != nil || part < 1 {
		return r.reply(ctx, req, msgSetCaptionUsage, nil)
	}
	key, err := catalog.KeyFromInput(name)
	if err != nil {
		return r.reply(ctx, req, msgCaptionMissing, nil)
	}
	ok, err := r.deps.Store.UpdateFileCaption(ctx, key, part-1, caption)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, req, msgCaptionMissing, nil)
	}
	return r.reply(ctx, req, fmt.Sprintf(msgCaptionUpdated, part), nil)
}

func (r *Router) handleAddChannel(ctx context.Context, req *request) error {
	channelID, name, _ := strings.Cut(req.cmd.Args, " ")
	if channelID == "" {
		return r.reply(ctx, req, msgAddChannelUsage, nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = channelID
	}
	ch, err := r.deps.Store.AddChannel(ctx, channelID, name)
	switch {
	case errors.Is(err, services.ErrAlreadyExists):
		return r.reply(ctx, req, fmt.Sprintf(msgChannelExists, esc(channelID)), nil)
	case errors.Is(err, services.ErrValidation):
		return r.reply(ctx, req, msgAddChannelUsage, nil)
	case err != nil:
		return err
	}
	return r.reply(ctx, req, fmt.Sprintf(msgChannelAdded, esc(ch.Name), esc(ch.ChannelID)), nil)
}

func (r *Router) handleRemoveChannel(ctx context.Context, req *request) error {
	channelID, _, _ := strings.Cut(req.cmd.Args, " ")
	if channelID == "" {
		return r.reply(ctx, req, msgRemoveChannelUsage, nil)
	}
	err := r.deps.Store.RemoveChannel(ctx, channelID)
	if errors.Is(err, services.ErrNotFound) {
		return r.reply(ctx, req, fmt.Sprintf(msgChannelMissing, esc(channelID)), nil)
	}
	if err != nil {
		return err
	}
	return r.reply(ctx, req, fmt.Sprintf(msgChannelRemoved, esc(channelID)), nil)
}

func (r *Router) handleListChannels(ctx context.Context, req *request) error {
	channels, err := r.deps.Store.ListChannels(ctx)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		return r.reply(ctx, req, msgNoChannels, nil)
	}
	var b strings.Builder
	b.WriteString(msgChannelsHeader)
	for i, ch := range channels {
		fmt.Fprintf(&b, msgChannelLine, i+1, esc(ch.Name), esc(ch.ChannelID))
	}
	return r.reply(ctx, req, strings.TrimRight(b.String(), "\n"), nil)
}
