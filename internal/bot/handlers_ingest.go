package bot

import (
	"context"
	"errors"
	"fmt"

	"seasonbot/internal/catalog"
	"seasonbot/internal/services"
	"seasonbot/internal/session"
)

func (r *Router) handleFile(ctx context.Context, req *request) error {
	upload, _ := req.Event.(FileUpload)
	step, err := r.deps.Ingest.Handle(ctx, req.SenderID, session.InputFile, upload.Ref)
	if err != nil || !step.Applied {
		return err
	}
	return r.reply(ctx, req, msgAskCaption, nil)
}

func (r *Router) handleCaption(ctx context.Context, req *request) error {
	text, _ := req.Event.(Text)
	return r.appendPending(ctx, req, session.InputCaption, text.Body)
}

func (r *Router) handleSkip(ctx context.Context, req *request) error {
	return r.appendPending(ctx, req, session.InputSkip, "")
}

func (r *Router) appendPending(ctx context.Context, req *request, in session.Input, payload string) error {
	step, err := r.deps.Ingest.Handle(ctx, req.SenderID, in, payload)
	if errors.Is(err, services.ErrNotFound) {
		return r.reply(ctx, req, msgSeasonGone, nil)
	}
	if err != nil || !step.Applied {
		return err
	}
	return r.reply(ctx, req, fmt.Sprintf(msgFileAdded, step.File.Sequence), nil)
}

func (r *Router) handleDone(ctx context.Context, req *request) error {
	step, err := r.deps.Ingest.Handle(ctx, req.SenderID, session.InputDone, "")
	if err != nil || !step.Applied {
		return err
	}
	s := step.Session
	link := catalog.DeepLink(r.deps.BotUsername, s.SeasonKey)
	return r.reply(ctx, req, fmt.Sprintf(msgSessionDone, esc(s.SeasonTitle), s.Added, esc(link)), nil)
}
