package bot

import (
	"context"
)

// requireAdmin denies non-admins. Messages get a reply, callbacks an alert.
func (r *Router) requireAdmin(ctx context.Context, req *request) (bool, Route, error) {
	if r.IsAdmin(req.SenderID) {
		return true, RouteNone, nil
	}
	if req.isCallback() {
		req.answerWith(msgForbidden, true)
		return false, RouteForbidden, nil
	}
	return false, RouteForbidden, r.reply(ctx, req, msgForbidden, nil)
}

// requireSubscription lets admins and subscribed users through. Everyone
// else is shown the channels to join.
func (r *Router) requireSubscription(ctx context.Context, req *request) (bool, Route, error) {
	if r.IsAdmin(req.SenderID) || r.deps.Gate.IsSubscribed(ctx, req.SenderID) {
		return true, RouteNone, nil
	}
	channels, err := r.deps.Gate.Channels(ctx)
	if err != nil {
		return false, RouteSubscribeFirst, err
	}
	markup := subscribeKeyboard(channels)
	if req.isCallback() {
		req.answerWith(msgSubscribeAlert, true)
		return false, RouteSubscribeFirst, r.replaceOrReply(ctx, req, msgSubscribeFirst, markup)
	}
	return false, RouteSubscribeFirst, r.reply(ctx, req, msgSubscribeFirst, markup)
}
