// Package subscription enforces forced channel membership for non-admin
// users.
package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"seasonbot/internal/catalog"
	"seasonbot/internal/logging"
	"seasonbot/internal/services/telegram"
)

// ErrNotVisible is returned by a MembershipLookup that cannot see the
// channel at all. The gate treats it as a pass.
var ErrNotVisible = errors.New("channel not visible to bot")

// MembershipLookup reports a user's status in a channel.
type MembershipLookup interface {
	GetChatMember(ctx context.Context, channelID string, userID int64) (telegram.ChatMember, error)
}

// ChannelLister returns the configured allow-list.
type ChannelLister interface {
	ListChannels(ctx context.Context) ([]catalog.Channel, error)
}

// Gate answers whether a user belongs to every configured channel.
type Gate struct {
	channels ChannelLister
	lookup   MembershipLookup
	timeout  time.Duration
	logger   *slog.Logger
}

// NewGate builds a gate. timeout bounds each membership lookup; zero means
// no bound beyond the caller's context.
func NewGate(channels ChannelLister, lookup MembershipLookup, timeout time.Duration, logger *slog.Logger) *Gate {
	return &Gate{
		channels: channels,
		lookup:   lookup,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "subscription"),
	}
}

// Subscribed reports whether status counts as membership.
func Subscribed(status string) bool {
	switch status {
	case telegram.StatusMember, telegram.StatusAdministrator, telegram.StatusCreator:
		return true
	default:
		return false
	}
}

// Channels returns the allow-list the gate checks against.
func (g *Gate) Channels(ctx context.Context) ([]catalog.Channel, error) {
	return g.channels.ListChannels(ctx)
}

// IsSubscribed checks every channel in order and stops at the first one the
// user is missing from. A channel the bot cannot see counts as satisfied;
// any other lookup failure counts as not subscribed.
func (g *Gate) IsSubscribed(ctx context.Context, userID int64) bool {
	logger := logging.WithContext(ctx, g.logger)
	channels, err := g.channels.ListChannels(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "channel list unavailable", "subscription_channels_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "user treated as not subscribed"),
			logging.String(logging.FieldErrorHint, "check catalog storage health"))
		return false
	}
	for _, ch := range channels {
		ok, err := g.check(ctx, ch.ChannelID, userID)
		if err != nil {
			if errors.Is(err, ErrNotVisible) || telegram.IsNotVisible(err) {
				logging.WarnWithContext(logger, "channel not visible to bot", "subscription_channel_hidden",
					logging.String("channel_id", ch.ChannelID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "channel skipped in membership check"),
					logging.String(logging.FieldErrorHint, "make the bot an administrator of the channel"))
				continue
			}
			logging.WarnWithContext(logger, "membership lookup failed", "subscription_lookup_failed",
				logging.String("channel_id", ch.ChannelID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "user treated as not subscribed"),
				logging.String(logging.FieldErrorHint, "check Bot API connectivity"))
			return false
		}
		if !ok {
			logger.Debug("user missing from channel", logging.String("channel_id", ch.ChannelID))
			return false
		}
	}
	return true
}

func (g *Gate) check(ctx context.Context, channelID string, userID int64) (bool, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	member, err := g.lookup.GetChatMember(ctx, channelID, userID)
	if err != nil {
		return false, err
	}
	return Subscribed(member.Status), nil
}
