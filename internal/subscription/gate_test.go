package subscription_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"seasonbot/internal/catalog"
	"seasonbot/internal/logging"
	"seasonbot/internal/services/telegram"
	"seasonbot/internal/subscription"
)

type staticChannels struct {
	channels []catalog.Channel
	err      error
}

func (s staticChannels) ListChannels(context.Context) ([]catalog.Channel, error) {
	return s.channels, s.err
}

type lookupResult struct {
	status string
	err    error
	block  bool
}

type fakeLookup map[string]lookupResult

func (f fakeLookup) GetChatMember(ctx context.Context, channelID string, _ int64) (telegram.ChatMember, error) {
	res := f[channelID]
	if res.block {
		<-ctx.Done()
		return telegram.ChatMember{}, ctx.Err()
	}
	return telegram.ChatMember{Status: res.status}, res.err
}

func channels(ids ...string) staticChannels {
	var out []catalog.Channel
	for _, id := range ids {
		out = append(out, catalog.Channel{ChannelID: id, Name: id})
	}
	return staticChannels{channels: out}
}

func TestIsSubscribed(t *testing.T) {
	forbidden := &telegram.APIError{Method: "getChatMember", Code: 403, Description: "Forbidden"}
	tests := []struct {
		name   string
		lookup fakeLookup
		want   bool
	}{
		{
			name:   "member of first only",
			lookup: fakeLookup{"@c1": {status: "member"}, "@c2": {status: "left"}},
			want:   false,
		},
		{
			name:   "member of both",
			lookup: fakeLookup{"@c1": {status: "member"}, "@c2": {status: "administrator"}},
			want:   true,
		},
		{
			name:   "creator counts",
			lookup: fakeLookup{"@c1": {status: "creator"}, "@c2": {status: "member"}},
			want:   true,
		},
		{
			name:   "restricted does not count",
			lookup: fakeLookup{"@c1": {status: "member"}, "@c2": {status: "restricted"}},
			want:   false,
		},
		{
			name:   "second channel not visible fails open",
			lookup: fakeLookup{"@c1": {status: "member"}, "@c2": {err: fmt.Errorf("lookup: %w", forbidden)}},
			want:   true,
		},
		{
			name:   "sentinel not visible fails open",
			lookup: fakeLookup{"@c1": {status: "member"}, "@c2": {err: subscription.ErrNotVisible}},
			want:   true,
		},
		{
			name:   "generic error fails closed",
			lookup: fakeLookup{"@c1": {status: "member"}, "@c2": {err: errors.New("network down")}},
			want:   false,
		},
		{
			name:   "bad request fails closed",
			lookup: fakeLookup{"@c1": {status: "member"}, "@c2": {err: &telegram.APIError{Code: 400, Description: "chat not found"}}},
			want:   false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gate := subscription.NewGate(channels("@c1", "@c2"), tc.lookup, time.Second, logging.NewNop())
			if got := gate.IsSubscribed(context.Background(), 7); got != tc.want {
				t.Fatalf("IsSubscribed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEmptyAllowListPasses(t *testing.T) {
	gate := subscription.NewGate(channels(), fakeLookup{}, time.Second, logging.NewNop())
	if !gate.IsSubscribed(context.Background(), 7) {
		t.Fatal("empty allow-list should pass")
	}
}

func TestChannelListFailureFailsClosed(t *testing.T) {
	gate := subscription.NewGate(staticChannels{err: errors.New("db down")}, fakeLookup{}, time.Second, logging.NewNop())
	if gate.IsSubscribed(context.Background(), 7) {
		t.Fatal("channel list failure should fail closed")
	}
}

func TestLookupTimeoutFailsClosed(t *testing.T) {
	gate := subscription.NewGate(channels("@slow"), fakeLookup{"@slow": {block: true}}, 20*time.Millisecond, logging.NewNop())
	start := time.Now()
	if gate.IsSubscribed(context.Background(), 7) {
		t.Fatal("timed out lookup should fail closed")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("lookup was not bounded: %v", elapsed)
	}
}
