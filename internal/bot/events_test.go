package bot_test

import (
	"testing"

	"seasonbot/internal/bot"
	"seasonbot/internal/services/telegram"
)

func message(from int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: 7,
		Message: &telegram.Message{
			MessageID: 3,
			From:      &telegram.User{ID: from},
			Chat:      telegram.Chat{ID: from, Type: "private"},
			Text:      text,
		},
	}
}

func TestDecodeCommands(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bot.Command
		ok   bool
	}{
		{name: "bare", text: "/start", want: bot.Command{Name: "start"}, ok: true},
		{name: "payload", text: "/start season_X", want: bot.Command{Name: "start", Args: "season_X"}, ok: true},
		{name: "own bot suffix", text: "/List_Seasons@Season_Test_Bot", want: bot.Command{Name: "list_seasons"}, ok: true},
		{name: "other bot", text: "/start@someone_else_bot", ok: false},
		{name: "newline args", text: "/add_season\nOne Piece ", want: bot.Command{Name: "add_season", Args: "One Piece"}, ok: true},
		{name: "lone slash", text: "/", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ok := bot.Decode(message(5, tt.text), "season_test_bot")
			if ok != tt.ok {
				t.Fatalf("Decode ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			cmd, isCmd := env.Event.(bot.Command)
			if !isCmd {
				t.Fatalf("event = %T, want Command", env.Event)
			}
			if cmd != tt.want {
				t.Fatalf("command = %+v, want %+v", cmd, tt.want)
			}
		})
	}
}

func TestDecodeMessageKinds(t *testing.T) {
	video := message(5, "")
	video.Message.Video = &telegram.Video{FileID: "vid-1"}
	doc := message(5, "")
	doc.Message.Document = &telegram.Document{FileID: "doc-1"}

	env, ok := bot.Decode(video, "")
	if !ok || env.Event != (bot.FileUpload{Ref: "vid-1", Kind: bot.FileVideo}) {
		t.Fatalf("video decoded as %+v (ok=%v)", env.Event, ok)
	}
	env, ok = bot.Decode(doc, "")
	if !ok || env.Event != (bot.FileUpload{Ref: "doc-1", Kind: bot.FileDocument}) {
		t.Fatalf("document decoded as %+v (ok=%v)", env.Event, ok)
	}
	env, ok = bot.Decode(message(5, "Intro"), "")
	if !ok || env.Event != (bot.Text{Body: "Intro"}) || env.SenderID != 5 || env.ChatID != 5 || env.UpdateID != 7 {
		t.Fatalf("text decoded as %+v (ok=%v)", env, ok)
	}
	if _, ok := bot.Decode(message(5, "   "), ""); ok {
		t.Fatal("blank text should be dropped")
	}

	fromBot := message(5, "hi")
	fromBot.Message.From.IsBot = true
	if _, ok := bot.Decode(fromBot, ""); ok {
		t.Fatal("messages from bots should be dropped")
	}
	anonymous := message(5, "hi")
	anonymous.Message.From = nil
	if _, ok := bot.Decode(anonymous, ""); ok {
		t.Fatal("messages without sender should be dropped")
	}
	if _, ok := bot.Decode(telegram.Update{UpdateID: 1}, ""); ok {
		t.Fatal("empty update should be dropped")
	}
}

func TestDecodeCallback(t *testing.T) {
	u := telegram.Update{
		UpdateID: 9,
		CallbackQuery: &telegram.CallbackQuery{
			ID:      "cb-1",
			From:    telegram.User{ID: 42},
			Data:    "view_season_X",
			Message: &telegram.Message{MessageID: 11, Chat: telegram.Chat{ID: -100}},
		},
	}
	env, ok := bot.Decode(u, "")
	if !ok {
		t.Fatal("callback dropped")
	}
	want := bot.Callback{ID: "cb-1", Data: "view_season_X", MessageID: 11}
	if env.Event != want || env.SenderID != 42 || env.ChatID != -100 {
		t.Fatalf("callback decoded as %+v", env)
	}
}
