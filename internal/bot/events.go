package bot

import (
	"strings"
	"unicode"

	"seasonbot/internal/services/telegram"
)

// Event is one of Command, FileUpload, Text or Callback.
type Event interface {
	isEvent()
}

// Command is a slash command. Name is lower case without the slash or the
// @bot suffix; Args is the trimmed remainder.
type Command struct {
	Name string
	Args string
}

// FileKind distinguishes uploads the ingestion flow accepts from ones it
// ignores.
type FileKind string

const (
	FileVideo    FileKind = "video"
	FileDocument FileKind = "document"
)

// FileUpload is an uploaded file referenced by its platform file id.
type FileUpload struct {
	Ref  string
	Kind FileKind
}

// Text is a plain, non-command message.
type Text struct {
	Body string
}

// Callback is an inline button press. MessageID is the message carrying the
// keyboard, zero when the platform did not include it.
type Callback struct {
	ID        string
	Data      string
	MessageID int64
}

func (Command) isEvent()    {}
func (FileUpload) isEvent() {}
func (Text) isEvent()       {}
func (Callback) isEvent()   {}

// Envelope is a decoded update.
type Envelope struct {
	UpdateID int64
	SenderID int64
	ChatID   int64
	Event    Event
}

// Decode converts an update into an Envelope. It reports false for updates
// seasonbot does not handle: anything without a sender, service messages,
// and commands addressed to a different bot.
func Decode(u telegram.Update, botUsername string) (Envelope, bool) {
	env := Envelope{UpdateID: u.UpdateID}
	switch {
	case u.CallbackQuery != nil:
		cb := u.CallbackQuery
		env.SenderID = cb.From.ID
		env.ChatID = cb.From.ID
		event := Callback{ID: cb.ID, Data: cb.Data}
		if cb.Message != nil {
			env.ChatID = cb.Message.Chat.ID
			event.MessageID = cb.Message.MessageID
		}
		env.Event = event
		return env, true

	case u.Message != nil:
		msg := u.Message
		if msg.From == nil || msg.From.IsBot {
			return Envelope{}, false
		}
		env.SenderID = msg.From.ID
		env.ChatID = msg.Chat.ID
		switch {
		case msg.Video != nil:
			env.Event = FileUpload{Ref: msg.Video.FileID, Kind: FileVideo}
		case msg.Document != nil:
			env.Event = FileUpload{Ref: msg.Document.FileID, Kind: FileDocument}
		case strings.HasPrefix(msg.Text, "/"):
			cmd, ok := parseCommand(msg.Text, botUsername)
			if !ok {
				return Envelope{}, false
			}
			env.Event = cmd
		case strings.TrimSpace(msg.Text) != "":
			env.Event = Text{Body: msg.Text}
		default:
			return Envelope{}, false
		}
		return env, true
	}
	return Envelope{}, false
}

func parseCommand(text, botUsername string) (Command, bool) {
	body := strings.TrimPrefix(text, "/")
	head, rest := body, ""
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		head, rest = body[:i], body[i:]
	}
	name, target, addressed := strings.Cut(head, "@")
	if addressed && botUsername != "" && !strings.EqualFold(target, strings.TrimPrefix(botUsername, "@")) {
		return Command{}, false
	}
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: strings.TrimSpace(rest)}, true
}
