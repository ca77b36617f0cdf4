package bot

import (
	"html"

	"seasonbot/internal/catalog"
	"seasonbot/internal/services/telegram"
)

func keyboard(rows ...[]telegram.InlineKeyboardButton) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func callbackButton(text, data string) []telegram.InlineKeyboardButton {
	return []telegram.InlineKeyboardButton{{Text: text, CallbackData: data}}
}

// subscribeKeyboard links every public channel and ends with the re-check
// button. Numeric channel ids have no public URL and are skipped.
func subscribeKeyboard(channels []catalog.Channel) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(channels)+1)
	for _, ch := range channels {
		link, ok := catalog.ChannelURL(ch.ChannelID)
		if !ok {
			continue
		}
		label := ch.Name
		if label == "" {
			label = ch.ChannelID
		}
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: "📢 " + label, URL: link}})
	}
	rows = append(rows, callbackButton(msgCheckSubscription, dataCheckSub))
	return keyboard(rows...)
}

// seasonKeyboard has one button per season with callback data prefix+key.
func seasonKeyboard(seasons []catalog.Season, prefix string) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(seasons))
	for _, s := range seasons {
		rows = append(rows, callbackButton("🎬 "+s.Title, prefix+s.Key))
	}
	return keyboard(rows...)
}

func adminActionsKeyboard(key string) *telegram.InlineKeyboardMarkup {
	return keyboard(
		[]telegram.InlineKeyboardButton{
			{Text: msgEditButton, CallbackData: prefixEdit + key},
			{Text: msgDeleteButton, CallbackData: prefixDelete + key},
		},
		callbackButton(msgBackButton, dataAdminList),
	)
}

func esc(s string) string {
	return html.EscapeString(s)
}
