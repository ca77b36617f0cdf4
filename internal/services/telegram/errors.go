package telegram

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a Bot API response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// NotVisible reports whether the bot is not allowed to see the chat, which
// for membership lookups means the bot is not an admin of the channel.
func (e *APIError) NotVisible() bool {
	return e.Code == http.StatusForbidden
}

// IsNotVisible reports whether err, anywhere in its chain, says the bot
// cannot see the target chat.
func IsNotVisible(err error) bool {
	var v interface{ NotVisible() bool }
	return errors.As(err, &v) && v.NotVisible()
}
