package daemon

import (
	"crypto/subtle"
	"net/http"
)

// secretTokenHeader carries the secret registered with setWebhook.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// secretTokenMiddleware rejects webhook calls that do not present secret.
// An empty secret disables the check.
func secretTokenMiddleware(secret string, next http.HandlerFunc) http.HandlerFunc {
	if secret == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
