// Package telegram is a small Bot API client covering the methods seasonbot
// uses: update intake, messages, videos, inline keyboards, callback answers
// and chat membership lookups.
package telegram
