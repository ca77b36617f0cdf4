// Package daemon coordinates the long-running seasonbot process.
//
// It owns update intake (long polling through Poller or webhook pushes
// through APIServer), fans updates out to the bot router through Dispatcher,
// and holds a flock-based lock so only one instance talks to the Bot API.
//
// Keep chat semantics in internal/bot: the daemon only moves updates and
// manages lifecycle.
package daemon
