// Command seasonbot runs the season delivery bot and administers its
// catalog from the shell.
//
// `seasonbot run` starts update intake in the configured mode. The
// `seasons` and `channels` groups open the catalog store directly, so they
// work while the bot is stopped and against any configured backend.
package main
