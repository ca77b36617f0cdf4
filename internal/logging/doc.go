// Package logging assembles structured slog loggers and formatting helpers used
// across seasonbot.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so handlers automatically tag
// log lines with update, user and chat ids plus a correlation id. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
