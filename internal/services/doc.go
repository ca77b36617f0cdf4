// Package services defines shared utilities consumed by the bot handlers and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp update, user and chat identifiers plus a
//     correlation id for logging.
//   - Structured error markers plus the Wrap helper, and Classify which turns
//     a failure into the reply category shown to chat users.
//
// Integrations with remote APIs live in subpackages (telegram).
package services
