// Package session drives admin ingestion: the per-admin state machine that
// turns a run of uploads and caption replies into ordered season files.
//
// A session is Idle, AwaitingFile or AwaitingCaption, in Create or Edit mode.
// Files are held pending until their caption step resolves so a file enters
// the catalog only once, fully formed. Sessions live in a Store (in memory by
// default, Redis when configured) and expire after an idle timeout.
package session
