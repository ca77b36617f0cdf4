// Package delivery sends a season's files to a chat one at a time, paced to
// stay under the platform's outbound rate limits.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"seasonbot/internal/catalog"
	"seasonbot/internal/logging"
	"seasonbot/internal/services/telegram"
)

// DefaultLabel is the word placed after the sequence number in captions.
const DefaultLabel = "part"

// Sender emits one video by file reference.
type Sender interface {
	SendVideo(ctx context.Context, chatID int64, fileID, caption string) (telegram.Message, error)
}

// Pacer suspends between sends. Wait returns early with ctx.Err() when the
// context ends.
type Pacer interface {
	Wait(ctx context.Context, d time.Duration) error
}

type timerPacer struct{}

func (timerPacer) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Sequencer delivers files serially with a fixed pause between them.
type Sequencer struct {
	sender   Sender
	pacer    Pacer
	interval time.Duration
	label    string
	logger   *slog.Logger
}

// Option customizes a Sequencer.
type Option func(*Sequencer)

// WithPacer replaces the timer-based pause.
func WithPacer(p Pacer) Option {
	return func(s *Sequencer) {
		if p != nil {
			s.pacer = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// NewSequencer builds a sequencer. An empty label falls back to DefaultLabel.
func NewSequencer(sender Sender, interval time.Duration, label string, opts ...Option) *Sequencer {
	if label == "" {
		label = DefaultLabel
	}
	s := &Sequencer{
		sender:   sender,
		pacer:    timerPacer{},
		interval: interval,
		label:    label,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "delivery")
	return s
}

// Caption renders the caption for f: "<n>-<label>" or "<n>-<label>: <caption>".
func Caption(label string, f catalog.File) string {
	base := fmt.Sprintf("%d-%s", f.Sequence, label)
	if f.Caption == "" {
		return base
	}
	return base + ": " + f.Caption
}

// Deliver sends files to chatID in ascending sequence order, pausing between
// consecutive sends. It stops at the first failed send or when ctx ends and
// returns how many files were sent.
func (s *Sequencer) Deliver(ctx context.Context, chatID int64, files []catalog.File) (int, error) {
	ordered := append([]catalog.File(nil), files...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	logger := logging.WithContext(ctx, s.logger)
	start := time.Now()
	sent := 0
	for i, f := range ordered {
		if i > 0 && s.interval > 0 {
			if err := s.pacer.Wait(ctx, s.interval); err != nil {
				logger.Info("delivery interrupted", logging.Int("sent", sent), logging.Int("total", len(ordered)))
				return sent, err
			}
		}
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if _, err := s.sender.SendVideo(ctx, chatID, f.FileRef, Caption(s.label, f)); err != nil {
			logging.WarnWithContext(logger, "delivery send failed", "delivery_send_failed",
				logging.Int("sequence", f.Sequence),
				logging.Int("sent", sent),
				logging.Int("total", len(ordered)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "remaining files not delivered"),
				logging.String(logging.FieldErrorHint, "check the file reference is still valid and Bot API limits"))
			return sent, fmt.Errorf("send file %d: %w", f.Sequence, err)
		}
		sent++
	}
	logger.Info("delivery complete", logging.Int("sent", sent), logging.Duration("elapsed", time.Since(start)))
	return sent, nil
}
