package session

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"seasonbot/internal/catalog"
	"seasonbot/internal/keylock"
	"seasonbot/internal/logging"
	"seasonbot/internal/services"
)

// Catalog is the part of the season store the machine writes through.
type Catalog interface {
	CreateSeason(ctx context.Context, name string) (catalog.Season, error)
	GetSeason(ctx context.Context, key string) (catalog.Season, error)
	AppendFile(ctx context.Context, key, fileRef, caption string) (catalog.File, error)
}

// Step is the outcome of a state-scoped input.
type Step struct {
	// Applied is false when the current state declares no transition for
	// the input. Nothing changed in that case.
	Applied bool
	// Session is the session after the step. After InputDone it is Idle but
	// still carries the finished season and the number of files added.
	Session Session
	// File is the appended file for InputCaption and InputSkip.
	File catalog.File
}

// Machine applies ingestion transitions. Transitions for one admin are
// serialized; different admins proceed in parallel.
type Machine struct {
	store   Store
	catalog Catalog
	locks   *keylock.Map
	now     func() time.Time
	logger  *slog.Logger
}

// Option customizes a Machine.
type Option func(*Machine)

// WithLogger sets the logger used for transition records.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithClock overrides the time source used to stamp sessions.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMachine builds a machine over the given session store and catalog.
func NewMachine(store Store, cat Catalog, opts ...Option) *Machine {
	m := &Machine{
		store:   store,
		catalog: cat,
		locks:   keylock.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "ingest")
	return m
}

func (m *Machine) lock(userID int64) func() {
	return m.locks.Lock(strconv.FormatInt(userID, 10))
}

// Current returns the admin's session, Idle when none is active.
func (m *Machine) Current(ctx context.Context, userID int64) (Session, error) {
	return m.store.Get(ctx, userID)
}

// StartCreate creates a season from name and opens a Create session for it.
// It replaces whatever session the admin had. When the season cannot be
// created the existing session is left untouched.
func (m *Machine) StartCreate(ctx context.Context, userID int64, name string) (Session, catalog.Season, error) {
	unlock := m.lock(userID)
	defer unlock()

	season, err := m.catalog.CreateSeason(ctx, name)
	if err != nil {
		return Session{}, catalog.Season{}, err
	}
	replaced := m.activeSeason(ctx, userID)
	s := m.begin(userID, ModeCreate, season)
	if err := m.store.Put(ctx, s); err != nil {
		return Session{}, season, err
	}
	logging.WithContext(ctx, m.logger).Info("ingest session started",
		logging.String("mode", string(ModeCreate)),
		logging.String(logging.FieldSeasonKey, season.Key),
		logging.String("replaced_season", replaced))
	return s, season, nil
}

// StartEdit opens an Edit session appending to an existing season.
func (m *Machine) StartEdit(ctx context.Context, userID int64, key string) (Session, catalog.Season, error) {
	unlock := m.lock(userID)
	defer unlock()

	season, err := m.catalog.GetSeason(ctx, key)
	if err != nil {
		return Session{}, catalog.Season{}, err
	}
	replaced := m.activeSeason(ctx, userID)
	s := m.begin(userID, ModeEdit, season)
	if err := m.store.Put(ctx, s); err != nil {
		return Session{}, season, err
	}
	logging.WithContext(ctx, m.logger).Info("ingest session started",
		logging.String("mode", string(ModeEdit)),
		logging.String(logging.FieldSeasonKey, season.Key),
		logging.String("replaced_season", replaced),
		logging.Int("existing_files", len(season.Files)))
	return s, season, nil
}

// activeSeason is the season of the session about to be replaced, empty
// when the admin was idle.
func (m *Machine) activeSeason(ctx context.Context, userID int64) string {
	prev, err := m.store.Get(ctx, userID)
	if err != nil || !prev.Active() {
		return ""
	}
	return prev.SeasonKey
}

func (m *Machine) begin(userID int64, mode Mode, season catalog.Season) Session {
	return Session{
		UserID:      userID,
		State:       StateAwaitingFile,
		Mode:        mode,
		SeasonKey:   season.Key,
		SeasonTitle: season.Title,
		UpdatedAt:   m.now().UTC(),
	}
}

// SubmitFile holds fileRef pending its caption.
func (m *Machine) SubmitFile(ctx context.Context, userID int64, fileRef string) (Step, error) {
	return m.Handle(ctx, userID, InputFile, fileRef)
}

// SubmitCaption appends the pending file with caption.
func (m *Machine) SubmitCaption(ctx context.Context, userID int64, caption string) (Step, error) {
	return m.Handle(ctx, userID, InputCaption, caption)
}

// Skip appends the pending file without a caption.
func (m *Machine) Skip(ctx context.Context, userID int64) (Step, error) {
	return m.Handle(ctx, userID, InputSkip, "")
}

// Finish ends the session. A pending file is discarded.
func (m *Machine) Finish(ctx context.Context, userID int64) (Step, error) {
	return m.Handle(ctx, userID, InputDone, "")
}

// Handle applies a state-scoped input. Inputs the current state does not
// accept return a Step with Applied false and no error.
func (m *Machine) Handle(ctx context.Context, userID int64, in Input, payload string) (Step, error) {
	unlock := m.lock(userID)
	defer unlock()

	s, err := m.store.Get(ctx, userID)
	if err != nil {
		return Step{}, err
	}
	if !s.State.Accepts(in) {
		return Step{Session: s}, nil
	}
	logger := logging.WithContext(ctx, m.logger).With(logging.String(logging.FieldSeasonKey, s.SeasonKey))

	switch in {
	case InputFile:
		if strings.TrimSpace(payload) == "" {
			return Step{Session: s}, nil
		}
		s.State = StateAwaitingCaption
		s.PendingFile = payload
		s.UpdatedAt = m.now().UTC()
		if err := m.store.Put(ctx, s); err != nil {
			return Step{}, err
		}
		logger.Debug("file pending caption")
		return Step{Applied: true, Session: s}, nil

	case InputCaption, InputSkip:
		caption := ""
		if in == InputCaption {
			caption = strings.TrimSpace(payload)
		}
		// Commit the transition before the append. A session write that fails
		// after the append would leave the file pending and a retry would
		// store it twice.
		pending := s
		s.State = StateAwaitingFile
		s.PendingFile = ""
		s.Added++
		s.UpdatedAt = m.now().UTC()
		if err := m.store.Put(ctx, s); err != nil {
			return Step{}, err
		}
		file, err := m.catalog.AppendFile(ctx, pending.SeasonKey, pending.PendingFile, caption)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				// The season was deleted mid-session; nothing left to append to.
				_ = m.store.Delete(ctx, userID)
				logging.WarnWithContext(logger, "season vanished during ingest", "ingest_season_missing",
					logging.String(logging.FieldImpact, "session closed, pending file dropped"),
					logging.String(logging.FieldErrorHint, "season was deleted while an admin was adding files"))
				return Step{}, err
			}
			if restoreErr := m.store.Put(ctx, pending); restoreErr != nil {
				logging.WarnWithContext(logger, "pending file lost after failed append", "ingest_restore_failed",
					logging.String(logging.FieldImpact, "admin must upload the file again"),
					logging.Error(restoreErr))
			}
			return Step{}, err
		}
		logger.Info("file appended", logging.Int("sequence", file.Sequence), logging.Bool("captioned", caption != ""))
		return Step{Applied: true, Session: s, File: file}, nil

	case InputDone:
		if err := m.store.Delete(ctx, userID); err != nil {
			return Step{}, err
		}
		finished := s
		finished.State = StateIdle
		finished.PendingFile = ""
		logger.Info("ingest session finished",
			logging.Int("files_added", s.Added),
			logging.Bool("pending_discarded", s.PendingFile != ""))
		return Step{Applied: true, Session: finished}, nil
	}
	return Step{Session: s}, nil
}
