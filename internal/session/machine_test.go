package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"seasonbot/internal/catalog"
	"seasonbot/internal/services"
	"seasonbot/internal/session"
	"seasonbot/internal/testsupport"
)

const admin int64 = 1000

func newMachine(t *testing.T) (*session.Machine, catalog.Store, *session.MemoryStore) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sessions := session.NewMemoryStore(30 * time.Minute)
	return session.NewMachine(sessions, store), store, sessions
}

func TestIngestionFlowBuildsOrderedSeason(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newMachine(t)

	s, season, err := m.StartCreate(ctx, admin, "X")
	if err != nil {
		t.Fatalf("StartCreate: %v", err)
	}
	if s.State != session.StateAwaitingFile || s.Mode != session.ModeCreate || s.SeasonKey != season.Key {
		t.Fatalf("unexpected session after create: %+v", s)
	}

	steps := []func() (session.Step, error){
		func() (session.Step, error) { return m.SubmitFile(ctx, admin, "a") },
		func() (session.Step, error) { return m.SubmitCaption(ctx, admin, "hi") },
		func() (session.Step, error) { return m.SubmitFile(ctx, admin, "b") },
		func() (session.Step, error) { return m.Skip(ctx, admin) },
		func() (session.Step, error) { return m.Finish(ctx, admin) },
	}
	var last session.Step
	for i, step := range steps {
		got, err := step()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if !got.Applied {
			t.Fatalf("step %d was not applied (state %s)", i, got.Session.State)
		}
		last = got
	}
	if last.Session.State != session.StateIdle || last.Session.Added != 2 {
		t.Fatalf("unexpected final step %+v", last)
	}

	current, err := m.Current(ctx, admin)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.State != session.StateIdle {
		t.Fatalf("expected idle session, got %s", current.State)
	}

	got, err := store.GetSeason(ctx, season.Key)
	if err != nil {
		t.Fatalf("GetSeason: %v", err)
	}
	want := []struct {
		ref     string
		caption string
		seq     int
	}{{"a", "hi", 1}, {"b", "", 2}}
	if len(got.Files) != len(want) {
		t.Fatalf("expected %d files, got %+v", len(want), got.Files)
	}
	for i, w := range want {
		f := got.Files[i]
		if f.FileRef != w.ref || f.Caption != w.caption || f.Sequence != w.seq {
			t.Fatalf("file %d = %+v, want %+v", i, f, w)
		}
	}
}

func TestFileIsNotStoredBeforeCaptionStep(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newMachine(t)
	_, season, err := m.StartCreate(ctx, admin, "Pending")
	if err != nil {
		t.Fatalf("StartCreate: %v", err)
	}
	step, err := m.SubmitFile(ctx, admin, "a")
	if err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}
	if step.Session.State != session.StateAwaitingCaption || step.Session.PendingFile != "a" {
		t.Fatalf("unexpected session %+v", step.Session)
	}
	got, err := store.GetSeason(ctx, season.Key)
	if err != nil {
		t.Fatalf("GetSeason: %v", err)
	}
	if len(got.Files) != 0 {
		t.Fatalf("file stored before caption step: %+v", got.Files)
	}

	// done discards the pending file.
	if _, err := m.Finish(ctx, admin); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	got, err = store.GetSeason(ctx, season.Key)
	if err != nil {
		t.Fatalf("GetSeason: %v", err)
	}
	if len(got.Files) != 0 {
		t.Fatalf("pending file should be discarded, got %+v", got.Files)
	}
}

func TestOutOfSequenceInputsAreIgnored(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newMachine(t)

	for _, in := range []session.Input{session.InputFile, session.InputCaption, session.InputSkip, session.InputDone} {
		step, err := m.Handle(ctx, admin, in, "x")
		if err != nil {
			t.Fatalf("idle %s: %v", in, err)
		}
		if step.Applied {
			t.Fatalf("idle session applied %s", in)
		}
	}

	if _, _, err := m.StartCreate(ctx, admin, "Strict"); err != nil {
		t.Fatalf("StartCreate: %v", err)
	}
	for _, in := range []session.Input{session.InputCaption, session.InputSkip} {
		step, err := m.Handle(ctx, admin, in, "x")
		if err != nil || step.Applied {
			t.Fatalf("awaiting file accepted %s: %+v, %v", in, step, err)
		}
	}
	if _, err := m.SubmitFile(ctx, admin, "a"); err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}
	step, err := m.SubmitFile(ctx, admin, "b")
	if err != nil || step.Applied {
		t.Fatalf("awaiting caption accepted a second file: %+v, %v", step, err)
	}
	if step.Session.PendingFile != "a" {
		t.Fatalf("pending file replaced: %+v", step.Session)
	}
}

func TestStateAccepts(t *testing.T) {
	tests := []struct {
		state session.State
		input session.Input
		want  bool
	}{
		{session.StateIdle, session.InputFile, false},
		{session.StateIdle, session.InputDone, false},
		{session.StateAwaitingFile, session.InputFile, true},
		{session.StateAwaitingFile, session.InputCaption, false},
		{session.StateAwaitingFile, session.InputSkip, false},
		{session.StateAwaitingFile, session.InputDone, true},
		{session.StateAwaitingCaption, session.InputFile, false},
		{session.StateAwaitingCaption, session.InputCaption, true},
		{session.StateAwaitingCaption, session.InputSkip, true},
		{session.StateAwaitingCaption, session.InputDone, true},
	}
	for _, tc := range tests {
		if got := tc.state.Accepts(tc.input); got != tc.want {
			t.Errorf("%s.Accepts(%s) = %v, want %v", tc.state, tc.input, got, tc.want)
		}
	}
}

func TestStartCreateDuplicateLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newMachine(t)
	if _, _, err := m.StartCreate(ctx, admin, "Dup"); err != nil {
		t.Fatalf("StartCreate: %v", err)
	}
	if _, err := m.SubmitFile(ctx, admin, "a"); err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}
	_, _, err := m.StartCreate(ctx, admin, "Dup")
	if !errors.Is(err, services.ErrAlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
	current, err := m.Current(ctx, admin)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.State != session.StateAwaitingCaption || current.PendingFile != "a" {
		t.Fatalf("session changed after failed create: %+v", current)
	}
}

func TestStartEditAppendsAfterExistingFiles(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newMachine(t)
	season := testsupport.MustCreateSeason(t, store, "Existing", "one", "two")

	s, _, err := m.StartEdit(ctx, admin, season.Key)
	if err != nil {
		t.Fatalf("StartEdit: %v", err)
	}
	if s.Mode != session.ModeEdit {
		t.Fatalf("expected edit mode, got %s", s.Mode)
	}
	if _, err := m.SubmitFile(ctx, admin, "three"); err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}
	step, err := m.SubmitCaption(ctx, admin, "  finale  ")
	if err != nil {
		t.Fatalf("SubmitCaption: %v", err)
	}
	if step.File.Sequence != 3 || step.File.Caption != "finale" {
		t.Fatalf("unexpected appended file %+v", step.File)
	}
	if step.Session.State != session.StateAwaitingFile {
		t.Fatalf("expected loop back to awaiting file, got %s", step.Session.State)
	}
}

func TestStartEditMissingSeason(t *testing.T) {
	m, _, _ := newMachine(t)
	_, _, err := m.StartEdit(context.Background(), admin, "season_Nope")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestSeasonDeletedMidSessionClosesSession(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newMachine(t)
	_, season, err := m.StartCreate(ctx, admin, "Gone")
	if err != nil {
		t.Fatalf("StartCreate: %v", err)
	}
	if _, err := m.SubmitFile(ctx, admin, "a"); err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}
	if err := store.DeleteSeason(ctx, season.Key); err != nil {
		t.Fatalf("DeleteSeason: %v", err)
	}
	if _, err := m.Skip(ctx, admin); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	current, err := m.Current(ctx, admin)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.State != session.StateIdle {
		t.Fatalf("expected session closed, got %+v", current)
	}
}

func TestSessionsArePerAdmin(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newMachine(t)
	const other int64 = 2000

	if _, _, err := m.StartCreate(ctx, admin, "First"); err != nil {
		t.Fatalf("StartCreate: %v", err)
	}
	if _, _, err := m.StartCreate(ctx, other, "Second"); err != nil {
		t.Fatalf("StartCreate other: %v", err)
	}

	var wg sync.WaitGroup
	for _, id := range []int64{admin, other} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if _, err := m.SubmitFile(ctx, id, "f"); err != nil {
					t.Errorf("SubmitFile(%d): %v", id, err)
					return
				}
				if _, err := m.Skip(ctx, id); err != nil {
					t.Errorf("Skip(%d): %v", id, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, key := range []string{"season_First", "season_Second"} {
		season, err := store.GetSeason(ctx, key)
		if err != nil {
			t.Fatalf("GetSeason %s: %v", key, err)
		}
		if len(season.Files) != 5 {
			t.Fatalf("%s: expected 5 files, got %d", key, len(season.Files))
		}
	}
}

type flakySessions struct {
	session.Store
	mu       sync.Mutex
	failPuts int
}

func (f *flakySessions) Put(ctx context.Context, s session.Session) error {
	f.mu.Lock()
	if f.failPuts > 0 {
		f.failPuts--
		f.mu.Unlock()
		return errors.New("session backend unavailable")
	}
	f.mu.Unlock()
	return f.Store.Put(ctx, s)
}

type flakyCatalog struct {
	catalog.Store
	failAppends int
}

func (f *flakyCatalog) AppendFile(ctx context.Context, key, fileRef, caption string) (catalog.File, error) {
	if f.failAppends > 0 {
		f.failAppends--
		return catalog.File{}, services.Wrap(services.ErrTransient, "test", "append file", key, errors.New("database is locked"))
	}
	return f.Store.AppendFile(ctx, key, fileRef, caption)
}

func TestFailedSessionWriteDoesNotDuplicateFile(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	sessions := &flakySessions{Store: session.NewMemoryStore(30 * time.Minute)}
	m := session.NewMachine(sessions, store)

	_, season, err := m.StartCreate(ctx, admin, "Flaky")
	if err != nil {
		t.Fatalf("StartCreate: %v", err)
	}
	if _, err := m.SubmitFile(ctx, admin, "a"); err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}

	sessions.failPuts = 1
	if _, err := m.SubmitCaption(ctx, admin, "hi"); err == nil {
		t.Fatal("expected session write error")
	}
	current, err := m.Current(ctx, admin)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.State != session.StateAwaitingCaption || current.PendingFile != "a" {
		t.Fatalf("session after failed write = %+v", current)
	}

	if _, err := m.SubmitCaption(ctx, admin, "hi"); err != nil {
		t.Fatalf("retry SubmitCaption: %v", err)
	}
	got, err := store.GetSeason(ctx, season.Key)
	if err != nil {
		t.Fatalf("GetSeason: %v", err)
	}
	if len(got.Files) != 1 || got.Files[0].FileRef != "a" {
		t.Fatalf("files after retry = %+v", got.Files)
	}
}

func TestFailedAppendKeepsFilePending(t *testing.T) {
	ctx := context.Background()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	cat := &flakyCatalog{Store: store}
	m := session.NewMachine(session.NewMemoryStore(30*time.Minute), cat)

	_, season, err := m.StartCreate(ctx, admin, "Locked")
	if err != nil {
		t.Fatalf("StartCreate: %v", err)
	}
	if _, err := m.SubmitFile(ctx, admin, "a"); err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}

	cat.failAppends = 1
	if _, err := m.Skip(ctx, admin); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	current, err := m.Current(ctx, admin)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.State != session.StateAwaitingCaption || current.PendingFile != "a" || current.Added != 0 {
		t.Fatalf("session after failed append = %+v", current)
	}

	step, err := m.Skip(ctx, admin)
	if err != nil {
		t.Fatalf("retry Skip: %v", err)
	}
	if step.Session.Added != 1 || step.File.Sequence != 1 {
		t.Fatalf("retry step = %+v", step)
	}
	got, _ := store.GetSeason(ctx, season.Key)
	if len(got.Files) != 1 {
		t.Fatalf("files after retry = %+v", got.Files)
	}
}

func TestSessionActive(t *testing.T) {
	tests := []struct {
		state session.State
		want  bool
	}{
		{session.StateIdle, false},
		{session.StateAwaitingFile, true},
		{session.StateAwaitingCaption, true},
	}
	for _, tc := range tests {
		if got := (session.Session{State: tc.state}).Active(); got != tc.want {
			t.Errorf("Active() in %s = %v, want %v", tc.state, got, tc.want)
		}
	}
}
