package catalog_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"seasonbot/internal/catalog"
	"seasonbot/internal/services"
)

type storeFactory func(t *testing.T) catalog.Store

func backends(t *testing.T) map[string]storeFactory {
	t.Helper()
	factories := map[string]storeFactory{
		"sqlite": func(t *testing.T) catalog.Store {
			store, err := catalog.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
		"json": func(t *testing.T) catalog.Store {
			store, err := catalog.OpenJSON(filepath.Join(t.TempDir(), "seasons.json"))
			if err != nil {
				t.Fatalf("OpenJSON: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
	for kind, envVar := range map[string]string{
		"postgres": "SEASONBOT_TEST_POSTGRES_DSN",
		"mysql":    "SEASONBOT_TEST_MYSQL_DSN",
	} {
		dsn := os.Getenv(envVar)
		if dsn == "" {
			continue
		}
		kind := kind
		factories[kind] = func(t *testing.T) catalog.Store {
			store, err := catalog.OpenSQL(context.Background(), kind, dsn, catalog.SQLOptions{MaxOpenConns: 4})
			if err != nil {
				t.Fatalf("OpenSQL(%s): %v", kind, err)
			}
			t.Cleanup(func() {
				ctx := context.Background()
				seasons, _ := store.ListSeasons(ctx)
				for _, s := range seasons {
					_ = store.DeleteSeason(ctx, s.Key)
				}
				channels, _ := store.ListChannels(ctx)
				for _, c := range channels {
					_ = store.RemoveChannel(ctx, c.ChannelID)
				}
				_ = store.Close()
			})
			return store
		}
	}
	return factories
}

func forEachBackend(t *testing.T, fn func(t *testing.T, store catalog.Store)) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestCreateAndGetSeason(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store catalog.Store) {
		ctx := context.Background()
		season, err := store.CreateSeason(ctx, "Naruto Shippuden")
		if err != nil {
			t.Fatalf("CreateSeason: %v", err)
		}
		if season.Key != "season_Naruto_Shippuden" || season.Title != "Naruto Shippuden" || season.ID == 0 {
			t.Fatalf("unexpected season %+v", season)
		}

		got, err := store.GetSeason(ctx, season.Key)
		if err != nil {
			t.Fatalf("GetSeason: %v", err)
		}
		if got.Title != season.Title || len(got.Files) != 0 {
			t.Fatalf("unexpected fetched season %+v", got)
		}
		if got.CreatedAt.IsZero() {
			t.Fatal("expected created_at to round-trip")
		}
	})
}

func TestCreateSeasonRejectsDuplicateKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store catalog.Store) {
		ctx := context.Background()
		if _, err := store.CreateSeason(ctx, "One Piece"); err != nil {
			t.Fatalf("CreateSeason: %v", err)
		}
		if _, err := store.AppendFile(ctx, "season_One_Piece", "file-a", ""); err != nil {
			t.Fatalf("AppendFile: %v", err)
		}
		_, err := store.CreateSeason(ctx, "  One   Piece ")
		if !errors.Is(err, services.ErrAlreadyExists) {
			t.Fatalf("expected AlreadyExists, got %v", err)
		}
		seasons, err := store.ListSeasons(ctx)
		if err != nil {
			t.Fatalf("ListSeasons: %v", err)
		}
		if len(seasons) != 1 || seasons[0].FileCount != 1 {
			t.Fatalf("duplicate create changed the store: %+v", seasons)
		}
	})
}

func TestCreateSeasonValidatesName(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store catalog.Store) {
		if _, err := store.CreateSeason(context.Background(), "   "); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestAppendFileAssignsSequence(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store catalog.Store) {
		ctx := context.Background()
		season, err := store.CreateSeason(ctx, "Bleach")
		if err != nil {
			t.Fatalf("CreateSeason: %v", err)
		}
		captions := []string{"pilot", "", "finale"}
		for i, caption := range captions {
			file, err := store.AppendFile(ctx, season.Key, fmt.Sprintf("ref-%d", i), caption)
			if err != nil {
				t.Fatalf("AppendFile %d: %v", i, err)
			}
			if file.Sequence != i+1 {
				t.Fatalf("append %d got sequence %d", i, file.Sequence)
			}
		}

		got, err := store.GetSeason(ctx, season.Key)
		if err != nil {
			t.Fatalf("GetSeason: %v", err)
		}
		if len(got.Files) != len(captions) {
			t.Fatalf("expected %d files, got %d", len(captions), len(got.Files))
		}
		for i, f := range got.Files {
			if f.Sequence != i+1 || f.FileRef != fmt.Sprintf("ref-%d", i) || f.Caption != captions[i] {
				t.Fatalf("file %d = %+v", i, f)
			}
		}
	})
}

func TestAppendFileConcurrentAppendsStayContiguous(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store catalog.Store) {
		ctx := context.Background()
		season, err := store.CreateSeason(ctx, "Concurrent")
		if err != nil {
			t.Fatalf("CreateSeason: %v", err)
		}
		const n = 12
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := store.AppendFile(ctx, season.Key, fmt.Sprintf("ref-%d", i), ""); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("AppendFile: %v", err)
		}

		got, err := store.GetSeason(ctx, season.Key)
		if err != nil {
			t.Fatalf("GetSeason: %v", err)
		}
		if len(got.Files) != n {
			t.Fatalf("expected %d files, got %d", n, len(got.Files))
		}
		for i, f := range got.Files {
			if f.Sequence != i+1 {
				t.Fatalf("expected contiguous sequences, file %d has %d", i, f.Sequence)
			}
		}
	})
}

func TestAppendFileMissingSeason(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store catalog.Store) {
		_, err := store.AppendFile(context.Background(), "season_Missing", "ref", "")
		if !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected NotFound, got %v", err)
		}
	})
}

func TestDeleteSeasonCascades(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store catalog.Store) {
		ctx := context.Background()
		season, err := store.CreateSeason(ctx, "Doomed")
		if err != nil {
			t.Fatalf("CreateSeason: %v", err)
		}
		for i := 0; i < 3; i++ {
			if _, err := store.AppendFile(ctx, season.Key, fmt.Sprintf("ref-%d", i), ""); err != nil {
				t.Fatalf("AppendFile: %v", err)
			}
		}
		if err := store.DeleteSeason(ctx, season.Key); err != nil {
			t.Fatalf("DeleteSeason: %v", err)
		}
		if _, err := store.GetSeason(ctx, season.Key); !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected NotFound after delete, got %v", err)
		}
		if _, err := store.AppendFile(ctx, season.Key, "late", ""); !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected NotFound on append after delete, got %v", err)
		}
		if err := store.DeleteSeason(ctx, season.Key); !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected NotFound on second delete, got %v", err)
		}

		// Recreating the key starts numbering from 1 again.
		if _, err := store.CreateSeason(ctx, "Doomed"); err != nil {
			t.Fatalf("recreate: %v", err)
		}
		file, err := store.AppendFile(ctx, season.Key, "fresh", "")
		if err != nil {
			t.Fatalf("AppendFile: %v", err)
		}
		if file.Sequence != 1 {
			t.Fatalf("expected sequence 1 after recreate, got %d", file.Sequence)
		}
	})
}

func TestListSeasonsInsertionOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store catalog.Store) {
		ctx := context.Background()
		for _, name := range []string{"Zeta", "Alpha", "Mu"} {
			if _, err := store.CreateSeason(ctx, name); err != nil {
				t.Fatalf("CreateSeason %s: %v", name, err)
			}
		}
		seasons, err := store.ListSeasons(ctx)
		if err != nil {
			t.Fatalf("ListSeasons: %v", err)
		}
		var titles []string
		for _, s := range seasons {
			titles = append(titles, s.Title)
		}
		if fmt.Sprint(titles) != "[Zeta Alpha Mu]" {
			t.Fatalf("unexpected order %v", titles)
		}
	})
}

func TestUpdateFileCaption(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store catalog.Store) {
		ctx := context.Background()
		season, err := store.CreateSeason(ctx, "Captions")
		if err != nil {
			t.Fatalf("CreateSeason: %v", err)
		}
		for i := 0; i < 2; i++ {
			if _, err := store.AppendFile(ctx, season.Key, fmt.Sprintf("ref-%d", i), ""); err != nil {
				t.Fatalf("AppendFile: %v", err)
			}
		}

		ok, err := store.UpdateFileCaption(ctx, season.Key, 1, "second")
		if err != nil || !ok {
			t.Fatalf("UpdateFileCaption = %v, %v", ok, err)
		}
		for _, tc := range []struct {
			key   string
			index int
		}{
			{season.Key, 2},
			{season.Key, -1},
			{"season_Nope", 0},
		} {
			ok, err := store.UpdateFileCaption(ctx, tc.key, tc.index, "x")
			if err != nil || ok {
				t.Fatalf("UpdateFileCaption(%s, %d) = %v, %v; want false, nil", tc.key, tc.index, ok, err)
			}
		}

		got, err := store.GetSeason(ctx, season.Key)
		if err != nil {
			t.Fatalf("GetSeason: %v", err)
		}
		if got.Files[0].Caption != "" || got.Files[1].Caption != "second" {
			t.Fatalf("unexpected captions %+v", got.Files)
		}
	})
}

func TestChannels(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store catalog.Store) {
		ctx := context.Background()
		ch, err := store.AddChannel(ctx, "@anime_news", "Anime News")
		if err != nil {
			t.Fatalf("AddChannel: %v", err)
		}
		if ch.Name != "Anime News" {
			t.Fatalf("unexpected channel %+v", ch)
		}
		ch, err = store.AddChannel(ctx, "-1001234", "")
		if err != nil {
			t.Fatalf("AddChannel: %v", err)
		}
		if ch.Name != "-1001234" {
			t.Fatalf("expected name to default to id, got %q", ch.Name)
		}
		if _, err := store.AddChannel(ctx, "@anime_news", "again"); !errors.Is(err, services.ErrAlreadyExists) {
			t.Fatalf("expected AlreadyExists, got %v", err)
		}

		channels, err := store.ListChannels(ctx)
		if err != nil {
			t.Fatalf("ListChannels: %v", err)
		}
		if len(channels) != 2 || channels[0].ChannelID != "@anime_news" || channels[1].ChannelID != "-1001234" {
			t.Fatalf("unexpected channels %+v", channels)
		}

		if err := store.RemoveChannel(ctx, "@anime_news"); err != nil {
			t.Fatalf("RemoveChannel: %v", err)
		}
		if err := store.RemoveChannel(ctx, "@anime_news"); !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected NotFound, got %v", err)
		}
		channels, err = store.ListChannels(ctx)
		if err != nil {
			t.Fatalf("ListChannels: %v", err)
		}
		if len(channels) != 1 {
			t.Fatalf("expected one channel left, got %+v", channels)
		}
	})
}

func TestSQLiteSchemaPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := catalog.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if _, err := store.CreateSeason(ctx, "Durable"); err != nil {
		t.Fatalf("CreateSeason: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := catalog.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetSeason(ctx, "season_Durable"); err != nil {
		t.Fatalf("GetSeason after reopen: %v", err)
	}
}

func TestJSONStoreReadsLegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	legacy := `{
  "channels": [{"id": "@news", "name": "News"}, {"id": "@other"}],
  "season_Naruto": {"title": "Naruto", "files": [
    {"file_id": "a", "caption": "hi", "number": 1},
    {"file_id": "b", "caption": "", "number": 2}
  ]}
}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatalf("write legacy: %v", err)
	}
	store, err := catalog.OpenJSON(path)
	if err != nil {
		t.Fatalf("OpenJSON: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	season, err := store.GetSeason(ctx, "season_Naruto")
	if err != nil {
		t.Fatalf("GetSeason: %v", err)
	}
	if len(season.Files) != 2 || season.Files[0].Caption != "hi" || season.Files[1].FileRef != "b" {
		t.Fatalf("unexpected legacy season %+v", season)
	}
	channels, err := store.ListChannels(ctx)
	if err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	if len(channels) != 2 || channels[1].Name != "@other" {
		t.Fatalf("unexpected legacy channels %+v", channels)
	}

	// The first write migrates the file to the current layout.
	file, err := store.AppendFile(ctx, "season_Naruto", "c", "")
	if err != nil {
		t.Fatalf("AppendFile: %v", err)
	}
	if file.Sequence != 3 {
		t.Fatalf("expected sequence 3, got %d", file.Sequence)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read migrated: %v", err)
	}
	if !strings.Contains(string(data), `"seasons"`) {
		t.Fatalf("expected migrated layout, got %s", data)
	}
}

func TestJSONStoreKeepsLegacySeasonOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	legacy := `{
  "season_Zeta": {"title": "Zeta", "files": []},
  "channels": [],
  "season_Alpha": {"title": "Alpha", "files": []},
  "season_Наруто": {"title": "Наруто", "files": [{"file_id": "n1", "number": 1}]}
}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatalf("write legacy: %v", err)
	}
	store, err := catalog.OpenJSON(path)
	if err != nil {
		t.Fatalf("OpenJSON: %v", err)
	}
	defer store.Close()

	seasons, err := store.ListSeasons(context.Background())
	if err != nil {
		t.Fatalf("ListSeasons: %v", err)
	}
	var got []string
	for _, s := range seasons {
		got = append(got, s.Key)
	}
	want := []string{"season_Zeta", "season_Alpha", "season_Наруто"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("season order = %v, want %v", got, want)
	}
}

func TestJSONStoreRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := catalog.OpenJSON(path); err == nil {
		t.Fatal("expected error for corrupt document")
	}
}

func TestSQLiteRejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := catalog.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := catalog.OpenSQLite(ctx, path); !errors.Is(err, catalog.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
