package testsupport

import (
	"context"
	"testing"

	"seasonbot/internal/catalog"
	"seasonbot/internal/config"
)

// MustOpenStore opens the configured catalog backend for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) catalog.Store {
	t.Helper()

	store, err := catalog.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustCreateSeason creates a season with the given file references.
func MustCreateSeason(t testing.TB, store catalog.Store, name string, fileRefs ...string) catalog.Season {
	t.Helper()

	ctx := context.Background()
	season, err := store.CreateSeason(ctx, name)
	if err != nil {
		t.Fatalf("create season %q: %v", name, err)
	}
	for _, ref := range fileRefs {
		if _, err := store.AppendFile(ctx, season.Key, ref, ""); err != nil {
			t.Fatalf("append %q to %s: %v", ref, season.Key, err)
		}
	}
	return season
}
