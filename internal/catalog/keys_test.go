package catalog_test

import (
	"errors"
	"strings"
	"testing"

	"seasonbot/internal/catalog"
	"seasonbot/internal/services"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantKey   string
		wantTitle string
	}{
		{"spaces", "Naruto Shippuden 2", "season_Naruto_Shippuden_2", "Naruto Shippuden 2"},
		{"trim and collapse", "  One   Piece ", "season_One_Piece", "One Piece"},
		{"underscores", "Attack_on_Titan", "season_Attack_on_Titan", "Attack on Titan"},
		{"diacritics folded in key only", "Pokémon Ō", "season_Pokemon_O", "Pokémon Ō"},
		{"dash", "Re-Zero", "season_Re-Zero", "Re-Zero"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, title, err := catalog.Normalize(tc.input)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tc.input, err)
			}
			if key != tc.wantKey || title != tc.wantTitle {
				t.Fatalf("Normalize(%q) = %q, %q; want %q, %q", tc.input, key, title, tc.wantKey, tc.wantTitle)
			}
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	for _, input := range []string{"", "   ", "Наруто", "a/b", strings.Repeat("x", 60)} {
		if _, _, err := catalog.Normalize(input); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Normalize(%q) error = %v, want validation", input, err)
		}
	}
}

func TestKeyFromInput(t *testing.T) {
	for input, want := range map[string]string{
		"season_Naruto": "season_Naruto",
		"Naruto":        "season_Naruto",
		"Naruto 2":      "season_Naruto_2",
	} {
		got, err := catalog.KeyFromInput(input)
		if err != nil || got != want {
			t.Fatalf("KeyFromInput(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
}

func TestLinks(t *testing.T) {
	if got := catalog.DeepLink("@anime_bot", "season_X"); got != "https://t.me/anime_bot?start=season_X" {
		t.Fatalf("unexpected deep link %q", got)
	}
	if url, ok := catalog.ChannelURL("@news"); !ok || url != "https://t.me/news" {
		t.Fatalf("unexpected channel url %q %v", url, ok)
	}
	if _, ok := catalog.ChannelURL("-1001234"); ok {
		t.Fatal("numeric channel ids have no public url")
	}
}
