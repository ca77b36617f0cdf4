package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"seasonbot/internal/config"
	"seasonbot/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", base)
	t.Setenv("SEASONBOT_ENV_FILE", filepath.Join(base, "absent.env"))
	t.Setenv("SEASONBOT_BOT_TOKEN", "")

	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(
		"[bot]\nusername = %q\nadmins = [1000]\n\n[paths]\ndata_dir = %q\nlog_dir = %q\napi_bind = \"\"\n",
		"season_test_bot",
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{baseDir: base, configPath: configPath}
}

func (e *cliTestEnv) loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, _, _, err := config.Load(e.configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return cfg
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestSeasonsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenStore(t, env.loadConfig(t))
	testsupport.MustCreateSeason(t, store, "One Piece", "file-a", "file-b")

	out, _, err := runCLI(t, []string{"seasons", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("seasons list: %v", err)
	}
	requireContains(t, out, "season_One_Piece")
	requireContains(t, out, "One Piece")

	out, _, err = runCLI(t, []string{"seasons", "show", "One Piece"}, env.configPath)
	if err != nil {
		t.Fatalf("seasons show: %v", err)
	}
	requireContains(t, out, "https://t.me/season_test_bot?start=season_One_Piece")
	requireContains(t, out, "2-part")

	out, _, err = runCLI(t, []string{"seasons", "caption", "season_One_Piece", "2", "The", "end"}, env.configPath)
	if err != nil {
		t.Fatalf("seasons caption: %v", err)
	}
	requireContains(t, out, "Updated season_One_Piece part 2")

	if _, _, err := runCLI(t, []string{"seasons", "caption", "season_One_Piece", "3", "nope"}, env.configPath); err == nil {
		t.Fatal("expected error for missing part")
	}

	out, _, err = runCLI(t, []string{"seasons", "show", "season_One_Piece", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("seasons show --json: %v", err)
	}
	var detail seasonDetail
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("decode show output: %v", err)
	}
	if len(detail.Items) != 2 || detail.Items[1].Caption != "The end" || detail.Items[0].Part != 1 {
		t.Fatalf("unexpected detail: %+v", detail)
	}

	out, _, err = runCLI(t, []string{"seasons", "delete", "One Piece"}, env.configPath)
	if err != nil {
		t.Fatalf("seasons delete: %v", err)
	}
	requireContains(t, out, "Deleted season_One_Piece")

	out, _, err = runCLI(t, []string{"seasons", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("seasons list: %v", err)
	}
	requireContains(t, out, "No seasons")

	if _, _, err := runCLI(t, []string{"seasons", "delete", "One Piece"}, env.configPath); err == nil {
		t.Fatal("expected error deleting a missing season")
	}
}

func TestChannelsCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"channels", "add", "@anime_news", "Anime", "News"}, env.configPath)
	if err != nil {
		t.Fatalf("channels add: %v", err)
	}
	requireContains(t, out, "Added @anime_news (Anime News)")

	out, _, err = runCLI(t, []string{"channels", "add", "--", "-100123"}, env.configPath)
	if err != nil {
		t.Fatalf("channels add numeric: %v", err)
	}
	requireContains(t, out, "no join button")

	out, _, err = runCLI(t, []string{"channels", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("channels list: %v", err)
	}
	requireContains(t, out, "https://t.me/anime_news")
	requireContains(t, out, "-100123")

	if _, _, err := runCLI(t, []string{"channels", "remove", "@anime_news"}, env.configPath); err != nil {
		t.Fatalf("channels remove: %v", err)
	}
	if _, _, err := runCLI(t, []string{"channels", "remove", "@anime_news"}, env.configPath); err == nil {
		t.Fatal("expected error removing a missing channel")
	}
}

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "generated", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, target)
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "[OK] sqlite")
	requireContains(t, out, "bot.token is required")
	requireContains(t, out, "Configuration valid")

	t.Setenv("SEASONBOT_BOT_TOKEN", "123:very-secret")
	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "very-secret") {
		t.Fatalf("config show leaked the token: %s", out)
	}
	requireContains(t, out, "********")
	requireContains(t, out, "season_test_bot")
}
