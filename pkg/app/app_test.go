package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zurustar/scenevm/pkg/engine"
	"github.com/zurustar/scenevm/pkg/savegame"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HEADLESS", "")
	t.Setenv("TIMEOUT", "")
	t.Setenv("LOG_LEVEL", "")
}

func writeGame(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const fastConfig = `
[game]
title = "Test"
ticks_per_second = 1000
`

func TestRunHelp(t *testing.T) {
	clearEnv(t)
	var out bytes.Buffer
	if err := New(&out).Run([]string{"--help"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("help output = %q", out.String())
	}
}

func TestRunDisasm(t *testing.T) {
	clearEnv(t)
	dir := writeGame(t, map[string]string{
		"lobby.scn": `setting lobby { if (random(50%)) goto office; } setting office { Quit(); }`,
	})

	var out bytes.Buffer
	if err := New(&out).Run([]string{"--disasm", "-l", "error", dir}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, want := range []string{"setting lobby", "setting office", "IfCode", "FuncPush"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("disassembly does not contain %q:\n%s", want, out.String())
		}
	}
}

func TestRunHeadless(t *testing.T) {
	clearEnv(t)
	dir := writeGame(t, map[string]string{
		"scenevm.toml": fastConfig + "start = \"lobby\"\n[save]\ndir = \"state\"\n",
		"lobby.scn": `
define flags { visited }
setting lobby { SetFlag(visited, 1); Inventory("key"); SaveGame(3); goto office; }`,
		"office.scn": `setting office { Quit(); }`,
	})

	var out bytes.Buffer
	if err := New(&out).Run([]string{"--headless", dir}); err != nil {
		t.Fatalf("Run() error = %v\n%s", err, out.String())
	}

	snap, err := savegame.Load(filepath.Join(dir, "state"), 3)
	if err != nil {
		t.Fatalf("save game not written: %v", err)
	}
	if snap.Setting != "lobby" || snap.Flags["visited"] != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestRunStartOverride(t *testing.T) {
	clearEnv(t)
	dir := writeGame(t, map[string]string{
		"scenevm.toml": fastConfig,
		"game.scn":     `setting lobby { SaveGame(1); } setting office { Quit(); }`,
	})

	var out bytes.Buffer
	if err := New(&out).Run([]string{"--headless", "--start", "office", "-c", filepath.Join(dir, "scenevm.toml")}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "saves")); !os.IsNotExist(err) {
		t.Error("lobby ran although --start office was given")
	}
}

func TestRunScriptFile(t *testing.T) {
	clearEnv(t)
	dir := writeGame(t, map[string]string{
		"good.scn":   `setting only { Quit(); }`,
		"broken.scn": `setting oops { Quit(; }`,
	})

	var out bytes.Buffer
	if err := New(&out).Run([]string{"--headless", filepath.Join(dir, "good.scn")}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		args  []string
		want  error
	}{
		{
			name:  "compile error",
			files: map[string]string{"a.scn": `setting a { Quit(1); }`},
			want:  ErrCompile,
		},
		{
			name:  "unknown start setting",
			files: map[string]string{"a.scn": `setting a { }`},
			args:  []string{"--start", "b"},
			want:  engine.ErrUnknownSetting,
		},
		{
			name:  "runtime error",
			files: map[string]string{"a.scn": `setting a { goto "nowhere"; }`},
			want:  engine.ErrUnknownSetting,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			tt.files["scenevm.toml"] = fastConfig
			dir := writeGame(t, tt.files)

			var out bytes.Buffer
			args := append([]string{"--headless", "-l", "error"}, tt.args...)
			err := New(&out).Run(append(args, dir))
			if !errors.Is(err, tt.want) {
				t.Errorf("Run() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRunNoScripts(t *testing.T) {
	clearEnv(t)
	dir := writeGame(t, map[string]string{"readme.txt": "nothing here"})
	var out bytes.Buffer
	if err := New(&out).Run([]string{"--headless", dir}); err == nil {
		t.Error("Run() succeeded without scripts")
	}
}
