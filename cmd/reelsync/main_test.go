package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maauso/reelsync/internal/config"
)

const testScript = `{
  "title": "Walnut",
  "characters": [
    {"name": "Stewie", "lines": ["Hello, world.", "Because I can!"]},
    {"name": "Peter", "lines": ["Why would you say that"]}
  ]
}`

func setupCLIEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TEMP_DIR", filepath.Join(dir, "tmp"))
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("LOG_LEVEL", "error")

	scriptPath := filepath.Join(dir, "script.json")
	if err := os.WriteFile(scriptPath, []byte(testScript), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return scriptPath
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("expected %q to contain %q", s, substr)
	}
}

func TestSyncWithDurations(t *testing.T) {
	scriptPath := setupCLIEnv(t)
	out := filepath.Join(t.TempDir(), "captions")

	stdout, _, err := runCLI(t, "sync", "-q",
		"--script", scriptPath,
		"--durations", "2.0,1.5,3.0",
		"--speed", "1.0",
		"--out", out,
	)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	paths := strings.Fields(stdout)
	if len(paths) != 4 {
		t.Fatalf("expected 4 artifact paths, got %q", stdout)
	}
	var srtPath string
	for _, p := range paths {
		if !strings.HasPrefix(p, out) {
			t.Errorf("artifact %s is outside %s", p, out)
		}
		if filepath.Base(p) == "dialogue.srt" {
			srtPath = p
		}
	}
	if srtPath == "" {
		t.Fatalf("no dialogue.srt in %q", stdout)
	}

	data, err := os.ReadFile(srtPath)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	requireContains(t, string(data), "1\n00:00:00,000 --> 00:00:02,000\nHello, world.\n")
	requireContains(t, string(data), "3\n00:00:03,500 --> 00:00:06,500\nWhy would you say that.\n")
}

func TestSyncWithClipDirectory(t *testing.T) {
	scriptPath := setupCLIEnv(t)
	clips := t.TempDir()
	for _, name := range []string{"01_Stewie.wav", "02_Stewie.wav", "03_Peter.wav", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(clips, name), []byte("RIFF"), 0o600); err != nil {
			t.Fatalf("write clip: %v", err)
		}
	}

	stdout, _, err := runCLI(t, "sync", "-q",
		"--script", scriptPath,
		"--clips", clips,
		"--durations", "2,1.5,3",
	)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	requireContains(t, stdout, "dialogue.ass")
}

func TestSyncErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no clips", args: []string{}, want: "either --clips or --clip is required"},
		{name: "duration count", args: []string{"--durations", "1,2"}, want: "got 2 durations for 3"},
		{name: "negative duration", args: []string{"--durations", "1,-2,3"}, want: "duration 2 must be positive"},
		{name: "clip count", args: []string{"--durations", "1,2", "--clip", "a.wav", "--clip", "b.wav"}, want: "3 lines, 2 clips"},
		{name: "conflicting clip flags", args: []string{"--clips", "x", "--clip", "a.wav"}, want: "none of the others can be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scriptPath := setupCLIEnv(t)
			args := append([]string{"sync", "-q", "--script", scriptPath}, tt.args...)
			_, _, err := runCLI(t, args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			requireContains(t, err.Error(), tt.want)
		})
	}
}

func TestSyncRequiresScript(t *testing.T) {
	setupCLIEnv(t)
	_, _, err := runCLI(t, "sync", "--durations", "1")
	if err == nil {
		t.Fatal("expected an error")
	}
	requireContains(t, err.Error(), "script")
}

func TestProfileCommand(t *testing.T) {
	setupCLIEnv(t)
	t.Setenv("WINDOW_SIZE", "3")

	stdout, _, err := runCLI(t, "profile")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	requireContains(t, stdout, "window_size = 3")
	requireContains(t, stdout, "[timing.hold]")

	target := filepath.Join(t.TempDir(), "profile.toml")
	stdout, _, err = runCLI(t, "profile", "--write", target)
	if err != nil {
		t.Fatalf("profile --write: %v", err)
	}
	requireContains(t, stdout, "Wrote timing profile")

	loaded, err := config.LoadProfile(target, config.DefaultProfile())
	if err != nil {
		t.Fatalf("reload written profile: %v", err)
	}
	if loaded.WindowSize != 3 {
		t.Fatalf("window size = %d, want 3", loaded.WindowSize)
	}
}
