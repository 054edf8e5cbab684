package ui

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// saveAtomically writes the way editors do: a temp file renamed over the
// target, replacing its inode.
func saveAtomically(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
}

func TestWatchConfigSurvivesAtomicSaves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "synthline.yaml")
	if err := os.WriteFile(path, []byte("volume: 1.0\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	msgs := make(chan tea.Msg, 8)
	cfg := Config{
		ConfigPath:   path,
		ReloadConfig: func() (float64, bool, error) { return 0.4, true, nil },
	}
	w, err := watchConfig(cfg, func(m tea.Msg) { msgs <- m })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	waitChanged := func(step string) configChangedMsg {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case m := <-msgs:
				if c, ok := m.(configChangedMsg); ok {
					return c
				}
			case <-deadline:
				t.Fatalf("no reload after %s", step)
			}
		}
	}

	saveAtomically(t, path, "volume: 0.4\nmute: true\n")
	got := waitChanged("first save")
	if got.volume != 0.4 || !got.muted {
		t.Errorf("reload delivered volume=%v muted=%v, want 0.4 true", got.volume, got.muted)
	}

	// The first rename replaced the original inode; the watch must still
	// see the next one.
	saveAtomically(t, path, "volume: 0.2\nmute: false\n")
	waitChanged("second save")
}

func TestWatchConfigIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "synthline.yaml")
	if err := os.WriteFile(path, []byte("volume: 1.0\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	msgs := make(chan tea.Msg, 8)
	cfg := Config{
		ConfigPath:   path,
		ReloadConfig: func() (float64, bool, error) { return 0, false, nil },
	}
	w, err := watchConfig(cfg, func(m tea.Msg) { msgs <- m })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-msgs:
		if _, ok := m.(configChangedMsg); ok {
			t.Fatal("sibling file write triggered a config reload")
		}
	case <-time.After(300 * time.Millisecond):
	}
}
