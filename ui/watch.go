package ui

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

type configChangedMsg struct {
	volume float64
	muted  bool
}

type watchErrMsg struct{ err error }

// watchConfig watches the config file and emits a command whenever it is
// rewritten. Editors replace rather than write in place, which would kill
// a watch on the file's own inode, so the watch is on the directory and
// events are filtered to the config path.
func watchConfig(cfg Config, send func(tea.Msg)) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(cfg.ConfigPath)); err != nil {
		_ = w.Close()
		return nil, err
	}

	want := filepath.Clean(cfg.ConfigPath)
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != want {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				volume, muted, err := cfg.ReloadConfig()
				if err != nil {
					log.Debug("config reload failed", "err", err)
					continue
				}
				send(configChangedMsg{volume: volume, muted: muted})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				send(watchErrMsg{err: err})
			}
		}
	}()
	return w, nil
}
