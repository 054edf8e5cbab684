// Package ui provides the station operator TUI.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/truncate"

	"github.com/kolradio/synthline/internal/catalog"
	"github.com/kolradio/synthline/synth"
)

const (
	statusMessageTimeout = time.Second * 3
	ellipsis             = "…"
	volumeStep           = 0.05
	meterWidth           = 24
)

// state is the top-level application state.
type state int

const (
	stateBrowse state = iota
	stateHelp
)

func (s state) String() string {
	return map[state]string{
		stateBrowse: "browsing catalog",
		stateHelp:   "showing help",
	}[s]
}

// nowPlaying tracks what the engine is rendering and since when, for the
// progress display. The engine itself has no notion of track position.
type nowPlaying struct {
	asset     synth.Asset
	params    synth.Params
	elapsed   float64 // seconds into the track when playback began
	startedAt time.Time
}

type model struct {
	cfg    Config
	keys   keyMap
	width  int
	height int

	state   state
	entries []catalog.Entry
	visible []catalog.Entry
	cursor  int

	filter    textinput.Model
	filtering bool

	engine  *synth.Engine
	feed    *catalog.Feed
	playing *nowPlaying

	levels   [2]float64
	progress progress.Model
	help     help.Model
	helpText string

	statusMessage string
	fatalErr      error
}

type (
	tickMsg                 time.Time
	statusMessageTimeoutMsg struct{}
	engineReadyMsg          struct{}
	errMsg                  struct{ err error }
)

func (e errMsg) Error() string { return e.err.Error() }

// Run starts the TUI and blocks until it exits. The engine is destroyed on
// the way out.
func Run(cfg Config, engine *synth.Engine, feed *catalog.Feed, entries []catalog.Entry) error {
	m := newModel(cfg, engine, feed, entries)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if cfg.ConfigPath != "" && cfg.ReloadConfig != nil {
		w, err := watchConfig(cfg, p.Send)
		if err != nil {
			log.Debug("config watch unavailable", "err", err)
		} else {
			defer w.Close() //nolint:errcheck
		}
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func newModel(cfg Config, engine *synth.Engine, feed *catalog.Feed, entries []catalog.Entry) model {
	filter := textinput.New()
	filter.Prompt = "/"
	filter.Placeholder = "filter"

	if cfg.MeterFPS < 1 {
		cfg.MeterFPS = 10
	}

	return model{
		cfg:      cfg,
		keys:     newKeyMap(),
		entries:  entries,
		visible:  filterEntries(entries, ""),
		filter:   filter,
		engine:   engine,
		feed:     feed,
		progress: progress.New(progress.WithDefaultGradient()),
		help:     help.New(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.initEngine, m.tick())
}

func (m model) initEngine() tea.Msg {
	if err := m.engine.Init(); err != nil {
		return errMsg{err}
	}
	return engineReadyMsg{}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.cfg.MeterFPS), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = min(msg.Width-4, 60)
		m.helpText = renderHelp(m.cfg, msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.levels[0], m.levels[1] = m.engine.Levels()
		return m, m.tick()

	case engineReadyMsg:
		if m.cfg.Muted {
			m.engine.SetMuted(true)
		}
		m.engine.SetVolume(m.cfg.Volume)
		return m, nil

	case configChangedMsg:
		m.engine.SetVolume(msg.volume)
		m.engine.SetMuted(msg.muted)
		return m.setStatus("config reloaded")

	case watchErrMsg:
		log.Debug("config watch error", "err", msg.err)
		return m, nil

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		return m, nil

	case errMsg:
		m.fatalErr = msg.err
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		return m.handleFilterKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.engine.Destroy()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		if m.state == stateHelp {
			m.state = stateBrowse
		} else {
			m.state = stateHelp
		}
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.state = stateBrowse
		return m, nil
	}

	if m.state != stateBrowse {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Play):
		if m.cursor < len(m.visible) {
			e := m.visible[m.cursor]
			m.playing = &nowPlaying{
				asset:     e.Asset,
				params:    synth.Derive(e.Asset),
				startedAt: time.Now(),
			}
			m.engine.PlayTrack(e.Asset, 0)
			return m.setStatus("playing " + e.Asset.Title)
		}

	case key.Matches(msg, m.keys.Live):
		asset, elapsed, ok := m.feed.NowPlaying(time.Now())
		if !ok {
			return m.setStatus("live feed is empty")
		}
		m.playing = &nowPlaying{
			asset:     asset,
			params:    synth.Derive(asset),
			elapsed:   elapsed,
			startedAt: time.Now(),
		}
		m.engine.PlayTrack(asset, elapsed)
		return m.setStatus("tuned to live feed")

	case key.Matches(msg, m.keys.Stop):
		m.engine.Stop()
		m.playing = nil
		return m.setStatus("stopped")

	case key.Matches(msg, m.keys.Mute):
		m.engine.SetMuted(!m.engine.Muted())

	case key.Matches(msg, m.keys.VolUp):
		m.engine.SetVolume(m.engine.Volume() + volumeStep)

	case key.Matches(msg, m.keys.VolDn):
		m.engine.SetVolume(m.engine.Volume() - volumeStep)

	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		m.filter.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Copy):
		if m.playing == nil {
			return m.setStatus("nothing playing")
		}
		line := m.playing.asset.Title + " — " + m.playing.asset.Artist
		if err := clipboard.WriteAll(line); err != nil {
			return m.setStatus("copy failed")
		}
		return m.setStatus("copied to clipboard")
	}
	return m, nil
}

func (m model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filtering = false
		m.filter.Reset()
		m.visible = filterEntries(m.entries, "")
		m.cursor = 0
		return m, nil
	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.visible = filterEntries(m.entries, m.filter.Value())
	if m.cursor >= len(m.visible) {
		m.cursor = max(0, len(m.visible)-1)
	}
	return m, cmd
}

func (m model) setStatus(s string) (tea.Model, tea.Cmd) {
	m.statusMessage = s
	return m, tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{}
	})
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorStyle.Render("no audio available: "+m.fatalErr.Error()) +
			subtleStyle.Render("\n\npress q to quit\n")
	}
	if m.state == stateHelp {
		return m.helpText + "\n" + subtleStyle.Render("esc to go back")
	}

	var b strings.Builder
	b.WriteString(m.nowPlayingView())
	b.WriteString("\n")
	b.WriteString(m.listView())
	b.WriteString("\n")
	b.WriteString(m.statusBarView())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m model) nowPlayingView() string {
	var b strings.Builder
	if m.playing == nil {
		b.WriteString(subtleStyle.Render("nothing on air"))
		b.WriteString("\n")
	} else {
		p := m.playing
		b.WriteString(onAirStyle.Render("ON AIR "))
		b.WriteString(titleStyle.Render(p.asset.Title + " — " + p.asset.Artist))
		b.WriteString(subtleStyle.Render(fmt.Sprintf("  %s · %d bpm", p.params.Mode, p.params.Tempo)))
		b.WriteString("\n")
		if p.asset.Duration > 0 {
			at := p.elapsed + time.Since(p.startedAt).Seconds()
			frac := at / p.asset.Duration.Seconds()
			if frac > 1 {
				frac = 1
			}
			b.WriteString(m.progress.ViewAs(frac))
			b.WriteString("\n")
		}
	}
	b.WriteString(subtleStyle.Render("L ") + renderMeter(m.levels[0], meterWidth))
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render("R ") + renderMeter(m.levels[1], meterWidth))
	b.WriteString("\n")
	return b.String()
}

func (m model) listView() string {
	var b strings.Builder
	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}
	if len(m.visible) == 0 {
		b.WriteString(subtleStyle.Render("no matching entries"))
		b.WriteString("\n")
		return b.String()
	}
	now := time.Now()
	for i, e := range m.visible {
		onAir := m.playing != nil && m.playing.asset.ID == e.Asset.ID
		b.WriteString(listRow(e, i == m.cursor, onAir, now, max(m.width, 40)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) statusBarView() string {
	volume := fmt.Sprintf("vol %3.0f%%", m.engine.Volume()*100)
	if m.engine.Muted() {
		volume = "muted"
	}
	note := m.statusMessage
	if note == "" {
		note = m.state.String()
	}
	bar := fmt.Sprintf(" %s · %s · %d entries ", volume, note, len(m.visible))
	return statusBarStyle.Render(truncate.StringWithTail(bar, uint(max(m.width, 40)), ellipsis))
}
