// Package tui implements the dashboard: volume usage bars plus a
// paginated 3-level hierarchy of the largest directories, one volume
// per page. It only ever reads persisted snapshots; all sizing work
// stays in the background.
package tui

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"dsv/pkg/config"
	"dsv/pkg/lazyjson"
	"dsv/pkg/scheduler"
	"dsv/pkg/snapshot"
	"dsv/pkg/volumes"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	minLevels = 1
	maxLevels = 3

	// uiTickInterval drives the clock and picks up finished rebuilds.
	uiTickInterval = time.Second
)

type scanMsg time.Time
type tickMsg time.Time

// page is one volume's hierarchy view.
type page struct {
	vol  volumes.Volume
	snap *snapshot.Snapshot
}

// Model is the bubbletea model for the dashboard.
type Model struct {
	ctx   context.Context
	cfg   *config.Config
	sched *scheduler.Scheduler
	store *snapshot.Store
	prefs lazyjson.Manager[Prefs]
	keys  keyMap

	// listVols is replaceable in tests.
	listVols func() []volumes.Volume

	vols   []volumes.Volume
	pages  []page
	page   int
	levels int

	width int
	now   time.Time
}

// New creates the dashboard model. ctx bounds the background rebuilds
// the model schedules.
func New(ctx context.Context, cfg *config.Config, sched *scheduler.Scheduler, store *snapshot.Store) Model {
	prefs := lazyjson.New(cfg.GetPrefsPath(), lazyjson.WithDefaultValue(defaultPrefs))

	m := Model{
		ctx:      ctx,
		cfg:      cfg,
		sched:    sched,
		store:    store,
		prefs:    prefs,
		keys:     defaultKeyMap(),
		listVols: func() []volumes.Volume { return volumes.List(cfg.GetMinVolumeBytes()) },
		levels:   minLevels,
		now:      time.Now(),
	}

	if p, err := prefs.Get(); err == nil {
		if p.CurrentLevels >= minLevels && p.CurrentLevels <= maxLevels {
			m.levels = p.CurrentLevels
		}
	} else {
		slog.Error("failed to load prefs", "err", err)
	}

	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanMsg(time.Now()) },
		tea.Tick(uiTickInterval, func(t time.Time) tea.Msg { return tickMsg(t) }),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case scanMsg:
		m.now = time.Time(msg)
		m = m.rescan()
		return m, tea.Tick(m.cfg.GetScanInterval(), func(t time.Time) tea.Msg { return scanMsg(t) })

	case tickMsg:
		m.now = time.Time(msg)
		m = m.reloadPages()
		return m, tea.Tick(uiTickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		savePrefs(m.prefs, m.levels, m.currentMount())
		return m, tea.Quit

	case key.Matches(msg, m.keys.Next):
		if len(m.pages) > 0 {
			m.page = (m.page + 1) % len(m.pages)
			savePrefs(m.prefs, m.levels, m.currentMount())
		}

	case key.Matches(msg, m.keys.Prev):
		if len(m.pages) > 0 {
			m.page = (m.page - 1 + len(m.pages)) % len(m.pages)
			savePrefs(m.prefs, m.levels, m.currentMount())
		}

	case key.Matches(msg, m.keys.MoreLevels):
		if m.levels < maxLevels {
			m.levels++
			savePrefs(m.prefs, m.levels, m.currentMount())
		}

	case key.Matches(msg, m.keys.FewerLevels):
		if m.levels > minLevels {
			m.levels--
			savePrefs(m.prefs, m.levels, m.currentMount())
		}

	case key.Matches(msg, m.keys.Refresh):
		if mount := m.currentMount(); mount != "" {
			m.sched.ForceRefresh(m.ctx, mount)
			m = m.reloadPages()
		}
	}

	return m, nil
}

// currentMount is the mount shown on the current hierarchy page.
func (m Model) currentMount() string {
	if m.page < len(m.pages) {
		return m.pages[m.page].vol.Mount
	}
	return ""
}

// rescan refreshes the volume list, writes the usage side files and
// nudges the scheduler for every volume.
func (m Model) rescan() Model {
	vols := m.listVols()
	sort.SliceStable(vols, func(i, j int) bool {
		if vols[i].Total != vols[j].Total {
			return vols[i].Total > vols[j].Total
		}
		return strings.ToLower(vols[i].Mount) < strings.ToLower(vols[j].Mount)
	})

	for _, v := range vols {
		if err := m.store.WriteUsagePercent(v.Mount, v.Percent); err != nil {
			slog.Error("failed to write usage side file", "mount", v.Mount, "err", err)
		}
		m.sched.EnsureFresh(m.ctx, v.Mount)
	}

	m.vols = vols
	return m.reloadPages()
}

// reloadPages rebuilds the hierarchy pages from the persisted
// snapshots, newest first, keeping the current page on the same volume
// when possible.
func (m Model) reloadPages() Model {
	keep := m.currentMount()
	if keep == "" {
		if p, err := m.prefs.Get(); err == nil {
			keep = p.LastMount
		}
	}

	var pages []page
	for _, v := range m.vols {
		if snap := m.sched.Snapshot(v.Mount); snap != nil {
			pages = append(pages, page{vol: v, snap: snap})
		}
	}
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].snap.Timestamp > pages[j].snap.Timestamp
	})

	m.pages = pages
	m.page = 0
	for i, p := range pages {
		if p.vol.Mount == keep {
			m.page = i
			break
		}
	}
	return m
}
