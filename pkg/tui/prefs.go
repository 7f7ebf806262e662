package tui

import (
	"log/slog"

	"dsv/pkg/lazyjson"
)

// Prefs are the persisted UI preferences: how many tree levels are
// shown and which volume was viewed last.
type Prefs struct {
	CurrentLevels int    `json:"current_levels"`
	LastMount     string `json:"last_mount"`
}

func defaultPrefs() *Prefs {
	return &Prefs{CurrentLevels: 1}
}

// savePrefs persists the current view state, best effort.
func savePrefs(mgr lazyjson.Manager[Prefs], levels int, mount string) {
	err := mgr.Modify(func(p *Prefs) error {
		p.CurrentLevels = levels
		p.LastMount = mount
		return nil
	})
	if err == nil {
		err = mgr.Save()
	}
	if err != nil {
		slog.Error("failed to save prefs", "err", err)
	}
}
