// Package config loads the small set of per-deployment defaults that do
// not belong on the command line (default lobby time control, bot
// think-time bounds): a typed struct behind a sync.Once loader, mirroring
// the teacher's internal/config.BetConfig (load once from a JSON file,
// serve a safe default when unset).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// BotTuning bounds the AI Adapter's think-time jitter (SPEC_FULL §C.1).
type BotTuning struct {
	MinDelayMs   int64 `json:"min_delay_ms"`
	MaxDelayMs   int64 `json:"max_delay_ms"`
	DepthHint    int   `json:"depth_hint"`
	TimeBudgetMs int64 `json:"time_budget_ms"`
}

// DefaultLobbySettings seeds matchmaking's auto-created lobby (spec.md
// §4.5: "{time_minutes:10, time_increment_seconds:0}") and is also offered
// as the create_lobby form default.
type DefaultLobbySettings struct {
	TimeMinutes          int `json:"time_minutes"`
	TimeIncrementSeconds int `json:"time_increment_seconds"`
}

// Settings is the full structured-settings block.
type Settings struct {
	Bot          BotTuning            `json:"bot"`
	DefaultLobby DefaultLobbySettings `json:"default_lobby"`
}

func defaults() *Settings {
	return &Settings{
		Bot: BotTuning{
			MinDelayMs:   1_000,
			MaxDelayMs:   2_000,
			DepthHint:    2,
			TimeBudgetMs: 500,
		},
		DefaultLobby: DefaultLobbySettings{
			TimeMinutes:          10,
			TimeIncrementSeconds: 0,
		},
	}
}

var (
	current  *Settings
	loadOnce sync.Once
	loadErr  error
)

// Load reads the structured settings block from path. An empty path loads
// built-in defaults. Safe to call once; subsequent calls are no-ops (the
// first path wins), mirroring the teacher's LoadBetConfig.
func Load(path string) error {
	loadOnce.Do(func() {
		current = defaults()
		if path == "" {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("config: read %s: %w", path, err)
			return
		}
		if err := json.Unmarshal(data, current); err != nil {
			loadErr = fmt.Errorf("config: unmarshal %s: %w", path, err)
		}
	})
	return loadErr
}

// Get returns the loaded settings, or built-in defaults if Load was never
// called (e.g. in unit tests that construct components directly).
func Get() *Settings {
	if current == nil {
		return defaults()
	}
	return current
}

// BotDelays returns the configured think-time jitter bounds as durations.
func (s *Settings) BotDelays() (min, max time.Duration) {
	return time.Duration(s.Bot.MinDelayMs) * time.Millisecond, time.Duration(s.Bot.MaxDelayMs) * time.Millisecond
}
