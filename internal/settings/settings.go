// Package settings holds the runtime-adjustable settings shared by the scenes
// and the render loop, and persists the user-facing ones between runs.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/quasilyte/gdata"
)

const (
	MinBrightness = 0.1
	MaxBrightness = 1.0

	// BrightnessStep is the change applied by one left/right press in the
	// options menu.
	BrightnessStep = 0.05

	itemKey = "settings"
)

// Values is a plain snapshot of the settings.
type Values struct {
	DebugMode  bool    `json:"-"`
	Brightness float64 `json:"brightness"`
	TargetFPS  int     `json:"-"`
	LockFPS    bool    `json:"-"`
	ShowFPS    bool    `json:"show_fps"`
}

// Backend persists raw items. *gdata.Manager satisfies it.
type Backend interface {
	LoadItem(itemKey string) ([]byte, error)
	SaveItem(itemKey string, data []byte) error
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	v       Values
	backend Backend
	logger  *slog.Logger
}

// New returns a store holding defaults, without persistence.
func New(defaults Values) *Store {
	defaults.Brightness = clampBrightness(defaults.Brightness)
	return &Store{v: defaults, logger: slog.Default()}
}

// Open returns a store backed by the per-user data directory of appName and
// applies any previously saved values over defaults.
func Open(appName string, defaults Values, logger *slog.Logger) (*Store, error) {
	m, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil, fmt.Errorf("open settings storage: %w", err)
	}
	s := WithBackend(defaults, m, logger)
	if err := s.Load(); err != nil {
		return s, err
	}
	return s, nil
}

// WithBackend returns a store persisting through b.
func WithBackend(defaults Values, b Backend, logger *slog.Logger) *Store {
	s := New(defaults)
	s.backend = b
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Load applies saved values. A missing item leaves the defaults in place.
func (s *Store) Load() error {
	if s.backend == nil {
		return nil
	}
	data, err := s.backend.LoadItem(itemKey)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	saved := s.v
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("parse saved settings: %w", err)
	}
	saved.Brightness = clampBrightness(saved.Brightness)
	s.v = saved
	return nil
}

// Save writes the persisted fields. Without a backend it does nothing.
func (s *Store) Save() error {
	if s.backend == nil {
		return nil
	}
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("serialize settings: %w", err)
	}
	if err := s.backend.SaveItem(itemKey, data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.logger.Debug("settings saved")
	return nil
}

func (s *Store) Snapshot() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

func (s *Store) DebugMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.DebugMode
}

func (s *Store) Brightness() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.Brightness
}

// SetBrightness stores v clamped to [MinBrightness, MaxBrightness].
func (s *Store) SetBrightness(v float64) {
	s.mu.Lock()
	s.v.Brightness = clampBrightness(v)
	s.mu.Unlock()
}

// AdjustBrightness adds delta and returns the clamped result.
func (s *Store) AdjustBrightness(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Brightness = clampBrightness(s.v.Brightness + delta)
	return s.v.Brightness
}

// FrameRate returns the target frame rate and whether it is enforced.
func (s *Store) FrameRate() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.TargetFPS, s.v.LockFPS
}

func (s *Store) ShowFPS() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.ShowFPS
}

// ToggleShowFPS flips the FPS counter and returns the new state.
func (s *Store) ToggleShowFPS() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.ShowFPS = !s.v.ShowFPS
	return s.v.ShowFPS
}

func clampBrightness(v float64) float64 {
	if math.IsNaN(v) {
		return MaxBrightness
	}
	// Round to the step grid so repeated adjustments do not drift.
	v = math.Round(v*100) / 100
	return math.Max(MinBrightness, math.Min(MaxBrightness, v))
}
