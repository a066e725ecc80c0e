// Package hours supplies provider business-hours windows to the scheduler.
// Windows are wall-clock (open, close) pairs applied to any date. Providers
// without their own template fall back to the system default window. The
// optional per-provider file is YAML, re-read on every Load so the server
// can refresh hours on SIGHUP without restarting.
package hours

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/bookline/bookline/internal/domain/appointment"
)

// Window is one wall-clock open range in HH:MM notation, as written in the
// hours file.
type Window struct {
	Open  string `mapstructure:"open"`
	Close string `mapstructure:"close"`
}

// window is a validated Window, held as minutes since midnight.
type window struct {
	open  int
	close int
}

// Config configures a Source. DefaultOpen and DefaultClose define the system
// default window. File points at an optional YAML template file; empty means
// every provider uses the default window.
type Config struct {
	DefaultOpen  string
	DefaultClose string
	File         string
}

// Source resolves business-hours windows per provider. Safe for concurrent
// use; Load may run while WindowsOn is being called.
type Source struct {
	file string

	mu        sync.RWMutex
	def       []window
	providers map[int64][]window
}

// New validates the default window and returns a Source with no per-provider
// templates loaded yet. Call Load to read the template file.
func New(cfg Config) (*Source, error) {
	def, err := parseWindow(Window{Open: cfg.DefaultOpen, Close: cfg.DefaultClose})
	if err != nil {
		return nil, fmt.Errorf("default window: %w", err)
	}
	return &Source{
		file:      cfg.File,
		def:       []window{def},
		providers: map[int64][]window{},
	}, nil
}

// Load reads the template file and swaps in the parsed windows. A Source
// without a file keeps its defaults and returns nil. Load validates every
// window before touching state, so a bad file leaves the previous templates
// in effect. The serve command re-runs Load on SIGHUP.
func (s *Source) Load() error {
	if s.file == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(s.file)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read hours file %s: %w", s.file, err)
	}

	var raw struct {
		Providers map[string][]Window `mapstructure:"providers"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return fmt.Errorf("parse hours file %s: %w", s.file, err)
	}

	providers := make(map[int64][]window, len(raw.Providers))
	for key, windows := range raw.Providers {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("hours file %s: provider key %q is not a positive id", s.file, key)
		}
		parsed, err := parseWindows(windows)
		if err != nil {
			return fmt.Errorf("hours file %s: provider %d: %w", s.file, id, err)
		}
		providers[id] = parsed
	}

	s.mu.Lock()
	s.providers = providers
	s.mu.Unlock()
	return nil
}

// WindowsOn returns the provider's open intervals on the given day. day must
// be midnight in the scheduling location; the returned intervals carry that
// location. A provider listed in the template with no windows is closed.
func (s *Source) WindowsOn(providerID int64, day time.Time) []appointment.Interval {
	s.mu.RLock()
	windows, ok := s.providers[providerID]
	if !ok {
		windows = s.def
	}
	s.mu.RUnlock()

	if len(windows) == 0 {
		return nil
	}

	y, m, d := day.Date()
	loc := day.Location()
	out := make([]appointment.Interval, 0, len(windows))
	for _, w := range windows {
		out = append(out, appointment.Interval{
			Start: time.Date(y, m, d, w.open/60, w.open%60, 0, 0, loc),
			End:   time.Date(y, m, d, w.close/60, w.close%60, 0, 0, loc),
		})
	}
	return out
}

// parseWindows validates a template entry and returns it ordered by opening
// time.
func parseWindows(windows []Window) ([]window, error) {
	out := make([]window, 0, len(windows))
	for _, w := range windows {
		parsed, err := parseWindow(w)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].open < out[j].open })
	return out, nil
}

func parseWindow(w Window) (window, error) {
	openMin, err := parseClock(w.Open)
	if err != nil {
		return window{}, err
	}
	closeMin, err := parseClock(w.Close)
	if err != nil {
		return window{}, err
	}
	if openMin >= closeMin {
		return window{}, fmt.Errorf("window %s-%s: open must be before close", w.Open, w.Close)
	}
	return window{open: openMin, close: closeMin}, nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock %q: hours 00-23, minutes 00-59", s)
	}
	return h*60 + m, nil
}
