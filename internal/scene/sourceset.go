package scene

import (
	"fmt"
	"sort"
	"sync"
)

// SourceSet owns the set of capture sources and enforces which may
// coexist (spec.md §2 SourceSet, §3 Scene invariant: at most one of
// {Game, Monitor, Window} is the visible source at any instant).
type SourceSet struct {
	mu sync.RWMutex

	game    *GameSource
	monitor *MonitorSource
	window  *WindowSource
	brb     *BRBSource
	gaze    *GazeSource
	generic map[string]*GenericSource

	currentVisible string // name of the currently visible source, "" for None
}

func NewSourceSet() *SourceSet {
	return &SourceSet{generic: make(map[string]*GenericSource)}
}

func (s *SourceSet) Game() *GameSource       { s.mu.RLock(); defer s.mu.RUnlock(); return s.game }
func (s *SourceSet) Monitor() *MonitorSource { s.mu.RLock(); defer s.mu.RUnlock(); return s.monitor }
func (s *SourceSet) Window() *WindowSource   { s.mu.RLock(); defer s.mu.RUnlock(); return s.window }
func (s *SourceSet) BRB() *BRBSource         { s.mu.RLock(); defer s.mu.RUnlock(); return s.brb }
func (s *SourceSet) Gaze() *GazeSource       { s.mu.RLock(); defer s.mu.RUnlock(); return s.gaze }

func (s *SourceSet) SetGame(g *GameSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.game = g
}

func (s *SourceSet) SetMonitor(m *MonitorSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitor = m
}

func (s *SourceSet) SetWindow(w *WindowSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = w
}

func (s *SourceSet) SetBRB(b *BRBSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brb = b
}

func (s *SourceSet) SetGaze(g *GazeSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gaze = g
}

func (s *SourceSet) AddGeneric(g *GenericSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generic[g.Name()] = g
}

func (s *SourceSet) RemoveGeneric(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.generic, name)
}

func (s *SourceSet) Generics() []*GenericSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*GenericSource, 0, len(s.generic))
	for _, g := range s.generic {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// RemoveGame removes the game source (spec.md §4.2.3: "Remove the
// GameSource" on game exit).
func (s *SourceSet) RemoveGame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.game = nil
}

// HasAnyCaptureSource reports whether at least one active capture
// source exists (spec.md §4.2.1: "at least one active capture source
// must exist after scene build, otherwise emit ERR
// INIT_ERROR_FAILED_TO_CREATE_SOURCES. Auxiliary sources alone count.").
func (s *SourceSet) HasAnyCaptureSource() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.game != nil || s.monitor != nil || s.window != nil || len(s.generic) > 0
}

// CurrentVisible returns the name of the currently visible source, or
// "" for None (spec.md §8 invariant: current_visible_source is one of
// the existing sources or None).
func (s *SourceSet) CurrentVisible() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentVisible
}

// setCurrentVisible updates the cached visible-source name and reports
// whether it changed, used to gate DISPLAY_SOURCE_CHANGED (spec.md
// §4.3: "A change in current_visible_source.name emits
// DISPLAY_SOURCE_CHANGED").
func (s *SourceSet) setCurrentVisible(name string) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed = s.currentVisible != name
	s.currentVisible = name
	return changed
}

// snapshotInputs builds the VisibilityPolicy input struct under the
// read lock.
func (s *SourceSet) snapshotInputs() policyInputs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return policyInputs{
		game:    s.game,
		monitor: s.monitor,
		window:  s.window,
		brb:     s.brb,
		gaze:    s.gaze,
		generic: s.generic,
	}
}

// ApplyVisibility runs VisibilityPolicy against the current source set,
// applies the resulting per-source visibility flags, and returns
// whether the current-visible source changed along with its new name
// (spec.md §4.3). Callers are expected to be on the command worker.
func (s *SourceSet) ApplyVisibility(gameForeground, minimized, keepOnLostFocus bool) (changed bool, visibleName string) {
	in := s.snapshotInputs()
	result := ResolveVisibility(in, gameForeground, minimized, keepOnLostFocus)

	s.mu.Lock()
	if s.game != nil {
		s.game.SetVisible(result.GameVisible)
		s.game.Foreground = result.GameForegroundPropagated
	}
	if s.monitor != nil {
		s.monitor.SetVisible(result.MonitorVisible)
	}
	if s.window != nil {
		s.window.SetVisible(result.WindowVisible)
	}
	if s.brb != nil {
		s.brb.SetVisible(result.BRBVisible)
	}
	if s.gaze != nil {
		s.gaze.SetVisible(result.OverlaysVisible)
	}
	for _, g := range s.generic {
		g.SetVisible(result.OverlaysVisible)
	}
	s.mu.Unlock()

	return s.setCurrentVisible(result.VisibleName), result.VisibleName
}

// String is for diagnostic logging only.
func (s *SourceSet) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("SourceSet{game=%v monitor=%v window=%v visible=%q}",
		s.game != nil, s.monitor != nil, s.window != nil, s.currentVisible)
}
