package scene

// policyInputs is the pure-function input to ResolveVisibility, built
// from a SourceSet snapshot so the policy itself never touches locks
// (spec.md §4.3: "Pure function from (sources, game_foreground,
// minimized, keep_on_lost_focus) to (per-source visibility,
// new_visible_source)").
type policyInputs struct {
	game    *GameSource
	monitor *MonitorSource
	window  *WindowSource
	brb     *BRBSource
	gaze    *GazeSource
	generic map[string]*GenericSource
}

// VisibleKind enumerates the possible "currently visible" source
// (spec.md §8 invariant: exactly one of {Game, Monitor, Window, BRB,
// None}).
type VisibleKind int

const (
	VisibleNone VisibleKind = iota
	VisibleGame
	VisibleMonitor
	VisibleWindow
	VisibleBRB
)

func (k VisibleKind) String() string {
	switch k {
	case VisibleGame:
		return "game"
	case VisibleMonitor:
		return "monitor"
	case VisibleWindow:
		return "window"
	case VisibleBRB:
		return "brb"
	default:
		return ""
	}
}

// PolicyResult is the output of ResolveVisibility.
type PolicyResult struct {
	GameVisible              bool
	GameForegroundPropagated bool
	MonitorVisible           bool
	WindowVisible            bool
	BRBVisible               bool
	OverlaysVisible          bool
	Visible                  VisibleKind
	VisibleName              string
}

// ResolveVisibility implements the rules of spec.md §4.3, evaluated in
// order; later rules override earlier visibility choices but never
// previously-set hidden flags (i.e. a rule can only turn visibility on
// for a source it owns, never flip a sibling it doesn't govern).
func ResolveVisibility(in policyInputs, gameForegroundIn, minimized, keepOnLostFocus bool) PolicyResult {
	gameForeground := gameForegroundIn

	// Rule 1: treat foreground as true when the game lost focus but the
	// controller asked to keep recording through it.
	if in.game != nil && !gameForegroundIn && !minimized && keepOnLostFocus {
		gameForeground = true
	}

	var res PolicyResult

	// Rule 2: monitor visible iff game is not in foreground.
	if in.monitor != nil {
		res.MonitorVisible = !gameForeground
	}

	// Rule 3: window source, when present, is always visible and wins.
	if in.window != nil {
		res.WindowVisible = true
		res.Visible = VisibleWindow
		res.VisibleName = in.window.Name()
	}

	// Rule 4: game visibility and BRB visibility.
	if in.game != nil {
		res.GameVisible = in.monitor == nil || gameForeground
		res.BRBVisible = in.brb != nil && !gameForeground && in.monitor == nil
		res.GameForegroundPropagated = gameForeground

		if res.Visible == VisibleNone {
			switch {
			case res.GameVisible:
				res.Visible = VisibleGame
				res.VisibleName = in.game.Name()
			case in.monitor != nil && res.MonitorVisible:
				res.Visible = VisibleMonitor
				res.VisibleName = in.monitor.Name()
			case res.BRBVisible:
				res.Visible = VisibleBRB
				res.VisibleName = in.brb.Name()
			}
		}
	} else if res.Visible == VisibleNone && in.monitor != nil && res.MonitorVisible {
		res.Visible = VisibleMonitor
		res.VisibleName = in.monitor.Name()
	}

	// Rule 5: overlays (gaze, generics) move to top of z-order when
	// visible; they are visible whenever any primary source is visible.
	res.OverlaysVisible = res.Visible != VisibleNone

	return res
}
