package scene

import "testing"

func TestResolveVisibility_MonitorHiddenWhenGameForeground(t *testing.T) {
	in := policyInputs{
		game:    NewGameSource("game", nil, 111),
		monitor: NewMonitorSource("monitor", nil, 0, 0),
	}
	res := ResolveVisibility(in, true, false, false)
	if res.MonitorVisible {
		t.Fatal("monitor must be hidden while game is foreground")
	}
	if !res.GameVisible || res.Visible != VisibleGame {
		t.Fatalf("expected game visible and winning, got %+v", res)
	}
}

func TestResolveVisibility_MonitorVisibleWhenGameBackground(t *testing.T) {
	in := policyInputs{
		game:    NewGameSource("game", nil, 111),
		monitor: NewMonitorSource("monitor", nil, 0, 0),
	}
	res := ResolveVisibility(in, false, false, false)
	if !res.MonitorVisible {
		t.Fatal("monitor must be visible when game not foreground")
	}
	if res.GameVisible {
		t.Fatal("game must be hidden when a monitor source exists and game is not foreground")
	}
}

func TestResolveVisibility_WindowAlwaysWins(t *testing.T) {
	in := policyInputs{
		game:   NewGameSource("game", nil, 111),
		window: NewWindowSource("window", nil, 0, "t"),
	}
	res := ResolveVisibility(in, true, false, false)
	if !res.WindowVisible || res.Visible != VisibleWindow || res.VisibleName != "window" {
		t.Fatalf("window must always win, got %+v", res)
	}
}

func TestResolveVisibility_BRBVisibleOnlyWithoutMonitor(t *testing.T) {
	in := policyInputs{
		game: NewGameSource("game", nil, 111),
		brb:  NewBRBSource("brb", nil, "img.png"),
	}
	res := ResolveVisibility(in, false, false, false)
	if !res.BRBVisible {
		t.Fatal("BRB must be visible when game exists, not foreground, and no monitor")
	}

	in.monitor = NewMonitorSource("monitor", nil, 0, 0)
	res = ResolveVisibility(in, false, false, false)
	if res.BRBVisible {
		t.Fatal("BRB must not be visible once a monitor source exists")
	}
}

func TestResolveVisibility_KeepOnLostFocusTreatsAsForeground(t *testing.T) {
	in := policyInputs{
		game:    NewGameSource("game", nil, 111),
		monitor: NewMonitorSource("monitor", nil, 0, 0),
	}
	res := ResolveVisibility(in, false /* foreground */, false /* minimized */, true /* keepOnLostFocus */)
	if res.MonitorVisible {
		t.Fatal("keep_game_recording_on_lost_focus must treat foreground as true, hiding monitor")
	}
	if !res.GameForegroundPropagated {
		t.Fatal("foreground flag must propagate as true")
	}
}

func TestResolveVisibility_MinimizedDisablesKeepOnLostFocus(t *testing.T) {
	in := policyInputs{
		game:    NewGameSource("game", nil, 111),
		monitor: NewMonitorSource("monitor", nil, 0, 0),
	}
	res := ResolveVisibility(in, false, true /* minimized */, true /* keepOnLostFocus */)
	if !res.MonitorVisible {
		t.Fatal("minimized must suppress the keep-on-lost-focus override")
	}
}

func TestResolveVisibility_NoSourcesYieldsNone(t *testing.T) {
	res := ResolveVisibility(policyInputs{}, false, false, false)
	if res.Visible != VisibleNone || res.VisibleName != "" {
		t.Fatalf("expected VisibleNone, got %+v", res)
	}
}

func TestResolveVisibility_OverlaysFollowPrimaryVisibility(t *testing.T) {
	in := policyInputs{monitor: NewMonitorSource("monitor", nil, 0, 0)}
	res := ResolveVisibility(in, false, false, false)
	if !res.OverlaysVisible {
		t.Fatal("overlays must be visible whenever a primary source is visible")
	}

	res = ResolveVisibility(policyInputs{}, false, false, false)
	if res.OverlaysVisible {
		t.Fatal("overlays must not be visible with no primary source")
	}
}
