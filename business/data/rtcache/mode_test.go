package rtcache

import "testing"

func TestModeForRoute(t *testing.T) {
	tests := []struct {
		routeId string
		want    Mode
	}{
		{"T1", ModeRail},
		{"t8", ModeRail},
		{"BMT", ModeRail},
		{"M20", ModeMetro},
		{"SMNW_M1", ModeMetro},
		// the Manly fast ferry short name collides with the metro prefix
		// and must win
		{"MFF", ModeFerry},
		{"mff", ModeFerry},
		{"F1", ModeFerry},
		{"9-F8", ModeFerry},
		{"L1", ModeLightRail},
		{"IWLR-191", ModeLightRail},
		{"199", ModeBus},
		{"610X", ModeBus},
		{"", ModeBus},
		{"ZZZ", ModeBus},
	}
	for _, tt := range tests {
		t.Run(tt.routeId, func(t *testing.T) {
			if got := ModeForRoute(tt.routeId); got != tt.want {
				t.Errorf("ModeForRoute(%q) = %s, want %s", tt.routeId, got, tt.want)
			}
		})
	}
}

func TestRouteTypeForMode(t *testing.T) {
	tests := []struct {
		mode Mode
		want int
	}{
		{ModeLightRail, 0},
		{ModeMetro, 1},
		{ModeRail, 2},
		{ModeBus, 3},
		{ModeFerry, 4},
	}
	for _, tt := range tests {
		if got := RouteTypeForMode(tt.mode); got != tt.want {
			t.Errorf("RouteTypeForMode(%s) = %d, want %d", tt.mode, got, tt.want)
		}
	}
}
