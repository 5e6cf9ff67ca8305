package rtcache

import "strings"

// Mode identifies a transport mode. Real-time feed blobs are cached per mode,
// so the mode doubles as the cache key partition.
type Mode string

const (
	ModeRail      Mode = "rail"
	ModeMetro     Mode = "metro"
	ModeFerry     Mode = "ferry"
	ModeLightRail Mode = "lightrail"
	ModeBus       Mode = "bus"
)

// AllModes lists every mode a feed can be cached for
var AllModes = []Mode{ModeRail, ModeMetro, ModeFerry, ModeLightRail, ModeBus}

// ModeForRoute maps a route id to its transport mode by prefix heuristic.
// The rule list is evaluated top to bottom and the first match wins: the
// "MFF" ferry short name must be tested before the generic metro "M" prefix
// because the two overlap. Unrecognized or empty input is a bus.
func ModeForRoute(routeId string) Mode {
	if len(routeId) == 0 {
		return ModeBus
	}
	upper := strings.ToUpper(routeId)
	switch {
	case upper == "MFF":
		return ModeFerry
	case strings.HasPrefix(upper, "T"), strings.HasPrefix(upper, "BMT"):
		return ModeRail
	case strings.HasPrefix(upper, "M"), strings.HasPrefix(upper, "SMNW"):
		return ModeMetro
	case strings.HasPrefix(upper, "F"), strings.HasPrefix(upper, "9-F"):
		return ModeFerry
	case strings.HasPrefix(upper, "L"), strings.HasPrefix(upper, "IWLR"):
		return ModeLightRail
	default:
		return ModeBus
	}
}

// RouteTypeForMode provides the gtfs route_type used for placeholder route
// metadata when departures are synthesized from real-time data alone
func RouteTypeForMode(mode Mode) int {
	switch mode {
	case ModeLightRail:
		return 0
	case ModeMetro:
		return 1
	case ModeRail:
		return 2
	case ModeFerry:
		return 4
	default:
		return 3
	}
}
