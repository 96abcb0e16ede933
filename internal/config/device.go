package config

import "runtime"

// DetectClass applies the device-class heuristic described in
// spec.md §4.4 once, at engine construction: available CPU cores
// stand in for "available-memory"/"mobile-ua" signals this process
// cannot directly observe (vizcore is a server/CLI-embeddable library,
// not a browser — there is no UA string to read). Runtime override via
// Options.DeviceClass always takes precedence and persists for the
// session (spec.md §4.4).
func DetectClass() DeviceClass {
	cores := runtime.NumCPU()
	switch {
	case cores <= 2:
		return ClassMobile
	case cores <= 4:
		return ClassLowPower
	case cores >= 16:
		return ClassHighPerf
	default:
		return ClassDefault
	}
}
