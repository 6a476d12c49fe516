package rwgate

import "golang.org/x/mod/semver"

// Version is the module version, in semver form.
const Version = "v0.1.0"

// Info provides information about the simulation build.
type Info struct {
	// Version is the module version string.
	Version string

	// Protocol names the readers-writers variant.
	Protocol string

	// Checker is the happens-before algorithm used for race checking.
	Checker string
}

// GetInfo returns information about the simulation build.
//
// Example:
//
//	info := rwgate.GetInfo()
//	fmt.Printf("rwgate %s (%s)\n", info.Version, info.Protocol)
func GetInfo() Info {
	return Info{
		Version:  Version,
		Protocol: "readers-preferring",
		Checker:  "FastTrack (PLDI 2009)",
	}
}

// Compatible reports whether v is a valid semver version with the same
// major version as this module.
func Compatible(v string) bool {
	return semver.IsValid(v) && semver.Major(v) == semver.Major(Version)
}
