package buildinfo

import "fmt"

// These variables are intended to be set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/gatebot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/gatebot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/gatebot/core/buildinfo.Date=2026-10-16T12:00:00Z'
var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

// String renders build metadata on a single line for `gatebot version`.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, Commit, Date)
}
