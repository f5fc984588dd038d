// Package buildinfo holds version metadata injected at link time:
//
//	go build -ldflags "-X github.com/solarwindow/pvpoll/internal/buildinfo.version=v1.2.0 \
//	  -X github.com/solarwindow/pvpoll/internal/buildinfo.buildDate=2024-06-21"
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	version   string
	buildDate string
	commit    string
)

// Info is the build metadata of the running binary
type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	Commit    string `json:"commit"`
}

// Get returns the linked metadata. The commit falls back to the VCS
// revision recorded by the Go toolchain.
func Get() Info {
	info := Info{Version: version, BuildDate: buildDate, Commit: commit}
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}
	if info.Commit == "" {
		info.Commit = vcsRevision()
	}
	return info
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return shortRevision(s.Value)
		}
	}
	return "unknown"
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// Release names the build for error reports
func (i Info) Release() string {
	return "pvpoll@" + i.Version
}

func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.BuildDate)
}
