package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Set at release time with -ldflags "-X github.com/fmueller/voxtype/internal/version.Version=...".
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

type Info struct {
	Version string
	Commit  string
	Date    string
	Dirty   bool
}

// Get prefers the linker-set values and falls back to the VCS stamps Go
// embeds in every module build.
func Get() Info {
	return resolve(Version, Commit, Date, debug.ReadBuildInfo)
}

func (i Info) String() string {
	var details []string
	if i.Commit != "" {
		commit := i.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		if i.Dirty {
			commit += "-dirty"
		}
		details = append(details, commit)
	}
	if i.Date != "" {
		details = append(details, i.Date)
	}
	if len(details) == 0 {
		return i.Version
	}
	return fmt.Sprintf("%s (%s)", i.Version, strings.Join(details, ", "))
}

func resolve(version, commit, date string, read func() (*debug.BuildInfo, bool)) Info {
	info := Info{Version: strings.TrimPrefix(version, "v"), Commit: commit, Date: date}

	bi, ok := read()
	if ok && bi != nil {
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = strings.TrimPrefix(bi.Main.Version, "v")
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.Date == "" {
					info.Date = s.Value
				}
			case "vcs.modified":
				info.Dirty = s.Value == "true"
			}
		}
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}
	return info
}
