package build

import (
	"runtime/debug"
	"time"
)

// Set with -ldflags "-X".
var (
	commit  = ""
	date    = ""
	version = "dev"
	repoURL = ""
)

var Current = newBuild(commit, date, version, repoURL, readVCS())

type Build struct {
	Commit     string    `json:"commit,omitempty"`
	Version    string    `json:"version,omitempty"`
	Date       time.Time `json:"date,omitempty"`
	Modified   bool      `json:"modified,omitempty"`
	RepoURL    string    `json:"repo_url,omitempty"`
	CommitURL  string    `json:"commit_url,omitempty"`
	ReleaseURL string    `json:"release_url,omitempty"`
}

type vcs struct {
	revision string
	time     string
	modified bool
}

// readVCS reads the revision stamped by the go command, if any.
func readVCS() vcs {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return vcs{}
	}
	var v vcs
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			v.revision = s.Value
		case "vcs.time":
			v.time = s.Value
		case "vcs.modified":
			v.modified = s.Value == "true"
		}
	}
	return v
}

func newBuild(commit, date, version, repoURL string, v vcs) Build {
	if commit == "" {
		commit = v.revision
	}
	if date == "" {
		date = v.time
	}
	parsed, _ := time.Parse(time.RFC3339, date)

	b := Build{
		Commit:   commit,
		Version:  version,
		Date:     parsed,
		Modified: v.modified,
		RepoURL:  repoURL,
	}
	if repoURL != "" {
		if commit != "" {
			b.CommitURL = repoURL + "/tree/" + commit
		}
		if version != "dev" {
			b.ReleaseURL = repoURL + "/releases/tag/" + version
		}
	}
	return b
}
