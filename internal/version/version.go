// Package version holds build metadata injected with -ldflags:
//
//	-X github.com/emergent-company/jobmanager/internal/version.Version=1.2.0
package version

import "fmt"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Build describes the running binary
type Build struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
}

func Current() Build {
	return Build{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
}

func (b Build) String() string {
	return fmt.Sprintf("%s (%s, built %s)", b.Version, b.GitCommit, b.BuildTime)
}
