// Package version carries build metadata injected at link time:
//
//	go build -ldflags "-X github.com/rickgao/polymarket-mirror/internal/version.Version=0.3.0 \
//	                   -X github.com/rickgao/polymarket-mirror/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/polymarket-mirror/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the build metadata as reported by /health.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
}

// String returns a formatted version string.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
