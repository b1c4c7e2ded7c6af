package buildinfo

import "time"

// Set via -ldflags at build time
var (
	Version    = "dev"
	CommitHash string // short git commit hash
	BuildTime  string
)

// StartTime is recorded when the process starts
var StartTime = time.Now().UTC()

// Info describes the running binary
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit,omitempty"`
	BuildTime  string `json:"buildTime,omitempty"`
	StartedAt  string `json:"startedAt"`
	Uptime     string `json:"uptime"`
}

// Current returns build metadata and uptime
func Current() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		StartedAt:  StartTime.Format(time.RFC3339),
		Uptime:     time.Since(StartTime).Round(time.Second).String(),
	}
}

// String is the one-line form used in startup logs
func (i Info) String() string {
	if i.CommitHash == "" {
		return i.Version
	}
	return i.Version + " (" + i.CommitHash + ")"
}
