package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"speechline/internal/config"
)

// Requirement defines an external binary speechline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	// Path is the resolved executable when Available is set.
	Path   string
	Detail string
}

// Requirements lists the binaries a detection run needs for cfg.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{Name: "FFprobe", Command: cfg.Media.FFprobeBinary, Description: "Reads video frame rates"},
		{Name: "FFmpeg", Command: cfg.Media.FFmpegBinary, Description: "Extracts mono PCM audio for detection"},
		{Name: "Speech detector", Command: cfg.Detector.Command, Description: "Runs the voice-activity model"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = resolved
		results = append(results, status)
	}
	return results
}

// Missing returns the required statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			out = append(out, status)
		}
	}
	return out
}
