package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pedrox86lopes/MagnetStream/internal/config"
	"github.com/pedrox86lopes/MagnetStream/internal/services/aria2"
)

// Requirement defines an external dependency MagnetStream relies on.
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
	Detail      string
}

// Requirements builds the dependency list for the given configuration.
func Requirements(cfg *config.Config) []Requirement {
	binary := aria2.DefaultBinary
	if cfg != nil && strings.TrimSpace(cfg.Aria2.Binary) != "" {
		binary = cfg.Aria2.Binary
	}
	return []Requirement{
		{
			Name:        "aria2",
			Command:     binary,
			Description: "magnet/torrent downloader driving every fetch",
		},
	}
}

// Check evaluates the provided requirements and reports availability. For
// the aria2 entry the short version probe runs so a present-but-broken
// binary is reported as unavailable.
func Check(ctx context.Context, cfg *config.Config, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		command := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     command,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if command == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if !strings.Contains(command, "/") {
			if _, err := exec.LookPath(command); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", command)
				results = append(results, status)
				continue
			}
		}
		if req.Name == "aria2" {
			results = append(results, probeAria2(ctx, cfg, status))
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

func probeTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Aria2.ProbeTimeout) * time.Second
}

func probeAria2(ctx context.Context, cfg *config.Config, status Status) Status {
	opts := []aria2.Option{aria2.WithBinary(status.Command)}
	if cfg != nil && cfg.Aria2.ProbeTimeout > 0 {
		opts = append(opts, aria2.WithProbeTimeout(probeTimeout(cfg)))
	}
	version, err := aria2.NewCLI(opts...).Version(ctx)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Available = true
	status.Detail = version
	return status
}
