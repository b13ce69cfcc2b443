package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dvr/internal/api"
	"dvr/internal/config"
	"dvr/internal/ipc"
	"dvr/internal/preflight"
	"dvr/internal/store"
)

// StatusSnapshot is what `dvr status` renders.
type StatusSnapshot struct {
	Status            api.DaemonStatus      `json:"status"`
	SystemChecks      []api.StatusLine      `json:"systemChecks"`
	DependencySummary api.DependencySummary `json:"dependencySummary"`
}

// BuildStatusSnapshot collects daemon status and falls back to the database
// and local checks when the daemon is offline.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &StatusSnapshot{}

	client, err := ipc.Dial(cfg.SocketPath())
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			snapshot.Status = resp.Status
		}
	}

	if !snapshot.Status.Running {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		snapshot.Status.DatabasePath = cfg.DatabasePath()
		snapshot.Status.LockFilePath = cfg.LockPath()
		snapshot.Status.StoragePath = cfg.Paths.StorageDir
		if _, statErr := os.Stat(cfg.DatabasePath()); statErr == nil {
			st, openErr := store.OpenPath(cfg.DatabasePath(), cfg.Paths.StorageDir)
			if openErr == nil {
				if pending, countErr := st.CountPending(queryCtx); countErr == nil {
					snapshot.Status.Scheduler.PendingCount = pending
				}
				_ = st.Close()
			}
		}
	}

	if len(snapshot.Status.Dependencies) == 0 {
		snapshot.Status.Dependencies = api.FromDependencies(preflight.CheckSystemDeps(ctx, cfg))
	}

	snapshot.SystemChecks = BuildSystemChecks(ctx, cfg, snapshot.Status.Running)
	snapshot.DependencySummary = BuildDependencySummary(snapshot.Status.Dependencies)
	return snapshot, nil
}

// BuildSystemChecks resolves status lines that combine runtime state and config checks.
func BuildSystemChecks(ctx context.Context, cfg *config.Config, daemonRunning bool) []api.StatusLine {
	lines := make([]api.StatusLine, 0, 8)
	if daemonRunning {
		lines = append(lines, api.StatusLine{Label: "dvr", Severity: "ok", Detail: "Running"})
	} else {
		lines = append(lines, api.StatusLine{Label: "dvr", Severity: "warn", Detail: "Not running (run `dvr start`)"})
	}

	for _, result := range []preflight.Result{
		preflight.CheckDirectoryAccess("Recording storage", cfg.Paths.StorageDir),
		preflight.CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	} {
		lines = append(lines, resultLine(result, "error"))
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, api.StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"})
	} else {
		lines = append(lines, api.StatusLine{Label: "Notifications", Severity: "info", Detail: "Not configured"})
	}

	switch {
	case strings.TrimSpace(cfg.Paths.APIBind) == "":
		lines = append(lines, api.StatusLine{Label: "HTTP API", Severity: "info", Detail: "Disabled"})
	case strings.TrimSpace(cfg.Paths.APISecret) == "":
		lines = append(lines, api.StatusLine{Label: "HTTP API", Severity: "warn", Detail: cfg.Paths.APIBind + " (no api_secret, unauthenticated)"})
	default:
		lines = append(lines, api.StatusLine{Label: "HTTP API", Severity: "ok", Detail: cfg.Paths.APIBind})
	}

	for _, src := range cfg.Sources {
		if src.Kind != config.SourceXtream {
			lines = append(lines, api.StatusLine{Label: "Source " + src.ID, Severity: "info", Detail: src.Kind})
			continue
		}
		lines = append(lines, resultLine(preflight.CheckXtreamSource(ctx, src), "warn"))
	}
	return lines
}

func resultLine(result preflight.Result, failSeverity string) api.StatusLine {
	severity := failSeverity
	if result.Passed {
		severity = "ok"
	}
	return api.StatusLine{Label: result.Name, Severity: severity, Detail: result.Detail}
}

// BuildDependencySummary counts unavailable dependencies. A missing
// required one is an error, a missing optional one a warning.
func BuildDependencySummary(deps []api.DependencyStatus) api.DependencySummary {
	summary := api.DependencySummary{Total: len(deps), Severity: "ok"}
	if len(deps) == 0 {
		summary.Severity = "info"
		summary.Detail = "No dependency checks configured"
		return summary
	}
	for _, dep := range deps {
		switch {
		case dep.Available:
			summary.Available++
		case dep.Optional:
			summary.MissingOptional++
		default:
			summary.MissingRequired++
		}
	}
	switch {
	case summary.MissingRequired > 0:
		summary.Severity = "error"
	case summary.MissingOptional > 0:
		summary.Severity = "warn"
	}
	summary.Detail = fmt.Sprintf("%d/%d available", summary.Available, summary.Total)
	if summary.Available < summary.Total {
		summary.Detail += fmt.Sprintf(" (missing: %d required, %d optional)", summary.MissingRequired, summary.MissingOptional)
	}
	return summary
}
