package preflight

import (
	"context"

	"dvr/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Recording storage", cfg.Paths.StorageDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFFmpeg(ctx, cfg.Recorder.FFmpegBinary),
	}

	for _, src := range cfg.Sources {
		if src.Kind == config.SourceXtream {
			results = append(results, CheckXtreamSource(ctx, src))
		}
	}

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}

	return results
}
