// Package diskusage reports filesystem capacity for the recording storage.
package diskusage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Usage is a capacity snapshot of the filesystem holding a path.
type Usage struct {
	Total     uint64  `json:"total_bytes"`
	Available uint64  `json:"available_bytes"`
	Used      uint64  `json:"used_bytes"`
	Percent   float64 `json:"used_percent"`
}

// BytesAbove returns how many bytes must be freed to bring usage down to
// maxPercent of the total, or zero when already at or under it.
func (u Usage) BytesAbove(maxPercent int) uint64 {
	target := u.Total * uint64(maxPercent) / 100
	if u.Used <= target {
		return 0
	}
	return u.Used - target
}

// Probe reads filesystem usage.
type Probe interface {
	Usage(path string) (Usage, error)
}

// StatfsProbe reads usage with statfs(2).
type StatfsProbe struct{}

// Usage implements Probe. A path that does not exist yet is resolved to its
// nearest existing parent.
func (StatfsProbe) Usage(path string) (Usage, error) {
	target, err := existingAncestor(path)
	if err != nil {
		return Usage{}, err
	}
	var st unix.Statfs_t
	if err := unix.Statfs(target, &st); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", target, err)
	}
	bsize := uint64(st.Bsize)
	return FromBlocks(st.Blocks*bsize, st.Bfree*bsize, st.Bavail*bsize), nil
}

// FromBlocks computes a Usage from total, free, and available-to-user bytes.
// Used counts everything not free, so reserved blocks count as used.
func FromBlocks(total, free, avail uint64) Usage {
	u := Usage{Total: total, Available: avail}
	if total > free {
		u.Used = total - free
	}
	if total > 0 {
		u.Percent = float64(u.Used) / float64(total) * 100
	}
	return u
}

func existingAncestor(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", current, err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		current = parent
	}
}

// Static is a Probe that always reports the same usage. Tests and dry runs
// use it.
type Static struct {
	Value Usage
	Err   error
}

// Usage implements Probe.
func (s *Static) Usage(string) (Usage, error) {
	return s.Value, s.Err
}
