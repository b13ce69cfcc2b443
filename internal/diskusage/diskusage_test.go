package diskusage_test

import (
	"path/filepath"
	"testing"

	"dvr/internal/diskusage"
)

func TestStatfsProbeReadsTempDir(t *testing.T) {
	dir := t.TempDir()
	usage, err := diskusage.StatfsProbe{}.Usage(filepath.Join(dir, "not", "created", "yet"))
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if usage.Total == 0 {
		t.Fatal("expected non-zero total")
	}
	if usage.Percent < 0 || usage.Percent > 100 {
		t.Fatalf("percent out of range: %f", usage.Percent)
	}
}

func TestFromBlocksAndBytesAbove(t *testing.T) {
	u := diskusage.FromBlocks(1000, 150, 100)
	if u.Used != 850 || u.Available != 100 || u.Percent != 85 {
		t.Fatalf("unexpected usage: %#v", u)
	}
	if need := u.BytesAbove(80); need != 50 {
		t.Fatalf("BytesAbove(80) = %d, want 50", need)
	}
	if need := u.BytesAbove(90); need != 0 {
		t.Fatalf("BytesAbove(90) = %d, want 0", need)
	}
}
