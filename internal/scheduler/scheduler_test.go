package scheduler

import (
	"testing"
	"time"
)

func TestBackupLabel(t *testing.T) {
	ts := time.Date(2026, 9, 1, 3, 0, 0, 0, time.UTC)
	if got := BackupLabel(ts); got != "auto-2026-09-01" {
		t.Errorf("BackupLabel = %s, want auto-2026-09-01", got)
	}
}
