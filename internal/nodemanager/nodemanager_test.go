package nodemanager

import (
	"testing"
	"time"
)

func TestStartStopStatus(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, "sleep", []string{"30"})

	status := m.Status()
	if status.Running {
		t.Fatal("expected not running before start")
	}

	res, err := m.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.AlreadyRunning {
		t.Fatal("expected fresh start, not already-running")
	}
	if res.PID == 0 {
		t.Fatal("expected nonzero pid")
	}

	status = m.Status()
	if !status.Running || status.PID != res.PID {
		t.Fatalf("expected running with pid %d, got %+v", res.PID, status)
	}

	res2, err := m.Start()
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !res2.AlreadyRunning || res2.PID != res.PID {
		t.Fatalf("expected already-running with same pid, got %+v", res2)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !m.Status().Running {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if m.Status().Running {
		t.Fatal("expected process to be stopped")
	}
}

func TestStopWithoutStartReturnsErrNotRunning(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, "sleep", []string{"30"})
	if err := m.Stop(); err != ErrNotRunning {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}
