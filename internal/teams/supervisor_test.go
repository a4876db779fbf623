package teams

import (
	"sync/atomic"
	"testing"
	"time"
)

func awaitStatus(t *testing.T, s *Supervisor, name string, want WorkerStatus) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if s.Status(name) == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("worker %s never reached %s (now %s)", name, want, s.Status(name))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSupervisor_CleanExitNotRestarted(t *testing.T) {
	s := NewSupervisor(SupervisorConfig{})
	var runs atomic.Int32

	s.Supervise("worker", func() { runs.Add(1) })
	awaitStatus(t, s, "worker", WorkerStopped)

	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestSupervisor_RespawnsAfterPanic(t *testing.T) {
	s := NewSupervisor(SupervisorConfig{MaxRespawns: 5})
	var runs atomic.Int32

	s.Supervise("flaky", func() {
		if runs.Add(1) == 1 {
			panic("transient")
		}
	})
	awaitStatus(t, s, "flaky", WorkerStopped)

	if got := runs.Load(); got != 2 {
		t.Errorf("runs = %d, want 2", got)
	}
}

func TestSupervisor_CrashLoopDisables(t *testing.T) {
	s := NewSupervisor(SupervisorConfig{MaxRespawns: 3, WindowDuration: time.Hour})
	var runs atomic.Int32

	done := s.Supervise("doomed", func() {
		runs.Add(1)
		panic("always")
	})
	awaitStatus(t, s, "doomed", WorkerDisabled)

	// The done channel closes even when disablement, not a clean stop,
	// ends the worker. Waiters must never hang.
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("done channel never closed")
	}

	// initial run + 3 respawns
	if got := runs.Load(); got != 4 {
		t.Errorf("runs = %d, want 4", got)
	}

	s.Reset("doomed")
	if s.Status("doomed") != WorkerStopped {
		t.Errorf("status after reset = %s", s.Status("doomed"))
	}
}

func TestSupervisor_StopWorkerPreventsRespawn(t *testing.T) {
	s := NewSupervisor(SupervisorConfig{MaxRespawns: 100, WindowDuration: time.Hour})
	var runs atomic.Int32
	started := make(chan struct{}, 100)

	s.Supervise("stoppable", func() {
		runs.Add(1)
		started <- struct{}{}
		<-time.After(20 * time.Millisecond)
		panic("crash")
	})

	<-started
	s.StopWorker("stoppable")
	awaitStatus(t, s, "stoppable", WorkerStopped)

	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1 after stop", got)
	}
}
