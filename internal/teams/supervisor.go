package teams

import (
	"log"
	"sync"
	"time"
)

// WorkerStatus tracks one supervised worker's lifecycle
type WorkerStatus string

const (
	WorkerRunning  WorkerStatus = "running"
	WorkerCrashed  WorkerStatus = "crashed"
	WorkerStopped  WorkerStatus = "stopped"
	WorkerDisabled WorkerStatus = "disabled" // crash loop protection triggered
)

// SupervisorConfig tunes crash loop protection
type SupervisorConfig struct {
	MaxRespawns    int           // default 3
	WindowDuration time.Duration // default 1 minute
}

type workerState struct {
	respawnCount int
	windowStart  time.Time
	status       WorkerStatus
	quit         chan struct{}
	done         chan struct{}
}

// Supervisor restarts panicking workers. A worker that crashes more
// than MaxRespawns times inside WindowDuration is disabled instead of
// respawned. Workers that return normally are not restarted.
type Supervisor struct {
	mu             sync.Mutex
	maxRespawns    int
	windowDuration time.Duration
	workers        map[string]*workerState
}

// NewSupervisor creates a supervisor with crash loop defaults
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.MaxRespawns == 0 {
		cfg.MaxRespawns = 3
	}
	if cfg.WindowDuration == 0 {
		cfg.WindowDuration = time.Minute
	}
	return &Supervisor{
		maxRespawns:    cfg.MaxRespawns,
		windowDuration: cfg.WindowDuration,
		workers:        make(map[string]*workerState),
	}
}

// Supervise runs fn in a goroutine, respawning it after panics until
// crash loop protection disables it. The returned channel closes once
// the worker will not run again, whether it stopped or was disabled.
func (s *Supervisor) Supervise(name string, fn func()) <-chan struct{} {
	s.mu.Lock()
	state, exists := s.workers[name]
	if exists && state.status == WorkerRunning {
		s.mu.Unlock()
		return state.done
	}
	state = &workerState{
		status: WorkerRunning,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.workers[name] = state
	s.mu.Unlock()

	go s.runLoop(name, state, fn)
	return state.done
}

func (s *Supervisor) runLoop(name string, state *workerState, fn func()) {
	defer close(state.done)
	for {
		crashed := s.runOnce(name, fn)
		if !crashed {
			s.setStatus(name, WorkerStopped)
			return
		}

		select {
		case <-state.quit:
			s.setStatus(name, WorkerStopped)
			return
		default:
		}
		if !s.allowRespawn(name) {
			log.Printf("[SUPERVISOR] %s crash loop detected, auto-respawn disabled", name)
			s.setStatus(name, WorkerDisabled)
			return
		}
		log.Printf("[SUPERVISOR] respawning %s", name)
	}
}

func (s *Supervisor) runOnce(name string, fn func()) (crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SUPERVISOR] %s panicked: %v", name, r)
			s.setStatus(name, WorkerCrashed)
			crashed = true
		}
	}()
	fn()
	return false
}

// allowRespawn applies the crash loop window
func (s *Supervisor) allowRespawn(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.workers[name]
	if !ok {
		return false
	}
	now := time.Now()
	if state.windowStart.IsZero() || now.Sub(state.windowStart) > s.windowDuration {
		state.windowStart = now
		state.respawnCount = 1
		return true
	}
	state.respawnCount++
	return state.respawnCount <= s.maxRespawns
}

// StopWorker prevents further respawns of a worker. The current run,
// if any, finishes on its own.
func (s *Supervisor) StopWorker(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.workers[name]; ok {
		select {
		case <-state.quit:
		default:
			close(state.quit)
		}
	}
}

// Status reports a worker's lifecycle state
func (s *Supervisor) Status(name string) WorkerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.workers[name]; ok {
		return state.status
	}
	return WorkerStopped
}

// Reset clears crash loop protection, re-enabling a disabled worker
func (s *Supervisor) Reset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.workers[name]; ok {
		state.respawnCount = 0
		state.windowStart = time.Time{}
		if state.status == WorkerDisabled {
			state.status = WorkerStopped
		}
	}
}

func (s *Supervisor) setStatus(name string, status WorkerStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.workers[name]; ok {
		state.status = status
	}
}
