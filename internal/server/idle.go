package server

import (
	"sync"
	"time"
)

// idleMonitor fires a callback after the server has spent a full timeout
// window with zero active sessions. Any new session disarms it; the last
// session ending re-arms it.
type idleMonitor struct {
	timeout time.Duration
	fire    func()

	mu      sync.Mutex
	active  int
	timer   *time.Timer
	stopped bool
}

func newIdleMonitor(timeout time.Duration, fire func()) *idleMonitor {
	return &idleMonitor{timeout: timeout, fire: fire}
}

// Arm starts the countdown. Called once the listener is up.
func (m *idleMonitor) Arm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.active > 0 {
		return
	}
	m.startLocked()
}

// Inc records a session starting and disarms the countdown.
func (m *idleMonitor) Inc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Dec records a session ending and re-arms once none remain.
func (m *idleMonitor) Dec() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active--
	if m.active <= 0 && !m.stopped {
		m.startLocked()
	}
}

// Stop disarms the monitor permanently.
func (m *idleMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *idleMonitor) startLocked() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.timeout, func() {
		m.mu.Lock()
		fire := !m.stopped && m.active == 0
		m.mu.Unlock()
		if fire {
			go m.fire()
		}
	})
}
