package metrics

import (
	"sync"
	"time"
)

// StoreMetrics tracks counters and latencies for session store operations
type StoreMetrics struct {
	mu sync.RWMutex

	// Load metrics
	Loads        int64
	LoadMisses   int64
	LoadDuration time.Duration

	// Save metrics
	Saves        int64
	FailedSaves  int64
	SaveDuration time.Duration

	// Delete and sweep metrics
	Deletes       int64
	Sweeps        int64
	SweptSessions int64
	SweepDuration time.Duration

	BackendErrors int64
}

// NewStoreMetrics creates a new StoreMetrics instance
func NewStoreMetrics() *StoreMetrics {
	return &StoreMetrics{}
}

// RecordLoad records a session lookup; found is false for absent or expired sessions
func (m *StoreMetrics) RecordLoad(found bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Loads++
	if !found {
		m.LoadMisses++
	}
	m.LoadDuration += duration
}

// RecordSave records a save attempt
func (m *StoreMetrics) RecordSave(success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Saves++
	if !success {
		m.FailedSaves++
	}
	m.SaveDuration += duration
}

// RecordDelete records a session whose rows were removed
func (m *StoreMetrics) RecordDelete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes++
}

// RecordSweep records one run of the expiry sweep
func (m *StoreMetrics) RecordSweep(removed int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Sweeps++
	m.SweptSessions += int64(removed)
	m.SweepDuration += duration
}

// RecordBackendError records a failed round trip to the database
func (m *StoreMetrics) RecordBackendError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BackendErrors++
}

// GetMetrics returns a snapshot of the current metrics
func (m *StoreMetrics) GetMetrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]any{
		"loads":          m.Loads,
		"load_misses":    m.LoadMisses,
		"avg_load_time":  average(m.LoadDuration, m.Loads),
		"saves":          m.Saves,
		"failed_saves":   m.FailedSaves,
		"avg_save_time":  average(m.SaveDuration, m.Saves),
		"deletes":        m.Deletes,
		"sweeps":         m.Sweeps,
		"swept_sessions": m.SweptSessions,
		"avg_sweep_time": average(m.SweepDuration, m.Sweeps),
		"backend_errors": m.BackendErrors,
	}
}

func average(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}

	return total.Seconds() / float64(count)
}
