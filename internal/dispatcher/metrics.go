package dispatcher

import (
	"sort"
	"sync"
	"time"
)

// Metrics collects dispatch statistics.
type Metrics struct {
	mu sync.RWMutex

	// Per-action metrics
	actionMetrics map[string]*ActionMetrics

	// Global counters
	totalDispatches uint64
	totalErrors     uint64
	totalNotFound   uint64
	totalCancelled  uint64

	// Timing
	totalDuration time.Duration
}

// ActionMetrics holds metrics for a specific action.
type ActionMetrics struct {
	Name           string
	DispatchCount  uint64
	ErrorCount     uint64
	NotFoundCount  uint64
	CancelledCount uint64
	TotalDuration  time.Duration
	MinDuration    time.Duration
	MaxDuration    time.Duration
	LastFailed     bool
	LastDispatch   time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		actionMetrics: make(map[string]*ActionMetrics),
	}
}

// action returns the entry for name, creating it. Callers hold m.mu.
func (m *Metrics) action(name string) *ActionMetrics {
	am := m.actionMetrics[name]
	if am == nil {
		am = &ActionMetrics{Name: name}
		m.actionMetrics[name] = am
	}
	return am
}

// RecordDispatch records a handler invocation and its outcome.
func (m *Metrics) RecordDispatch(actionName string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalDispatches++
	m.totalDuration += duration
	if err != nil {
		m.totalErrors++
	}

	am := m.action(actionName)
	if am.DispatchCount == 0 || duration < am.MinDuration {
		am.MinDuration = duration
	}
	if duration > am.MaxDuration {
		am.MaxDuration = duration
	}
	am.DispatchCount++
	am.TotalDuration += duration
	am.LastFailed = err != nil
	am.LastDispatch = time.Now()
	if err != nil {
		am.ErrorCount++
	}
}

// RecordNotFound records a dispatch that resolved to no handler.
func (m *Metrics) RecordNotFound(actionName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalNotFound++
	m.action(actionName).NotFoundCount++
}

// RecordCancelled records a dispatch vetoed by a hook.
func (m *Metrics) RecordCancelled(actionName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalCancelled++
	m.action(actionName).CancelledCount++
}

// TotalDispatches returns the number of handler invocations.
func (m *Metrics) TotalDispatches() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalDispatches
}

// TotalErrors returns the number of handler invocations that failed.
func (m *Metrics) TotalErrors() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalErrors
}

// TotalNotFound returns the number of unresolved dispatches.
func (m *Metrics) TotalNotFound() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalNotFound
}

// AverageDuration returns the average dispatch duration.
func (m *Metrics) AverageDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.totalDispatches == 0 {
		return 0
	}
	return m.totalDuration / time.Duration(m.totalDispatches)
}

// ActionStats returns metrics for a specific action.
func (m *Metrics) ActionStats(actionName string) *ActionMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	am := m.actionMetrics[actionName]
	if am == nil {
		return nil
	}

	// Return a copy
	copy := *am
	return &copy
}

// TopActions returns the top N most dispatched actions.
func (m *Metrics) TopActions(n int) []*ActionMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	actions := make([]*ActionMetrics, 0, len(m.actionMetrics))
	for _, am := range m.actionMetrics {
		copy := *am
		actions = append(actions, &copy)
	}

	sort.Slice(actions, func(i, j int) bool {
		if actions[i].DispatchCount != actions[j].DispatchCount {
			return actions[i].DispatchCount > actions[j].DispatchCount
		}
		return actions[i].Name < actions[j].Name
	})

	if n > len(actions) {
		n = len(actions)
	}
	return actions[:n]
}

// SlowestActions returns the top N slowest actions by average duration.
func (m *Metrics) SlowestActions(n int) []*ActionMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	actions := make([]*ActionMetrics, 0, len(m.actionMetrics))
	for _, am := range m.actionMetrics {
		if am.DispatchCount > 0 {
			copy := *am
			actions = append(actions, &copy)
		}
	}

	sort.Slice(actions, func(i, j int) bool {
		return actions[i].AverageActionDuration() > actions[j].AverageActionDuration()
	})

	if n > len(actions) {
		n = len(actions)
	}
	return actions[:n]
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.actionMetrics = make(map[string]*ActionMetrics)
	m.totalDispatches = 0
	m.totalErrors = 0
	m.totalNotFound = 0
	m.totalCancelled = 0
	m.totalDuration = 0
}

// MetricsSnapshot is a point-in-time copy of the global counters.
type MetricsSnapshot struct {
	TotalDispatches uint64
	TotalErrors     uint64
	TotalNotFound   uint64
	TotalCancelled  uint64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	ActionCount     int
	Timestamp       time.Time
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := MetricsSnapshot{
		TotalDispatches: m.totalDispatches,
		TotalErrors:     m.totalErrors,
		TotalNotFound:   m.totalNotFound,
		TotalCancelled:  m.totalCancelled,
		TotalDuration:   m.totalDuration,
		ActionCount:     len(m.actionMetrics),
		Timestamp:       time.Now(),
	}

	if m.totalDispatches > 0 {
		snapshot.AverageDuration = m.totalDuration / time.Duration(m.totalDispatches)
	}

	return snapshot
}

// AverageActionDuration returns the average duration for a specific action.
func (am *ActionMetrics) AverageActionDuration() time.Duration {
	if am.DispatchCount == 0 {
		return 0
	}
	return am.TotalDuration / time.Duration(am.DispatchCount)
}

// ErrorRate returns the error rate as a percentage.
func (am *ActionMetrics) ErrorRate() float64 {
	if am.DispatchCount == 0 {
		return 0
	}
	return float64(am.ErrorCount) / float64(am.DispatchCount) * 100
}
