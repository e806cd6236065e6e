// Package monitoring tracks supervisor resource usage: goroutine counts,
// heap figures, and session/worker totals, with simple leak heuristics.
package monitoring

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/mkonda/probemux/internal/logger"
)

const maxRetainedMetrics = 1000

// ResourceMetrics holds one resource usage measurement
type ResourceMetrics struct {
	Timestamp      time.Time `json:"timestamp"`
	Goroutines     int       `json:"goroutines"`
	MemoryAllocMB  uint64    `json:"memory_alloc_mb"`
	HeapInuseMB    uint64    `json:"memory_heap_inuse_mb"`
	GCCount        uint32    `json:"gc_count"`
	Sessions       int       `json:"sessions"`
	RunningWorkers int       `json:"running_workers"`
}

// LeakReport summarizes leak heuristics relative to the baseline
type LeakReport struct {
	Suspected          bool   `json:"suspected"`
	GoroutineIncrease  int    `json:"goroutine_increase"`
	MemoryIncreaseMB   int64  `json:"memory_increase_mb"`
	GoroutineThreshold int    `json:"goroutine_threshold"`
	Detail             string `json:"detail,omitempty"`
}

// ResourceMonitor periodically measures resource usage
type ResourceMonitor struct {
	log      *logger.Logger
	interval time.Duration

	mu      sync.RWMutex
	metrics []ResourceMetrics

	baselineGoroutines int
	baselineAllocMB    uint64

	sessionCounter func() int
	workerCounter  func() int

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewResourceMonitor creates a monitor measuring on the given interval
func NewResourceMonitor(log *logger.Logger, interval time.Duration) *ResourceMonitor {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &ResourceMonitor{
		log:                log.WithComponent("monitoring"),
		interval:           interval,
		metrics:            make([]ResourceMetrics, 0, maxRetainedMetrics),
		baselineGoroutines: runtime.NumGoroutine(),
		baselineAllocMB:    m.Alloc / 1024 / 1024,
		stopCh:             make(chan struct{}),
	}
}

// SetCounters wires the session and running-worker counters
func (rm *ResourceMonitor) SetCounters(sessions, workers func() int) {
	rm.sessionCounter = sessions
	rm.workerCounter = workers
}

// Start begins periodic measurement until the context is cancelled or
// Stop is called
func (rm *ResourceMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(rm.interval)

	go func() {
		defer ticker.Stop()

		rm.record()
		for {
			select {
			case <-ticker.C:
				rm.record()
			case <-rm.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts periodic measurement
func (rm *ResourceMonitor) Stop() {
	rm.stopOnce.Do(func() { close(rm.stopCh) })
}

// record takes one measurement and retires old ones
func (rm *ResourceMonitor) record() {
	m := rm.measure()

	rm.mu.Lock()
	rm.metrics = append(rm.metrics, m)
	if len(rm.metrics) > maxRetainedMetrics {
		rm.metrics = rm.metrics[len(rm.metrics)-maxRetainedMetrics:]
	}
	rm.mu.Unlock()

	rm.log.Debug("Resource measurement", map[string]any{
		"goroutines":      m.Goroutines,
		"memory_alloc_mb": m.MemoryAllocMB,
		"sessions":        m.Sessions,
		"running_workers": m.RunningWorkers,
	})
}

// measure builds one ResourceMetrics value
func (rm *ResourceMonitor) measure() ResourceMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	metrics := ResourceMetrics{
		Timestamp:     time.Now().UTC(),
		Goroutines:    runtime.NumGoroutine(),
		MemoryAllocMB: m.Alloc / 1024 / 1024,
		HeapInuseMB:   m.HeapInuse / 1024 / 1024,
		GCCount:       m.NumGC,
	}
	if rm.sessionCounter != nil {
		metrics.Sessions = rm.sessionCounter()
	}
	if rm.workerCounter != nil {
		metrics.RunningWorkers = rm.workerCounter()
	}
	return metrics
}

// Current returns a fresh measurement without recording it
func (rm *ResourceMonitor) Current(forceGC bool) ResourceMetrics {
	if forceGC {
		runtime.GC()
	}
	return rm.measure()
}

// History returns the recorded measurements, newest last
func (rm *ResourceMonitor) History() []ResourceMetrics {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return append([]ResourceMetrics(nil), rm.metrics...)
}

// CheckLeaks compares current usage to the baseline. threshold is the
// goroutine increase considered suspicious; zero uses the default of 50.
func (rm *ResourceMonitor) CheckLeaks(threshold int) LeakReport {
	if threshold <= 0 {
		threshold = 50
	}

	current := rm.measure()
	report := LeakReport{
		GoroutineIncrease:  current.Goroutines - rm.baselineGoroutines,
		MemoryIncreaseMB:   int64(current.MemoryAllocMB) - int64(rm.baselineAllocMB),
		GoroutineThreshold: threshold,
	}

	if report.GoroutineIncrease > threshold {
		report.Suspected = true
		report.Detail = "goroutine count grew past threshold; check for unfinished capture loops"
	}

	return report
}
