// Package observability samples the health of the chat backend process and counts its traffic.
package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

const DefaultInterval = 10 * time.Second

type Stats struct {
	StartedAt  time.Time `json:"startedAt"`
	SampledAt  time.Time `json:"sampledAt"`
	Uptime     string    `json:"uptime"`
	Status     string    `json:"status"`
	CPUPercent float64   `json:"cpuPercent"`
	RSSMb      uint64    `json:"rssMb"`
	AllocMemMb uint64    `json:"allocMemMb"`
	NumGC      uint32    `json:"numGc"`
	Goroutines int       `json:"goroutines"`

	MessagesSent uint64 `json:"messagesSent"`
	Uploads      uint64 `json:"uploads"`
	Rejected     uint64 `json:"rejected"`
	RateLimited  uint64 `json:"rateLimited"`
	Failures     uint64 `json:"failures"`
}

// Monitor keeps the latest sample. A nil Monitor is valid and counts nothing.
type Monitor struct {
	log       *slog.Logger
	interval  time.Duration
	startedAt time.Time

	mu     sync.RWMutex
	latest Stats

	messages    atomic.Uint64
	uploads     atomic.Uint64
	rejected    atomic.Uint64
	rateLimited atomic.Uint64
	failures    atomic.Uint64
}

func NewMonitor(log *slog.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	now := time.Now()
	return &Monitor{
		log:       log,
		interval:  interval,
		startedAt: now,
		latest:    Stats{StartedAt: now, SampledAt: now},
	}
}

// Run samples the process every interval until ctx ends.
func (m *Monitor) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	m.sample(p)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.sample(p)
		}
	}
}

func (m *Monitor) sample(p *process.Process) {
	stats := m.counters()
	stats.StartedAt = m.startedAt
	stats.SampledAt = time.Now()
	stats.Uptime = stats.SampledAt.Sub(m.startedAt).Truncate(time.Second).String()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.AllocMemMb = mem.Alloc / 1024 / 1024
	stats.NumGC = mem.NumGC
	stats.Goroutines = runtime.NumGoroutine()

	if p != nil {
		rss, cpu, status, err := selfStats(p)
		if err != nil {
			m.log.Debug("Failed to collect self stats", "error", err)
		} else {
			stats.RSSMb = rss / 1024 / 1024
			stats.CPUPercent = cpu
			stats.Status = status
		}
	}

	m.mu.Lock()
	m.latest = stats
	m.mu.Unlock()
	m.log.Debug("Stats sampled", "rss_mb", stats.RSSMb, "cpu", stats.CPUPercent,
		"goroutines", stats.Goroutines, "messages", stats.MessagesSent)
}

func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}

// Latest returns the last sample with live counters.
func (m *Monitor) Latest() Stats {
	if m == nil {
		return Stats{}
	}
	m.mu.RLock()
	stats := m.latest
	m.mu.RUnlock()
	live := m.counters()
	stats.MessagesSent, stats.Uploads = live.MessagesSent, live.Uploads
	stats.Rejected, stats.RateLimited, stats.Failures = live.Rejected, live.RateLimited, live.Failures
	return stats
}

func (m *Monitor) counters() Stats {
	return Stats{
		MessagesSent: m.messages.Load(),
		Uploads:      m.uploads.Load(),
		Rejected:     m.rejected.Load(),
		RateLimited:  m.rateLimited.Load(),
		Failures:     m.failures.Load(),
	}
}

func (m *Monitor) IncrMessages() {
	if m != nil {
		m.messages.Add(1)
	}
}

func (m *Monitor) IncrUploads() {
	if m != nil {
		m.uploads.Add(1)
	}
}

// Observe counts a finished request by its status code.
func (m *Monitor) Observe(status int) {
	if m == nil {
		return
	}
	switch {
	case status == 429:
		m.rateLimited.Add(1)
	case status >= 500:
		m.failures.Add(1)
	case status >= 400:
		m.rejected.Add(1)
	}
}
