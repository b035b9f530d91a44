package ai

import (
	"sort"
	"sync"
	"time"

	"github.com/joescharf/marie/internal/models"
)

// slowResponse is the average latency at which a model counts as degraded.
const slowResponse = 10 * time.Second

type monitorKey struct{ provider, model string }

type modelStats struct {
	total, ok, failed, fallback int
	latency                     time.Duration
	min, max                    time.Duration
	lastErr                     string
	lastAt                      time.Time
}

// Monitor keeps per provider and model request statistics.
type Monitor struct {
	mu    sync.Mutex
	stats map[monitorKey]*modelStats
	now   func() time.Time
}

// NewMonitor returns an empty Monitor.
func NewMonitor() *Monitor {
	return &Monitor{stats: map[monitorKey]*modelStats{}, now: time.Now}
}

// Record adds one finished request. fallback marks a request served in
// place of a failed primary.
func (m *Monitor) Record(provider, model string, d time.Duration, err error, fallback bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := monitorKey{provider, model}
	s := m.stats[k]
	if s == nil {
		s = &modelStats{}
		m.stats[k] = s
	}
	s.total++
	if err != nil {
		s.failed++
		s.lastErr = err.Error()
	} else {
		s.ok++
	}
	if fallback {
		s.fallback++
	}
	s.latency += d
	if s.total == 1 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.lastAt = m.now().UTC()
}

// Snapshot returns the statistics sorted by provider then model.
func (m *Monitor) Snapshot() []models.AIModelStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.AIModelStatus, 0, len(m.stats))
	for k, s := range m.stats {
		avg := s.latency / time.Duration(s.total)
		errRate := float64(s.failed) / float64(s.total)
		health := healthScore(errRate, avg, s.total)
		last := s.lastAt
		out = append(out, models.AIModelStatus{
			Provider:           k.provider,
			Model:              k.model,
			TotalRequests:      s.total,
			SuccessfulRequests: s.ok,
			FailedRequests:     s.failed,
			FallbackRequests:   s.fallback,
			AverageLatencyMs:   millis(avg),
			MinLatencyMs:       millis(s.min),
			MaxLatencyMs:       millis(s.max),
			ErrorRate:          errRate,
			HealthScore:        health,
			Status:             modelStatus(health, errRate),
			LastError:          s.lastErr,
			LastRequestAt:      &last,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Model < out[j].Model
	})
	return out
}

// Reset drops all statistics.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = map[monitorKey]*modelStats{}
}

// healthScore starts at 1, loses twice the error rate above 5% errors and
// a share of the latency past half of slowResponse. Over 100 requests earn
// a 0.1 bonus. The result is clamped to [0, 1].
func healthScore(errRate float64, avg time.Duration, total int) float64 {
	score := 1.0
	if errRate > 0.05 {
		score -= errRate * 2
	}
	if ratio := float64(avg) / float64(slowResponse); ratio > 0.5 {
		score -= (ratio - 0.5) * 0.5
	}
	if total > 100 {
		score += 0.1
	}
	return max(0, min(1, score))
}

func modelStatus(health, errRate float64) string {
	switch {
	case errRate > 0.5, health < 0.3:
		return models.ModelError
	case health < 0.7:
		return models.ModelBusy
	default:
		return models.ModelAvailable
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
