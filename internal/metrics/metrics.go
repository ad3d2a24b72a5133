package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex         sync.RWMutex
	requests      map[string]int64
	statusCodes   map[string]map[int]int64
	responseTimes map[string][]time.Duration
	routeMisses   int64
	rateLimited   int64
	startTime     time.Time
}

type Snapshot struct {
	TotalRequests int64                   `json:"total_requests"`
	RouteMisses   int64                   `json:"route_misses"`
	RateLimited   int64                   `json:"rate_limited"`
	Uptime        time.Duration           `json:"uptime"`
	Routes        map[string]RouteMetrics `json:"routes"`
}

type RouteMetrics struct {
	Requests    int64         `json:"requests"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

func (m *Metrics) RecordProxied(prefix string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.requests[prefix]++

	m.responseTimes[prefix] = append(m.responseTimes[prefix], duration)
	if len(m.responseTimes[prefix]) > 1000 {
		m.responseTimes[prefix] = m.responseTimes[prefix][1:]
	}

	if m.statusCodes[prefix] == nil {
		m.statusCodes[prefix] = make(map[int]int64)
	}
	m.statusCodes[prefix][statusCode]++
}

func (m *Metrics) RecordRouteMiss() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.routeMisses++
}

func (m *Metrics) RecordRateLimited() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rateLimited++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		RouteMisses: m.routeMisses,
		RateLimited: m.rateLimited,
		Uptime:      time.Since(m.startTime),
		Routes:      make(map[string]RouteMetrics),
	}

	for prefix, count := range m.requests {
		snap.TotalRequests += count

		rm := RouteMetrics{
			Requests:    count,
			StatusCodes: make(map[int]int64, len(m.statusCodes[prefix])),
		}
		// Copied under the lock so the snapshot never aliases a map the
		// collector goroutine is still writing.
		for code, n := range m.statusCodes[prefix] {
			rm.StatusCodes[code] = n
		}

		durations := m.responseTimes[prefix]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			rm.AvgResponse = average(sorted)
			rm.P50Response = percentile(sorted, 0.50)
			rm.P95Response = percentile(sorted, 0.95)
			rm.P99Response = percentile(sorted, 0.99)
		}

		snap.Routes[prefix] = rm
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:      make(map[string]int64),
		statusCodes:   make(map[string]map[int]int64),
		responseTimes: make(map[string][]time.Duration),
		startTime:     time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
