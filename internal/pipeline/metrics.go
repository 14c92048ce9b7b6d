package pipeline

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// Metrics is a thread-safe counter sink shared by pipeline workers.
type Metrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMetrics() *Metrics {
	return &Metrics{counts: map[string]int{}}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, n int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.counts[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

func (m *Metrics) Snapshot() map[string]int {
	out := map[string]int{}
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}

// LogSummary emits one line with all counters in stable order.
func (m *Metrics) LogSummary(prefix string) {
	snap := m.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, snap[k]))
	}
	log.Printf("%s %s", prefix, strings.Join(parts, " "))
}
