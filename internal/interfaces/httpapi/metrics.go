package httpapi

import (
	"maps"
	"sync"
	"time"

	"avaxdash/internal/domain"
)

// Metrics counts poll ticks, sink deliveries and websocket viewers. It
// observes the poller, the aggregator and the snapshot forwarder.
type Metrics struct {
	mu           sync.RWMutex
	startTime    time.Time
	latestBlock  uint64
	ticks        map[string]uint64
	failures     map[string]map[string]uint64
	lastDuration map[string]time.Duration
	lastSuccess  map[string]time.Time
	sinkSent     map[string]uint64
	sinkErrors   map[string]uint64
	wsClients    int
	wsTotal      uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime:    time.Now(),
		ticks:        make(map[string]uint64),
		failures:     make(map[string]map[string]uint64),
		lastDuration: make(map[string]time.Duration),
		lastSuccess:  make(map[string]time.Time),
		sinkSent:     make(map[string]uint64),
		sinkErrors:   make(map[string]uint64),
	}
}

// OnLatestBlock records the highest head seen; concurrent workflows may
// report heights out of order.
func (m *Metrics) OnLatestBlock(block uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if block > m.latestBlock {
		m.latestBlock = block
	}
}

func (m *Metrics) OnTick(query string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[query]++
	m.lastDuration[query] = duration
	if err != nil {
		kind := domain.FailureKind(err)
		if _, ok := m.failures[query]; !ok {
			m.failures[query] = make(map[string]uint64)
		}
		m.failures[query][kind]++
		return
	}
	m.lastSuccess[query] = time.Now()
}

func (m *Metrics) OnSinkResult(sink string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.sinkErrors[sink]++
		return
	}
	m.sinkSent[sink]++
}

func (m *Metrics) wsConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wsClients++
	m.wsTotal++
}

func (m *Metrics) wsDisconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wsClients--
}

type Snapshot struct {
	StartTime    time.Time
	LatestBlock  uint64
	Ticks        map[string]uint64
	Failures     map[string]map[string]uint64
	LastDuration map[string]time.Duration
	LastSuccess  map[string]time.Time
	SinkSent     map[string]uint64
	SinkErrors   map[string]uint64
	WSClients    int
	WSTotal      uint64
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	failures := make(map[string]map[string]uint64, len(m.failures))
	for query, kinds := range m.failures {
		failures[query] = maps.Clone(kinds)
	}
	return Snapshot{
		StartTime:    m.startTime,
		LatestBlock:  m.latestBlock,
		Ticks:        maps.Clone(m.ticks),
		Failures:     failures,
		LastDuration: maps.Clone(m.lastDuration),
		LastSuccess:  maps.Clone(m.lastSuccess),
		SinkSent:     maps.Clone(m.sinkSent),
		SinkErrors:   maps.Clone(m.sinkErrors),
		WSClients:    m.wsClients,
		WSTotal:      m.wsTotal,
	}
}
