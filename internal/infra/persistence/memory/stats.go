package memory

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"pictocore/pkg/domain"
)

// counters tracks adapter calls per operation and collection. The local map
// backs Stats; the optional Prometheus vector mirrors it for scraping.
type counters struct {
	mu     sync.Mutex
	counts map[domain.Op]map[domain.Collection]int64
	vec    *prometheus.CounterVec
}

func newCounters() *counters {
	return &counters{counts: make(map[domain.Op]map[domain.Collection]int64)}
}

func (c *counters) register(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pictocore",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Adapter calls by operation and collection.",
	}, []string{"op", "collection"})
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return
		}
		vec = existing
	}
	c.mu.Lock()
	c.vec = vec
	c.mu.Unlock()
}

func (c *counters) inc(op domain.Op, coll domain.Collection) {
	c.mu.Lock()
	byColl := c.counts[op]
	if byColl == nil {
		byColl = make(map[domain.Collection]int64)
		c.counts[op] = byColl
	}
	byColl[coll]++
	vec := c.vec
	c.mu.Unlock()
	if vec != nil {
		vec.WithLabelValues(string(op), string(coll)).Inc()
	}
}

func (c *counters) snapshot() domain.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(domain.Stats, len(c.counts))
	for op, byColl := range c.counts {
		cp := make(map[domain.Collection]int64, len(byColl))
		for coll, n := range byColl {
			cp[coll] = n
		}
		out[op] = cp
	}
	return out
}

// reset clears the local counts only; Prometheus counters are monotonic.
func (c *counters) reset() {
	c.mu.Lock()
	c.counts = make(map[domain.Op]map[domain.Collection]int64)
	c.mu.Unlock()
}
