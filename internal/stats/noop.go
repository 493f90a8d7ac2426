package stats

// Noop is a no-op collector that discards all metrics.
type Noop struct{}

// Compile-time check that Noop implements Collector.
var _ Collector = (*Noop)(nil)

// NewNoop creates a new no-op collector.
func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) IncCounter(name string, delta int64)         {}
func (n *Noop) SetGauge(name string, value int64)           {}
func (n *Noop) ObserveHistogram(name string, value float64) {}

// multi fans every observation out to several collectors.
type multi []Collector

// Multi returns a collector that forwards to each of cs. Nil entries are
// dropped.
func Multi(cs ...Collector) Collector {
	var m multi
	for _, c := range cs {
		if c != nil {
			m = append(m, c)
		}
	}
	if len(m) == 0 {
		return NewNoop()
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

func (m multi) IncCounter(name string, delta int64) {
	for _, c := range m {
		c.IncCounter(name, delta)
	}
}

func (m multi) SetGauge(name string, value int64) {
	for _, c := range m {
		c.SetGauge(name, value)
	}
}

func (m multi) ObserveHistogram(name string, value float64) {
	for _, c := range m {
		c.ObserveHistogram(name, value)
	}
}
