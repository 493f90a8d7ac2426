package stats

import (
	"testing"
	"time"
)

type recorder struct {
	counters map[string]int64
	gauges   map[string]int64
	observed map[string]int
}

func newRecorder() *recorder {
	return &recorder{
		counters: make(map[string]int64),
		gauges:   make(map[string]int64),
		observed: make(map[string]int),
	}
}

func (r *recorder) IncCounter(name string, delta int64)         { r.counters[name] += delta }
func (r *recorder) SetGauge(name string, value int64)           { r.gauges[name] = value }
func (r *recorder) ObserveHistogram(name string, value float64) { r.observed[name]++ }

func TestMulti(t *testing.T) {
	a, b := newRecorder(), newRecorder()
	c := Multi(a, nil, b)

	c.IncCounter(MetricCacheHits, 2)
	c.SetGauge(MetricCacheSize, 7)
	ObserveSince(c, MetricCompletionTime, time.Now())

	for i, r := range []*recorder{a, b} {
		if r.counters[MetricCacheHits] != 2 {
			t.Errorf("collector %d: counter = %d, want 2", i, r.counters[MetricCacheHits])
		}
		if r.gauges[MetricCacheSize] != 7 {
			t.Errorf("collector %d: gauge = %d, want 7", i, r.gauges[MetricCacheSize])
		}
		if r.observed[MetricCompletionTime] != 1 {
			t.Errorf("collector %d: observations = %d, want 1", i, r.observed[MetricCompletionTime])
		}
	}
}

func TestMulti_Collapses(t *testing.T) {
	if _, ok := Multi().(*Noop); !ok {
		t.Error("Multi() should return a Noop collector")
	}
	r := newRecorder()
	if got := Multi(nil, r); got != Collector(r) {
		t.Error("Multi() with one collector should return it unchanged")
	}
}

func TestHelp(t *testing.T) {
	if got := Help(MetricCacheHits); got == MetricCacheHits {
		t.Errorf("Help(%q) should have a description", MetricCacheHits)
	}
	if got := Help("custom_metric"); got != "custom_metric" {
		t.Errorf("Help(custom_metric) = %q, want name", got)
	}
}
