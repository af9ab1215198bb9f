// Package metrics provides the MetricsRecorder interface, a noop
// implementation, and a VictoriaMetrics-backed recorder.
package metrics

import (
	"fmt"
	"io"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
)

// MetricsRecorder is the interface for recording codec metrics.
// key is usually the qualified name of a record type, or an empty string for
// operations that span several types.
type MetricsRecorder interface {
	RecordHit(cache, key string)
	RecordMiss(cache, key string)
	RecordLatency(op, key string, d time.Duration)
	RecordError(op, key string)
}

// Noop is a MetricsRecorder that discards all data.
type Noop struct{}

func (Noop) RecordHit(cache, key string)                   {}
func (Noop) RecordMiss(cache, key string)                  {}
func (Noop) RecordLatency(op, key string, d time.Duration) {}
func (Noop) RecordError(op, key string)                    {}

// Victoria records into a VictoriaMetrics set.
type Victoria struct {
	set *vm.Set
}

// NewVictoria returns a recorder writing into set; nil creates a private set.
func NewVictoria(set *vm.Set) *Victoria {
	if set == nil {
		set = vm.NewSet()
	}
	return &Victoria{set: set}
}

func (v *Victoria) RecordHit(cache, key string) {
	v.set.GetOrCreateCounter(fmt.Sprintf(`ormpack_cache_hits_total{cache=%q,type=%q}`, cache, key)).Inc()
}

func (v *Victoria) RecordMiss(cache, key string) {
	v.set.GetOrCreateCounter(fmt.Sprintf(`ormpack_cache_misses_total{cache=%q,type=%q}`, cache, key)).Inc()
}

func (v *Victoria) RecordLatency(op, key string, d time.Duration) {
	v.set.GetOrCreateHistogram(fmt.Sprintf(`ormpack_op_duration_seconds{op=%q,type=%q}`, op, key)).Update(d.Seconds())
}

func (v *Victoria) RecordError(op, key string) {
	v.set.GetOrCreateCounter(fmt.Sprintf(`ormpack_errors_total{op=%q,type=%q}`, op, key)).Inc()
}

// WritePrometheus writes every metric in Prometheus text format.
func (v *Victoria) WritePrometheus(w io.Writer) {
	v.set.WritePrometheus(w)
}
