package telemetry

import "sync/atomic"

type Provider interface {
	Get() *Sample
}

// Latest holds the most recent sample. Samples are replaced wholesale, never
// merged; readers always see a complete snapshot.
type Latest struct {
	sample atomic.Pointer[Sample]
}

// Set replaces the retained sample.
func (l *Latest) Set(s *Sample) {
	l.sample.Store(s)
}

// Get returns the retained sample or nil when nothing was received yet.
func (l *Latest) Get() *Sample {
	return l.sample.Load()
}
