package service

import "sync"

// CandidateLocks serializes mutations per candidate. A candidate may have at
// most one in-flight transition (advance, revert or finalize); a second
// attempt while one is pending fails immediately instead of queueing. The
// registry is shared between the pipeline and enrollment services so that
// finalize and advance/revert are mutually exclusive on the same candidate.
type CandidateLocks struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewCandidateLocks constructs an empty lock registry.
func NewCandidateLocks() *CandidateLocks {
	return &CandidateLocks{inFlight: make(map[string]struct{})}
}

// TryAcquire reserves the candidate for a mutation. It returns false when a
// mutation is already in flight.
func (l *CandidateLocks) TryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.inFlight[id]; busy {
		return false
	}
	l.inFlight[id] = struct{}{}
	return true
}

// Release frees the candidate for subsequent mutations.
func (l *CandidateLocks) Release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, id)
}
