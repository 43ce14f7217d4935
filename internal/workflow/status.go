package workflow

import (
	"context"

	"scriptorium/internal/logging"
	"scriptorium/internal/queue"
)

// Counters tallies records handled since the scheduler was created.
type Counters struct {
	Claimed   int64 `json:"claimed"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// StatusSummary represents lightweight scheduler diagnostics.
type StatusSummary struct {
	Running    bool                 `json:"running"`
	Workers    int                  `json:"workers"`
	InFlight   int                  `json:"in_flight"`
	LastError  string               `json:"last_error,omitempty"`
	LastRecord *queue.ActionRecord  `json:"last_record,omitempty"`
	Counters   Counters             `json:"counters"`
	QueueStats map[queue.Status]int `json:"queue_stats,omitempty"`
}

// Status returns the latest scheduler information.
func (s *Scheduler) Status(ctx context.Context) StatusSummary {
	s.mu.RLock()
	summary := StatusSummary{
		Running:  s.running,
		Workers:  s.opts.Workers,
		InFlight: len(s.slots),
		Counters: s.counters,
	}
	if s.lastErr != nil {
		summary.LastError = s.lastErr.Error()
	}
	if s.lastRecord != nil {
		copy := *s.lastRecord
		summary.LastRecord = &copy
	}
	s.mu.RUnlock()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats
	return summary
}

func (s *Scheduler) setLastError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Scheduler) recordStarted(record *queue.ActionRecord) {
	s.mu.Lock()
	s.counters.Claimed++
	copy := *record
	s.lastRecord = &copy
	s.mu.Unlock()
}

func (s *Scheduler) recordFinished(record *queue.ActionRecord) {
	s.mu.Lock()
	if record.Status == queue.StatusSucceeded {
		s.counters.Succeeded++
	} else {
		s.counters.Failed++
	}
	copy := *record
	s.lastRecord = &copy
	s.mu.Unlock()
}
