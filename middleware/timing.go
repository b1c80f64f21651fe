package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/plumbgo/plumb"
)

// RunStats describes one graph evaluation observed by Timing.
type RunStats struct {
	Graph    string
	Duration time.Duration
	Failed   bool
}

// Stats collects evaluation timings. Safe for concurrent use.
type Stats struct {
	mu   sync.Mutex
	runs []RunStats
}

// Runs returns a copy of the recorded evaluations, oldest first.
func (s *Stats) Runs() []RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RunStats(nil), s.runs...)
}

// Last returns the most recent recorded evaluation.
func (s *Stats) Last() (RunStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) == 0 {
		return RunStats{}, false
	}
	return s.runs[len(s.runs)-1], true
}

func (s *Stats) record(r RunStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, r)
}

// Timing records the duration of every graph evaluation into stats.
func Timing(stats *Stats) Middleware {
	return func(next plumb.Evaluator) plumb.Evaluator {
		return plumb.EvaluatorFunc(func(ctx context.Context, g *plumb.Graph) error {
			start := time.Now()
			err := next.Evaluate(ctx, g)
			stats.record(RunStats{
				Graph:    g.Name(),
				Duration: time.Since(start),
				Failed:   err != nil,
			})
			return err
		})
	}
}
