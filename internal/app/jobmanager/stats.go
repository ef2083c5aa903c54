package jobmanager

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dacirco/dacirco/internal/model"
)

// Stats aggregates the measurements of all known jobs: ratio of completed
// jobs and mean/95th percentile of completed transcoding durations.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	jobs, err := s.repository.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list jobs: %w", err)
	}

	stats := &model.Stats{TotalJobs: len(jobs)}
	durations := []time.Duration{}
	for _, j := range jobs {
		switch j.State {
		case model.JobStateCompleted:
			stats.CompletedJobs++
			durations = append(durations, j.Duration)
		case model.JobStateError:
			stats.ErroredJobs++
		}
	}

	if stats.TotalJobs == 0 || stats.CompletedJobs == 0 {
		return stats, nil
	}

	stats.CompletedRatio = float64(stats.CompletedJobs) / float64(stats.TotalJobs)

	var total time.Duration
	for _, d := range durations {
		total += d
	}
	stats.DurationAvg = total / time.Duration(len(durations))
	stats.DurationP95 = percentile(durations, 95)

	return stats, nil
}

// percentile returns the pth percentile of the received durations using
// linear interpolation between closest ranks.
func percentile(durations []time.Duration, p float64) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)

	return sorted[lo] + time.Duration(frac*float64(sorted[lo+1]-sorted[lo]))
}
