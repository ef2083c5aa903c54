package metrics

import (
	"context"
	"time"
)

// Recorder is the service used to record job manager measurements.
type Recorder interface {
	MeasureJobQueued(ctx context.Context)
	MeasureJobDequeued(ctx context.Context)
	MeasureTranscodeDuration(ctx context.Context, runner string, t time.Duration, err error)
}

type noopRecorder bool

// NoopRecorder doesn't record anything.
var NoopRecorder Recorder = noopRecorder(false)

func (r noopRecorder) MeasureJobQueued(ctx context.Context)   {}
func (r noopRecorder) MeasureJobDequeued(ctx context.Context) {}
func (r noopRecorder) MeasureTranscodeDuration(ctx context.Context, runner string, t time.Duration, err error) {
}
